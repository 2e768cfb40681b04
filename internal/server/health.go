package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/StrahinjaMijatovic/EUprava25/internal/domain"
	"github.com/StrahinjaMijatovic/EUprava25/internal/engine"
)

func registerHealthDomain(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-health-appointment",
		Method:        http.MethodPost,
		Path:          "/health/appointments",
		Summary:       "Request a health appointment",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateHealthAppointmentRequest `json:"body"`
	}) (*struct {
		Body domain.HealthAppointment `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		app, err := e.CreateHealthAppointment(ctx, claim, engine.CreateHealthAppointmentInput{
			DoctorID: input.Body.DoctorID,
			DateTime: input.Body.DateTime,
			Type:     input.Body.Type,
			Notes:    input.Body.Notes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.HealthAppointment `json:"body"`
		}{Body: app}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-health-appointments",
		Method:      http.MethodGet,
		Path:        "/health/appointments",
		Summary:     "List health appointments",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *listQuery) (*struct {
		Body []domain.HealthAppointment `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListHealthAppointments(ctx, claim, engine.ListOptions{Status: input.Status, Limit: input.Limit})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.HealthAppointment `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-health-appointment",
		Method:      http.MethodGet,
		Path:        "/health/appointments/{id}",
		Summary:     "Get health appointment",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.HealthAppointment `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		app, err := e.GetHealthAppointment(ctx, claim, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.HealthAppointment `json:"body"`
		}{Body: app}, nil
	})

	registerStatusRoutes(api, e, "health-appointment", "/health/appointments", domain.KindHealthAppointment)

	huma.Register(api, huma.Operation{
		OperationID:   "create-health-card-request",
		Method:        http.MethodPost,
		Path:          "/health/card-requests",
		Summary:       "File a health card request",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateHealthCardRequestRequest `json:"body"`
	}) (*struct {
		Body domain.HealthCardRequest `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		req, err := e.CreateHealthCardRequest(ctx, claim, engine.CreateHealthCardRequestInput{
			RequestType: input.Body.RequestType,
			Notes:       input.Body.Notes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.HealthCardRequest `json:"body"`
		}{Body: req}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-health-card-requests",
		Method:      http.MethodGet,
		Path:        "/health/card-requests",
		Summary:     "List health card requests",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *listQuery) (*struct {
		Body []domain.HealthCardRequest `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListHealthCardRequests(ctx, claim, engine.ListOptions{Status: input.Status, Limit: input.Limit})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.HealthCardRequest `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-health-card-request",
		Method:      http.MethodGet,
		Path:        "/health/card-requests/{id}",
		Summary:     "Get health card request",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.HealthCardRequest `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		req, err := e.GetHealthCardRequest(ctx, claim, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.HealthCardRequest `json:"body"`
		}{Body: req}, nil
	})

	registerStatusRoutes(api, e, "health-card-request", "/health/card-requests", domain.KindHealthCardRequest)

	huma.Register(api, huma.Operation{
		OperationID:   "create-prescription",
		Method:        http.MethodPost,
		Path:          "/health/prescriptions",
		Summary:       "Issue a prescription",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreatePrescriptionRequest `json:"body"`
	}) (*struct {
		Body domain.Prescription `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreatePrescription(ctx, claim, engine.CreatePrescriptionInput{
			PatientID:  input.Body.PatientID,
			Medication: input.Body.Medication,
			Dosage:     input.Body.Dosage,
			Duration:   input.Body.Duration,
			ValidDays:  input.Body.ValidDays,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Prescription `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-prescriptions",
		Method:      http.MethodGet,
		Path:        "/health/prescriptions",
		Summary:     "List prescriptions",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *listQuery) (*struct {
		Body []domain.Prescription `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListPrescriptions(ctx, claim, engine.ListOptions{Status: input.Status, Limit: input.Limit})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Prescription `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-prescription",
		Method:      http.MethodGet,
		Path:        "/health/prescriptions/{id}",
		Summary:     "Get prescription",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Prescription `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.GetPrescription(ctx, claim, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Prescription `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dispense-prescription",
		Method:      http.MethodPost,
		Path:        "/health/prescriptions/{id}/dispense",
		Summary:     "Mark a prescription dispensed",
		Errors:      statusErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Prescription `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.DispensePrescription(ctx, claim, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Prescription `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "issue-certificate",
		Method:        http.MethodPost,
		Path:          "/health/certificates",
		Summary:       "Issue a medical certificate",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body IssueCertificateRequest `json:"body"`
	}) (*struct {
		Body domain.MedicalCertificate `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		cert, err := e.IssueCertificate(ctx, claim, engine.IssueCertificateInput{
			PatientID:   input.Body.PatientID,
			PatientName: input.Body.PatientName,
			Type:        input.Body.Type,
			ValidFrom:   input.Body.ValidFrom,
			ValidTo:     input.Body.ValidTo,
			Notes:       input.Body.Notes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.MedicalCertificate `json:"body"`
		}{Body: cert}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-certificates",
		Method:      http.MethodGet,
		Path:        "/health/certificates",
		Summary:     "List medical certificates",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		PatientID string `query:"patient_id"`
	}) (*struct {
		Body []domain.MedicalCertificate `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListCertificates(ctx, claim, input.PatientID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.MedicalCertificate `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-certificate",
		Method:      http.MethodGet,
		Path:        "/health/certificates/{id}",
		Summary:     "Get medical certificate",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.MedicalCertificate `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		cert, err := e.GetCertificate(ctx, claim, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.MedicalCertificate `json:"body"`
		}{Body: cert}, nil
	})
}
