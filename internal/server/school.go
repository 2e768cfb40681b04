package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/StrahinjaMijatovic/EUprava25/internal/domain"
	"github.com/StrahinjaMijatovic/EUprava25/internal/engine"
)

type listQuery struct {
	Status string `query:"status"`
	Limit  int    `query:"limit" default:"50" minimum:"1" maximum:"500"`
}

var statusErrors = []int{
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusUnprocessableEntity,
	http.StatusServiceUnavailable,
}

// registerStatusRoutes wires the shared transition contract for one kind:
// PATCH {base}/{id}/status and the reviewer-scoped audit trail.
func registerStatusRoutes(api huma.API, e *engine.Engine, name, base string, kind domain.Kind) {
	huma.Register(api, huma.Operation{
		OperationID: "transition-" + name,
		Method:      http.MethodPatch,
		Path:        base + "/{id}/status",
		Summary:     "Transition " + name + " status",
		Errors:      statusErrors,
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body TransitionRequest `json:"body"`
	}) (*struct {
		Body TransitionResponse `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.Transition(ctx, claim, engine.TransitionInput{
			Kind:   kind,
			ID:     input.ID,
			Target: input.Body.Status,
			Notes:  input.Body.Notes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TransitionResponse `json:"body"`
		}{Body: transitionResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-" + name + "-transitions",
		Method:      http.MethodGet,
		Path:        base + "/{id}/transitions",
		Summary:     "Transition history of one " + name,
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []domain.TransitionRecord `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		records, err := e.ListTransitions(ctx, claim, kind, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.TransitionRecord `json:"body"`
		}{Body: records}, nil
	})
}

func registerSchool(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-enrollment",
		Method:        http.MethodPost,
		Path:          "/school/enrollments",
		Summary:       "File an enrollment application",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateEnrollmentRequest `json:"body"`
	}) (*struct {
		Body domain.Enrollment `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		enr, err := e.CreateEnrollment(ctx, claim, engine.CreateEnrollmentInput{
			FirstName:    input.Body.FirstName,
			LastName:     input.Body.LastName,
			DateOfBirth:  input.Body.DateOfBirth,
			SchoolYear:   input.Body.SchoolYear,
			HealthCertID: input.Body.HealthCertID,
			Notes:        input.Body.Notes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Enrollment `json:"body"`
		}{Body: enr}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-enrollments",
		Method:      http.MethodGet,
		Path:        "/school/enrollments",
		Summary:     "List enrollments",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *listQuery) (*struct {
		Body []domain.Enrollment `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListEnrollments(ctx, claim, engine.ListOptions{Status: input.Status, Limit: input.Limit})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Enrollment `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-enrollment",
		Method:      http.MethodGet,
		Path:        "/school/enrollments/{id}",
		Summary:     "Get enrollment",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Enrollment `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		enr, err := e.GetEnrollment(ctx, claim, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Enrollment `json:"body"`
		}{Body: enr}, nil
	})

	registerStatusRoutes(api, e, "enrollment", "/school/enrollments", domain.KindEnrollment)

	huma.Register(api, huma.Operation{
		OperationID: "get-enrollment-student",
		Method:      http.MethodGet,
		Path:        "/school/enrollments/{id}/student",
		Summary:     "Student provisioned by an approved enrollment",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Student `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		student, err := e.StudentForEnrollment(ctx, claim, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Student `json:"body"`
		}{Body: student}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "provision-student",
		Method:        http.MethodPost,
		Path:          "/school/enrollments/{id}/student",
		Summary:       "Provision the student for an approved enrollment",
		DefaultStatus: http.StatusCreated,
		Errors:        statusErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                  `path:"id"`
		Body ProvisionStudentRequest `json:"body"`
	}) (*provisionStudentOutput, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		student, err := e.ProvisionStudent(ctx, claim, engine.ProvisionStudentInput{
			EnrollmentID: input.ID,
			ClassID:      input.Body.ClassID,
		})
		if err != nil {
			// A replay is not a failure: the existing student comes
			// back, but nothing was created.
			var dup engine.DuplicateProvisioningError
			if errors.As(err, &dup) {
				return &provisionStudentOutput{Status: http.StatusOK, Body: student}, nil
			}
			return nil, handleError(err)
		}
		return &provisionStudentOutput{Status: http.StatusCreated, Body: student}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-students",
		Method:      http.MethodGet,
		Path:        "/school/students",
		Summary:     "List students",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Student `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListStudents(ctx, claim)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Student `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-absence",
		Method:        http.MethodPost,
		Path:          "/school/absences",
		Summary:       "File an absence justification",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateAbsenceRequest `json:"body"`
	}) (*struct {
		Body domain.Absence `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		abs, err := e.CreateAbsence(ctx, claim, engine.CreateAbsenceInput{
			StartDate:    input.Body.StartDate,
			EndDate:      input.Body.EndDate,
			Reason:       input.Body.Reason,
			HealthCertID: input.Body.HealthCertID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Absence `json:"body"`
		}{Body: abs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-absences",
		Method:      http.MethodGet,
		Path:        "/school/absences",
		Summary:     "List absences",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *listQuery) (*struct {
		Body []domain.Absence `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListAbsences(ctx, claim, engine.ListOptions{Status: input.Status, Limit: input.Limit})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Absence `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-absence",
		Method:      http.MethodGet,
		Path:        "/school/absences/{id}",
		Summary:     "Get absence",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Absence `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		abs, err := e.GetAbsence(ctx, claim, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Absence `json:"body"`
		}{Body: abs}, nil
	})

	registerStatusRoutes(api, e, "absence", "/school/absences", domain.KindAbsence)

	huma.Register(api, huma.Operation{
		OperationID:   "create-school-appointment",
		Method:        http.MethodPost,
		Path:          "/school/appointments",
		Summary:       "Request a school appointment",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateSchoolAppointmentRequest `json:"body"`
	}) (*struct {
		Body domain.SchoolAppointment `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		app, err := e.CreateSchoolAppointment(ctx, claim, engine.CreateSchoolAppointmentInput{
			StaffID:  input.Body.StaffID,
			DateTime: input.Body.DateTime,
			Type:     input.Body.Type,
			Notes:    input.Body.Notes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.SchoolAppointment `json:"body"`
		}{Body: app}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-school-appointments",
		Method:      http.MethodGet,
		Path:        "/school/appointments",
		Summary:     "List school appointments",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *listQuery) (*struct {
		Body []domain.SchoolAppointment `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListSchoolAppointments(ctx, claim, engine.ListOptions{Status: input.Status, Limit: input.Limit})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.SchoolAppointment `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-school-appointment",
		Method:      http.MethodGet,
		Path:        "/school/appointments/{id}",
		Summary:     "Get school appointment",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.SchoolAppointment `json:"body"`
	}, error) {
		claim, authErr := requireClaim(ctx)
		if authErr != nil {
			return nil, authErr
		}
		app, err := e.GetSchoolAppointment(ctx, claim, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.SchoolAppointment `json:"body"`
		}{Body: app}, nil
	})

	registerStatusRoutes(api, e, "school-appointment", "/school/appointments", domain.KindSchoolAppointment)
}
