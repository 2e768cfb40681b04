package server

import (
	"github.com/StrahinjaMijatovic/EUprava25/internal/domain"
	"github.com/StrahinjaMijatovic/EUprava25/internal/engine"
)

type CreateEnrollmentRequest struct {
	FirstName    string  `json:"first_name" minLength:"1"`
	LastName     string  `json:"last_name" minLength:"1"`
	DateOfBirth  string  `json:"date_of_birth" format:"date"`
	SchoolYear   string  `json:"school_year" minLength:"1"`
	HealthCertID *string `json:"health_cert_id,omitempty"`
	Notes        string  `json:"notes,omitempty"`
}

type CreateAbsenceRequest struct {
	StartDate    string  `json:"start_date" format:"date"`
	EndDate      string  `json:"end_date" format:"date"`
	Reason       string  `json:"reason" minLength:"1"`
	HealthCertID *string `json:"health_cert_id,omitempty"`
}

type CreateSchoolAppointmentRequest struct {
	StaffID  string `json:"staff_id,omitempty"`
	DateTime string `json:"date_time" format:"date-time"`
	Type     string `json:"type" minLength:"1"`
	Notes    string `json:"notes,omitempty"`
}

type CreateHealthAppointmentRequest struct {
	DoctorID string `json:"doctor_id" minLength:"1"`
	DateTime string `json:"date_time" format:"date-time"`
	Type     string `json:"type" minLength:"1"`
	Notes    string `json:"notes,omitempty"`
}

type CreateHealthCardRequestRequest struct {
	RequestType string `json:"request_type" minLength:"1"`
	Notes       string `json:"notes,omitempty"`
}

type CreatePrescriptionRequest struct {
	PatientID  string `json:"patient_id" minLength:"1"`
	Medication string `json:"medication" minLength:"1"`
	Dosage     string `json:"dosage" minLength:"1"`
	Duration   string `json:"duration,omitempty"`
	ValidDays  int    `json:"valid_days,omitempty" minimum:"0"`
}

type IssueCertificateRequest struct {
	PatientID   string `json:"patient_id" minLength:"1"`
	PatientName string `json:"patient_name,omitempty"`
	Type        string `json:"type" minLength:"1"`
	ValidFrom   string `json:"valid_from" format:"date"`
	ValidTo     string `json:"valid_to" format:"date"`
	Notes       string `json:"notes,omitempty"`
}

type TransitionRequest struct {
	Status string `json:"status" minLength:"1"`
	Notes  string `json:"notes,omitempty"`
}

// TransitionResponse reports the committed edge plus its side effects: the
// verification snapshot when the edge was certificate-gated and the student
// record when an enrollment approval provisioned one.
type TransitionResponse struct {
	ID           string                     `json:"id"`
	Kind         string                     `json:"kind"`
	From         string                     `json:"from"`
	Status       string                     `json:"status"`
	Verification *domain.VerificationRecord `json:"verification,omitempty"`
	Student      *domain.Student            `json:"student,omitempty"`
}

type ProvisionStudentRequest struct {
	ClassID *string `json:"class_id,omitempty"`
}

// provisionStudentOutput carries an explicit status: 201 when the
// student was created, 200 when an already-provisioned enrollment
// answers with the existing record.
type provisionStudentOutput struct {
	Status int
	Body   domain.Student `json:"body"`
}

func transitionResponse(res engine.TransitionResult) TransitionResponse {
	return TransitionResponse{
		ID:           res.ID,
		Kind:         string(res.Kind),
		From:         res.From,
		Status:       res.To,
		Verification: res.Verification,
		Student:      res.Student,
	}
}
