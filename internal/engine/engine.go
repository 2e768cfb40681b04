// Package engine orchestrates the workflow core: it combines role gating,
// the per-kind edge tables, certificate verification and the transition log
// into the operations the HTTP layer and the CLI call.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/StrahinjaMijatovic/EUprava25/internal/access"
	"github.com/StrahinjaMijatovic/EUprava25/internal/certlink"
	"github.com/StrahinjaMijatovic/EUprava25/internal/domain"
	"github.com/StrahinjaMijatovic/EUprava25/internal/identity"
	"github.com/StrahinjaMijatovic/EUprava25/internal/repo"
	"github.com/StrahinjaMijatovic/EUprava25/internal/translog"
	"github.com/StrahinjaMijatovic/EUprava25/internal/workflow"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Log    translog.Writer
	Linker *certlink.Linker

	Logger *slog.Logger

	// Now is swappable in tests.
	Now func() time.Time
}

func New(db *sql.DB, linker *certlink.Linker, logger *slog.Logger) *Engine {
	return &Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Log:    translog.Writer{DB: db},
		Linker: linker,
		Logger: logger,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

// ensureCreate gates creation and resolves the kind's initial status.
func ensureCreate(claim identity.Claim, kind domain.Kind) (workflow.Definition, error) {
	def, ok := workflow.For(kind)
	if !ok {
		return workflow.Definition{}, fmt.Errorf("unknown entity kind %q", kind)
	}
	if !access.CanCreate(claim.Role, kind) {
		return workflow.Definition{}, access.DeniedError{Role: claim.Role, Kind: kind, Op: "create"}
	}
	return def, nil
}

// create runs insert and the creation log entry in one transaction. The
// creation event uses an empty from status so the log starts at the initial
// state.
func (e *Engine) create(ctx context.Context, claim identity.Claim, kind domain.Kind, id, initial string, insert func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := insert(tx); err != nil {
		return err
	}
	if err := e.Log.Append(ctx, tx, kind, id, "", initial, claim.SubjectID, claim.Role, "created"); err != nil {
		return err
	}
	return tx.Commit()
}

type CreateEnrollmentInput struct {
	FirstName    string
	LastName     string
	DateOfBirth  string
	SchoolYear   string
	HealthCertID *string
	Notes        string
}

// CreateEnrollment files an enrollment application on behalf of the caller.
// The caller becomes the accountable parent.
func (e *Engine) CreateEnrollment(ctx context.Context, claim identity.Claim, in CreateEnrollmentInput) (domain.Enrollment, error) {
	def, err := ensureCreate(claim, domain.KindEnrollment)
	if err != nil {
		return domain.Enrollment{}, err
	}
	enr := domain.Enrollment{
		ID:           uuid.NewString(),
		ParentUserID: claim.SubjectID,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		DateOfBirth:  in.DateOfBirth,
		SchoolYear:   in.SchoolYear,
		HealthCertID: in.HealthCertID,
		Status:       def.Initial,
		Notes:        in.Notes,
		CreatedAt:    stamp(e.now()),
	}
	err = e.create(ctx, claim, domain.KindEnrollment, enr.ID, def.Initial, func(tx *sql.Tx) error {
		return e.Repo.InsertEnrollment(ctx, tx, enr)
	})
	if err != nil {
		return domain.Enrollment{}, err
	}
	return enr, nil
}

type CreateAbsenceInput struct {
	StartDate    string
	EndDate      string
	Reason       string
	HealthCertID *string
}

func (e *Engine) CreateAbsence(ctx context.Context, claim identity.Claim, in CreateAbsenceInput) (domain.Absence, error) {
	def, err := ensureCreate(claim, domain.KindAbsence)
	if err != nil {
		return domain.Absence{}, err
	}
	abs := domain.Absence{
		ID:            uuid.NewString(),
		StudentUserID: claim.SubjectID,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		Reason:        in.Reason,
		HealthCertID:  in.HealthCertID,
		Status:        def.Initial,
		CreatedAt:     stamp(e.now()),
	}
	err = e.create(ctx, claim, domain.KindAbsence, abs.ID, def.Initial, func(tx *sql.Tx) error {
		return e.Repo.InsertAbsence(ctx, tx, abs)
	})
	if err != nil {
		return domain.Absence{}, err
	}
	return abs, nil
}

type CreateSchoolAppointmentInput struct {
	StaffID  string
	DateTime string
	Type     string
	Notes    string
}

func (e *Engine) CreateSchoolAppointment(ctx context.Context, claim identity.Claim, in CreateSchoolAppointmentInput) (domain.SchoolAppointment, error) {
	def, err := ensureCreate(claim, domain.KindSchoolAppointment)
	if err != nil {
		return domain.SchoolAppointment{}, err
	}
	app := domain.SchoolAppointment{
		ID:          uuid.NewString(),
		RequesterID: claim.SubjectID,
		StaffID:     in.StaffID,
		DateTime:    in.DateTime,
		Type:        in.Type,
		Status:      def.Initial,
		Notes:       in.Notes,
		CreatedAt:   stamp(e.now()),
	}
	err = e.create(ctx, claim, domain.KindSchoolAppointment, app.ID, def.Initial, func(tx *sql.Tx) error {
		return e.Repo.InsertSchoolAppointment(ctx, tx, app)
	})
	if err != nil {
		return domain.SchoolAppointment{}, err
	}
	return app, nil
}

type CreateHealthAppointmentInput struct {
	DoctorID string
	DateTime string
	Type     string
	Notes    string
}

func (e *Engine) CreateHealthAppointment(ctx context.Context, claim identity.Claim, in CreateHealthAppointmentInput) (domain.HealthAppointment, error) {
	def, err := ensureCreate(claim, domain.KindHealthAppointment)
	if err != nil {
		return domain.HealthAppointment{}, err
	}
	app := domain.HealthAppointment{
		ID:        uuid.NewString(),
		PatientID: claim.SubjectID,
		DoctorID:  in.DoctorID,
		DateTime:  in.DateTime,
		Type:      in.Type,
		Status:    def.Initial,
		Notes:     in.Notes,
		CreatedAt: stamp(e.now()),
	}
	err = e.create(ctx, claim, domain.KindHealthAppointment, app.ID, def.Initial, func(tx *sql.Tx) error {
		return e.Repo.InsertHealthAppointment(ctx, tx, app)
	})
	if err != nil {
		return domain.HealthAppointment{}, err
	}
	return app, nil
}

type CreateHealthCardRequestInput struct {
	RequestType string
	Notes       string
}

func (e *Engine) CreateHealthCardRequest(ctx context.Context, claim identity.Claim, in CreateHealthCardRequestInput) (domain.HealthCardRequest, error) {
	def, err := ensureCreate(claim, domain.KindHealthCardRequest)
	if err != nil {
		return domain.HealthCardRequest{}, err
	}
	req := domain.HealthCardRequest{
		ID:          uuid.NewString(),
		PatientID:   claim.SubjectID,
		RequestType: in.RequestType,
		Status:      def.Initial,
		Notes:       in.Notes,
		CreatedAt:   stamp(e.now()),
	}
	err = e.create(ctx, claim, domain.KindHealthCardRequest, req.ID, def.Initial, func(tx *sql.Tx) error {
		return e.Repo.InsertHealthCardRequest(ctx, tx, req)
	})
	if err != nil {
		return domain.HealthCardRequest{}, err
	}
	return req, nil
}

type CreatePrescriptionInput struct {
	PatientID  string
	Medication string
	Dosage     string
	Duration   string
	// ValidDays, when positive, sets the validity window from the issue
	// instant. Zero issues an open-ended prescription.
	ValidDays int
}

// CreatePrescription is doctor-initiated and files the prescription against
// an explicit patient, unlike the self-filed kinds.
func (e *Engine) CreatePrescription(ctx context.Context, claim identity.Claim, in CreatePrescriptionInput) (domain.Prescription, error) {
	def, err := ensureCreate(claim, domain.KindPrescription)
	if err != nil {
		return domain.Prescription{}, err
	}
	now := e.now()
	p := domain.Prescription{
		ID:         uuid.NewString(),
		PatientID:  in.PatientID,
		DoctorID:   claim.SubjectID,
		Medication: in.Medication,
		Dosage:     in.Dosage,
		Duration:   in.Duration,
		Status:     def.Initial,
		IssuedAt:   stamp(now),
		CreatedAt:  stamp(now),
	}
	if in.ValidDays > 0 {
		until := stamp(now.AddDate(0, 0, in.ValidDays))
		p.ValidUntil = &until
	}
	err = e.create(ctx, claim, domain.KindPrescription, p.ID, def.Initial, func(tx *sql.Tx) error {
		return e.Repo.InsertPrescription(ctx, tx, p)
	})
	if err != nil {
		return domain.Prescription{}, err
	}
	return p, nil
}
