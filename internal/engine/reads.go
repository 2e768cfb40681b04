package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/StrahinjaMijatovic/EUprava25/internal/access"
	"github.com/StrahinjaMijatovic/EUprava25/internal/domain"
	"github.com/StrahinjaMijatovic/EUprava25/internal/identity"
	"github.com/StrahinjaMijatovic/EUprava25/internal/repo"
	"github.com/StrahinjaMijatovic/EUprava25/internal/workflow"
)

// ListOptions narrows a listing. Self-scoped roles are pinned to their own
// records regardless of what they ask for.
type ListOptions struct {
	Status string
	Limit  int
}

func (e *Engine) listFilters(claim identity.Claim, kind domain.Kind, opts ListOptions) (repo.ListFilters, error) {
	f := repo.ListFilters{Status: opts.Status, Limit: opts.Limit}
	switch {
	case access.CanViewAll(claim.Role, kind):
		return f, nil
	case access.SelfScoped(claim.Role, kind):
		f.OwnerID = claim.SubjectID
		return f, nil
	default:
		return repo.ListFilters{}, access.DeniedError{Role: claim.Role, Kind: kind, Op: "list"}
	}
}

// visible enforces per-record scoping on a fetched entity. A self-scoped
// caller reading someone else's record gets not found, never forbidden.
func visible(claim identity.Claim, kind domain.Kind, ownerID string) error {
	if !access.CanView(claim.Role, kind) {
		return repo.ErrNotFound
	}
	if access.SelfScoped(claim.Role, kind) && ownerID != claim.SubjectID {
		return repo.ErrNotFound
	}
	return nil
}

func (e *Engine) ListEnrollments(ctx context.Context, claim identity.Claim, opts ListOptions) ([]domain.Enrollment, error) {
	f, err := e.listFilters(claim, domain.KindEnrollment, opts)
	if err != nil {
		return nil, err
	}
	return e.Repo.ListEnrollments(ctx, f)
}

func (e *Engine) GetEnrollment(ctx context.Context, claim identity.Claim, id string) (domain.Enrollment, error) {
	enr, err := e.Repo.GetEnrollment(ctx, id)
	if err != nil {
		return domain.Enrollment{}, err
	}
	if err := visible(claim, domain.KindEnrollment, enr.ParentUserID); err != nil {
		return domain.Enrollment{}, err
	}
	return enr, nil
}

func (e *Engine) ListAbsences(ctx context.Context, claim identity.Claim, opts ListOptions) ([]domain.Absence, error) {
	f, err := e.listFilters(claim, domain.KindAbsence, opts)
	if err != nil {
		return nil, err
	}
	return e.Repo.ListAbsences(ctx, f)
}

func (e *Engine) GetAbsence(ctx context.Context, claim identity.Claim, id string) (domain.Absence, error) {
	abs, err := e.Repo.GetAbsence(ctx, id)
	if err != nil {
		return domain.Absence{}, err
	}
	if err := visible(claim, domain.KindAbsence, abs.StudentUserID); err != nil {
		return domain.Absence{}, err
	}
	return abs, nil
}

func (e *Engine) ListSchoolAppointments(ctx context.Context, claim identity.Claim, opts ListOptions) ([]domain.SchoolAppointment, error) {
	f, err := e.listFilters(claim, domain.KindSchoolAppointment, opts)
	if err != nil {
		return nil, err
	}
	return e.Repo.ListSchoolAppointments(ctx, f)
}

func (e *Engine) GetSchoolAppointment(ctx context.Context, claim identity.Claim, id string) (domain.SchoolAppointment, error) {
	app, err := e.Repo.GetSchoolAppointment(ctx, id)
	if err != nil {
		return domain.SchoolAppointment{}, err
	}
	if err := visible(claim, domain.KindSchoolAppointment, app.RequesterID); err != nil {
		return domain.SchoolAppointment{}, err
	}
	return app, nil
}

func (e *Engine) ListHealthAppointments(ctx context.Context, claim identity.Claim, opts ListOptions) ([]domain.HealthAppointment, error) {
	f, err := e.listFilters(claim, domain.KindHealthAppointment, opts)
	if err != nil {
		return nil, err
	}
	return e.Repo.ListHealthAppointments(ctx, f)
}

func (e *Engine) GetHealthAppointment(ctx context.Context, claim identity.Claim, id string) (domain.HealthAppointment, error) {
	app, err := e.Repo.GetHealthAppointment(ctx, id)
	if err != nil {
		return domain.HealthAppointment{}, err
	}
	if err := visible(claim, domain.KindHealthAppointment, app.PatientID); err != nil {
		return domain.HealthAppointment{}, err
	}
	return app, nil
}

func (e *Engine) ListHealthCardRequests(ctx context.Context, claim identity.Claim, opts ListOptions) ([]domain.HealthCardRequest, error) {
	f, err := e.listFilters(claim, domain.KindHealthCardRequest, opts)
	if err != nil {
		return nil, err
	}
	return e.Repo.ListHealthCardRequests(ctx, f)
}

func (e *Engine) GetHealthCardRequest(ctx context.Context, claim identity.Claim, id string) (domain.HealthCardRequest, error) {
	req, err := e.Repo.GetHealthCardRequest(ctx, id)
	if err != nil {
		return domain.HealthCardRequest{}, err
	}
	if err := visible(claim, domain.KindHealthCardRequest, req.PatientID); err != nil {
		return domain.HealthCardRequest{}, err
	}
	return req, nil
}

// effectiveStatus folds the validity window and the dispensation timestamp
// into the status callers see. The stored status is never rewritten by a
// clock tick.
func (e *Engine) effectiveStatus(p domain.Prescription) domain.Prescription {
	if p.DispensedAt != nil {
		p.Status = domain.StatusUsed
		return p
	}
	if p.ValidUntil != nil {
		if until, err := time.Parse(time.RFC3339, *p.ValidUntil); err == nil && until.Before(e.now()) {
			p.Status = domain.StatusExpired
		}
	}
	return p
}

func (e *Engine) ListPrescriptions(ctx context.Context, claim identity.Claim, opts ListOptions) ([]domain.Prescription, error) {
	// Status filtering happens after derivation or an expired-but-stored-
	// active row would slip through.
	f, err := e.listFilters(claim, domain.KindPrescription, ListOptions{Limit: opts.Limit})
	if err != nil {
		return nil, err
	}
	raw, err := e.Repo.ListPrescriptions(ctx, f)
	if err != nil {
		return nil, err
	}
	res := make([]domain.Prescription, 0, len(raw))
	for _, p := range raw {
		p = e.effectiveStatus(p)
		if opts.Status != "" && p.Status != opts.Status {
			continue
		}
		res = append(res, p)
	}
	return res, nil
}

func (e *Engine) GetPrescription(ctx context.Context, claim identity.Claim, id string) (domain.Prescription, error) {
	p, err := e.Repo.GetPrescription(ctx, id)
	if err != nil {
		return domain.Prescription{}, err
	}
	if err := visible(claim, domain.KindPrescription, p.PatientID); err != nil {
		return domain.Prescription{}, err
	}
	return e.effectiveStatus(p), nil
}

// DispensePrescription stamps the dispensation exactly once and records it in
// the transition log. Expired or already dispensed prescriptions refuse with
// a conflict.
func (e *Engine) DispensePrescription(ctx context.Context, claim identity.Claim, id string) (domain.Prescription, error) {
	if !access.CanView(claim.Role, domain.KindPrescription) {
		return domain.Prescription{}, repo.ErrNotFound
	}
	if !access.CanDispense(claim.Role) {
		return domain.Prescription{}, access.DeniedError{Role: claim.Role, Kind: domain.KindPrescription, Op: "dispense"}
	}
	p, err := e.Repo.GetPrescription(ctx, id)
	if err != nil {
		return domain.Prescription{}, err
	}
	if cur := e.effectiveStatus(p).Status; cur != domain.StatusActive {
		return domain.Prescription{}, workflow.InvalidTransitionError{
			Kind: domain.KindPrescription, From: cur, To: domain.StatusUsed,
		}
	}

	at := stamp(e.now())
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Prescription{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	moved, err := e.Repo.MarkPrescriptionDispensed(ctx, tx, id, at)
	if err != nil {
		return domain.Prescription{}, err
	}
	if !moved {
		return domain.Prescription{}, workflow.InvalidTransitionError{
			Kind: domain.KindPrescription, From: domain.StatusUsed, To: domain.StatusUsed,
		}
	}
	if err := e.Log.Append(ctx, tx, domain.KindPrescription, id, domain.StatusActive, domain.StatusUsed,
		claim.SubjectID, claim.Role, "dispensed"); err != nil {
		return domain.Prescription{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Prescription{}, err
	}
	p.DispensedAt = &at
	p.Status = domain.StatusUsed
	return p, nil
}

// ListTransitions returns the audit trail for one entity. It is reviewer
// scoped; requesters see the entity itself, not its history.
func (e *Engine) ListTransitions(ctx context.Context, claim identity.Claim, kind domain.Kind, id string) ([]domain.TransitionRecord, error) {
	if !access.CanView(claim.Role, kind) {
		return nil, repo.ErrNotFound
	}
	if !access.CanViewAll(claim.Role, kind) {
		return nil, access.DeniedError{Role: claim.Role, Kind: kind, Op: "read transitions of"}
	}
	if _, err := e.Repo.CurrentStatus(ctx, kind, id); err != nil {
		return nil, err
	}
	return e.Log.List(ctx, kind, id)
}

// --- students ---

func (e *Engine) ListStudents(ctx context.Context, claim identity.Claim) ([]domain.Student, error) {
	switch {
	case access.StudentViewAll(claim.Role):
		return e.Repo.ListStudents(ctx, "")
	case claim.Role == identity.RoleRoditelj:
		return e.Repo.ListStudents(ctx, claim.SubjectID)
	default:
		return nil, access.DeniedError{Role: claim.Role, Kind: domain.KindEnrollment, Op: "list students for"}
	}
}

// StudentForEnrollment resolves the provisioned student behind an approved
// enrollment, with the enrollment's own visibility rules.
func (e *Engine) StudentForEnrollment(ctx context.Context, claim identity.Claim, enrollmentID string) (domain.Student, error) {
	enr, err := e.GetEnrollment(ctx, claim, enrollmentID)
	if err != nil {
		return domain.Student{}, err
	}
	return e.Repo.GetStudentByEnrollment(ctx, enr.ID)
}

// --- medical certificates ---

type IssueCertificateInput struct {
	PatientID   string
	PatientName string
	Type        string
	ValidFrom   string
	ValidTo     string
	Notes       string
}

// IssueCertificate creates the health-domain document that school-domain
// approvals later verify against.
func (e *Engine) IssueCertificate(ctx context.Context, claim identity.Claim, in IssueCertificateInput) (domain.MedicalCertificate, error) {
	if !access.CanIssueCertificate(claim.Role) {
		return domain.MedicalCertificate{}, access.DeniedError{Role: claim.Role, Kind: "medical_certificate", Op: "issue"}
	}
	cert := domain.MedicalCertificate{
		ID:          uuid.NewString(),
		PatientID:   in.PatientID,
		PatientName: in.PatientName,
		Type:        in.Type,
		ValidFrom:   in.ValidFrom,
		ValidTo:     in.ValidTo,
		DoctorID:    claim.SubjectID,
		Notes:       in.Notes,
		IssuedAt:    stamp(e.now()),
	}
	if err := e.Repo.InsertMedicalCertificate(ctx, cert); err != nil {
		return domain.MedicalCertificate{}, err
	}
	return cert, nil
}

func (e *Engine) GetCertificate(ctx context.Context, claim identity.Claim, id string) (domain.MedicalCertificate, error) {
	cert, err := e.Repo.GetMedicalCertificate(ctx, id)
	if err != nil {
		return domain.MedicalCertificate{}, err
	}
	if !access.CertificateViewAll(claim.Role) && cert.PatientID != claim.SubjectID {
		return domain.MedicalCertificate{}, repo.ErrNotFound
	}
	return cert, nil
}

func (e *Engine) ListCertificates(ctx context.Context, claim identity.Claim, patientID string) ([]domain.MedicalCertificate, error) {
	if !access.CertificateViewAll(claim.Role) {
		if claim.Role != identity.RolePacijent && claim.Role != identity.RoleRoditelj {
			return nil, access.DeniedError{Role: claim.Role, Kind: "medical_certificate", Op: "list"}
		}
		patientID = claim.SubjectID
	}
	return e.Repo.ListMedicalCertificates(ctx, patientID)
}
