package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/StrahinjaMijatovic/EUprava25/internal/access"
	"github.com/StrahinjaMijatovic/EUprava25/internal/domain"
	"github.com/StrahinjaMijatovic/EUprava25/internal/identity"
	"github.com/StrahinjaMijatovic/EUprava25/internal/repo"
	"github.com/StrahinjaMijatovic/EUprava25/internal/workflow"
)

type TransitionInput struct {
	Kind   domain.Kind
	ID     string
	Target string
	Notes  string
}

// TransitionResult reports the committed edge plus whatever the transition
// produced along the way.
type TransitionResult struct {
	Kind         domain.Kind
	ID           string
	From         string
	To           string
	Verification *domain.VerificationRecord
	Student      *domain.Student
}

// reachable reports whether target is the destination of any edge in def.
// Statuses outside the table fail identically for every role.
func reachable(def workflow.Definition, target string) bool {
	for _, outs := range def.Edges {
		for _, next := range outs {
			if next == target {
				return true
			}
		}
	}
	return false
}

// Transition drives one entity along one edge. Ordering matters here:
// visibility before existence (callers without view permission get not found,
// never forbidden), edge-table membership before role gating, certificate
// verification before the commit transaction so the cross-domain call never
// holds a row lock, and a compare-and-set on the recorded from status so a
// concurrent mover loses cleanly instead of double-applying.
func (e *Engine) Transition(ctx context.Context, claim identity.Claim, in TransitionInput) (TransitionResult, error) {
	def, ok := workflow.For(in.Kind)
	if !ok {
		return TransitionResult{}, fmt.Errorf("unknown entity kind %q", in.Kind)
	}
	if !access.CanView(claim.Role, in.Kind) {
		return TransitionResult{}, repo.ErrNotFound
	}

	cur, err := e.Repo.CurrentStatus(ctx, in.Kind, in.ID)
	if err != nil {
		return TransitionResult{}, err
	}
	res := TransitionResult{Kind: in.Kind, ID: in.ID, From: cur, To: in.Target}

	if !reachable(def, in.Target) {
		return res, workflow.InvalidTransitionError{Kind: in.Kind, From: cur, To: in.Target}
	}
	if !access.CanTransition(claim.Role, in.Kind, in.Target) {
		return res, access.DeniedError{Role: claim.Role, Kind: in.Kind, Op: "transition to " + in.Target}
	}
	if err := def.Ensure(cur, in.Target); err != nil {
		return res, err
	}

	// The enrollment row is also needed after commit for provisioning, so it
	// is fetched once up front.
	var enr domain.Enrollment
	if in.Kind == domain.KindEnrollment {
		if enr, err = e.Repo.GetEnrollment(ctx, in.ID); err != nil {
			return res, err
		}
	}

	var verification *domain.VerificationRecord
	if in.Target == domain.StatusApproved && (in.Kind == domain.KindEnrollment || in.Kind == domain.KindAbsence) {
		certID, owner := "", ""
		switch in.Kind {
		case domain.KindEnrollment:
			if enr.HealthCertID != nil {
				certID, owner = *enr.HealthCertID, enr.ParentUserID
			}
		case domain.KindAbsence:
			abs, err := e.Repo.GetAbsence(ctx, in.ID)
			if err != nil {
				return res, err
			}
			if abs.HealthCertID != nil {
				certID, owner = *abs.HealthCertID, abs.StudentUserID
			}
		}
		// No reference supplied means nothing to verify; the approval is
		// unconditional.
		if certID != "" {
			rec, err := e.Linker.Verify(ctx, certID, owner)
			if err != nil {
				return res, err
			}
			if !rec.Valid() {
				if err := e.attachVerification(ctx, in.Kind, in.ID, rec); err != nil {
					return res, err
				}
				res.Verification = &rec
				e.logger().InfoContext(ctx, "transition refused by certificate check",
					"kind", in.Kind, "id", in.ID, "result", rec.Result)
				return res, VerificationFailedError{Record: rec}
			}
			verification = &rec
		}
	}

	at := stamp(e.now())
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	moved, err := e.Repo.CommitTransition(ctx, tx, in.Kind, in.ID, cur, in.Target, at, claim.SubjectID)
	if err != nil {
		return res, err
	}
	if !moved {
		// Someone else moved the entity between our read and the commit.
		tx.Rollback()
		fresh, rerr := e.Repo.CurrentStatus(ctx, in.Kind, in.ID)
		if rerr != nil {
			return res, rerr
		}
		return res, workflow.InvalidTransitionError{Kind: in.Kind, From: fresh, To: in.Target}
	}

	if verification != nil {
		if err := e.Repo.SetVerification(ctx, tx, in.Kind, in.ID, *verification); err != nil {
			return res, err
		}
		res.Verification = verification
	}
	if in.Kind == domain.KindAbsence {
		if err := e.Repo.SetAbsenceReviewer(ctx, tx, in.ID, claim.SubjectID); err != nil {
			return res, err
		}
	}
	if in.Kind == domain.KindEnrollment && in.Target == domain.StatusApproved {
		student, err := e.provisionInTx(ctx, tx, enr, nil)
		if err != nil {
			return res, err
		}
		res.Student = &student
	}
	if err := e.Log.Append(ctx, tx, in.Kind, in.ID, cur, in.Target, claim.SubjectID, claim.Role, in.Notes); err != nil {
		return res, err
	}
	if err := tx.Commit(); err != nil {
		return res, err
	}

	e.logger().InfoContext(ctx, "transition committed",
		"kind", in.Kind, "id", in.ID, "from", cur, "to", in.Target,
		"actor", claim.SubjectID, "role", claim.Role)
	return res, nil
}

// attachVerification persists a failed check on the still-pending entity in
// its own short transaction.
func (e *Engine) attachVerification(ctx context.Context, kind domain.Kind, id string, rec domain.VerificationRecord) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	if err := e.Repo.SetVerification(ctx, tx, kind, id, rec); err != nil {
		return err
	}
	return tx.Commit()
}

// provisionInTx creates the student for an approved enrollment, or returns
// the existing one when a previous approval already did.
func (e *Engine) provisionInTx(ctx context.Context, tx *sql.Tx, enr domain.Enrollment, classID *string) (domain.Student, error) {
	existing, err := e.Repo.GetStudentByEnrollmentTx(ctx, tx, enr.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.Student{}, err
	}
	student := domain.Student{
		ID:           uuid.NewString(),
		EnrollmentID: enr.ID,
		ParentUserID: enr.ParentUserID,
		FirstName:    enr.FirstName,
		LastName:     enr.LastName,
		DateOfBirth:  enr.DateOfBirth,
		ClassID:      classID,
		CreatedAt:    stamp(e.now()),
	}
	if err := e.Repo.InsertStudent(ctx, tx, student); err != nil {
		return domain.Student{}, err
	}
	return student, nil
}

type ProvisionStudentInput struct {
	EnrollmentID string
	ClassID      *string
}

// ProvisionStudent is the explicit follow-up step after approval. It is
// idempotent on the enrollment id: a repeat call reports the existing student
// through DuplicateProvisioningError instead of creating a second record.
func (e *Engine) ProvisionStudent(ctx context.Context, claim identity.Claim, in ProvisionStudentInput) (domain.Student, error) {
	if !access.CanView(claim.Role, domain.KindEnrollment) {
		return domain.Student{}, repo.ErrNotFound
	}
	if !access.CanTransition(claim.Role, domain.KindEnrollment, domain.StatusApproved) {
		return domain.Student{}, access.DeniedError{Role: claim.Role, Kind: domain.KindEnrollment, Op: "provision student for"}
	}
	enr, err := e.Repo.GetEnrollment(ctx, in.EnrollmentID)
	if err != nil {
		return domain.Student{}, err
	}
	if enr.Status != domain.StatusApproved {
		return domain.Student{}, workflow.InvalidTransitionError{
			Kind: domain.KindEnrollment, From: enr.Status, To: domain.StatusApproved,
		}
	}
	if existing, err := e.Repo.GetStudentByEnrollment(ctx, in.EnrollmentID); err == nil {
		return existing, DuplicateProvisioningError{EnrollmentID: in.EnrollmentID, StudentID: existing.ID}
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Student{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Student{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	student, err := e.provisionInTx(ctx, tx, enr, in.ClassID)
	if err != nil {
		// A racing call may have won the unique index; surface its student.
		if existing, rerr := e.Repo.GetStudentByEnrollment(ctx, in.EnrollmentID); rerr == nil {
			return existing, DuplicateProvisioningError{EnrollmentID: in.EnrollmentID, StudentID: existing.ID}
		}
		return domain.Student{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Student{}, err
	}
	return student, nil
}
