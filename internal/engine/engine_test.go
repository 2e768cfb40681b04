package engine_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/StrahinjaMijatovic/EUprava25/internal/access"
	"github.com/StrahinjaMijatovic/EUprava25/internal/certlink"
	"github.com/StrahinjaMijatovic/EUprava25/internal/db"
	"github.com/StrahinjaMijatovic/EUprava25/internal/domain"
	"github.com/StrahinjaMijatovic/EUprava25/internal/engine"
	"github.com/StrahinjaMijatovic/EUprava25/internal/identity"
	"github.com/StrahinjaMijatovic/EUprava25/internal/migrate"
	"github.com/StrahinjaMijatovic/EUprava25/internal/repo"
	"github.com/StrahinjaMijatovic/EUprava25/internal/workflow"
)

var frozen = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var (
	parent  = identity.Claim{SubjectID: "roditelj-1", Role: identity.RoleRoditelj}
	parent2 = identity.Claim{SubjectID: "roditelj-2", Role: identity.RoleRoditelj}
	student = identity.Claim{SubjectID: "ucenik-1", Role: identity.RoleUcenik}
	teacher = identity.Claim{SubjectID: "nastavnik-1", Role: identity.RoleNastavnik}
	school  = identity.Claim{SubjectID: "administracija-1", Role: identity.RoleAdministracija}
	patient = identity.Claim{SubjectID: "pacijent-1", Role: identity.RolePacijent}
	doctor  = identity.Claim{SubjectID: "lekar-1", Role: identity.RoleLekar}
	clerk   = identity.Claim{SubjectID: "administrator-1", Role: identity.RoleAdministrator}
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	conn, err := db.Open(db.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := repo.Repo{DB: conn}
	linker := &certlink.Linker{
		Resolver: certlink.ResolverFunc(store.ResolveCertificate),
		Timeout:  time.Second,
		Now:      func() time.Time { return frozen },
	}
	e := engine.New(conn, linker, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.Now = func() time.Time { return frozen }
	e.Log.Now = e.Now
	return e
}

func mustEnrollment(t *testing.T, e *engine.Engine, certID *string) domain.Enrollment {
	t.Helper()
	enr, err := e.CreateEnrollment(context.Background(), parent, engine.CreateEnrollmentInput{
		FirstName:    "Marko",
		LastName:     "Petrović",
		DateOfBirth:  "2018-03-11",
		SchoolYear:   "2026/27",
		HealthCertID: certID,
	})
	if err != nil {
		t.Fatalf("create enrollment: %v", err)
	}
	return enr
}

func issueCert(t *testing.T, e *engine.Engine, owner string, validTo time.Time) domain.MedicalCertificate {
	t.Helper()
	cert, err := e.IssueCertificate(context.Background(), doctor, engine.IssueCertificateInput{
		PatientID: owner,
		Type:      "lekarsko uverenje",
		ValidFrom: frozen.AddDate(0, -1, 0).Format("2006-01-02"),
		ValidTo:   validTo.Format("2006-01-02"),
	})
	if err != nil {
		t.Fatalf("issue certificate: %v", err)
	}
	return cert
}

func TestCreateStartsPendingWithCreationLogEntry(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	enr := mustEnrollment(t, e, nil)
	if enr.Status != domain.StatusPending {
		t.Fatalf("status = %s, want pending", enr.Status)
	}
	records, err := e.ListTransitions(ctx, school, domain.KindEnrollment, enr.ID)
	if err != nil {
		t.Fatalf("list transitions: %v", err)
	}
	if len(records) != 1 || records[0].FromStatus != "" || records[0].ToStatus != domain.StatusPending {
		t.Fatalf("unexpected creation log: %+v", records)
	}
}

func TestApproveEnrollmentProvisionsStudentOnce(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	enr := mustEnrollment(t, e, nil)

	res, err := e.Transition(ctx, school, engine.TransitionInput{
		Kind: domain.KindEnrollment, ID: enr.ID, Target: domain.StatusApproved,
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if res.To != domain.StatusApproved || res.Student == nil {
		t.Fatalf("approve result missing student: %+v", res)
	}

	got, err := e.GetEnrollment(ctx, school, enr.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusApproved {
		t.Fatalf("status = %s, want approved", got.Status)
	}
	if got.LastTransitionAt == nil || got.LastTransitionBy == nil || *got.LastTransitionBy != school.SubjectID {
		t.Fatalf("transition stamp not recorded: %+v", got)
	}

	// Replay: the edge is gone, the student stays singular.
	_, err = e.Transition(ctx, school, engine.TransitionInput{
		Kind: domain.KindEnrollment, ID: enr.ID, Target: domain.StatusApproved,
	})
	var ite workflow.InvalidTransitionError
	if !errors.As(err, &ite) || ite.From != domain.StatusApproved {
		t.Fatalf("replay should conflict from approved, got %v", err)
	}

	st, err := e.ProvisionStudent(ctx, school, engine.ProvisionStudentInput{EnrollmentID: enr.ID})
	var dup engine.DuplicateProvisioningError
	if !errors.As(err, &dup) {
		t.Fatalf("expected duplicate provisioning, got %v", err)
	}
	if st.ID != res.Student.ID || dup.StudentID != res.Student.ID {
		t.Fatalf("replay returned a different student: %s vs %s", st.ID, res.Student.ID)
	}
	students, err := e.ListStudents(ctx, school)
	if err != nil {
		t.Fatalf("list students: %v", err)
	}
	if len(students) != 1 {
		t.Fatalf("students = %d, want 1", len(students))
	}

	records, _ := e.ListTransitions(ctx, school, domain.KindEnrollment, enr.ID)
	if len(records) != 2 {
		t.Fatalf("log rows = %d, want creation + approval", len(records))
	}
}

func TestApproveWithValidCertificateAttachesRecord(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	cert := issueCert(t, e, parent.SubjectID, frozen.AddDate(0, 2, 0))
	enr := mustEnrollment(t, e, &cert.ID)

	res, err := e.Transition(ctx, school, engine.TransitionInput{
		Kind: domain.KindEnrollment, ID: enr.ID, Target: domain.StatusApproved,
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if res.Verification == nil || res.Verification.Result != "valid" {
		t.Fatalf("verification missing or not valid: %+v", res.Verification)
	}
	got, _ := e.GetEnrollment(ctx, school, enr.ID)
	if got.Verification == nil || got.Verification.CertificateID != cert.ID {
		t.Fatalf("verification not persisted: %+v", got.Verification)
	}
}

func TestExpiredCertificateBlocksApprovalButAttachesRecord(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	cert := issueCert(t, e, parent.SubjectID, frozen.AddDate(0, 0, -2))
	enr := mustEnrollment(t, e, &cert.ID)

	_, err := e.Transition(ctx, school, engine.TransitionInput{
		Kind: domain.KindEnrollment, ID: enr.ID, Target: domain.StatusApproved,
	})
	var vf engine.VerificationFailedError
	if !errors.As(err, &vf) || vf.Record.Result != "expired" {
		t.Fatalf("expected expired verification failure, got %v", err)
	}

	got, _ := e.GetEnrollment(ctx, school, enr.ID)
	if got.Status != domain.StatusPending {
		t.Fatalf("status = %s, want pending", got.Status)
	}
	if got.Verification == nil || got.Verification.Result != "expired" {
		t.Fatalf("failed check must still be attached: %+v", got.Verification)
	}
	// The failed attempt is not a transition; only the creation entry exists.
	records, _ := e.ListTransitions(ctx, school, domain.KindEnrollment, enr.ID)
	if len(records) != 1 {
		t.Fatalf("log rows = %d, want 1", len(records))
	}
}

func TestOwnerMismatchBlocksApproval(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	cert := issueCert(t, e, "someone-else", frozen.AddDate(0, 2, 0))
	enr := mustEnrollment(t, e, &cert.ID)

	_, err := e.Transition(ctx, school, engine.TransitionInput{
		Kind: domain.KindEnrollment, ID: enr.ID, Target: domain.StatusApproved,
	})
	var vf engine.VerificationFailedError
	if !errors.As(err, &vf) || vf.Record.Result != "owner_mismatch" {
		t.Fatalf("expected owner_mismatch, got %v", err)
	}
}

func TestMissingCertificateBlocksApproval(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	certID := "no-such-cert"
	enr := mustEnrollment(t, e, &certID)

	_, err := e.Transition(ctx, school, engine.TransitionInput{
		Kind: domain.KindEnrollment, ID: enr.ID, Target: domain.StatusApproved,
	})
	var vf engine.VerificationFailedError
	if !errors.As(err, &vf) || vf.Record.Result != "not_found" {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestUnavailableVerificationLeavesEntityUntouched(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.Linker.Resolver = certlink.ResolverFunc(func(ctx context.Context, id string) (certlink.Certificate, error) {
		return certlink.Certificate{}, errors.New("connection refused")
	})
	certID := "cert-1"
	enr := mustEnrollment(t, e, &certID)

	_, err := e.Transition(ctx, school, engine.TransitionInput{
		Kind: domain.KindEnrollment, ID: enr.ID, Target: domain.StatusApproved,
	})
	if !errors.Is(err, certlink.ErrUnavailable) {
		t.Fatalf("expected retryable unavailable, got %v", err)
	}
	got, _ := e.GetEnrollment(ctx, school, enr.ID)
	if got.Status != domain.StatusPending || got.Verification != nil {
		t.Fatalf("unavailable must leave entity pending and unverified: %+v", got)
	}
}

func TestAbsenceWithoutCertificateApprovesUnconditionally(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	abs, err := e.CreateAbsence(ctx, student, engine.CreateAbsenceInput{
		StartDate: "2026-02-24", EndDate: "2026-02-26", Reason: "prehlada",
	})
	if err != nil {
		t.Fatalf("create absence: %v", err)
	}
	res, err := e.Transition(ctx, teacher, engine.TransitionInput{
		Kind: domain.KindAbsence, ID: abs.ID, Target: domain.StatusApproved, Notes: "uverenje nije potrebno",
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if res.Verification != nil {
		t.Fatalf("no certificate reference, no verification: %+v", res.Verification)
	}
	got, _ := e.GetAbsence(ctx, teacher, abs.ID)
	if got.Status != domain.StatusApproved {
		t.Fatalf("status = %s, want approved", got.Status)
	}
	if got.ReviewedBy == nil || *got.ReviewedBy != teacher.SubjectID {
		t.Fatalf("reviewer not recorded: %+v", got.ReviewedBy)
	}
}

func TestTransitionDenialShapes(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	enr := mustEnrollment(t, e, nil)

	// A viewer without the transition permission gets an explicit denial.
	_, err := e.Transition(ctx, parent, engine.TransitionInput{
		Kind: domain.KindEnrollment, ID: enr.ID, Target: domain.StatusApproved,
	})
	var denied access.DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected denial for parent, got %v", err)
	}

	// A role with no view permission cannot even learn the id exists.
	_, err = e.Transition(ctx, patient, engine.TransitionInput{
		Kind: domain.KindEnrollment, ID: enr.ID, Target: domain.StatusApproved,
	})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for pacijent, got %v", err)
	}
	// Same shape for a missing id, so the two cases are indistinguishable.
	_, err = e.Transition(ctx, patient, engine.TransitionInput{
		Kind: domain.KindEnrollment, ID: "missing", Target: domain.StatusApproved,
	})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for missing id, got %v", err)
	}

	// A status outside the edge table fails for everyone, admins included.
	admin := identity.Claim{SubjectID: "admin-1", Role: identity.RoleAdmin}
	_, err = e.Transition(ctx, admin, engine.TransitionInput{
		Kind: domain.KindEnrollment, ID: enr.ID, Target: "archived",
	})
	var ite workflow.InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected invalid transition for unknown status, got %v", err)
	}
}

func TestConcurrentCommitLosesCompareAndSet(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	enr := mustEnrollment(t, e, nil)

	if _, err := e.Transition(ctx, school, engine.TransitionInput{
		Kind: domain.KindEnrollment, ID: enr.ID, Target: domain.StatusApproved,
	}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// A commit built against the stale pending status must move zero rows.
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	moved, err := e.Repo.CommitTransition(ctx, tx, domain.KindEnrollment, enr.ID,
		domain.StatusPending, domain.StatusRejected, frozen.Format(time.RFC3339), "late-actor")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if moved {
		t.Fatal("stale compare-and-set must not move the entity")
	}
}

func TestHealthCardRequestFlow(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	req, err := e.CreateHealthCardRequest(ctx, patient, engine.CreateHealthCardRequestInput{RequestType: "nova kartica"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, target := range []string{domain.StatusProcessing, domain.StatusIssued} {
		if _, err := e.Transition(ctx, clerk, engine.TransitionInput{
			Kind: domain.KindHealthCardRequest, ID: req.ID, Target: target,
		}); err != nil {
			t.Fatalf("to %s: %v", target, err)
		}
	}
	got, _ := e.GetHealthCardRequest(ctx, clerk, req.ID)
	if got.Status != domain.StatusIssued {
		t.Fatalf("status = %s, want issued", got.Status)
	}
}

func TestPrescriptionDerivedStatus(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p, err := e.CreatePrescription(ctx, doctor, engine.CreatePrescriptionInput{
		PatientID: patient.SubjectID, Medication: "Brufen 400mg", Dosage: "3x1", ValidDays: 14,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Status != domain.StatusActive {
		t.Fatalf("status = %s, want active", p.Status)
	}

	got, err := e.GetPrescription(ctx, patient, p.ID)
	if err != nil || got.Status != domain.StatusActive {
		t.Fatalf("patient read: %v %s", err, got.Status)
	}

	// Past the validity window the stored row is untouched but reads expire.
	e.Now = func() time.Time { return frozen.AddDate(0, 0, 20) }
	got, _ = e.GetPrescription(ctx, patient, p.ID)
	if got.Status != domain.StatusExpired {
		t.Fatalf("status = %s, want expired", got.Status)
	}
	if _, err := e.DispensePrescription(ctx, doctor, p.ID); err == nil {
		t.Fatal("expired prescription must not dispense")
	}

	// No role-driven edges exist at all.
	_, err = e.Transition(ctx, doctor, engine.TransitionInput{
		Kind: domain.KindPrescription, ID: p.ID, Target: domain.StatusUsed,
	})
	var ite workflow.InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestDispenseOnce(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p, err := e.CreatePrescription(ctx, doctor, engine.CreatePrescriptionInput{
		PatientID: patient.SubjectID, Medication: "Pressing 4mg", Dosage: "1x1", ValidDays: 30,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	used, err := e.DispensePrescription(ctx, doctor, p.ID)
	if err != nil {
		t.Fatalf("dispense: %v", err)
	}
	if used.Status != domain.StatusUsed || used.DispensedAt == nil {
		t.Fatalf("dispense result: %+v", used)
	}
	if _, err := e.DispensePrescription(ctx, doctor, p.ID); err == nil {
		t.Fatal("second dispense must conflict")
	}
}

func TestSelfScopedReads(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	enr := mustEnrollment(t, e, nil)

	if _, err := e.GetEnrollment(ctx, parent, enr.ID); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	// Another parent gets not found, not forbidden.
	if _, err := e.GetEnrollment(ctx, parent2, enr.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for other parent, got %v", err)
	}

	own, err := e.ListEnrollments(ctx, parent, engine.ListOptions{})
	if err != nil || len(own) != 1 {
		t.Fatalf("owner list: %v %d", err, len(own))
	}
	other, err := e.ListEnrollments(ctx, parent2, engine.ListOptions{})
	if err != nil || len(other) != 0 {
		t.Fatalf("other parent list: %v %d", err, len(other))
	}
	all, err := e.ListEnrollments(ctx, school, engine.ListOptions{})
	if err != nil || len(all) != 1 {
		t.Fatalf("reviewer list: %v %d", err, len(all))
	}

	// The audit trail is reviewer-only.
	if _, err := e.ListTransitions(ctx, parent, domain.KindEnrollment, enr.ID); err == nil {
		t.Fatal("requester must not read the audit trail")
	}
}

func TestCertificateVisibility(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	cert := issueCert(t, e, patient.SubjectID, frozen.AddDate(0, 2, 0))

	if _, err := e.GetCertificate(ctx, patient, cert.ID); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	stranger := identity.Claim{SubjectID: "pacijent-9", Role: identity.RolePacijent}
	if _, err := e.GetCertificate(ctx, stranger, cert.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for stranger, got %v", err)
	}
	if _, err := e.IssueCertificate(ctx, patient, engine.IssueCertificateInput{
		PatientID: patient.SubjectID, Type: "x", ValidFrom: "2026-01-01", ValidTo: "2026-12-31",
	}); err == nil {
		t.Fatal("pacijent must not issue certificates")
	}
}
