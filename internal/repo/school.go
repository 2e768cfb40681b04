package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/StrahinjaMijatovic/EUprava25/internal/domain"
)

// ListFilters narrows list queries. OwnerID scopes to the filing subject for
// requester roles; approver roles list domain-wide.
type ListFilters struct {
	OwnerID string
	Status  string
	Limit   int
}

func buildWhere(ownerColumn string, f ListFilters) (string, []any) {
	var clauses []string
	var args []any
	if f.OwnerID != "" {
		clauses = append(clauses, ownerColumn+"=?")
		args = append(args, f.OwnerID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	return where, args
}

func limitClause(f ListFilters, args []any) (string, []any) {
	if f.Limit > 0 {
		return " LIMIT ?", append(args, f.Limit)
	}
	return "", args
}

// --- enrollments ---

func (r Repo) InsertEnrollment(ctx context.Context, tx *sql.Tx, e domain.Enrollment) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO enrollments(id,parent_user_id,first_name,last_name,date_of_birth,school_year,health_cert_id,status,notes,created_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.ParentUserID, e.FirstName, e.LastName, e.DateOfBirth, e.SchoolYear,
		nullableStringPtr(e.HealthCertID), e.Status, nullable(e.Notes), e.CreatedAt)
	return err
}

const enrollmentColumns = `id,parent_user_id,first_name,last_name,date_of_birth,school_year,health_cert_id,verification_json,status,COALESCE(notes,''),created_at,last_transition_at,last_transition_by`

func scanEnrollment(scan func(dest ...any) error) (domain.Enrollment, error) {
	var e domain.Enrollment
	var certID, verification, transAt, transBy sql.NullString
	err := scan(&e.ID, &e.ParentUserID, &e.FirstName, &e.LastName, &e.DateOfBirth, &e.SchoolYear,
		&certID, &verification, &e.Status, &e.Notes, &e.CreatedAt, &transAt, &transBy)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	e.HealthCertID = ptrFromNull(certID)
	e.LastTransitionAt = ptrFromNull(transAt)
	e.LastTransitionBy = ptrFromNull(transBy)
	e.Verification, err = scanVerification(verification)
	return e, err
}

func (r Repo) GetEnrollment(ctx context.Context, id string) (domain.Enrollment, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id=?`, id)
	return scanEnrollment(row.Scan)
}

func (r Repo) ListEnrollments(ctx context.Context, f ListFilters) ([]domain.Enrollment, error) {
	where, args := buildWhere("parent_user_id", f)
	limit, args := limitClause(f, args)
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments`+where+` ORDER BY created_at DESC, id DESC`+limit, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// --- absences ---

func (r Repo) InsertAbsence(ctx context.Context, tx *sql.Tx, a domain.Absence) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO absences(id,student_user_id,start_date,end_date,reason,health_cert_id,status,created_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		a.ID, a.StudentUserID, a.StartDate, a.EndDate, a.Reason,
		nullableStringPtr(a.HealthCertID), a.Status, a.CreatedAt)
	return err
}

const absenceColumns = `id,student_user_id,start_date,end_date,reason,health_cert_id,verification_json,status,reviewed_by,created_at,last_transition_at,last_transition_by`

func scanAbsence(scan func(dest ...any) error) (domain.Absence, error) {
	var a domain.Absence
	var certID, verification, reviewedBy, transAt, transBy sql.NullString
	err := scan(&a.ID, &a.StudentUserID, &a.StartDate, &a.EndDate, &a.Reason,
		&certID, &verification, &a.Status, &reviewedBy, &a.CreatedAt, &transAt, &transBy)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	a.HealthCertID = ptrFromNull(certID)
	a.ReviewedBy = ptrFromNull(reviewedBy)
	a.LastTransitionAt = ptrFromNull(transAt)
	a.LastTransitionBy = ptrFromNull(transBy)
	a.Verification, err = scanVerification(verification)
	return a, err
}

func (r Repo) GetAbsence(ctx context.Context, id string) (domain.Absence, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+absenceColumns+` FROM absences WHERE id=?`, id)
	return scanAbsence(row.Scan)
}

func (r Repo) ListAbsences(ctx context.Context, f ListFilters) ([]domain.Absence, error) {
	where, args := buildWhere("student_user_id", f)
	limit, args := limitClause(f, args)
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+absenceColumns+` FROM absences`+where+` ORDER BY created_at DESC, id DESC`+limit, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Absence
	for rows.Next() {
		a, err := scanAbsence(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// --- school appointments ---

func (r Repo) InsertSchoolAppointment(ctx context.Context, tx *sql.Tx, a domain.SchoolAppointment) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO school_appointments(id,requester_id,staff_id,date_time,type,status,notes,created_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		a.ID, a.RequesterID, nullable(a.StaffID), a.DateTime, a.Type, a.Status, nullable(a.Notes), a.CreatedAt)
	return err
}

const schoolAppointmentColumns = `id,requester_id,COALESCE(staff_id,''),date_time,type,status,COALESCE(notes,''),created_at,last_transition_at,last_transition_by`

func scanSchoolAppointment(scan func(dest ...any) error) (domain.SchoolAppointment, error) {
	var a domain.SchoolAppointment
	var transAt, transBy sql.NullString
	err := scan(&a.ID, &a.RequesterID, &a.StaffID, &a.DateTime, &a.Type, &a.Status, &a.Notes, &a.CreatedAt, &transAt, &transBy)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	a.LastTransitionAt = ptrFromNull(transAt)
	a.LastTransitionBy = ptrFromNull(transBy)
	return a, err
}

func (r Repo) GetSchoolAppointment(ctx context.Context, id string) (domain.SchoolAppointment, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+schoolAppointmentColumns+` FROM school_appointments WHERE id=?`, id)
	return scanSchoolAppointment(row.Scan)
}

func (r Repo) ListSchoolAppointments(ctx context.Context, f ListFilters) ([]domain.SchoolAppointment, error) {
	where, args := buildWhere("requester_id", f)
	limit, args := limitClause(f, args)
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+schoolAppointmentColumns+` FROM school_appointments`+where+` ORDER BY date_time ASC`+limit, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.SchoolAppointment
	for rows.Next() {
		a, err := scanSchoolAppointment(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// --- students ---

// InsertStudent provisions the student record for an approved enrollment.
// The unique index on enrollment_id is the storage-level idempotency guard.
func (r Repo) InsertStudent(ctx context.Context, tx *sql.Tx, s domain.Student) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO students(id,enrollment_id,parent_user_id,first_name,last_name,date_of_birth,class_id,created_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		s.ID, s.EnrollmentID, s.ParentUserID, s.FirstName, s.LastName,
		nullable(s.DateOfBirth), nullableStringPtr(s.ClassID), s.CreatedAt)
	return err
}

const studentColumns = `id,enrollment_id,parent_user_id,first_name,last_name,COALESCE(date_of_birth,''),class_id,created_at`

func scanStudent(scan func(dest ...any) error) (domain.Student, error) {
	var s domain.Student
	var classID sql.NullString
	err := scan(&s.ID, &s.EnrollmentID, &s.ParentUserID, &s.FirstName, &s.LastName, &s.DateOfBirth, &classID, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	s.ClassID = ptrFromNull(classID)
	return s, err
}

func (r Repo) GetStudentByEnrollment(ctx context.Context, enrollmentID string) (domain.Student, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE enrollment_id=?`, enrollmentID)
	return scanStudent(row.Scan)
}

func (r Repo) GetStudentByEnrollmentTx(ctx context.Context, tx *sql.Tx, enrollmentID string) (domain.Student, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE enrollment_id=?`, enrollmentID)
	return scanStudent(row.Scan)
}

func (r Repo) ListStudents(ctx context.Context, parentUserID string) ([]domain.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students`
	var args []any
	if parentUserID != "" {
		query += ` WHERE parent_user_id=?`
		args = append(args, parentUserID)
	}
	rows, err := r.DB.QueryContext(ctx, query+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Student
	for rows.Next() {
		s, err := scanStudent(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
