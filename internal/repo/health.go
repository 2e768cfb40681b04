package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/StrahinjaMijatovic/EUprava25/internal/certlink"
	"github.com/StrahinjaMijatovic/EUprava25/internal/domain"
)

// --- health appointments ---

func (r Repo) InsertHealthAppointment(ctx context.Context, tx *sql.Tx, a domain.HealthAppointment) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO health_appointments(id,patient_id,doctor_id,date_time,type,status,notes,created_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		a.ID, a.PatientID, a.DoctorID, a.DateTime, a.Type, a.Status, nullable(a.Notes), a.CreatedAt)
	return err
}

const healthAppointmentColumns = `id,patient_id,doctor_id,date_time,type,status,COALESCE(notes,''),created_at,last_transition_at,last_transition_by`

func scanHealthAppointment(scan func(dest ...any) error) (domain.HealthAppointment, error) {
	var a domain.HealthAppointment
	var transAt, transBy sql.NullString
	err := scan(&a.ID, &a.PatientID, &a.DoctorID, &a.DateTime, &a.Type, &a.Status, &a.Notes, &a.CreatedAt, &transAt, &transBy)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	a.LastTransitionAt = ptrFromNull(transAt)
	a.LastTransitionBy = ptrFromNull(transBy)
	return a, err
}

func (r Repo) GetHealthAppointment(ctx context.Context, id string) (domain.HealthAppointment, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+healthAppointmentColumns+` FROM health_appointments WHERE id=?`, id)
	return scanHealthAppointment(row.Scan)
}

func (r Repo) ListHealthAppointments(ctx context.Context, f ListFilters) ([]domain.HealthAppointment, error) {
	where, args := buildWhere("patient_id", f)
	limit, args := limitClause(f, args)
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+healthAppointmentColumns+` FROM health_appointments`+where+` ORDER BY date_time ASC`+limit, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.HealthAppointment
	for rows.Next() {
		a, err := scanHealthAppointment(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// --- health card requests ---

func (r Repo) InsertHealthCardRequest(ctx context.Context, tx *sql.Tx, h domain.HealthCardRequest) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO health_card_requests(id,patient_id,request_type,status,notes,created_at)
		 VALUES (?,?,?,?,?,?)`,
		h.ID, h.PatientID, h.RequestType, h.Status, nullable(h.Notes), h.CreatedAt)
	return err
}

const healthCardColumns = `id,patient_id,request_type,status,COALESCE(notes,''),created_at,last_transition_at,last_transition_by`

func scanHealthCardRequest(scan func(dest ...any) error) (domain.HealthCardRequest, error) {
	var h domain.HealthCardRequest
	var transAt, transBy sql.NullString
	err := scan(&h.ID, &h.PatientID, &h.RequestType, &h.Status, &h.Notes, &h.CreatedAt, &transAt, &transBy)
	if err == sql.ErrNoRows {
		return h, ErrNotFound
	}
	h.LastTransitionAt = ptrFromNull(transAt)
	h.LastTransitionBy = ptrFromNull(transBy)
	return h, err
}

func (r Repo) GetHealthCardRequest(ctx context.Context, id string) (domain.HealthCardRequest, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+healthCardColumns+` FROM health_card_requests WHERE id=?`, id)
	return scanHealthCardRequest(row.Scan)
}

func (r Repo) ListHealthCardRequests(ctx context.Context, f ListFilters) ([]domain.HealthCardRequest, error) {
	where, args := buildWhere("patient_id", f)
	limit, args := limitClause(f, args)
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+healthCardColumns+` FROM health_card_requests`+where+` ORDER BY created_at DESC, id DESC`+limit, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.HealthCardRequest
	for rows.Next() {
		h, err := scanHealthCardRequest(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

// --- prescriptions ---

func (r Repo) InsertPrescription(ctx context.Context, tx *sql.Tx, p domain.Prescription) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO prescriptions(id,patient_id,doctor_id,medication,dosage,duration,status,issued_at,valid_until,dispensed_at,created_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.PatientID, p.DoctorID, p.Medication, p.Dosage, nullable(p.Duration),
		p.Status, p.IssuedAt, nullableStringPtr(p.ValidUntil), nullableStringPtr(p.DispensedAt), p.CreatedAt)
	return err
}

const prescriptionColumns = `id,patient_id,doctor_id,medication,dosage,COALESCE(duration,''),status,issued_at,valid_until,dispensed_at,created_at`

func scanPrescription(scan func(dest ...any) error) (domain.Prescription, error) {
	var p domain.Prescription
	var validUntil, dispensedAt sql.NullString
	err := scan(&p.ID, &p.PatientID, &p.DoctorID, &p.Medication, &p.Dosage, &p.Duration,
		&p.Status, &p.IssuedAt, &validUntil, &dispensedAt, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	p.ValidUntil = ptrFromNull(validUntil)
	p.DispensedAt = ptrFromNull(dispensedAt)
	return p, err
}

func (r Repo) GetPrescription(ctx context.Context, id string) (domain.Prescription, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+prescriptionColumns+` FROM prescriptions WHERE id=?`, id)
	return scanPrescription(row.Scan)
}

// MarkPrescriptionDispensed stamps the dispensation exactly once; a second
// call finds dispensed_at already set and reports no rows moved.
func (r Repo) MarkPrescriptionDispensed(ctx context.Context, tx *sql.Tx, id, at string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE prescriptions SET dispensed_at=?, status=? WHERE id=? AND dispensed_at IS NULL`,
		at, domain.StatusUsed, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r Repo) ListPrescriptions(ctx context.Context, f ListFilters) ([]domain.Prescription, error) {
	where, args := buildWhere("patient_id", f)
	limit, args := limitClause(f, args)
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+prescriptionColumns+` FROM prescriptions`+where+` ORDER BY issued_at DESC`+limit, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Prescription
	for rows.Next() {
		p, err := scanPrescription(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// --- medical certificates ---

func (r Repo) InsertMedicalCertificate(ctx context.Context, c domain.MedicalCertificate) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO medical_certificates(id,patient_id,patient_name,type,valid_from,valid_to,doctor_id,notes,issued_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		c.ID, c.PatientID, c.PatientName, c.Type, c.ValidFrom, c.ValidTo, c.DoctorID, nullable(c.Notes), c.IssuedAt)
	return err
}

const certificateColumns = `id,patient_id,patient_name,type,valid_from,valid_to,doctor_id,COALESCE(notes,''),issued_at`

func scanCertificate(scan func(dest ...any) error) (domain.MedicalCertificate, error) {
	var c domain.MedicalCertificate
	err := scan(&c.ID, &c.PatientID, &c.PatientName, &c.Type, &c.ValidFrom, &c.ValidTo, &c.DoctorID, &c.Notes, &c.IssuedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) GetMedicalCertificate(ctx context.Context, id string) (domain.MedicalCertificate, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+certificateColumns+` FROM medical_certificates WHERE id=?`, id)
	return scanCertificate(row.Scan)
}

func (r Repo) ListMedicalCertificates(ctx context.Context, patientID string) ([]domain.MedicalCertificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM medical_certificates`
	var args []any
	if patientID != "" {
		query += ` WHERE patient_id=?`
		args = append(args, patientID)
	}
	rows, err := r.DB.QueryContext(ctx, query+` ORDER BY issued_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.MedicalCertificate
	for rows.Next() {
		c, err := scanCertificate(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// ResolveCertificate adapts the local certificate store to the certlink
// Resolver contract, for single-binary deployments and tests.
func (r Repo) ResolveCertificate(ctx context.Context, id string) (certlink.Certificate, error) {
	c, err := r.GetMedicalCertificate(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return certlink.Certificate{}, certlink.ErrCertificateNotFound
		}
		return certlink.Certificate{}, err
	}
	validFrom, err := parseWhen(c.ValidFrom)
	if err != nil {
		return certlink.Certificate{}, err
	}
	validTo, err := parseWhen(c.ValidTo)
	if err != nil {
		return certlink.Certificate{}, err
	}
	return certlink.Certificate{
		ID:        c.ID,
		PatientID: c.PatientID,
		Type:      c.Type,
		ValidFrom: validFrom,
		ValidTo:   validTo,
	}, nil
}

func parseWhen(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
