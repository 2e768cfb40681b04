package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/StrahinjaMijatovic/EUprava25/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

var tableForKind = map[domain.Kind]string{
	domain.KindEnrollment:        "enrollments",
	domain.KindAbsence:           "absences",
	domain.KindSchoolAppointment: "school_appointments",
	domain.KindHealthAppointment: "health_appointments",
	domain.KindHealthCardRequest: "health_card_requests",
	domain.KindPrescription:      "prescriptions",
}

// CurrentStatus reads the stored status of one entity.
func (r Repo) CurrentStatus(ctx context.Context, kind domain.Kind, id string) (string, error) {
	table, ok := tableForKind[kind]
	if !ok {
		return "", fmt.Errorf("unknown kind %s", kind)
	}
	var status string
	err := r.DB.QueryRowContext(ctx, `SELECT status FROM `+table+` WHERE id=?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return status, err
}

// CommitTransition is the atomic state-change step: it moves the entity from
// exactly the expected status to the target and stamps the transition fields
// in one statement. Zero rows affected means another writer got there first;
// the caller re-reads and reports the conflict.
func (r Repo) CommitTransition(ctx context.Context, tx *sql.Tx, kind domain.Kind, id, from, to, at, by string) (bool, error) {
	table, ok := tableForKind[kind]
	if !ok {
		return false, fmt.Errorf("unknown kind %s", kind)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE `+table+` SET status=?, last_transition_at=?, last_transition_by=? WHERE id=? AND status=?`,
		to, at, by, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetVerification snapshots a verification record onto an enrollment or
// absence row. Attached even when the check failed, so "checked and found
// wanting" stays distinguishable from "never checked".
func (r Repo) SetVerification(ctx context.Context, tx *sql.Tx, kind domain.Kind, id string, rec domain.VerificationRecord) error {
	table, ok := tableForKind[kind]
	if !ok || (kind != domain.KindEnrollment && kind != domain.KindAbsence) {
		return fmt.Errorf("kind %s carries no verification record", kind)
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `UPDATE `+table+` SET verification_json=? WHERE id=?`, string(payload), id)
	return err
}

// SetAbsenceReviewer records the reviewing actor alongside the transition.
func (r Repo) SetAbsenceReviewer(ctx context.Context, tx *sql.Tx, id, reviewer string) error {
	_, err := tx.ExecContext(ctx, `UPDATE absences SET reviewed_by=? WHERE id=?`, reviewer, id)
	return err
}

func scanVerification(raw sql.NullString) (*domain.VerificationRecord, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var rec domain.VerificationRecord
	if err := json.Unmarshal([]byte(raw.String), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func ptrFromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
