package engine

import (
	"fmt"

	"github.com/StrahinjaMijatovic/EUprava25/internal/domain"
)

// VerificationFailedError means the certificate check completed with a
// negative outcome. The record is attached to the entity regardless, so a
// failed check remains distinguishable from one that never ran.
type VerificationFailedError struct {
	Record domain.VerificationRecord
}

func (e VerificationFailedError) Error() string {
	return fmt.Sprintf("certificate verification failed: %s", e.Record.Result)
}

// DuplicateProvisioningError signals the idempotency guard: the enrollment
// already produced a student record, whose id is carried for the caller.
type DuplicateProvisioningError struct {
	EnrollmentID string
	StudentID    string
}

func (e DuplicateProvisioningError) Error() string {
	return fmt.Sprintf("enrollment %s already provisioned student %s", e.EnrollmentID, e.StudentID)
}
