package certlink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/StrahinjaMijatovic/EUprava25/internal/domain"
)

// Certificate is the resolved cross-domain view of a medical certificate.
type Certificate struct {
	ID        string
	PatientID string
	Type      string
	ValidFrom time.Time
	ValidTo   time.Time
}

// ErrCertificateNotFound is the typed absence from the health domain: the
// lookup completed and the id does not exist.
var ErrCertificateNotFound = errors.New("certificate not found")

// ErrUnavailable means the health domain could not be consulted at all.
// Callers may retry; it is never a negative verification result.
var ErrUnavailable = errors.New("certificate service unavailable")

// Resolver reads a certificate from the health domain's store.
type Resolver interface {
	Resolve(ctx context.Context, id string) (Certificate, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, id string) (Certificate, error)

func (f ResolverFunc) Resolve(ctx context.Context, id string) (Certificate, error) {
	return f(ctx, id)
}

// Linker verifies certificate references on behalf of the school domain and
// produces the VerificationRecord snapshotted onto the dependent entity.
type Linker struct {
	Resolver Resolver
	Timeout  time.Duration
	Now      func() time.Time
	Logger   *slog.Logger

	group singleflight.Group
}

func (l *Linker) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *Linker) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// Verify resolves certID and evaluates it against expectedOwner at the
// current instant. A non-nil error is returned only when the health domain
// was unreachable; every completed check, negative ones included, yields a
// record for the audit trail.
//
// The decision rule is evaluated in order: not_found, owner_mismatch,
// expired, valid. Ownership is matched by patient identity, not by the
// certificate id alone.
func (l *Linker) Verify(ctx context.Context, certID, expectedOwner string) (domain.VerificationRecord, error) {
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	// Concurrent approvals referencing the same certificate share one
	// resolve round-trip.
	v, err, _ := l.group.Do(certID, func() (any, error) {
		return l.Resolver.Resolve(ctx, certID)
	})

	verifiedAt := l.now().UTC()
	rec := domain.VerificationRecord{
		CertificateID: certID,
		VerifiedAt:    verifiedAt.Format(time.RFC3339),
	}

	if err != nil {
		if errors.Is(err, ErrCertificateNotFound) {
			rec.Result = "not_found"
			return rec, nil
		}
		l.logger().WarnContext(ctx, "certificate resolve failed",
			"certificate_id", certID, "error", err)
		return domain.VerificationRecord{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	cert := v.(Certificate)
	rec.OwnerID = cert.PatientID
	rec.ValidFrom = cert.ValidFrom.UTC().Format(time.RFC3339)
	rec.ValidTo = cert.ValidTo.UTC().Format(time.RFC3339)

	switch {
	case cert.PatientID != expectedOwner:
		rec.Result = "owner_mismatch"
	case cert.ValidTo.Before(verifiedAt):
		rec.Result = "expired"
	default:
		rec.Result = "valid"
	}
	return rec, nil
}
