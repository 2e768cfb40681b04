package certlink_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrahinjaMijatovic/EUprava25/internal/certlink"
)

var frozen = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newLinker(resolve func(ctx context.Context, id string) (certlink.Certificate, error)) *certlink.Linker {
	return &certlink.Linker{
		Resolver: certlink.ResolverFunc(resolve),
		Timeout:  200 * time.Millisecond,
		Now:      func() time.Time { return frozen },
	}
}

func TestVerifyValid(t *testing.T) {
	l := newLinker(func(ctx context.Context, id string) (certlink.Certificate, error) {
		return certlink.Certificate{
			ID:        id,
			PatientID: "parent-1",
			ValidFrom: frozen.AddDate(0, -1, 0),
			ValidTo:   frozen.AddDate(0, 1, 0),
		}, nil
	})
	rec, err := l.Verify(context.Background(), "cert-1", "parent-1")
	require.NoError(t, err)
	assert.Equal(t, "valid", rec.Result)
	assert.True(t, rec.Valid())
	assert.Equal(t, "cert-1", rec.CertificateID)
	assert.Equal(t, frozen.Format(time.RFC3339), rec.VerifiedAt)
}

func TestVerifyExpired(t *testing.T) {
	l := newLinker(func(ctx context.Context, id string) (certlink.Certificate, error) {
		return certlink.Certificate{
			ID:        id,
			PatientID: "parent-1",
			ValidFrom: frozen.AddDate(-1, 0, 0),
			ValidTo:   frozen.AddDate(0, 0, -1),
		}, nil
	})
	rec, err := l.Verify(context.Background(), "cert-1", "parent-1")
	require.NoError(t, err)
	assert.Equal(t, "expired", rec.Result)
	assert.False(t, rec.Valid())
}

func TestVerifyOwnerMismatch(t *testing.T) {
	l := newLinker(func(ctx context.Context, id string) (certlink.Certificate, error) {
		return certlink.Certificate{
			ID:        id,
			PatientID: "someone-else",
			ValidFrom: frozen.AddDate(0, -1, 0),
			ValidTo:   frozen.AddDate(0, 1, 0),
		}, nil
	})
	rec, err := l.Verify(context.Background(), "cert-1", "parent-1")
	require.NoError(t, err)
	assert.Equal(t, "owner_mismatch", rec.Result)
}

// Ownership wins over expiry: a mismatched certificate reports mismatch even
// when it is also expired.
func TestVerifyMismatchBeforeExpiry(t *testing.T) {
	l := newLinker(func(ctx context.Context, id string) (certlink.Certificate, error) {
		return certlink.Certificate{
			ID:        id,
			PatientID: "someone-else",
			ValidTo:   frozen.AddDate(0, 0, -10),
		}, nil
	})
	rec, err := l.Verify(context.Background(), "cert-1", "parent-1")
	require.NoError(t, err)
	assert.Equal(t, "owner_mismatch", rec.Result)
}

func TestVerifyNotFound(t *testing.T) {
	l := newLinker(func(ctx context.Context, id string) (certlink.Certificate, error) {
		return certlink.Certificate{}, certlink.ErrCertificateNotFound
	})
	rec, err := l.Verify(context.Background(), "nope", "parent-1")
	require.NoError(t, err, "a completed negative lookup is not a transport failure")
	assert.Equal(t, "not_found", rec.Result)
	assert.False(t, rec.Valid())
}

func TestVerifyUnavailable(t *testing.T) {
	l := newLinker(func(ctx context.Context, id string) (certlink.Certificate, error) {
		return certlink.Certificate{}, errors.New("connection refused")
	})
	rec, err := l.Verify(context.Background(), "cert-1", "parent-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, certlink.ErrUnavailable)
	assert.Empty(t, rec.Result, "unavailable must not produce a verification record")
}

func TestVerifyTimeout(t *testing.T) {
	l := newLinker(func(ctx context.Context, id string) (certlink.Certificate, error) {
		<-ctx.Done()
		return certlink.Certificate{}, ctx.Err()
	})
	_, err := l.Verify(context.Background(), "cert-1", "parent-1")
	assert.ErrorIs(t, err, certlink.ErrUnavailable)
}
