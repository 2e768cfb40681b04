package workflow_test

import (
	"errors"
	"testing"

	"github.com/StrahinjaMijatovic/EUprava25/internal/domain"
	"github.com/StrahinjaMijatovic/EUprava25/internal/workflow"
)

func TestDefinedEdges(t *testing.T) {
	cases := []struct {
		kind domain.Kind
		from string
		to   string
		ok   bool
	}{
		{domain.KindEnrollment, "pending", "approved", true},
		{domain.KindEnrollment, "pending", "rejected", true},
		{domain.KindEnrollment, "approved", "pending", false},
		{domain.KindEnrollment, "rejected", "approved", false},
		{domain.KindAbsence, "pending", "approved", true},
		{domain.KindAbsence, "approved", "rejected", false},
		{domain.KindSchoolAppointment, "pending", "approved", true},
		{domain.KindSchoolAppointment, "approved", "completed", true},
		{domain.KindSchoolAppointment, "pending", "completed", false},
		{domain.KindSchoolAppointment, "completed", "approved", false},
		{domain.KindHealthAppointment, "pending", "confirmed", true},
		{domain.KindHealthAppointment, "pending", "cancelled", true},
		{domain.KindHealthAppointment, "confirmed", "completed", true},
		{domain.KindHealthAppointment, "cancelled", "confirmed", false},
		{domain.KindHealthAppointment, "pending", "completed", false},
		{domain.KindHealthCardRequest, "pending", "processing", true},
		{domain.KindHealthCardRequest, "pending", "issued", true},
		{domain.KindHealthCardRequest, "processing", "issued", true},
		{domain.KindHealthCardRequest, "processing", "rejected", true},
		{domain.KindHealthCardRequest, "issued", "rejected", false},
		{domain.KindPrescription, "active", "used", false},
		{domain.KindPrescription, "active", "expired", false},
	}
	for _, c := range cases {
		def, ok := workflow.For(c.kind)
		if !ok {
			t.Fatalf("no definition for %s", c.kind)
		}
		if got := def.Allows(c.from, c.to); got != c.ok {
			t.Errorf("%s %s -> %s: allows=%v, want %v", c.kind, c.from, c.to, got, c.ok)
		}
	}
}

func TestEnsureReturnsTypedError(t *testing.T) {
	def, _ := workflow.For(domain.KindEnrollment)
	err := def.Ensure("approved", "pending")
	var ite workflow.InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if ite.From != "approved" || ite.To != "pending" {
		t.Fatalf("unexpected edge in error: %+v", ite)
	}
}

// Statuses that belong to other kinds must not leak in as edges.
func TestForeignStatusesRejected(t *testing.T) {
	foreign := []string{"processing", "issued", "confirmed", "used", "active"}
	def, _ := workflow.For(domain.KindEnrollment)
	for _, s := range foreign {
		if def.Allows("pending", s) {
			t.Errorf("enrollment must not allow pending -> %s", s)
		}
	}
}

func TestInitialAndTerminalStates(t *testing.T) {
	for _, kind := range workflow.Kinds() {
		def, _ := workflow.For(kind)
		if def.Initial == "" {
			t.Errorf("%s has no initial state", kind)
		}
		if kind == domain.KindPrescription {
			continue
		}
		if def.Initial != domain.StatusPending {
			t.Errorf("%s initial = %s, want pending", kind, def.Initial)
		}
	}
	def, _ := workflow.For(domain.KindEnrollment)
	if !def.Terminal("approved") || !def.Terminal("rejected") {
		t.Error("approved and rejected must be terminal for enrollment")
	}
	if def.Terminal("pending") {
		t.Error("pending must not be terminal for enrollment")
	}
}
