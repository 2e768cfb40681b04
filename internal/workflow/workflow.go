package workflow

import (
	"fmt"

	"github.com/StrahinjaMijatovic/EUprava25/internal/domain"
)

// InvalidTransitionError reports an edge not present in the kind's table.
// It is also returned when a replayed call finds the entity already moved.
type InvalidTransitionError struct {
	Kind domain.Kind
	From string
	To   string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition %s -> %s", e.Kind, e.From, e.To)
}

// Definition is one kind's state machine: the initial state and the directed
// edge table. Role gating lives in the access package; verification
// preconditions in the engine.
type Definition struct {
	Kind    domain.Kind
	Initial string
	Edges   map[string][]string
}

var definitions = map[domain.Kind]Definition{
	domain.KindEnrollment: {
		Kind:    domain.KindEnrollment,
		Initial: domain.StatusPending,
		Edges: map[string][]string{
			domain.StatusPending: {domain.StatusApproved, domain.StatusRejected},
		},
	},
	domain.KindAbsence: {
		Kind:    domain.KindAbsence,
		Initial: domain.StatusPending,
		Edges: map[string][]string{
			domain.StatusPending: {domain.StatusApproved, domain.StatusRejected},
		},
	},
	domain.KindSchoolAppointment: {
		Kind:    domain.KindSchoolAppointment,
		Initial: domain.StatusPending,
		Edges: map[string][]string{
			domain.StatusPending:  {domain.StatusApproved, domain.StatusRejected},
			domain.StatusApproved: {domain.StatusCompleted},
		},
	},
	domain.KindHealthAppointment: {
		Kind:    domain.KindHealthAppointment,
		Initial: domain.StatusPending,
		Edges: map[string][]string{
			domain.StatusPending:   {domain.StatusConfirmed, domain.StatusCancelled},
			domain.StatusConfirmed: {domain.StatusCompleted},
		},
	},
	domain.KindHealthCardRequest: {
		Kind:    domain.KindHealthCardRequest,
		Initial: domain.StatusPending,
		Edges: map[string][]string{
			domain.StatusPending:    {domain.StatusProcessing, domain.StatusIssued, domain.StatusRejected},
			domain.StatusProcessing: {domain.StatusIssued, domain.StatusRejected},
		},
	},
	// Prescriptions are created active and never role-transitioned; their
	// effective status is time-derived on read.
	domain.KindPrescription: {
		Kind:    domain.KindPrescription,
		Initial: domain.StatusActive,
		Edges:   map[string][]string{},
	},
}

// For returns the definition for kind.
func For(kind domain.Kind) (Definition, bool) {
	d, ok := definitions[kind]
	return d, ok
}

// Kinds lists every kind with a workflow definition.
func Kinds() []domain.Kind {
	out := make([]domain.Kind, 0, len(definitions))
	for k := range definitions {
		out = append(out, k)
	}
	return out
}

// Allows reports whether the edge from -> to exists.
func (d Definition) Allows(from, to string) bool {
	for _, next := range d.Edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Ensure returns InvalidTransitionError when the edge is absent.
func (d Definition) Ensure(from, to string) error {
	if !d.Allows(from, to) {
		return InvalidTransitionError{Kind: d.Kind, From: from, To: to}
	}
	return nil
}

// Terminal reports whether no edge leaves the given state.
func (d Definition) Terminal(state string) bool {
	return len(d.Edges[state]) == 0
}
