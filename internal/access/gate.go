package access

import (
	"fmt"

	"github.com/StrahinjaMijatovic/EUprava25/internal/domain"
	"github.com/StrahinjaMijatovic/EUprava25/internal/identity"
)

// DeniedError indicates the caller's role may not perform the operation.
type DeniedError struct {
	Role string
	Kind domain.Kind
	Op   string
}

func (e DeniedError) Error() string {
	return fmt.Sprintf("role %s may not %s %s", e.Role, e.Op, e.Kind)
}

type roleSet map[string]bool

func roles(names ...string) roleSet {
	s := make(roleSet, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}

// The single source of truth for role gating. One row per (kind, transition);
// creation and visibility sit in their own tables. Nothing outside this
// package compares role strings.
var transitionRoles = map[domain.Kind]map[string]roleSet{
	domain.KindEnrollment: {
		domain.StatusApproved: roles(identity.RoleAdministracija),
		domain.StatusRejected: roles(identity.RoleAdministracija),
	},
	domain.KindAbsence: {
		domain.StatusApproved: roles(identity.RoleNastavnik, identity.RoleAdministracija),
		domain.StatusRejected: roles(identity.RoleNastavnik, identity.RoleAdministracija),
	},
	domain.KindSchoolAppointment: {
		domain.StatusApproved:  roles(identity.RoleNastavnik, identity.RoleAdministracija),
		domain.StatusRejected:  roles(identity.RoleNastavnik, identity.RoleAdministracija),
		domain.StatusCompleted: roles(identity.RoleNastavnik, identity.RoleAdministracija),
	},
	domain.KindHealthAppointment: {
		domain.StatusConfirmed: roles(identity.RoleLekar, identity.RoleMedicinskaSestr),
		domain.StatusCancelled: roles(identity.RoleLekar, identity.RoleMedicinskaSestr),
		domain.StatusCompleted: roles(identity.RoleLekar, identity.RoleMedicinskaSestr),
	},
	domain.KindHealthCardRequest: {
		domain.StatusProcessing: roles(identity.RoleAdministrator),
		domain.StatusIssued:     roles(identity.RoleAdministrator),
		domain.StatusRejected:   roles(identity.RoleAdministrator),
	},
	// Prescription has no role-driven transitions.
	domain.KindPrescription: {},
}

var requesterRoles = map[domain.Kind]roleSet{
	domain.KindEnrollment:        roles(identity.RoleRoditelj),
	domain.KindAbsence:           roles(identity.RoleUcenik, identity.RoleRoditelj),
	domain.KindSchoolAppointment: roles(identity.RoleUcenik, identity.RoleRoditelj),
	domain.KindHealthAppointment: roles(identity.RolePacijent),
	domain.KindHealthCardRequest: roles(identity.RolePacijent),
	domain.KindPrescription:      roles(identity.RoleLekar),
}

// Self-scoped visibility follows the requester set except for prescriptions,
// which lekar files but pacijent owns.
var selfViewRoles = func() map[domain.Kind]roleSet {
	m := make(map[domain.Kind]roleSet, len(requesterRoles))
	for k, v := range requesterRoles {
		m[k] = v
	}
	m[domain.KindPrescription] = roles(identity.RolePacijent)
	return m
}()

// Domain-wide visibility. Requester roles see only their own records and are
// not listed here.
var reviewerRoles = map[domain.Kind]roleSet{
	domain.KindEnrollment:        roles(identity.RoleAdministracija),
	domain.KindAbsence:           roles(identity.RoleNastavnik, identity.RoleAdministracija),
	domain.KindSchoolAppointment: roles(identity.RoleNastavnik, identity.RoleAdministracija),
	domain.KindHealthAppointment: roles(identity.RoleLekar, identity.RoleMedicinskaSestr, identity.RoleAdministrator),
	domain.KindHealthCardRequest: roles(identity.RoleAdministrator, identity.RoleLekar),
	domain.KindPrescription:      roles(identity.RoleLekar, identity.RoleAdministrator),
}

// CanTransition reports whether role may drive kind to target. The admin
// override may drive any transition that exists for the kind at all.
func CanTransition(role string, kind domain.Kind, target string) bool {
	if !identity.KnownRole(role) {
		return false
	}
	edges, ok := transitionRoles[kind]
	if !ok {
		return false
	}
	allowed, ok := edges[target]
	if !ok {
		return false
	}
	return role == identity.RoleAdmin || allowed[role]
}

// CanCreate reports whether role is in the requester set for kind.
func CanCreate(role string, kind domain.Kind) bool {
	if !identity.KnownRole(role) {
		return false
	}
	return role == identity.RoleAdmin || requesterRoles[kind][role]
}

// CanViewAll reports whether role sees the whole domain's records for kind.
func CanViewAll(role string, kind domain.Kind) bool {
	if !identity.KnownRole(role) {
		return false
	}
	return role == identity.RoleAdmin || reviewerRoles[kind][role]
}

// CanView reports whether role has any visibility on kind, self-scoped or
// domain-wide. A role without it must not even learn whether an id exists.
func CanView(role string, kind domain.Kind) bool {
	return CanViewAll(role, kind) || selfViewRoles[kind][role]
}

// SelfScoped reports whether role's list access is restricted to records it
// filed itself.
func SelfScoped(role string, kind domain.Kind) bool {
	return CanView(role, kind) && !CanViewAll(role, kind)
}

// Certificates and students are not workflow kinds but their access rules
// live here with the rest of the role tables.

var certificateIssuers = roles(identity.RoleLekar)

var certificateReviewers = roles(identity.RoleLekar, identity.RoleMedicinskaSestr, identity.RoleAdministrator)

var dispensers = roles(identity.RoleLekar, identity.RoleMedicinskaSestr)

var studentReviewers = roles(identity.RoleNastavnik, identity.RoleAdministracija)

// CanIssueCertificate reports whether role may create medical certificates.
func CanIssueCertificate(role string) bool {
	return role == identity.RoleAdmin || certificateIssuers[role]
}

// CertificateViewAll reports whether role sees every certificate; pacijent
// sees only its own.
func CertificateViewAll(role string) bool {
	return role == identity.RoleAdmin || certificateReviewers[role]
}

// CanDispense reports whether role may mark a prescription dispensed.
func CanDispense(role string) bool {
	return role == identity.RoleAdmin || dispensers[role]
}

// StudentViewAll reports whether role sees every student record; roditelj
// sees only its own children.
func StudentViewAll(role string) bool {
	return role == identity.RoleAdmin || studentReviewers[role]
}
