package access_test

import (
	"testing"

	"github.com/StrahinjaMijatovic/EUprava25/internal/access"
	"github.com/StrahinjaMijatovic/EUprava25/internal/domain"
	"github.com/StrahinjaMijatovic/EUprava25/internal/identity"
	"github.com/StrahinjaMijatovic/EUprava25/internal/workflow"
)

func allEdges() map[domain.Kind][]string {
	out := map[domain.Kind][]string{}
	for _, kind := range workflow.Kinds() {
		def, _ := workflow.For(kind)
		seen := map[string]bool{}
		for _, targets := range def.Edges {
			for _, to := range targets {
				if !seen[to] {
					seen[to] = true
					out[kind] = append(out[kind], to)
				}
			}
		}
	}
	return out
}

func TestUnknownRoleDeniedEverything(t *testing.T) {
	for kind, targets := range allEdges() {
		if access.CanCreate("hacker", kind) {
			t.Errorf("unknown role may create %s", kind)
		}
		if access.CanView("hacker", kind) {
			t.Errorf("unknown role may view %s", kind)
		}
		for _, to := range targets {
			if access.CanTransition("hacker", kind, to) {
				t.Errorf("unknown role may drive %s -> %s", kind, to)
			}
		}
	}
}

func TestAdminOverrideCoversEveryListedTransition(t *testing.T) {
	for kind, targets := range allEdges() {
		for _, to := range targets {
			if !access.CanTransition(identity.RoleAdmin, kind, to) {
				t.Errorf("admin cannot drive %s -> %s", kind, to)
			}
		}
	}
}

func TestRequestersCannotApproveOwnDomain(t *testing.T) {
	cases := []struct {
		role   string
		kind   domain.Kind
		target string
	}{
		{identity.RoleRoditelj, domain.KindEnrollment, domain.StatusApproved},
		{identity.RoleUcenik, domain.KindAbsence, domain.StatusApproved},
		{identity.RoleUcenik, domain.KindSchoolAppointment, domain.StatusApproved},
		{identity.RolePacijent, domain.KindHealthAppointment, domain.StatusConfirmed},
		{identity.RolePacijent, domain.KindHealthCardRequest, domain.StatusIssued},
	}
	for _, c := range cases {
		if access.CanTransition(c.role, c.kind, c.target) {
			t.Errorf("%s may drive %s -> %s", c.role, c.kind, c.target)
		}
	}
}

func TestCrossDomainRolesHaveNoReach(t *testing.T) {
	// Health staff in the school domain and vice versa.
	if access.CanTransition(identity.RoleLekar, domain.KindEnrollment, domain.StatusApproved) {
		t.Error("lekar may approve enrollments")
	}
	if access.CanTransition(identity.RoleNastavnik, domain.KindHealthAppointment, domain.StatusConfirmed) {
		t.Error("nastavnik may confirm health appointments")
	}
	if access.CanView(identity.RolePacijent, domain.KindEnrollment) {
		t.Error("pacijent may view enrollments")
	}
	if access.CanView(identity.RoleUcenik, domain.KindHealthCardRequest) {
		t.Error("ucenik may view health card requests")
	}
}

func TestSelfScoping(t *testing.T) {
	if !access.SelfScoped(identity.RoleRoditelj, domain.KindEnrollment) {
		t.Error("roditelj must be self-scoped on enrollments")
	}
	if access.SelfScoped(identity.RoleAdministracija, domain.KindEnrollment) {
		t.Error("administracija must see the whole school domain")
	}
	if !access.SelfScoped(identity.RolePacijent, domain.KindPrescription) {
		t.Error("pacijent must be self-scoped on prescriptions")
	}
	if !access.CanViewAll(identity.RoleAdmin, domain.KindHealthCardRequest) {
		t.Error("admin must see everything")
	}
}

func TestPrescriptionHasNoDrivableTransitions(t *testing.T) {
	for _, role := range []string{
		identity.RoleLekar, identity.RoleAdministrator, identity.RoleAdmin,
	} {
		for _, target := range []string{"used", "expired", "active"} {
			if access.CanTransition(role, domain.KindPrescription, target) {
				t.Errorf("%s may drive prescription -> %s", role, target)
			}
		}
	}
}

func TestCertificateAndStudentTables(t *testing.T) {
	if !access.CanIssueCertificate(identity.RoleLekar) {
		t.Error("lekar must issue certificates")
	}
	if access.CanIssueCertificate(identity.RolePacijent) {
		t.Error("pacijent must not issue certificates")
	}
	if !access.CanDispense(identity.RoleMedicinskaSestr) {
		t.Error("medicinska_sestra must dispense")
	}
	if access.CanDispense(identity.RoleNastavnik) {
		t.Error("nastavnik must not dispense")
	}
	if !access.StudentViewAll(identity.RoleAdministracija) {
		t.Error("administracija must list all students")
	}
	if access.StudentViewAll(identity.RoleRoditelj) {
		t.Error("roditelj sees only own children")
	}
}
