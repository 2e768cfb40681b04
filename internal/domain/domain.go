package domain

// Kind identifies a workflow entity kind.
type Kind string

const (
	KindEnrollment        Kind = "enrollment"
	KindAbsence           Kind = "absence"
	KindSchoolAppointment Kind = "school_appointment"
	KindHealthAppointment Kind = "health_appointment"
	KindHealthCardRequest Kind = "health_card_request"
	KindPrescription      Kind = "prescription"
)

// Status values shared across kinds. Each kind's workflow definition
// enumerates which of these it actually uses.
const (
	StatusPending    = "pending"
	StatusApproved   = "approved"
	StatusRejected   = "rejected"
	StatusCompleted  = "completed"
	StatusConfirmed  = "confirmed"
	StatusCancelled  = "cancelled"
	StatusProcessing = "processing"
	StatusIssued     = "issued"
	StatusActive     = "active"
	StatusUsed       = "used"
	StatusExpired    = "expired"
)

// VerificationRecord is the snapshot of a cross-domain certificate check.
// Once a committed transition references one it is never rewritten; later
// changes to the certificate do not reach back into it.
type VerificationRecord struct {
	CertificateID string `json:"certificate_id"`
	OwnerID       string `json:"owner_id,omitempty"`
	ValidFrom     string `json:"valid_from,omitempty" format:"date-time"`
	ValidTo       string `json:"valid_to,omitempty" format:"date-time"`
	VerifiedAt    string `json:"verified_at" format:"date-time"`
	Result        string `json:"result" enum:"valid,expired,not_found,owner_mismatch"`
}

// Valid reports whether the check permits the gated transition.
func (v VerificationRecord) Valid() bool { return v.Result == "valid" }

// Enrollment is a parent's application to enrol a child.
type Enrollment struct {
	ID               string              `json:"id"`
	ParentUserID     string              `json:"parent_user_id"`
	FirstName        string              `json:"first_name"`
	LastName         string              `json:"last_name"`
	DateOfBirth      string              `json:"date_of_birth" format:"date"`
	SchoolYear       string              `json:"school_year"`
	HealthCertID     *string             `json:"health_cert_id,omitempty"`
	Verification     *VerificationRecord `json:"verification,omitempty"`
	Status           string              `json:"status" enum:"pending,approved,rejected"`
	Notes            string              `json:"notes,omitempty"`
	CreatedAt        string              `json:"created_at" format:"date-time"`
	LastTransitionAt *string             `json:"last_transition_at,omitempty" format:"date-time"`
	LastTransitionBy *string             `json:"last_transition_by,omitempty"`
}

// Absence is a request to justify a student's absence, optionally backed by
// a medical certificate.
type Absence struct {
	ID               string              `json:"id"`
	StudentUserID    string              `json:"student_user_id"`
	StartDate        string              `json:"start_date" format:"date"`
	EndDate          string              `json:"end_date" format:"date"`
	Reason           string              `json:"reason"`
	HealthCertID     *string             `json:"health_cert_id,omitempty"`
	Verification     *VerificationRecord `json:"verification,omitempty"`
	Status           string              `json:"status" enum:"pending,approved,rejected"`
	ReviewedBy       *string             `json:"reviewed_by,omitempty"`
	CreatedAt        string              `json:"created_at" format:"date-time"`
	LastTransitionAt *string             `json:"last_transition_at,omitempty" format:"date-time"`
	LastTransitionBy *string             `json:"last_transition_by,omitempty"`
}

type SchoolAppointment struct {
	ID               string  `json:"id"`
	RequesterID      string  `json:"requester_id"`
	StaffID          string  `json:"staff_id,omitempty"`
	DateTime         string  `json:"date_time" format:"date-time"`
	Type             string  `json:"type"`
	Status           string  `json:"status" enum:"pending,approved,rejected,completed"`
	Notes            string  `json:"notes,omitempty"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
	LastTransitionAt *string `json:"last_transition_at,omitempty" format:"date-time"`
	LastTransitionBy *string `json:"last_transition_by,omitempty"`
}

type HealthAppointment struct {
	ID               string  `json:"id"`
	PatientID        string  `json:"patient_id"`
	DoctorID         string  `json:"doctor_id"`
	DateTime         string  `json:"date_time" format:"date-time"`
	Type             string  `json:"type"`
	Status           string  `json:"status" enum:"pending,confirmed,cancelled,completed"`
	Notes            string  `json:"notes,omitempty"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
	LastTransitionAt *string `json:"last_transition_at,omitempty" format:"date-time"`
	LastTransitionBy *string `json:"last_transition_by,omitempty"`
}

type HealthCardRequest struct {
	ID               string  `json:"id"`
	PatientID        string  `json:"patient_id"`
	RequestType      string  `json:"request_type"`
	Status           string  `json:"status" enum:"pending,processing,issued,rejected"`
	Notes            string  `json:"notes,omitempty"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
	LastTransitionAt *string `json:"last_transition_at,omitempty" format:"date-time"`
	LastTransitionBy *string `json:"last_transition_by,omitempty"`
}

// Prescription has no role-driven transitions: its effective status is
// derived from the validity window and the dispensation timestamp.
type Prescription struct {
	ID          string  `json:"id"`
	PatientID   string  `json:"patient_id"`
	DoctorID    string  `json:"doctor_id"`
	Medication  string  `json:"medication"`
	Dosage      string  `json:"dosage"`
	Duration    string  `json:"duration,omitempty"`
	Status      string  `json:"status" enum:"active,used,expired"`
	IssuedAt    string  `json:"issued_at" format:"date-time"`
	ValidUntil  *string `json:"valid_until,omitempty" format:"date-time"`
	DispensedAt *string `json:"dispensed_at,omitempty" format:"date-time"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

// Student is the record provisioned when an enrollment is approved.
// At most one exists per enrollment.
type Student struct {
	ID           string  `json:"id"`
	EnrollmentID string  `json:"enrollment_id"`
	ParentUserID string  `json:"parent_user_id"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	DateOfBirth  string  `json:"date_of_birth,omitempty" format:"date"`
	ClassID      *string `json:"class_id,omitempty"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
}

// MedicalCertificate is issued by the health domain and only ever read by
// the school domain.
type MedicalCertificate struct {
	ID          string `json:"id"`
	PatientID   string `json:"patient_id"`
	PatientName string `json:"patient_name"`
	Type        string `json:"type"`
	ValidFrom   string `json:"valid_from" format:"date"`
	ValidTo     string `json:"valid_to" format:"date"`
	DoctorID    string `json:"doctor_id"`
	Notes       string `json:"notes,omitempty"`
	IssuedAt    string `json:"issued_at" format:"date-time"`
}

// TransitionRecord is one append-only audit entry per committed transition.
type TransitionRecord struct {
	ID         int64  `json:"id"`
	EntityKind Kind   `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	ActorID    string `json:"actor_id"`
	ActorRole  string `json:"actor_role"`
	Notes      string `json:"notes,omitempty"`
	TS         string `json:"ts" format:"date-time"`
}
