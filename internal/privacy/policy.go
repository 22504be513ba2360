// Package privacy enforces least-privilege access to clinical data.
package privacy

// Role represents an actor class requesting clinical data.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
	RoleAgent   Role = "agent"
	RoleAdmin   Role = "admin"
)

// ParseRole maps a claim or query value to a Role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleDoctor, RolePatient, RoleAgent, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// Resource represents a protected class of clinical data.
type Resource string

const (
	ResourceLabReports      Resource = "lab_reports"
	ResourceMedications     Resource = "medications"
	ResourceAppointments    Resource = "appointments"
	ResourceInsurance       Resource = "insurance"
	ResourceTranscripts     Resource = "transcripts"
	ResourceClinicalNotes   Resource = "clinical_notes"
	ResourceRecommendations Resource = "recommendations"
	ResourceEmergencyEvents Resource = "emergency_events"
)

// AllResources lists every protected resource.
var AllResources = []Resource{
	ResourceLabReports,
	ResourceMedications,
	ResourceAppointments,
	ResourceInsurance,
	ResourceTranscripts,
	ResourceClinicalNotes,
	ResourceRecommendations,
	ResourceEmergencyEvents,
}

// AccessLevel distinguishes reads from writes.
type AccessLevel string

const (
	AccessRead  AccessLevel = "read"
	AccessWrite AccessLevel = "write"
)

// Policy is a fixed role × resource permission table. It never mutates;
// every surface returning patient data to a non-clinician role must
// consult it before including a field.
type Policy struct {
	read  map[Role]map[Resource]bool
	write map[Role]map[Resource]bool
}

// NewPolicy builds the default least-privilege policy:
// doctors and admins get full read+write, the agent gets full read but
// writes only the artifacts it produces, and patients get read-only
// access to their own non-clinical-workflow data.
func NewPolicy() *Policy {
	p := &Policy{
		read:  make(map[Role]map[Resource]bool),
		write: make(map[Role]map[Resource]bool),
	}

	p.read[RoleDoctor] = allOf(AllResources)
	p.read[RoleAdmin] = allOf(AllResources)
	p.read[RoleAgent] = allOf(AllResources)
	p.read[RolePatient] = allOf([]Resource{
		ResourceLabReports,
		ResourceMedications,
		ResourceAppointments,
		ResourceInsurance,
		ResourceEmergencyEvents,
	})

	p.write[RoleDoctor] = allOf(AllResources)
	p.write[RoleAdmin] = allOf(AllResources)
	p.write[RoleAgent] = allOf([]Resource{
		ResourceTranscripts,
		ResourceClinicalNotes,
		ResourceRecommendations,
		ResourceEmergencyEvents,
	})
	p.write[RolePatient] = map[Resource]bool{}

	return p
}

// CanAccess reports whether a role may access a resource at a level.
// Pure table lookup; unknown roles have no access.
func (p *Policy) CanAccess(role Role, resource Resource, level AccessLevel) bool {
	table := p.read
	if level == AccessWrite {
		table = p.write
	}
	perms, ok := table[role]
	if !ok {
		return false
	}
	return perms[resource]
}

func allOf(resources []Resource) map[Resource]bool {
	m := make(map[Resource]bool, len(resources))
	for _, r := range resources {
		m[r] = true
	}
	return m
}
