package privacy

import "testing"

// TestPatientNeverWrites verifies the hard invariant that the patient
// role has no write access to any resource.
func TestPatientNeverWrites(t *testing.T) {
	p := NewPolicy()

	for _, resource := range AllResources {
		if p.CanAccess(RolePatient, resource, AccessWrite) {
			t.Errorf("Expected patient write access to %s to be denied", resource)
		}
	}
}

func TestDoctorAndAdminFullAccess(t *testing.T) {
	p := NewPolicy()

	for _, role := range []Role{RoleDoctor, RoleAdmin} {
		for _, resource := range AllResources {
			if !p.CanAccess(role, resource, AccessRead) {
				t.Errorf("Expected %s read access to %s", role, resource)
			}
			if !p.CanAccess(role, resource, AccessWrite) {
				t.Errorf("Expected %s write access to %s", role, resource)
			}
		}
	}
}

func TestAgentWriteScope(t *testing.T) {
	p := NewPolicy()

	writable := map[Resource]bool{
		ResourceTranscripts:     true,
		ResourceClinicalNotes:   true,
		ResourceRecommendations: true,
		ResourceEmergencyEvents: true,
	}

	for _, resource := range AllResources {
		if !p.CanAccess(RoleAgent, resource, AccessRead) {
			t.Errorf("Expected agent read access to %s", resource)
		}
		got := p.CanAccess(RoleAgent, resource, AccessWrite)
		if got != writable[resource] {
			t.Errorf("Expected agent write access to %s to be %v, got %v", resource, writable[resource], got)
		}
	}
}

func TestPatientReadScope(t *testing.T) {
	p := NewPolicy()

	tests := []struct {
		resource Resource
		allowed  bool
	}{
		{ResourceLabReports, true},
		{ResourceMedications, true},
		{ResourceAppointments, true},
		{ResourceInsurance, true},
		{ResourceEmergencyEvents, true},
		{ResourceTranscripts, false},
		{ResourceClinicalNotes, false},
		{ResourceRecommendations, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.resource), func(t *testing.T) {
			got := p.CanAccess(RolePatient, tt.resource, AccessRead)
			if got != tt.allowed {
				t.Errorf("Expected patient read %s = %v, got %v", tt.resource, tt.allowed, got)
			}
		})
	}
}

func TestUnknownRoleDenied(t *testing.T) {
	p := NewPolicy()

	if p.CanAccess(Role("intruder"), ResourceLabReports, AccessRead) {
		t.Error("Expected unknown role to be denied")
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{"doctor", true},
		{"patient", true},
		{"agent", true},
		{"admin", true},
		{"nurse", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, ok := ParseRole(tt.in)
			if ok != tt.valid {
				t.Errorf("Expected ParseRole(%q) valid=%v, got %v", tt.in, tt.valid, ok)
			}
		})
	}
}
