// File: internal/rules/compatibility.go
package rules

import "lifelink_backend/internal/domain"

// Policy decides whether a donor's blood can serve a patient.
type Policy func(donor, patient domain.BloodGroup) bool

// DefaultPolicy is the policy the coordination engine and donor search use.
var DefaultPolicy Policy = BloodCompatible

// BloodCompatible allows a donation only when both groups are identical.
func BloodCompatible(donor, patient domain.BloodGroup) bool {
	if donor == "" || patient == "" {
		return false
	}
	return donor == patient
}

var medicalRecipients = map[domain.BloodGroup][]domain.BloodGroup{
	domain.BloodGroupONeg:  {domain.BloodGroupONeg, domain.BloodGroupOPos, domain.BloodGroupANeg, domain.BloodGroupAPos, domain.BloodGroupBNeg, domain.BloodGroupBPos, domain.BloodGroupABNeg, domain.BloodGroupABPos},
	domain.BloodGroupOPos:  {domain.BloodGroupOPos, domain.BloodGroupAPos, domain.BloodGroupBPos, domain.BloodGroupABPos},
	domain.BloodGroupANeg:  {domain.BloodGroupANeg, domain.BloodGroupAPos, domain.BloodGroupABNeg, domain.BloodGroupABPos},
	domain.BloodGroupAPos:  {domain.BloodGroupAPos, domain.BloodGroupABPos},
	domain.BloodGroupBNeg:  {domain.BloodGroupBNeg, domain.BloodGroupBPos, domain.BloodGroupABNeg, domain.BloodGroupABPos},
	domain.BloodGroupBPos:  {domain.BloodGroupBPos, domain.BloodGroupABPos},
	domain.BloodGroupABNeg: {domain.BloodGroupABNeg, domain.BloodGroupABPos},
	domain.BloodGroupABPos: {domain.BloodGroupABPos},
}

// MedicalCompatibility applies the ABO/Rh red cell compatibility table.
// It is not wired as the default policy.
func MedicalCompatibility(donor, patient domain.BloodGroup) bool {
	for _, g := range medicalRecipients[donor] {
		if g == patient {
			return true
		}
	}
	return false
}
