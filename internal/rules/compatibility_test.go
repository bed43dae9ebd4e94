package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lifelink_backend/internal/domain"
)

func TestBloodCompatible_StrictEquality(t *testing.T) {
	for _, donor := range domain.BloodGroups {
		for _, patient := range domain.BloodGroups {
			assert.Equal(t, donor == patient, BloodCompatible(donor, patient), "%s -> %s", donor, patient)
		}
	}
}

func TestBloodCompatible_EmptyInput(t *testing.T) {
	assert.False(t, BloodCompatible("", domain.BloodGroupOPos))
	assert.False(t, BloodCompatible(domain.BloodGroupOPos, ""))
	assert.False(t, BloodCompatible("", ""))
}

func TestMedicalCompatibility(t *testing.T) {
	assert.True(t, MedicalCompatibility(domain.BloodGroupONeg, domain.BloodGroupABPos))
	assert.True(t, MedicalCompatibility(domain.BloodGroupOPos, domain.BloodGroupAPos))
	assert.False(t, MedicalCompatibility(domain.BloodGroupAPos, domain.BloodGroupOPos))
	assert.False(t, MedicalCompatibility(domain.BloodGroupABPos, domain.BloodGroupABNeg))
	assert.False(t, MedicalCompatibility("", domain.BloodGroupABPos))
}
