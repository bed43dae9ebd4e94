// File: internal/rules/eligibility.go
package rules

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/text/cases"
)

const (
	// DefaultCooldownDays is the minimum gap between two donations.
	DefaultCooldownDays = 90
	// FemaleCooldownDays replaces DefaultCooldownDays for female donors.
	FemaleCooldownDays = 120
)

// Eligibility describes whether a donor may donate again.
type Eligibility struct {
	Eligible         bool       `json:"eligible"`
	DaysRemaining    int        `json:"daysRemaining"`
	Percentage       float64    `json:"percentage"`
	NextEligibleDate *time.Time `json:"nextEligibleDate,omitempty"`
	Message          string     `json:"message,omitempty"`
}

// IsFemale compares gender case-insensitively against "female".
func IsFemale(gender string) bool {
	fold := cases.Fold()
	return fold.String(gender) == fold.String("female")
}

// CooldownDays returns the cooldown applied to a donor of the given gender.
func CooldownDays(gender string) int {
	if IsFemale(gender) {
		return FemaleCooldownDays
	}
	return DefaultCooldownDays
}

// DonationEligibility computes the cooldown status of a donor at now.
// Elapsed days are the ceiling of the absolute difference in days, so a
// donation made one hour ago counts as one elapsed day.
func DonationEligibility(lastDonated *time.Time, gender string, now time.Time) Eligibility {
	if lastDonated == nil || lastDonated.IsZero() {
		return Eligibility{Eligible: true, Percentage: 100}
	}

	cooldown := CooldownDays(gender)
	diff := now.Sub(*lastDonated)
	if diff < 0 {
		diff = -diff
	}
	elapsed := int(math.Ceil(diff.Hours() / 24))

	if elapsed >= cooldown {
		return Eligibility{Eligible: true, Percentage: 100}
	}

	remaining := cooldown - elapsed
	next := lastDonated.AddDate(0, 0, cooldown)
	return Eligibility{
		Eligible:         false,
		DaysRemaining:    remaining,
		Percentage:       math.Min(100, float64(elapsed)/float64(cooldown)*100),
		NextEligibleDate: &next,
		Message:          fmt.Sprintf("You can donate again in %d days.", remaining),
	}
}
