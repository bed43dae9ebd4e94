// File: internal/user/model.go
package user

import (
	"strings"

	"github.com/gosimple/slug"

	"lifelink_backend/internal/domain"
	"lifelink_backend/internal/rules"
	"lifelink_backend/internal/store"
)

const (
	// MinDonorAge and MinDonorWeightKg gate profile edits and verification
	// for donors and patients.
	MinDonorAge      = 18
	MinDonorWeightKg = 50
)

// Identity is what the identity provider tells us about the caller.
type Identity struct {
	UID   string
	Email string
	Name  string
}

// UpdateProfileRequest is a partial profile edit. Omitted fields are kept.
type UpdateProfileRequest struct {
	DisplayName *string            `json:"displayName" binding:"omitempty,max=100" validate:"omitempty,max=100"`
	PhoneNumber *string            `json:"phoneNumber" binding:"omitempty,max=32" validate:"omitempty,max=32"`
	BloodGroup  *domain.BloodGroup `json:"bloodGroup" binding:"omitempty,bloodgroup" validate:"omitempty,bloodgroup"`
	Gender      *string            `json:"gender" binding:"omitempty,max=32" validate:"omitempty,max=32"`
	Age         *int               `json:"age" binding:"omitempty,gte=0,lte=130" validate:"omitempty,gte=0,lte=130"`
	Weight      *float64           `json:"weight" binding:"omitempty,gte=0,lte=500" validate:"omitempty,gte=0,lte=500"`
	Location    *domain.GeoPoint   `json:"location"`
}

// ProfileResponse is the caller's profile with its derived donation status.
type ProfileResponse struct {
	*domain.User
	Eligibility rules.Eligibility `json:"eligibility"`
}

// CenterStockResponse is the public inventory of one blood bank.
type CenterStockResponse struct {
	Name     string           `json:"name"`
	Slug     string           `json:"slug"`
	Phone    string           `json:"phone,omitempty"`
	Location *domain.GeoPoint `json:"location,omitempty"`
	Stock    domain.Stock     `json:"stock"`
}

// defaultProfile is the profile created for an identity seen for the first
// time: no role yet and available by default.
func defaultProfile(id Identity) *domain.User {
	return &domain.User{
		ID:          id.UID,
		Email:       id.Email,
		DisplayName: displayNameFor(id),
		IsAvailable: true,
	}
}

func defaultPatch(id Identity) store.UserPatch {
	return store.UserPatch{
		Email:          store.Ptr(id.Email),
		DisplayName:    store.Ptr(displayNameFor(id)),
		IsAvailable:    store.Ptr(true),
		StampCreatedAt: true,
	}
}

func displayNameFor(id Identity) string {
	if name := strings.TrimSpace(id.Name); name != "" {
		return name
	}
	if at := strings.IndexByte(id.Email, '@'); at > 0 {
		return id.Email[:at]
	}
	return ""
}

// toPatch converts an edit into a store patch. Admin accounts also get the
// public slug of their center name.
func (r UpdateProfileRequest) toPatch(isAdmin bool) store.UserPatch {
	p := store.UserPatch{
		PhoneNumber: trimmed(r.PhoneNumber),
		BloodGroup:  r.BloodGroup,
		Gender:      trimmed(r.Gender),
		Age:         r.Age,
		Weight:      r.Weight,
		Location:    r.Location,
	}
	if name := trimmed(r.DisplayName); name != nil {
		p.DisplayName = name
		if isAdmin {
			p.CenterSlug = store.Ptr(slug.Make(*name))
		}
	}
	return p
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func fullStock(s domain.Stock) domain.Stock {
	out := make(domain.Stock, len(domain.BloodGroups))
	for _, g := range domain.BloodGroups {
		out[g] = s.Units(g)
	}
	return out
}
