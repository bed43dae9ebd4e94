// File: internal/search/document.go
package search

import (
	"time"

	"lifelink_backend/internal/domain"
)

// geoPoint is the Elasticsearch geo_point object form.
type geoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Document is a user profile as stored in the search index.
type Document struct {
	ID                      string     `json:"id"`
	Email                   string     `json:"email"`
	DisplayName             string     `json:"display_name"`
	PhoneNumber             string     `json:"phone_number,omitempty"`
	Role                    string     `json:"role"`
	BloodGroup              string     `json:"blood_group,omitempty"`
	Gender                  string     `json:"gender,omitempty"`
	Age                     int        `json:"age,omitempty"`
	Weight                  float64    `json:"weight,omitempty"`
	IsAvailable             bool       `json:"is_available"`
	IsVerified              bool       `json:"is_verified"`
	VerificationStatus      string     `json:"verification_status,omitempty"`
	VerificationRequestedAt *time.Time `json:"verification_requested_at,omitempty"`
	LivesSaved              int        `json:"lives_saved"`
	CenterSlug              string     `json:"center_slug,omitempty"`
	Location                *geoPoint  `json:"location,omitempty"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// DocumentFor converts a profile to its index document.
func DocumentFor(u *domain.User) Document {
	doc := Document{
		ID:                      u.ID,
		Email:                   u.Email,
		DisplayName:             u.Name(),
		PhoneNumber:             u.PhoneNumber,
		Role:                    string(u.Role),
		BloodGroup:              string(u.BloodGroup),
		Gender:                  u.Gender,
		Age:                     u.Age,
		Weight:                  u.Weight,
		IsAvailable:             u.IsAvailable,
		IsVerified:              u.IsVerified,
		VerificationStatus:      string(u.VerificationStatus),
		VerificationRequestedAt: u.VerificationRequestedAt,
		LivesSaved:              u.LivesSaved,
		CenterSlug:              u.CenterSlug,
		UpdatedAt:               u.UpdatedAt,
	}
	if u.Location != nil {
		doc.Location = &geoPoint{Lat: u.Location.Lat, Lon: u.Location.Lng}
	}
	return doc
}
