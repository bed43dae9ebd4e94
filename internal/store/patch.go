// File: internal/store/patch.go
package store

import "lifelink_backend/internal/domain"

// UserPatch is a merge update of a user profile. Nil fields are left as they
// are; Stamp fields set the matching timestamp to the store's current time.
type UserPatch struct {
	Email              *string
	DisplayName        *string
	PhoneNumber        *string
	Role               *domain.Role
	BloodGroup         *domain.BloodGroup
	Gender             *string
	Age                *int
	Weight             *float64
	IsAvailable        *bool
	IsVerified         *bool
	VerificationStatus *domain.VerificationStatus
	VerifiedBy         *string
	Location           *domain.GeoPoint
	CenterSlug         *string
	// BloodStock sets the listed groups to absolute values; other groups keep
	// their counts.
	BloodStock domain.Stock

	StampCreatedAt               bool
	StampLastDonated             bool
	StampLastConsentAgreed       bool
	StampLastActive              bool
	StampVerificationRequestedAt bool
	StampVerifiedAt              bool
}

// RequestPatch is a merge update of a request. UpdatedAt is always stamped.
type RequestPatch struct {
	Status          *domain.RequestStatus
	DonorID         *string
	DonorName       *string
	DonorPhone      *string
	ConsentGiven    *bool
	PickupCode      *string
	FulfillmentType *domain.FulfillmentType
	VerifiedBy      *string
	// LiveLocation replaces the shared position; its UpdatedAt is assigned by
	// the store.
	LiveLocation *domain.LiveLocation

	StampAcceptedAt  bool
	StampConsentAt   bool
	StampCompletedAt bool
	StampClosedAt    bool
}

// Ptr returns a pointer to v, for building patches inline.
func Ptr[T any](v T) *T {
	return &v
}
