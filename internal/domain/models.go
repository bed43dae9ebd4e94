// File: internal/domain/models.go
package domain

import (
	"strings"
	"time"
)

// GeoPoint is a latitude/longitude pair in decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LiveLocation is the most recent position shared by a party in transit.
type LiveLocation struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	UpdatedAt time.Time `json:"updatedAt"`
	SharerID  string    `json:"sharerId"`
}

// Stock is a blood bank's on-hand inventory, counted per blood group.
type Stock map[BloodGroup]int

// Units returns the units on hand for g; absent groups count as zero.
func (s Stock) Units(g BloodGroup) int {
	if s == nil {
		return 0
	}
	return s[g]
}

// User is the profile document of one authenticated identity.
type User struct {
	ID                      string             `json:"id"`
	Email                   string             `json:"email"`
	DisplayName             string             `json:"displayName,omitempty"`
	PhoneNumber             string             `json:"phoneNumber,omitempty"`
	Role                    Role               `json:"role"`
	BloodGroup              BloodGroup         `json:"bloodGroup,omitempty"`
	Gender                  string             `json:"gender,omitempty"`
	Age                     int                `json:"age,omitempty"`
	Weight                  float64            `json:"weight,omitempty"`
	IsAvailable             bool               `json:"isAvailable"`
	IsVerified              bool               `json:"isVerified"`
	VerificationStatus      VerificationStatus `json:"verificationStatus,omitempty"`
	VerificationRequestedAt *time.Time         `json:"verificationRequestedAt,omitempty"`
	VerifiedAt              *time.Time         `json:"verifiedAt,omitempty"`
	VerifiedBy              string             `json:"verifiedByAdmin,omitempty"`
	LastDonated             *time.Time         `json:"lastDonated,omitempty"`
	LastConsentAgreedAt     *time.Time         `json:"lastConsentAgreedAt,omitempty"`
	LastActive              *time.Time         `json:"lastActive,omitempty"`
	LivesSaved              int                `json:"livesSaved"`
	BloodStock              Stock              `json:"bloodStock,omitempty"`
	Location                *GeoPoint          `json:"location,omitempty"`
	CenterSlug              string             `json:"centerSlug,omitempty"`
	CreatedAt               time.Time          `json:"createdAt"`
	UpdatedAt               time.Time          `json:"updatedAt"`
}

// HoldsStock reports whether the account keeps a blood inventory.
func (u *User) HoldsStock() bool {
	return u.Role == RoleAdmin
}

// Name returns the name shown to other parties.
func (u *User) Name() string {
	if strings.TrimSpace(u.DisplayName) != "" {
		return u.DisplayName
	}
	if u.Email != "" {
		return u.Email
	}
	return "Anonymous"
}

// Request is one broadcast need for a unit of blood.
type Request struct {
	ID              string          `json:"id"`
	PatientID       string          `json:"patientId"`
	PatientName     string          `json:"patientName"`
	BloodGroup      BloodGroup      `json:"bloodGroup"`
	Urgency         Urgency         `json:"urgency"`
	Hospital        string          `json:"hospital,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	Status          RequestStatus   `json:"status"`
	Location        *GeoPoint       `json:"location,omitempty"`
	LiveLocation    *LiveLocation   `json:"liveLocation,omitempty"`
	DonorID         string          `json:"donorId,omitempty"`
	DonorName       string          `json:"donorName,omitempty"`
	DonorPhone      string          `json:"donorPhone,omitempty"`
	AcceptedAt      *time.Time      `json:"acceptedAt,omitempty"`
	ConsentGiven    bool            `json:"consentGiven"`
	ConsentAt       *time.Time      `json:"consentTimestamp,omitempty"`
	PickupCode      string          `json:"pickupCode,omitempty"`
	FulfillmentType FulfillmentType `json:"fulfillmentType,omitempty"`
	VerifiedBy      string          `json:"verifiedBy,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	CompletedAt     *time.Time      `json:"completedAt,omitempty"`
	ClosedAt        *time.Time      `json:"closedAt,omitempty"`
}

// IsParticipant reports whether uid is the requester or the matched donor.
func (r *Request) IsParticipant(uid string) bool {
	return uid != "" && (r.PatientID == uid || r.DonorID == uid)
}

// Message is one chat line scoped to a request.
type Message struct {
	ID         string      `json:"id"`
	RequestID  string      `json:"requestId"`
	SenderID   string      `json:"senderId"`
	SenderName string      `json:"senderName"`
	Text       string      `json:"text"`
	Type       MessageType `json:"type"`
	Location   *GeoPoint   `json:"location,omitempty"`
	PickupCode string      `json:"pickupCode,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// Donation is the donor-owned history entry written when a peer donation
// completes. Its ID is the originating request ID.
type Donation struct {
	ID          string        `json:"id"`
	DonorID     string        `json:"donorId"`
	PatientName string        `json:"patientName"`
	BloodGroup  BloodGroup    `json:"bloodGroup"`
	Location    *GeoPoint     `json:"location,omitempty"`
	CompletedAt time.Time     `json:"completedAt"`
	Status      RequestStatus `json:"status"`
}
