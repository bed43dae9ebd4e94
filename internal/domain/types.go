// File: internal/domain/types.go
package domain

// BloodGroup is one of the eight ABO/Rh blood types.
type BloodGroup string

const (
	BloodGroupAPos  BloodGroup = "A+"
	BloodGroupANeg  BloodGroup = "A-"
	BloodGroupBPos  BloodGroup = "B+"
	BloodGroupBNeg  BloodGroup = "B-"
	BloodGroupABPos BloodGroup = "AB+"
	BloodGroupABNeg BloodGroup = "AB-"
	BloodGroupOPos  BloodGroup = "O+"
	BloodGroupONeg  BloodGroup = "O-"

	// BloodGroupAny is accepted by donor search filters only; it is never stored.
	BloodGroupAny BloodGroup = "Any"
)

// BloodGroups lists every storable blood group in display order.
var BloodGroups = []BloodGroup{
	BloodGroupAPos, BloodGroupANeg,
	BloodGroupBPos, BloodGroupBNeg,
	BloodGroupABPos, BloodGroupABNeg,
	BloodGroupOPos, BloodGroupONeg,
}

// Valid reports whether g is one of the eight storable blood groups.
func (g BloodGroup) Valid() bool {
	for _, bg := range BloodGroups {
		if g == bg {
			return true
		}
	}
	return false
}

// Role is the account type of a user.
type Role string

const (
	RoleUnset   Role = ""
	RoleDonor   Role = "donor"
	RolePatient Role = "patient"
	RoleAdmin   Role = "admin"
)

// VerificationStatus tracks the identity verification workflow of a user.
type VerificationStatus string

const (
	VerificationUnset     VerificationStatus = ""
	VerificationRequested VerificationStatus = "requested"
	VerificationVerified  VerificationStatus = "verified"
	VerificationRejected  VerificationStatus = "rejected"
)

// RequestStatus is the lifecycle state of a blood request.
type RequestStatus string

const (
	StatusPending        RequestStatus = "pending"
	StatusAccepted       RequestStatus = "accepted"
	StatusReadyForPickup RequestStatus = "ready_for_pickup"
	StatusCompleted      RequestStatus = "completed"
	StatusCancelled      RequestStatus = "cancelled"
	StatusExpired        RequestStatus = "expired"
)

// Terminal reports whether no further transition is possible from s.
func (s RequestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

// Urgency is how soon a request needs to be served.
type Urgency string

const (
	UrgencyEmergency Urgency = "Emergency"
	UrgencyHigh      Urgency = "High"
	UrgencyRoutine   Urgency = "Routine"
	UrgencyScheduled Urgency = "Scheduled"
)

// FulfillmentType records how a request was served.
type FulfillmentType string

const (
	FulfillmentPeerDonation FulfillmentType = "peer_donation"
	FulfillmentStockSupply  FulfillmentType = "stock_supply"
)

// MessageType distinguishes chat lines.
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageLocation MessageType = "location"
	MessageSystem   MessageType = "system"
)
