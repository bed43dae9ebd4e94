// File: internal/coordination/model.go
package coordination

import "lifelink_backend/internal/domain"

// BroadcastInput is the body of a new blood request.
type BroadcastInput struct {
	BloodGroup domain.BloodGroup `json:"bloodGroup" binding:"required,bloodgroup" validate:"required,bloodgroup"`
	Urgency    domain.Urgency    `json:"urgency" binding:"required,oneof=Emergency High Routine Scheduled" validate:"required,oneof=Emergency High Routine Scheduled"`
	Hospital   string            `json:"hospital" binding:"omitempty,max=255" validate:"omitempty,max=255"`
	Notes      string            `json:"notes" binding:"omitempty,max=1000" validate:"omitempty,max=1000"`
	Location   *domain.GeoPoint  `json:"location"`
}

// DeclarationInput carries the self-declaration items the donor confirmed.
type DeclarationInput struct {
	Declaration []string `json:"declaration"`
}

// AvailabilityInput toggles a donor's availability.
type AvailabilityInput struct {
	Available   *bool    `json:"available" binding:"required"`
	Declaration []string `json:"declaration"`
}

// RoleInput switches between the donor and patient roles.
type RoleInput struct {
	Role domain.Role `json:"role" binding:"required,oneof=donor patient"`
}

// FulfillInput reserves center stock for a request.
type FulfillInput struct {
	BloodGroup domain.BloodGroup `json:"bloodGroup" binding:"required,bloodgroup"`
}

// VerifyPickupInput is the code presented at the counter.
type VerifyPickupInput struct {
	Code string `json:"code" binding:"required,len=6,numeric"`
}

// MessageInput is a chat line sent by a participant.
type MessageInput struct {
	Text     string             `json:"text" validate:"max=2000"`
	Type     domain.MessageType `json:"type" validate:"omitempty,oneof=text location"`
	Location *domain.GeoPoint   `json:"location"`
}

// LocationInput is a shared live position.
type LocationInput struct {
	Lat *float64 `json:"lat" binding:"required,latitude"`
	Lng *float64 `json:"lng" binding:"required,longitude"`
}

// StockInput sets the absolute count of one blood group.
type StockInput struct {
	Units *int `json:"units" binding:"required,gte=0"`
}
