// File: internal/store/firestoredb/docs.go
package firestoredb

import (
	"time"

	"lifelink_backend/internal/domain"
)

const (
	usersCollection        = "users"
	requestsCollection     = "requests"
	donationsCollection    = "donations"
	messagesCollection     = "messages"
	declarationsCollection = "declarations"
)

type geoDoc struct {
	Lat float64 `firestore:"lat"`
	Lng float64 `firestore:"lng"`
}

type liveLocationDoc struct {
	Lat       float64   `firestore:"lat"`
	Lng       float64   `firestore:"lng"`
	UpdatedAt time.Time `firestore:"updatedAt"`
	SharerID  string    `firestore:"sharerId"`
}

type userDoc struct {
	Email                   string           `firestore:"email"`
	DisplayName             string           `firestore:"displayName,omitempty"`
	PhoneNumber             string           `firestore:"phoneNumber,omitempty"`
	Role                    *string          `firestore:"role"`
	BloodGroup              string           `firestore:"bloodGroup,omitempty"`
	Gender                  string           `firestore:"gender,omitempty"`
	Age                     int              `firestore:"age,omitempty"`
	Weight                  float64          `firestore:"weight,omitempty"`
	IsAvailable             bool             `firestore:"isAvailable"`
	IsVerified              bool             `firestore:"isVerified"`
	VerificationStatus      string           `firestore:"verificationStatus,omitempty"`
	VerificationRequestedAt *time.Time       `firestore:"verificationRequestedAt,omitempty"`
	VerifiedAt              *time.Time       `firestore:"verifiedAt,omitempty"`
	VerifiedBy              string           `firestore:"verifiedByAdmin,omitempty"`
	LastDonated             *time.Time       `firestore:"lastDonated,omitempty"`
	LastConsentAgreedAt     *time.Time       `firestore:"lastConsentAgreedAt,omitempty"`
	LastActive              *time.Time       `firestore:"lastActive,omitempty"`
	LivesSaved              int              `firestore:"livesSaved"`
	BloodStock              map[string]int64 `firestore:"bloodStock,omitempty"`
	Location                *geoDoc          `firestore:"location,omitempty"`
	CenterSlug              string           `firestore:"centerSlug,omitempty"`
	CreatedAt               time.Time        `firestore:"createdAt,serverTimestamp"`
	UpdatedAt               time.Time        `firestore:"updatedAt,serverTimestamp"`
}

type requestDoc struct {
	PatientID       string           `firestore:"patientId"`
	PatientName     string           `firestore:"patientName"`
	BloodGroup      string           `firestore:"bloodGroup"`
	Urgency         string           `firestore:"urgency"`
	Hospital        string           `firestore:"hospital,omitempty"`
	Notes           string           `firestore:"notes,omitempty"`
	Status          string           `firestore:"status"`
	Location        *geoDoc          `firestore:"location,omitempty"`
	LiveLocation    *liveLocationDoc `firestore:"liveLocation,omitempty"`
	DonorID         string           `firestore:"donorId,omitempty"`
	DonorName       string           `firestore:"donorName,omitempty"`
	DonorPhone      string           `firestore:"donorPhone,omitempty"`
	AcceptedAt      *time.Time       `firestore:"acceptedAt,omitempty"`
	ConsentGiven    bool             `firestore:"consentGiven"`
	ConsentAt       *time.Time       `firestore:"consentTimestamp,omitempty"`
	PickupCode      string           `firestore:"pickupCode,omitempty"`
	FulfillmentType string           `firestore:"fulfillmentType,omitempty"`
	VerifiedBy      string           `firestore:"verifiedBy,omitempty"`
	CreatedAt       time.Time        `firestore:"createdAt,serverTimestamp"`
	UpdatedAt       time.Time        `firestore:"updatedAt,serverTimestamp"`
	CompletedAt     *time.Time       `firestore:"completedAt,omitempty"`
	ClosedAt        *time.Time       `firestore:"closedAt,omitempty"`
}

type messageDoc struct {
	SenderID   string    `firestore:"senderId"`
	SenderName string    `firestore:"senderName"`
	Text       string    `firestore:"text"`
	Type       string    `firestore:"type"`
	Location   *geoDoc   `firestore:"location,omitempty"`
	PickupCode string    `firestore:"pickupCode,omitempty"`
	CreatedAt  time.Time `firestore:"createdAt,serverTimestamp"`
}

type donationDoc struct {
	RequestID   string    `firestore:"requestId"`
	PatientName string    `firestore:"patientName"`
	BloodGroup  string    `firestore:"bloodGroup"`
	Location    *geoDoc   `firestore:"location,omitempty"`
	CompletedAt time.Time `firestore:"completedAt,serverTimestamp"`
	Status      string    `firestore:"status"`
}

type declarationDoc struct {
	RequestID string    `firestore:"requestId,omitempty"`
	Items     []string  `firestore:"items"`
	CreatedAt time.Time `firestore:"createdAt,serverTimestamp"`
}

func toGeoDoc(p *domain.GeoPoint) *geoDoc {
	if p == nil {
		return nil
	}
	return &geoDoc{Lat: p.Lat, Lng: p.Lng}
}

func (g *geoDoc) toDomain() *domain.GeoPoint {
	if g == nil {
		return nil
	}
	return &domain.GeoPoint{Lat: g.Lat, Lng: g.Lng}
}

func newUserDoc(u *domain.User) userDoc {
	// The role field is stored as null until a role is chosen.
	var role *string
	if u.Role != domain.RoleUnset {
		r := string(u.Role)
		role = &r
	}
	var stock map[string]int64
	if len(u.BloodStock) > 0 {
		stock = make(map[string]int64, len(u.BloodStock))
		for g, n := range u.BloodStock {
			stock[string(g)] = int64(n)
		}
	}
	return userDoc{
		Email:                   u.Email,
		DisplayName:             u.DisplayName,
		PhoneNumber:             u.PhoneNumber,
		Role:                    role,
		BloodGroup:              string(u.BloodGroup),
		Gender:                  u.Gender,
		Age:                     u.Age,
		Weight:                  u.Weight,
		IsAvailable:             u.IsAvailable,
		IsVerified:              u.IsVerified,
		VerificationStatus:      string(u.VerificationStatus),
		VerificationRequestedAt: u.VerificationRequestedAt,
		VerifiedAt:              u.VerifiedAt,
		VerifiedBy:              u.VerifiedBy,
		LastDonated:             u.LastDonated,
		LastConsentAgreedAt:     u.LastConsentAgreedAt,
		LastActive:              u.LastActive,
		LivesSaved:              u.LivesSaved,
		BloodStock:              stock,
		Location:                toGeoDoc(u.Location),
		CenterSlug:              u.CenterSlug,
	}
}

func (d *userDoc) toDomain(id string) domain.User {
	u := domain.User{
		ID:                      id,
		Email:                   d.Email,
		DisplayName:             d.DisplayName,
		PhoneNumber:             d.PhoneNumber,
		BloodGroup:              domain.BloodGroup(d.BloodGroup),
		Gender:                  d.Gender,
		Age:                     d.Age,
		Weight:                  d.Weight,
		IsAvailable:             d.IsAvailable,
		IsVerified:              d.IsVerified,
		VerificationStatus:      domain.VerificationStatus(d.VerificationStatus),
		VerificationRequestedAt: d.VerificationRequestedAt,
		VerifiedAt:              d.VerifiedAt,
		VerifiedBy:              d.VerifiedBy,
		LastDonated:             d.LastDonated,
		LastConsentAgreedAt:     d.LastConsentAgreedAt,
		LastActive:              d.LastActive,
		LivesSaved:              d.LivesSaved,
		Location:                d.Location.toDomain(),
		CenterSlug:              d.CenterSlug,
		CreatedAt:               d.CreatedAt,
		UpdatedAt:               d.UpdatedAt,
	}
	if d.Role != nil {
		u.Role = domain.Role(*d.Role)
	}
	if len(d.BloodStock) > 0 {
		u.BloodStock = make(domain.Stock, len(d.BloodStock))
		for g, n := range d.BloodStock {
			u.BloodStock[domain.BloodGroup(g)] = int(n)
		}
	}
	return u
}

func (d *requestDoc) toDomain(id string) domain.Request {
	r := domain.Request{
		ID:              id,
		PatientID:       d.PatientID,
		PatientName:     d.PatientName,
		BloodGroup:      domain.BloodGroup(d.BloodGroup),
		Urgency:         domain.Urgency(d.Urgency),
		Hospital:        d.Hospital,
		Notes:           d.Notes,
		Status:          domain.RequestStatus(d.Status),
		Location:        d.Location.toDomain(),
		DonorID:         d.DonorID,
		DonorName:       d.DonorName,
		DonorPhone:      d.DonorPhone,
		AcceptedAt:      d.AcceptedAt,
		ConsentGiven:    d.ConsentGiven,
		ConsentAt:       d.ConsentAt,
		PickupCode:      d.PickupCode,
		FulfillmentType: domain.FulfillmentType(d.FulfillmentType),
		VerifiedBy:      d.VerifiedBy,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
		CompletedAt:     d.CompletedAt,
		ClosedAt:        d.ClosedAt,
	}
	if d.LiveLocation != nil {
		r.LiveLocation = &domain.LiveLocation{
			Lat:       d.LiveLocation.Lat,
			Lng:       d.LiveLocation.Lng,
			UpdatedAt: d.LiveLocation.UpdatedAt,
			SharerID:  d.LiveLocation.SharerID,
		}
	}
	return r
}

func (d *messageDoc) toDomain(id, requestID string) domain.Message {
	return domain.Message{
		ID:         id,
		RequestID:  requestID,
		SenderID:   d.SenderID,
		SenderName: d.SenderName,
		Text:       d.Text,
		Type:       domain.MessageType(d.Type),
		Location:   d.Location.toDomain(),
		PickupCode: d.PickupCode,
		CreatedAt:  d.CreatedAt,
	}
}

func (d *donationDoc) toDomain(id, donorID string) domain.Donation {
	return domain.Donation{
		ID:          id,
		DonorID:     donorID,
		PatientName: d.PatientName,
		BloodGroup:  domain.BloodGroup(d.BloodGroup),
		Location:    d.Location.toDomain(),
		CompletedAt: d.CompletedAt,
		Status:      domain.RequestStatus(d.Status),
	}
}
