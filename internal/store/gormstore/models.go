// File: internal/store/gormstore/models.go
package gormstore

import (
	"database/sql/driver"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"lifelink_backend/internal/domain"
)

type userRow struct {
	ID                      string `gorm:"primaryKey;type:varchar(128)"`
	Email                   string `gorm:"type:varchar(255);index"`
	DisplayName             string `gorm:"type:varchar(255)"`
	PhoneNumber             string `gorm:"type:varchar(32)"`
	Role                    string `gorm:"type:varchar(16);index"`
	BloodGroup              string `gorm:"type:varchar(4)"`
	Gender                  string `gorm:"type:varchar(32)"`
	Age                     int
	Weight                  float64
	IsAvailable             bool `gorm:"not null;default:false"`
	IsVerified              bool `gorm:"not null;default:false"`
	VerificationStatus      string `gorm:"type:varchar(16)"`
	VerificationRequestedAt *time.Time
	VerifiedAt              *time.Time
	VerifiedBy              string `gorm:"type:varchar(128)"`
	LastDonated             *time.Time
	LastConsentAgreedAt     *time.Time
	LastActive              *time.Time
	LivesSaved              int `gorm:"not null;default:0"`
	Lat                     *float64
	Lng                     *float64
	CenterSlug              string    `gorm:"type:varchar(255);index"`
	CreatedAt               time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt               time.Time `gorm:"autoUpdateTime:false"`
}

func (userRow) TableName() string { return "users" }

// stockRow holds one blood group count of a stock-holding account.
type stockRow struct {
	UserID     string `gorm:"primaryKey;type:varchar(128)"`
	BloodGroup string `gorm:"primaryKey;type:varchar(4)"`
	Units      int    `gorm:"not null;default:0;check:units >= 0"`
}

func (stockRow) TableName() string { return "blood_stocks" }

type donationRow struct {
	DonorID     string `gorm:"primaryKey;type:varchar(128)"`
	ID          string `gorm:"primaryKey;type:varchar(64)"`
	PatientName string `gorm:"type:varchar(255)"`
	BloodGroup  string `gorm:"type:varchar(4)"`
	Lat         *float64
	Lng         *float64
	CompletedAt time.Time `gorm:"index"`
	Status      string    `gorm:"type:varchar(32)"`
}

func (donationRow) TableName() string { return "donations" }

type requestRow struct {
	ID              string `gorm:"primaryKey;type:varchar(64)"`
	PatientID       string `gorm:"type:varchar(128);index"`
	PatientName     string `gorm:"type:varchar(255)"`
	BloodGroup      string `gorm:"type:varchar(4)"`
	Urgency         string `gorm:"type:varchar(32)"`
	Hospital        string `gorm:"type:varchar(255)"`
	Notes           string `gorm:"type:text"`
	Status          string `gorm:"type:varchar(32);index"`
	Lat             *float64
	Lng             *float64
	LiveLat         *float64
	LiveLng         *float64
	LiveUpdatedAt   *time.Time
	LiveSharerID    string `gorm:"type:varchar(128)"`
	DonorID         string `gorm:"type:varchar(128);index"`
	DonorName       string `gorm:"type:varchar(255)"`
	DonorPhone      string `gorm:"type:varchar(32)"`
	AcceptedAt      *time.Time
	ConsentGiven    bool `gorm:"not null;default:false"`
	ConsentAt       *time.Time
	PickupCode      string `gorm:"type:varchar(6)"`
	FulfillmentType string `gorm:"type:varchar(32)"`
	VerifiedBy      string `gorm:"type:varchar(128)"`
	CreatedAt       time.Time `gorm:"index;autoCreateTime:false"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime:false"`
	CompletedAt     *time.Time
	ClosedAt        *time.Time
}

func (requestRow) TableName() string { return "requests" }

// messageRow orders messages by Seq, which follows commit order.
type messageRow struct {
	Seq        uint64 `gorm:"primaryKey;autoIncrement"`
	ID         string `gorm:"type:varchar(64);uniqueIndex"`
	RequestID  string `gorm:"type:varchar(64);index"`
	SenderID   string `gorm:"type:varchar(128)"`
	SenderName string `gorm:"type:varchar(255)"`
	Text       string `gorm:"type:text"`
	Type       string `gorm:"type:varchar(16)"`
	Lat        *float64
	Lng        *float64
	PickupCode string    `gorm:"type:varchar(6)"`
	CreatedAt  time.Time `gorm:"autoCreateTime:false"`
}

func (messageRow) TableName() string { return "messages" }

// declarationItems stores the affirmed checklist ids as a Postgres text[]
// column, and as the same array literal in a text column elsewhere.
type declarationItems []string

func (d declarationItems) Value() (driver.Value, error) {
	return pq.StringArray(d).Value()
}

func (d *declarationItems) Scan(src interface{}) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return err
	}
	*d = declarationItems(arr)
	return nil
}

func (declarationItems) GormDataType() string {
	return "text"
}

func (declarationItems) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

// declarationRow audits one self-declaration a donor submitted.
type declarationRow struct {
	ID        string           `gorm:"primaryKey;type:varchar(64)"`
	UserID    string           `gorm:"type:varchar(128);index"`
	RequestID string           `gorm:"type:varchar(64)"`
	Items     declarationItems `gorm:"not null"`
	CreatedAt time.Time        `gorm:"autoCreateTime:false"`
}

func (declarationRow) TableName() string { return "declarations" }

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&userRow{}, &stockRow{}, &donationRow{}, &requestRow{}, &messageRow{}, &declarationRow{})
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func point(lat, lng *float64) *domain.GeoPoint {
	if lat == nil || lng == nil {
		return nil
	}
	return &domain.GeoPoint{Lat: *lat, Lng: *lng}
}

func coords(p *domain.GeoPoint) (*float64, *float64) {
	if p == nil {
		return nil, nil
	}
	lat, lng := p.Lat, p.Lng
	return &lat, &lng
}

func (r *userRow) toDomain(stocks []stockRow) domain.User {
	u := domain.User{
		ID:                      r.ID,
		Email:                   r.Email,
		DisplayName:             r.DisplayName,
		PhoneNumber:             r.PhoneNumber,
		Role:                    domain.Role(r.Role),
		BloodGroup:              domain.BloodGroup(r.BloodGroup),
		Gender:                  r.Gender,
		Age:                     r.Age,
		Weight:                  r.Weight,
		IsAvailable:             r.IsAvailable,
		IsVerified:              r.IsVerified,
		VerificationStatus:      domain.VerificationStatus(r.VerificationStatus),
		VerificationRequestedAt: utcPtr(r.VerificationRequestedAt),
		VerifiedAt:              utcPtr(r.VerifiedAt),
		VerifiedBy:              r.VerifiedBy,
		LastDonated:             utcPtr(r.LastDonated),
		LastConsentAgreedAt:     utcPtr(r.LastConsentAgreedAt),
		LastActive:              utcPtr(r.LastActive),
		LivesSaved:              r.LivesSaved,
		Location:                point(r.Lat, r.Lng),
		CenterSlug:              r.CenterSlug,
		CreatedAt:               r.CreatedAt.UTC(),
		UpdatedAt:               r.UpdatedAt.UTC(),
	}
	if len(stocks) > 0 {
		u.BloodStock = make(domain.Stock, len(stocks))
		for _, s := range stocks {
			u.BloodStock[domain.BloodGroup(s.BloodGroup)] = s.Units
		}
	}
	return u
}

func newUserRow(u *domain.User) userRow {
	lat, lng := coords(u.Location)
	return userRow{
		ID:                      u.ID,
		Email:                   u.Email,
		DisplayName:             u.DisplayName,
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
		VerifiedAt:              u.VerifiedAt,
		VerifiedBy:              u.VerifiedBy,
		LastDonated:             u.LastDonated,
		LastConsentAgreedAt:     u.LastConsentAgreedAt,
		LastActive:              u.LastActive,
		LivesSaved:              u.LivesSaved,
		Lat:                     lat,
		Lng:                     lng,
		CenterSlug:              u.CenterSlug,
		CreatedAt:               u.CreatedAt,
		UpdatedAt:               u.UpdatedAt,
	}
}

func (r *requestRow) toDomain() domain.Request {
	req := domain.Request{
		ID:              r.ID,
		PatientID:       r.PatientID,
		PatientName:     r.PatientName,
		BloodGroup:      domain.BloodGroup(r.BloodGroup),
		Urgency:         domain.Urgency(r.Urgency),
		Hospital:        r.Hospital,
		Notes:           r.Notes,
		Status:          domain.RequestStatus(r.Status),
		Location:        point(r.Lat, r.Lng),
		DonorID:         r.DonorID,
		DonorName:       r.DonorName,
		DonorPhone:      r.DonorPhone,
		AcceptedAt:      utcPtr(r.AcceptedAt),
		ConsentGiven:    r.ConsentGiven,
		ConsentAt:       utcPtr(r.ConsentAt),
		PickupCode:      r.PickupCode,
		FulfillmentType: domain.FulfillmentType(r.FulfillmentType),
		VerifiedBy:      r.VerifiedBy,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
		CompletedAt:     utcPtr(r.CompletedAt),
		ClosedAt:        utcPtr(r.ClosedAt),
	}
	if r.LiveLat != nil && r.LiveLng != nil {
		live := domain.LiveLocation{Lat: *r.LiveLat, Lng: *r.LiveLng, SharerID: r.LiveSharerID}
		if r.LiveUpdatedAt != nil {
			live.UpdatedAt = r.LiveUpdatedAt.UTC()
		}
		req.LiveLocation = &live
	}
	return req
}

func (r *messageRow) toDomain() domain.Message {
	return domain.Message{
		ID:         r.ID,
		RequestID:  r.RequestID,
		SenderID:   r.SenderID,
		SenderName: r.SenderName,
		Text:       r.Text,
		Type:       domain.MessageType(r.Type),
		Location:   point(r.Lat, r.Lng),
		PickupCode: r.PickupCode,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

func (r *donationRow) toDomain() domain.Donation {
	return domain.Donation{
		ID:          r.ID,
		DonorID:     r.DonorID,
		PatientName: r.PatientName,
		BloodGroup:  domain.BloodGroup(r.BloodGroup),
		Location:    point(r.Lat, r.Lng),
		CompletedAt: r.CompletedAt.UTC(),
		Status:      domain.RequestStatus(r.Status),
	}
}
