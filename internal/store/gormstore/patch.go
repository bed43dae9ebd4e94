// File: internal/store/gormstore/patch.go
package gormstore

import (
	"time"

	"lifelink_backend/internal/store"
)

func userUpdates(p store.UserPatch, now time.Time) map[string]interface{} {
	m := map[string]interface{}{"updated_at": now}
	if p.Email != nil {
		m["email"] = *p.Email
	}
	if p.DisplayName != nil {
		m["display_name"] = *p.DisplayName
	}
	if p.PhoneNumber != nil {
		m["phone_number"] = *p.PhoneNumber
	}
	if p.Role != nil {
		m["role"] = string(*p.Role)
	}
	if p.BloodGroup != nil {
		m["blood_group"] = string(*p.BloodGroup)
	}
	if p.Gender != nil {
		m["gender"] = *p.Gender
	}
	if p.Age != nil {
		m["age"] = *p.Age
	}
	if p.Weight != nil {
		m["weight"] = *p.Weight
	}
	if p.IsAvailable != nil {
		m["is_available"] = *p.IsAvailable
	}
	if p.IsVerified != nil {
		m["is_verified"] = *p.IsVerified
	}
	if p.VerificationStatus != nil {
		m["verification_status"] = string(*p.VerificationStatus)
	}
	if p.VerifiedBy != nil {
		m["verified_by"] = *p.VerifiedBy
	}
	if p.Location != nil {
		m["lat"] = p.Location.Lat
		m["lng"] = p.Location.Lng
	}
	if p.CenterSlug != nil {
		m["center_slug"] = *p.CenterSlug
	}
	if p.StampCreatedAt {
		m["created_at"] = now
	}
	if p.StampLastDonated {
		m["last_donated"] = now
	}
	if p.StampLastConsentAgreed {
		m["last_consent_agreed_at"] = now
	}
	if p.StampLastActive {
		m["last_active"] = now
	}
	if p.StampVerificationRequestedAt {
		m["verification_requested_at"] = now
	}
	if p.StampVerifiedAt {
		m["verified_at"] = now
	}
	return m
}

// applyUserPatch builds the row a merge creates when no profile exists yet.
func applyUserPatch(id string, p store.UserPatch, now time.Time) userRow {
	row := userRow{ID: id, CreatedAt: now, UpdatedAt: now}
	if p.Email != nil {
		row.Email = *p.Email
	}
	if p.DisplayName != nil {
		row.DisplayName = *p.DisplayName
	}
	if p.PhoneNumber != nil {
		row.PhoneNumber = *p.PhoneNumber
	}
	if p.Role != nil {
		row.Role = string(*p.Role)
	}
	if p.BloodGroup != nil {
		row.BloodGroup = string(*p.BloodGroup)
	}
	if p.Gender != nil {
		row.Gender = *p.Gender
	}
	if p.Age != nil {
		row.Age = *p.Age
	}
	if p.Weight != nil {
		row.Weight = *p.Weight
	}
	if p.IsAvailable != nil {
		row.IsAvailable = *p.IsAvailable
	}
	if p.IsVerified != nil {
		row.IsVerified = *p.IsVerified
	}
	if p.VerificationStatus != nil {
		row.VerificationStatus = string(*p.VerificationStatus)
	}
	if p.VerifiedBy != nil {
		row.VerifiedBy = *p.VerifiedBy
	}
	row.Lat, row.Lng = coords(p.Location)
	if p.CenterSlug != nil {
		row.CenterSlug = *p.CenterSlug
	}
	stamp := func(flag bool) *time.Time {
		if !flag {
			return nil
		}
		t := now
		return &t
	}
	row.LastDonated = stamp(p.StampLastDonated)
	row.LastConsentAgreedAt = stamp(p.StampLastConsentAgreed)
	row.LastActive = stamp(p.StampLastActive)
	row.VerificationRequestedAt = stamp(p.StampVerificationRequestedAt)
	row.VerifiedAt = stamp(p.StampVerifiedAt)
	return row
}

func requestUpdates(p store.RequestPatch, now time.Time) map[string]interface{} {
	m := map[string]interface{}{"updated_at": now}
	if p.Status != nil {
		m["status"] = string(*p.Status)
	}
	if p.DonorID != nil {
		m["donor_id"] = *p.DonorID
	}
	if p.DonorName != nil {
		m["donor_name"] = *p.DonorName
	}
	if p.DonorPhone != nil {
		m["donor_phone"] = *p.DonorPhone
	}
	if p.ConsentGiven != nil {
		m["consent_given"] = *p.ConsentGiven
	}
	if p.PickupCode != nil {
		m["pickup_code"] = *p.PickupCode
	}
	if p.FulfillmentType != nil {
		m["fulfillment_type"] = string(*p.FulfillmentType)
	}
	if p.VerifiedBy != nil {
		m["verified_by"] = *p.VerifiedBy
	}
	if p.LiveLocation != nil {
		m["live_lat"] = p.LiveLocation.Lat
		m["live_lng"] = p.LiveLocation.Lng
		m["live_sharer_id"] = p.LiveLocation.SharerID
		m["live_updated_at"] = now
	}
	if p.StampAcceptedAt {
		m["accepted_at"] = now
	}
	if p.StampConsentAt {
		m["consent_at"] = now
	}
	if p.StampCompletedAt {
		m["completed_at"] = now
	}
	if p.StampClosedAt {
		m["closed_at"] = now
	}
	return m
}
