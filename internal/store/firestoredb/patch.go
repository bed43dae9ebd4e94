// File: internal/store/firestoredb/patch.go
package firestoredb

import (
	"cloud.google.com/go/firestore"

	"lifelink_backend/internal/domain"
	"lifelink_backend/internal/store"
)

func userUpdates(p store.UserPatch) []firestore.Update {
	ups := []firestore.Update{{Path: "updatedAt", Value: firestore.ServerTimestamp}}
	add := func(path string, v interface{}) {
		ups = append(ups, firestore.Update{Path: path, Value: v})
	}
	if p.Email != nil {
		add("email", *p.Email)
	}
	if p.DisplayName != nil {
		add("displayName", *p.DisplayName)
	}
	if p.PhoneNumber != nil {
		add("phoneNumber", *p.PhoneNumber)
	}
	if p.Role != nil {
		if *p.Role == domain.RoleUnset {
			add("role", nil)
		} else {
			add("role", string(*p.Role))
		}
	}
	if p.BloodGroup != nil {
		add("bloodGroup", string(*p.BloodGroup))
	}
	if p.Gender != nil {
		add("gender", *p.Gender)
	}
	if p.Age != nil {
		add("age", *p.Age)
	}
	if p.Weight != nil {
		add("weight", *p.Weight)
	}
	if p.IsAvailable != nil {
		add("isAvailable", *p.IsAvailable)
	}
	if p.IsVerified != nil {
		add("isVerified", *p.IsVerified)
	}
	if p.VerificationStatus != nil {
		add("verificationStatus", string(*p.VerificationStatus))
	}
	if p.VerifiedBy != nil {
		add("verifiedByAdmin", *p.VerifiedBy)
	}
	if p.Location != nil {
		add("location", map[string]interface{}{"lat": p.Location.Lat, "lng": p.Location.Lng})
	}
	if p.CenterSlug != nil {
		add("centerSlug", *p.CenterSlug)
	}
	for g, units := range p.BloodStock {
		// Blood group names contain '+' and '-', which dotted paths reject.
		ups = append(ups, firestore.Update{FieldPath: firestore.FieldPath{"bloodStock", string(g)}, Value: units})
	}
	if p.StampCreatedAt {
		add("createdAt", firestore.ServerTimestamp)
	}
	if p.StampLastDonated {
		add("lastDonated", firestore.ServerTimestamp)
	}
	if p.StampLastConsentAgreed {
		add("lastConsentAgreedAt", firestore.ServerTimestamp)
	}
	if p.StampLastActive {
		add("lastActive", firestore.ServerTimestamp)
	}
	if p.StampVerificationRequestedAt {
		add("verificationRequestedAt", firestore.ServerTimestamp)
	}
	if p.StampVerifiedAt {
		add("verifiedAt", firestore.ServerTimestamp)
	}
	return ups
}

// userMerge renders a patch as the nested map a merging Set expects.
func userMerge(p store.UserPatch) map[string]interface{} {
	m := make(map[string]interface{})
	for _, u := range userUpdates(p) {
		if u.FieldPath != nil {
			stock, _ := m["bloodStock"].(map[string]interface{})
			if stock == nil {
				stock = make(map[string]interface{})
				m["bloodStock"] = stock
			}
			stock[u.FieldPath[1]] = u.Value
			continue
		}
		m[u.Path] = u.Value
	}
	return m
}

func requestUpdates(p store.RequestPatch) []firestore.Update {
	ups := []firestore.Update{{Path: "updatedAt", Value: firestore.ServerTimestamp}}
	add := func(path string, v interface{}) {
		ups = append(ups, firestore.Update{Path: path, Value: v})
	}
	if p.Status != nil {
		add("status", string(*p.Status))
	}
	if p.DonorID != nil {
		add("donorId", *p.DonorID)
	}
	if p.DonorName != nil {
		add("donorName", *p.DonorName)
	}
	if p.DonorPhone != nil {
		add("donorPhone", *p.DonorPhone)
	}
	if p.ConsentGiven != nil {
		add("consentGiven", *p.ConsentGiven)
	}
	if p.PickupCode != nil {
		add("pickupCode", *p.PickupCode)
	}
	if p.FulfillmentType != nil {
		add("fulfillmentType", string(*p.FulfillmentType))
	}
	if p.VerifiedBy != nil {
		add("verifiedBy", *p.VerifiedBy)
	}
	if p.LiveLocation != nil {
		add("liveLocation", map[string]interface{}{
			"lat":       p.LiveLocation.Lat,
			"lng":       p.LiveLocation.Lng,
			"sharerId":  p.LiveLocation.SharerID,
			"updatedAt": firestore.ServerTimestamp,
		})
	}
	if p.StampAcceptedAt {
		add("acceptedAt", firestore.ServerTimestamp)
	}
	if p.StampConsentAt {
		add("consentTimestamp", firestore.ServerTimestamp)
	}
	if p.StampCompletedAt {
		add("completedAt", firestore.ServerTimestamp)
	}
	if p.StampClosedAt {
		add("closedAt", firestore.ServerTimestamp)
	}
	return ups
}
