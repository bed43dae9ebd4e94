// File: internal/store/match.go
package store

import "lifelink_backend/internal/domain"

// Matches reports whether u satisfies q.
func (q UserQuery) Matches(u *domain.User) bool {
	if q.Role != domain.RoleUnset && u.Role != q.Role {
		return false
	}
	if q.AvailableOnly && !u.IsAvailable {
		return false
	}
	if q.VerificationStatus != domain.VerificationUnset && u.VerificationStatus != q.VerificationStatus {
		return false
	}
	return true
}

// Matches reports whether r satisfies q.
func (q RequestQuery) Matches(r *domain.Request) bool {
	if q.PatientID != "" && r.PatientID != q.PatientID {
		return false
	}
	if len(q.Statuses) > 0 {
		found := false
		for _, s := range q.Statuses {
			if r.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.CreatedBefore != nil && !r.CreatedAt.Before(*q.CreatedBefore) {
		return false
	}
	return true
}
