package firestoredb

import (
	"errors"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"lifelink_backend/internal/common"
	"lifelink_backend/internal/domain"
	"lifelink_backend/internal/store"
)

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr(nil, "get", "user", "u1"))

	err := mapErr(status.Error(codes.NotFound, "no such document"), "get", "user", "u1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = mapErr(status.Error(codes.PermissionDenied, "denied"), "get", "user", "u1")
	assert.ErrorIs(t, err, common.ErrForbidden)

	err = mapErr(status.Error(codes.Aborted, "contention"), "update", "user", "u1")
	assert.ErrorIs(t, err, ErrTxAborted)
	assert.ErrorIs(t, err, common.ErrConflict)

	err = mapErr(status.Error(codes.Unavailable, "down"), "get", "user", "u1")
	assert.ErrorIs(t, err, common.ErrServiceUnavailable)

	apiErr := common.ErrBadRequest.WithDetails("bad")
	assert.Same(t, apiErr, mapErr(apiErr, "get", "user", "u1"))

	plain := errors.New("boom")
	err = mapErr(plain, "get", "user", "u1")
	assert.ErrorIs(t, err, plain)
	assert.Contains(t, err.Error(), "get user")
}

func TestUserUpdatesAlwaysStampUpdatedAt(t *testing.T) {
	ups := userUpdates(store.UserPatch{})
	if assert.Len(t, ups, 1) {
		assert.Equal(t, "updatedAt", ups[0].Path)
		assert.Equal(t, firestore.ServerTimestamp, ups[0].Value)
	}
}

func TestUserUpdatesStockUsesFieldPaths(t *testing.T) {
	ups := userUpdates(store.UserPatch{BloodStock: domain.Stock{domain.BloodGroupAPos: 4}})
	var found bool
	for _, u := range ups {
		if u.FieldPath != nil {
			assert.Equal(t, firestore.FieldPath{"bloodStock", "A+"}, u.FieldPath)
			assert.Equal(t, 4, u.Value)
			found = true
		}
	}
	assert.True(t, found)
}

func TestUserUpdatesClearsRole(t *testing.T) {
	ups := userUpdates(store.UserPatch{Role: store.Ptr(domain.RoleUnset)})
	for _, u := range ups {
		if u.Path == "role" {
			assert.Nil(t, u.Value)
			return
		}
	}
	t.Fatal("role update missing")
}

func TestUserMergeNestsStock(t *testing.T) {
	m := userMerge(store.UserPatch{
		DisplayName: store.Ptr("Asha"),
		BloodStock:  domain.Stock{domain.BloodGroupONeg: 2},
	})
	assert.Equal(t, "Asha", m["displayName"])
	assert.Equal(t, map[string]interface{}{"O-": 2}, m["bloodStock"])
	assert.Equal(t, firestore.ServerTimestamp, m["updatedAt"])
}

func TestRequestUpdatesStamps(t *testing.T) {
	ups := requestUpdates(store.RequestPatch{
		Status:           store.Ptr(domain.StatusAccepted),
		StampAcceptedAt:  true,
		StampCompletedAt: true,
	})
	paths := make(map[string]interface{})
	for _, u := range ups {
		paths[u.Path] = u.Value
	}
	assert.Equal(t, "accepted", paths["status"])
	assert.Equal(t, firestore.ServerTimestamp, paths["acceptedAt"])
	assert.Equal(t, firestore.ServerTimestamp, paths["completedAt"])
	assert.NotContains(t, paths, "closedAt")
}

func TestUserDocRoundTripKeepsUnsetRoleNull(t *testing.T) {
	d := newUserDoc(&domain.User{ID: "u1", Email: "a@example.com"})
	assert.Nil(t, d.Role)
	u := d.toDomain("u1")
	assert.Equal(t, domain.RoleUnset, u.Role)
	assert.Nil(t, u.BloodStock)

	d = newUserDoc(&domain.User{Role: domain.RoleAdmin, BloodStock: domain.Stock{domain.BloodGroupBPos: 3}})
	if assert.NotNil(t, d.Role) {
		assert.Equal(t, "admin", *d.Role)
	}
	assert.Equal(t, int64(3), d.BloodStock["B+"])
	assert.Equal(t, 3, d.toDomain("x").BloodStock.Units(domain.BloodGroupBPos))
}
