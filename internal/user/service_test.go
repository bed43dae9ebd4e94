package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lifelink_backend/internal/common"
	"lifelink_backend/internal/domain"
	"lifelink_backend/internal/store"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *mockRepository) CreateUser(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockRepository) UpdateUser(ctx context.Context, id string, patch store.UserPatch) error {
	return m.Called(ctx, id, patch).Error(0)
}

func (m *mockRepository) MergeUser(ctx context.Context, id string, patch store.UserPatch) error {
	return m.Called(ctx, id, patch).Error(0)
}

func (m *mockRepository) ListUsers(ctx context.Context, q store.UserQuery) ([]domain.User, error) {
	args := m.Called(ctx, q)
	users, _ := args.Get(0).([]domain.User)
	return users, args.Error(1)
}

func (m *mockRepository) ListDonations(ctx context.Context, donorID string) ([]domain.Donation, error) {
	args := m.Called(ctx, donorID)
	d, _ := args.Get(0).([]domain.Donation)
	return d, args.Error(1)
}

func (m *mockRepository) ListRequests(ctx context.Context, q store.RequestQuery) ([]domain.Request, error) {
	args := m.Called(ctx, q)
	r, _ := args.Get(0).([]domain.Request)
	return r, args.Error(1)
}

type recordingIndexer struct {
	indexed []string
}

func (r *recordingIndexer) IndexUser(_ context.Context, u *domain.User) error {
	r.indexed = append(r.indexed, u.ID)
	return nil
}

func newTestService(repo Repository) (*ServiceImplementation, *recordingIndexer) {
	idx := &recordingIndexer{}
	svc := NewService(repo, idx, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) }
	return svc, idx
}

var anyCtx = mock.Anything

func TestEnsureProfile_Existing(t *testing.T) {
	repo := &mockRepository{}
	existing := &domain.User{ID: "u1", Role: domain.RoleDonor}
	repo.On("GetUser", anyCtx, "u1").Return(existing, nil)

	svc, _ := newTestService(repo)
	u, err := svc.EnsureProfile(context.Background(), Identity{UID: "u1"})
	require.NoError(t, err)
	assert.Same(t, existing, u)
	repo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestEnsureProfile_CreatesDefaultWhenMissing(t *testing.T) {
	repo := &mockRepository{}
	repo.On("GetUser", anyCtx, "u1").Return(nil, common.ErrNotFound)
	repo.On("CreateUser", anyCtx, mock.MatchedBy(func(u *domain.User) bool {
		return u.ID == "u1" && u.Role == domain.RoleUnset && u.IsAvailable && u.DisplayName == "jane"
	})).Return(nil)

	svc, idx := newTestService(repo)
	u, err := svc.EnsureProfile(context.Background(), Identity{UID: "u1", Email: "jane@example.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUnset, u.Role)
	assert.True(t, u.IsAvailable)
	assert.Equal(t, []string{"u1"}, idx.indexed)
	repo.AssertExpectations(t)
}

func TestEnsureProfile_ForbiddenReadFallsBackToBlindWrite(t *testing.T) {
	repo := &mockRepository{}
	repo.On("GetUser", anyCtx, "u1").Return(nil, common.ErrForbidden.WithDetails("rules"))
	repo.On("MergeUser", anyCtx, "u1", mock.MatchedBy(func(p store.UserPatch) bool {
		return p.IsAvailable != nil && *p.IsAvailable && p.StampCreatedAt && p.Role == nil
	})).Return(nil)

	svc, _ := newTestService(repo)
	u, err := svc.EnsureProfile(context.Background(), Identity{UID: "u1", Name: "Jane Doe"})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", u.DisplayName)
	repo.AssertExpectations(t)
}

func TestEnsureProfile_BlindWriteFailureStillReturnsFallback(t *testing.T) {
	repo := &mockRepository{}
	repo.On("GetUser", anyCtx, "u1").Return(nil, common.ErrNotFound)
	repo.On("CreateUser", anyCtx, mock.Anything).Return(common.ErrForbidden)
	repo.On("MergeUser", anyCtx, "u1", mock.Anything).Return(common.ErrForbidden)

	svc, _ := newTestService(repo)
	u, err := svc.EnsureProfile(context.Background(), Identity{UID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
}

func TestEnsureProfile_OtherErrorsPropagate(t *testing.T) {
	repo := &mockRepository{}
	boom := errors.New("boom")
	repo.On("GetUser", anyCtx, "u1").Return(nil, boom)

	svc, _ := newTestService(repo)
	_, err := svc.EnsureProfile(context.Background(), Identity{UID: "u1"})
	assert.ErrorIs(t, err, boom)
}

func TestUpdateProfile_EnforcesMinimums(t *testing.T) {
	repo := &mockRepository{}
	repo.On("GetUser", anyCtx, "donor").Return(&domain.User{ID: "donor", Role: domain.RoleDonor}, nil)
	svc, _ := newTestService(repo)

	_, err := svc.UpdateProfile(context.Background(), "donor", UpdateProfileRequest{Age: store.Ptr(17)})
	assert.ErrorIs(t, err, common.ErrUnprocessableEntity)

	_, err = svc.UpdateProfile(context.Background(), "donor", UpdateProfileRequest{Weight: store.Ptr(49.5)})
	assert.ErrorIs(t, err, common.ErrUnprocessableEntity)

	bad := domain.BloodGroup("C+")
	_, err = svc.UpdateProfile(context.Background(), "donor", UpdateProfileRequest{BloodGroup: &bad})
	apiErr, ok := common.IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)

	repo.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateProfile_AdminGetsCenterSlug(t *testing.T) {
	repo := &mockRepository{}
	admin := &domain.User{ID: "bank", Role: domain.RoleAdmin}
	repo.On("GetUser", anyCtx, "bank").Return(admin, nil)
	repo.On("UpdateUser", anyCtx, "bank", mock.MatchedBy(func(p store.UserPatch) bool {
		return p.DisplayName != nil && *p.DisplayName == "City Blood Bank" &&
			p.CenterSlug != nil && *p.CenterSlug == "city-blood-bank"
	})).Return(nil)

	svc, idx := newTestService(repo)
	_, err := svc.UpdateProfile(context.Background(), "bank", UpdateProfileRequest{DisplayName: store.Ptr("  City Blood Bank ")})
	require.NoError(t, err)
	assert.Equal(t, []string{"bank"}, idx.indexed)
	repo.AssertExpectations(t)
}

func TestRequestVerification(t *testing.T) {
	t.Run("incomplete profile lists gaps", func(t *testing.T) {
		repo := &mockRepository{}
		repo.On("GetUser", anyCtx, "d").Return(&domain.User{ID: "d", Role: domain.RoleDonor, Age: 30}, nil)
		svc, _ := newTestService(repo)

		_, err := svc.RequestVerification(context.Background(), "d")
		apiErr, ok := common.IsAPIError(err)
		require.True(t, ok)
		assert.Equal(t, common.ErrUnprocessableEntity.Code, apiErr.Code)
		details := apiErr.Details.(map[string]interface{})
		assert.ElementsMatch(t, []string{"phoneNumber", "bloodGroup", "weight"}, details["missing"])
	})

	t.Run("complete profile is marked requested", func(t *testing.T) {
		repo := &mockRepository{}
		complete := &domain.User{ID: "d", Role: domain.RoleDonor, Age: 30, Weight: 70, BloodGroup: domain.BloodGroupOPos, PhoneNumber: "555"}
		repo.On("GetUser", anyCtx, "d").Return(complete, nil)
		repo.On("UpdateUser", anyCtx, "d", store.UserPatch{
			VerificationStatus:           store.Ptr(domain.VerificationRequested),
			StampVerificationRequestedAt: true,
		}).Return(nil)
		svc, _ := newTestService(repo)

		_, err := svc.RequestVerification(context.Background(), "d")
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("already verified", func(t *testing.T) {
		repo := &mockRepository{}
		repo.On("GetUser", anyCtx, "d").Return(&domain.User{ID: "d", Role: domain.RoleDonor, IsVerified: true}, nil)
		svc, _ := newTestService(repo)

		_, err := svc.RequestVerification(context.Background(), "d")
		assert.ErrorIs(t, err, common.ErrConflict)
	})
}

func TestVerifyAndReject(t *testing.T) {
	pending := &domain.User{ID: "d", VerificationStatus: domain.VerificationRequested}

	repo := &mockRepository{}
	repo.On("GetUser", anyCtx, "d").Return(pending, nil)
	repo.On("UpdateUser", anyCtx, "d", mock.MatchedBy(func(p store.UserPatch) bool {
		return *p.IsVerified && *p.VerificationStatus == domain.VerificationVerified && *p.VerifiedBy == "bank" && p.StampVerifiedAt
	})).Return(nil).Once()
	repo.On("UpdateUser", anyCtx, "d", mock.MatchedBy(func(p store.UserPatch) bool {
		return !*p.IsVerified && *p.VerificationStatus == domain.VerificationRejected && !p.StampVerifiedAt
	})).Return(nil).Once()
	svc, _ := newTestService(repo)

	_, err := svc.VerifyUser(context.Background(), "bank", "d")
	require.NoError(t, err)
	_, err = svc.RejectUser(context.Background(), "bank", "d")
	require.NoError(t, err)
	repo.AssertExpectations(t)

	_, err = svc.VerifyUser(context.Background(), "d", "d")
	assert.ErrorIs(t, err, common.ErrForbidden)

	idle := &mockRepository{}
	idle.On("GetUser", anyCtx, "x").Return(&domain.User{ID: "x"}, nil)
	svc, _ = newTestService(idle)
	_, err = svc.VerifyUser(context.Background(), "bank", "x")
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestDonationsReceived_SortedByCompletion(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(48 * time.Hour)
	repo := &mockRepository{}
	repo.On("ListRequests", anyCtx, store.RequestQuery{
		PatientID: "p",
		Statuses:  []domain.RequestStatus{domain.StatusCompleted},
	}).Return([]domain.Request{
		{ID: "old", CompletedAt: &t1},
		{ID: "new", CompletedAt: &t2},
	}, nil)
	svc, _ := newTestService(repo)

	got, err := svc.DonationsReceived(context.Background(), "p")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].ID)
}

func TestCenterStock(t *testing.T) {
	repo := &mockRepository{}
	repo.On("ListUsers", anyCtx, store.UserQuery{Role: domain.RoleAdmin}).Return([]domain.User{
		{ID: "a", DisplayName: "Other", CenterSlug: "other", Role: domain.RoleAdmin},
		{ID: "b", DisplayName: "City Bank", CenterSlug: "city-bank", Role: domain.RoleAdmin,
			BloodStock: domain.Stock{domain.BloodGroupONeg: 3}},
	}, nil)
	svc, _ := newTestService(repo)

	resp, err := svc.CenterStock(context.Background(), "city-bank")
	require.NoError(t, err)
	assert.Equal(t, "City Bank", resp.Name)
	assert.Len(t, resp.Stock, len(domain.BloodGroups))
	assert.Equal(t, 3, resp.Stock[domain.BloodGroupONeg])
	assert.Equal(t, 0, resp.Stock[domain.BloodGroupAPos])

	_, err = svc.CenterStock(context.Background(), "nowhere")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestEligibilityUsesGenderCooldown(t *testing.T) {
	last := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := &mockRepository{}
	repo.On("GetUser", anyCtx, "f").Return(&domain.User{ID: "f", Gender: "Female", LastDonated: &last}, nil)
	repo.On("GetUser", anyCtx, "m").Return(&domain.User{ID: "m", Gender: "male", LastDonated: &last}, nil)
	svc, _ := newTestService(repo)

	f, err := svc.Eligibility(context.Background(), "f")
	require.NoError(t, err)
	m, err := svc.Eligibility(context.Background(), "m")
	require.NoError(t, err)

	assert.False(t, f.Eligible)
	assert.True(t, m.Eligible)
}
