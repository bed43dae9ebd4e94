// File: internal/user/service.go
package user

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"lifelink_backend/internal/common"
	"lifelink_backend/internal/domain"
	"lifelink_backend/internal/rules"
	"lifelink_backend/internal/store"
)

// Service defines the profile operations.
type Service interface {
	EnsureProfile(ctx context.Context, id Identity) (*domain.User, error)
	GetProfile(ctx context.Context, uid string) (*ProfileResponse, error)
	UpdateProfile(ctx context.Context, uid string, req UpdateProfileRequest) (*domain.User, error)
	RequestVerification(ctx context.Context, uid string) (*domain.User, error)
	VerifyUser(ctx context.Context, adminID, uid string) (*domain.User, error)
	RejectUser(ctx context.Context, adminID, uid string) (*domain.User, error)
	Eligibility(ctx context.Context, uid string) (rules.Eligibility, error)
	Declaration(ctx context.Context, uid string) ([]rules.DeclarationSection, error)
	DonationsMade(ctx context.Context, uid string) ([]domain.Donation, error)
	DonationsReceived(ctx context.Context, uid string) ([]domain.Request, error)
	CenterStock(ctx context.Context, slug string) (*CenterStockResponse, error)
}

// ServiceImplementation implements Service.
type ServiceImplementation struct {
	repo     Repository
	indexer  Indexer
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

var _ Service = (*ServiceImplementation)(nil)

// NewService creates a new profile service. indexer may be nil.
func NewService(repo Repository, indexer Indexer, logger *zap.Logger) *ServiceImplementation {
	return &ServiceImplementation{
		repo:     repo,
		indexer:  indexer,
		validate: common.NewValidator(),
		logger:   logger.Named("user_service"),
		now:      time.Now,
	}
}

// EnsureProfile returns the caller's profile, creating a default one when it
// is missing. When the store refuses the read, a default profile is written
// blindly and returned, so an authenticated caller always has a profile.
func (s *ServiceImplementation) EnsureProfile(ctx context.Context, id Identity) (*domain.User, error) {
	u, err := s.repo.GetUser(ctx, id.UID)
	if err == nil {
		return u, nil
	}

	switch {
	case errors.Is(err, common.ErrNotFound):
		s.logger.Info("Profile missing, creating default", zap.String("uid", id.UID))
		def := defaultProfile(id)
		if err := s.repo.CreateUser(ctx, def); err != nil {
			if errors.Is(err, common.ErrForbidden) {
				return s.blindWrite(ctx, id), nil
			}
			s.logger.Error("Failed to create default profile", zap.String("uid", id.UID), zap.Error(err))
			return nil, err
		}
		s.reindex(ctx, def)
		return def, nil
	case errors.Is(err, common.ErrForbidden):
		s.logger.Warn("Profile read denied, writing default profile", zap.String("uid", id.UID), zap.Error(err))
		return s.blindWrite(ctx, id), nil
	default:
		s.logger.Error("Failed to load profile", zap.String("uid", id.UID), zap.Error(err))
		return nil, err
	}
}

func (s *ServiceImplementation) blindWrite(ctx context.Context, id Identity) *domain.User {
	if err := s.repo.MergeUser(ctx, id.UID, defaultPatch(id)); err != nil {
		s.logger.Warn("Blind profile write failed, using fallback profile", zap.String("uid", id.UID), zap.Error(err))
	}
	return defaultProfile(id)
}

func (s *ServiceImplementation) GetProfile(ctx context.Context, uid string) (*ProfileResponse, error) {
	u, err := s.repo.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	return &ProfileResponse{User: u, Eligibility: rules.DonationEligibility(u.LastDonated, u.Gender, s.now())}, nil
}

// UpdateProfile applies a partial edit. Donors and patients must meet the
// minimum age and weight for any value they supply.
func (s *ServiceImplementation) UpdateProfile(ctx context.Context, uid string, req UpdateProfileRequest) (*domain.User, error) {
	if err := common.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}
	u, err := s.repo.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	isAdmin := u.Role == domain.RoleAdmin
	if !isAdmin {
		if req.Age != nil && *req.Age < MinDonorAge {
			return nil, common.ErrUnprocessableEntity.WithDetails(fmt.Sprintf("You must be at least %d years old.", MinDonorAge))
		}
		if req.Weight != nil && *req.Weight < MinDonorWeightKg {
			return nil, common.ErrUnprocessableEntity.WithDetails(fmt.Sprintf("Weight must be at least %d kg.", MinDonorWeightKg))
		}
	}
	if isAdmin && req.DisplayName != nil && strings.TrimSpace(*req.DisplayName) == "" {
		return nil, common.ErrUnprocessableEntity.WithDetails("Blood banks need a center name.")
	}

	if err := s.repo.UpdateUser(ctx, uid, req.toPatch(isAdmin)); err != nil {
		return nil, err
	}
	updated, err := s.repo.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	s.reindex(ctx, updated)
	return updated, nil
}

// profileGaps lists what keeps u from asking for verification.
func profileGaps(u *domain.User) []string {
	var gaps []string
	if strings.TrimSpace(u.PhoneNumber) == "" {
		gaps = append(gaps, "phoneNumber")
	}
	if u.Role == domain.RoleAdmin {
		if strings.TrimSpace(u.DisplayName) == "" {
			gaps = append(gaps, "displayName")
		}
		return gaps
	}
	if !u.BloodGroup.Valid() {
		gaps = append(gaps, "bloodGroup")
	}
	if u.Age < MinDonorAge {
		gaps = append(gaps, "age")
	}
	if u.Weight < MinDonorWeightKg {
		gaps = append(gaps, "weight")
	}
	return gaps
}

func (s *ServiceImplementation) RequestVerification(ctx context.Context, uid string) (*domain.User, error) {
	u, err := s.repo.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	if u.IsVerified {
		return nil, common.ErrConflict.WithDetails("Your profile is already verified.")
	}
	if u.Role == domain.RoleUnset {
		return nil, common.ErrUnprocessableEntity.WithDetails("Choose a role before requesting verification.")
	}
	if gaps := profileGaps(u); len(gaps) > 0 {
		return nil, common.ErrUnprocessableEntity.WithDetails(map[string]interface{}{
			"message": "Complete your profile before requesting verification.",
			"missing": gaps,
		})
	}
	if err := s.repo.UpdateUser(ctx, uid, store.UserPatch{
		VerificationStatus:           store.Ptr(domain.VerificationRequested),
		StampVerificationRequestedAt: true,
	}); err != nil {
		return nil, err
	}
	s.logger.Info("Verification requested", zap.String("uid", uid))
	return s.refresh(ctx, uid)
}

func (s *ServiceImplementation) VerifyUser(ctx context.Context, adminID, uid string) (*domain.User, error) {
	return s.decide(ctx, adminID, uid, true)
}

func (s *ServiceImplementation) RejectUser(ctx context.Context, adminID, uid string) (*domain.User, error) {
	return s.decide(ctx, adminID, uid, false)
}

// decide settles a pending verification request.
func (s *ServiceImplementation) decide(ctx context.Context, adminID, uid string, approve bool) (*domain.User, error) {
	if adminID == uid {
		return nil, common.ErrForbidden.WithDetails("You cannot verify your own profile.")
	}
	u, err := s.repo.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	if u.VerificationStatus != domain.VerificationRequested {
		return nil, common.ErrConflict.WithDetails("This user has no pending verification request.")
	}

	patch := store.UserPatch{
		IsVerified:         store.Ptr(approve),
		VerificationStatus: store.Ptr(domain.VerificationRejected),
		VerifiedBy:         store.Ptr(adminID),
	}
	if approve {
		patch.VerificationStatus = store.Ptr(domain.VerificationVerified)
		patch.StampVerifiedAt = true
	}
	if err := s.repo.UpdateUser(ctx, uid, patch); err != nil {
		return nil, err
	}
	s.logger.Info("Verification decided", zap.String("uid", uid), zap.String("adminID", adminID), zap.Bool("approved", approve))
	return s.refresh(ctx, uid)
}

func (s *ServiceImplementation) refresh(ctx context.Context, uid string) (*domain.User, error) {
	u, err := s.repo.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	s.reindex(ctx, u)
	return u, nil
}

func (s *ServiceImplementation) reindex(ctx context.Context, u *domain.User) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.IndexUser(ctx, u); err != nil {
		s.logger.Warn("Failed to index profile", zap.String("uid", u.ID), zap.Error(err))
	}
}

func (s *ServiceImplementation) Eligibility(ctx context.Context, uid string) (rules.Eligibility, error) {
	u, err := s.repo.GetUser(ctx, uid)
	if err != nil {
		return rules.Eligibility{}, err
	}
	return rules.DonationEligibility(u.LastDonated, u.Gender, s.now()), nil
}

// Declaration returns the checklist that applies to the caller's gender.
func (s *ServiceImplementation) Declaration(ctx context.Context, uid string) ([]rules.DeclarationSection, error) {
	u, err := s.repo.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	return rules.DeclarationChecklist(u.Gender), nil
}

func (s *ServiceImplementation) DonationsMade(ctx context.Context, uid string) ([]domain.Donation, error) {
	return s.repo.ListDonations(ctx, uid)
}

// DonationsReceived lists the caller's completed requests, most recent
// completion first.
func (s *ServiceImplementation) DonationsReceived(ctx context.Context, uid string) ([]domain.Request, error) {
	reqs, err := s.repo.ListRequests(ctx, store.RequestQuery{
		PatientID: uid,
		Statuses:  []domain.RequestStatus{domain.StatusCompleted},
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(reqs, func(i, j int) bool {
		return completedAt(reqs[i]).After(completedAt(reqs[j]))
	})
	return reqs, nil
}

func completedAt(r domain.Request) time.Time {
	if r.CompletedAt != nil {
		return *r.CompletedAt
	}
	return r.CreatedAt
}

// CenterStock returns the public inventory of the blood bank with the given
// slug. Every blood group is listed, zero counts included.
func (s *ServiceImplementation) CenterStock(ctx context.Context, centerSlug string) (*CenterStockResponse, error) {
	admins, err := s.repo.ListUsers(ctx, store.UserQuery{Role: domain.RoleAdmin})
	if err != nil {
		return nil, err
	}
	for i := range admins {
		a := &admins[i]
		if a.CenterSlug != centerSlug {
			continue
		}
		return &CenterStockResponse{
			Name:     a.Name(),
			Slug:     a.CenterSlug,
			Phone:    a.PhoneNumber,
			Location: a.Location,
			Stock:    fullStock(a.BloodStock),
		}, nil
	}
	return nil, common.ErrNotFound.WithDetails(fmt.Sprintf("No blood bank named %q.", centerSlug))
}
