package coordination

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"lifelink_backend/internal/changefeed"
	"lifelink_backend/internal/common"
	"lifelink_backend/internal/config"
	"lifelink_backend/internal/domain"
	"lifelink_backend/internal/platform/database"
	"lifelink_backend/internal/rules"
	"lifelink_backend/internal/store"
	"lifelink_backend/internal/store/gormstore"
)

var clock = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

// EngineSuite runs every test against a fresh in-memory SQL store.
type EngineSuite struct {
	suite.Suite
	ctx    context.Context
	store  *gormstore.Store
	engine *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()
	db, err := database.NewSQLiteMemory(uuid.NewString())
	s.Require().NoError(err)
	s.Require().NoError(gormstore.Migrate(db))

	cfg := &config.Config{TxMaxAttempts: 3, DefaultLat: 12.9716, DefaultLng: 77.5946}
	s.store = gormstore.New(db, changefeed.NewBroker(zap.NewNop()), cfg, zap.NewNop())
	s.store.SetClock(func() time.Time { return clock })
	s.engine = NewEngine(s.store, cfg, zap.NewNop())
	s.engine.now = func() time.Time { return clock }
}

func (s *EngineSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *EngineSuite) seedUser(u domain.User) {
	s.Require().NoError(s.store.CreateUser(s.ctx, &u))
}

func (s *EngineSuite) user(id string) *domain.User {
	u, err := s.store.GetUser(s.ctx, id)
	s.Require().NoError(err)
	return u
}

func (s *EngineSuite) request(id string) *domain.Request {
	r, err := s.store.GetRequest(s.ctx, id)
	s.Require().NoError(err)
	return r
}

func (s *EngineSuite) seedParties() {
	s.seedUser(domain.User{ID: "patient", Email: "p@example.com", DisplayName: "Priya", Role: domain.RolePatient, BloodGroup: domain.BloodGroupBPos})
	s.seedUser(domain.User{
		ID: "donor", Email: "d@example.com", DisplayName: "Dev", PhoneNumber: "+91 90000 00000",
		Role: domain.RoleDonor, BloodGroup: domain.BloodGroupOPos, Gender: "Male",
		IsVerified: true, VerificationStatus: domain.VerificationVerified,
	})
	s.seedUser(domain.User{
		ID: "bank", Email: "bank@example.com", DisplayName: "City Blood Bank",
		Role: domain.RoleAdmin, BloodStock: domain.Stock{domain.BloodGroupBPos: 2, domain.BloodGroupOPos: 0},
	})
}

func (s *EngineSuite) broadcast(requester string, group domain.BloodGroup) *domain.Request {
	req, err := s.engine.BroadcastRequest(s.ctx, requester, BroadcastInput{BloodGroup: group, Urgency: domain.UrgencyHigh, Hospital: "General"})
	s.Require().NoError(err)
	return req
}

func fullDeclaration(gender string) []string {
	return rules.RequiredDeclarationItems(gender)
}

func (s *EngineSuite) TestBroadcastRequest() {
	s.seedParties()
	req := s.broadcast("patient", domain.BloodGroupBPos)

	s.NotEmpty(req.ID)
	got := s.request(req.ID)
	s.Equal(domain.StatusPending, got.Status)
	s.Equal("Priya", got.PatientName)
	s.Equal(&domain.GeoPoint{Lat: 12.9716, Lng: 77.5946}, got.Location)
	s.True(clock.Equal(got.CreatedAt))
}

func (s *EngineSuite) TestBroadcastRequestValidation() {
	s.seedParties()
	_, err := s.engine.BroadcastRequest(s.ctx, "patient", BroadcastInput{BloodGroup: "C+", Urgency: domain.UrgencyHigh})
	apiErr, ok := common.IsAPIError(err)
	s.Require().True(ok)
	s.Equal("VALIDATION_ERROR", apiErr.Code)

	_, err = s.engine.BroadcastRequest(s.ctx, "donor", BroadcastInput{BloodGroup: domain.BloodGroupOPos, Urgency: domain.UrgencyRoutine})
	s.ErrorIs(err, common.ErrForbidden)
}

func (s *EngineSuite) TestBroadcastUsesRequesterLocation() {
	s.seedUser(domain.User{ID: "p2", Email: "p2@example.com", Role: domain.RolePatient, Location: &domain.GeoPoint{Lat: 13.08, Lng: 80.27}})
	req := s.broadcast("p2", domain.BloodGroupAPos)
	s.Equal(&domain.GeoPoint{Lat: 13.08, Lng: 80.27}, s.request(req.ID).Location)
	s.Equal("p2@example.com", s.request(req.ID).PatientName)
}

// Scenario A.
func (s *EngineSuite) TestAcceptRequest() {
	s.seedParties()
	s.seedUser(domain.User{ID: "p-o", Email: "po@example.com", Role: domain.RolePatient})
	req := s.broadcast("p-o", domain.BloodGroupOPos)

	got, err := s.engine.AcceptRequest(s.ctx, req.ID, "donor", fullDeclaration("Male"))
	s.Require().NoError(err)
	s.Equal(domain.StatusAccepted, got.Status)
	s.Equal("donor", got.DonorID)
	s.Equal("Dev", got.DonorName)
	s.Equal("+91 90000 00000", got.DonorPhone)
	s.True(got.ConsentGiven)
	s.Require().NotNil(got.ConsentAt)
	s.Equal(domain.FulfillmentPeerDonation, got.FulfillmentType)

	donor := s.user("donor")
	s.Require().NotNil(donor.LastConsentAgreedAt)
	s.True(clock.Equal(*donor.LastConsentAgreedAt))
}

func (s *EngineSuite) TestAcceptRequestOnlyOnce() {
	s.seedParties()
	s.seedUser(domain.User{ID: "donor2", Email: "d2@example.com", Role: domain.RoleDonor, BloodGroup: domain.BloodGroupBPos})
	s.seedUser(domain.User{ID: "donor3", Email: "d3@example.com", Role: domain.RoleDonor, BloodGroup: domain.BloodGroupBPos})
	req := s.broadcast("patient", domain.BloodGroupBPos)

	_, err := s.engine.AcceptRequest(s.ctx, req.ID, "donor2", fullDeclaration(""))
	s.Require().NoError(err)
	_, err = s.engine.AcceptRequest(s.ctx, req.ID, "donor3", fullDeclaration(""))
	s.ErrorIs(err, ErrRequestUnavailable)
	s.Equal("donor2", s.request(req.ID).DonorID)
}

func (s *EngineSuite) TestConcurrentAcceptHasOneWinner() {
	s.seedParties()
	req := s.broadcast("patient", domain.BloodGroupBPos)
	donors := []string{"c1", "c2", "c3", "c4"}
	for _, id := range donors {
		s.seedUser(domain.User{ID: id, Email: id + "@example.com", Role: domain.RoleDonor, BloodGroup: domain.BloodGroupBPos})
	}

	var wg sync.WaitGroup
	errs := make([]error, len(donors))
	for i, id := range donors {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = s.engine.AcceptRequest(s.ctx, req.ID, id, fullDeclaration(""))
		}(i, id)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		s.ErrorIs(err, ErrRequestUnavailable)
	}
	s.Equal(1, winners)
}

func (s *EngineSuite) TestAcceptRequestGuards() {
	s.seedParties()
	req := s.broadcast("patient", domain.BloodGroupBPos)

	_, err := s.engine.AcceptRequest(s.ctx, req.ID, "patient", fullDeclaration(""))
	s.ErrorIs(err, common.ErrForbidden)

	_, err = s.engine.AcceptRequest(s.ctx, req.ID, "donor", fullDeclaration("Male"))
	s.ErrorIs(err, ErrIncompatibleBloodGroup)

	s.seedUser(domain.User{ID: "bdonor", Email: "b@example.com", Role: domain.RoleDonor, BloodGroup: domain.BloodGroupBPos, Gender: "female"})
	_, err = s.engine.AcceptRequest(s.ctx, req.ID, "bdonor", fullDeclaration("Male"))
	s.ErrorIs(err, ErrDeclarationIncomplete)

	recent := clock.Add(-30 * 24 * time.Hour)
	s.seedUser(domain.User{ID: "tired", Email: "t@example.com", Role: domain.RoleDonor, BloodGroup: domain.BloodGroupBPos, LastDonated: &recent})
	_, err = s.engine.AcceptRequest(s.ctx, req.ID, "tired", fullDeclaration(""))
	s.ErrorIs(err, ErrNotEligible)

	_, err = s.engine.AcceptRequest(s.ctx, "missing", "donor", fullDeclaration("Male"))
	s.ErrorIs(err, common.ErrNotFound)

	s.Equal(domain.StatusPending, s.request(req.ID).Status)
}

// Scenario D.
func (s *EngineSuite) TestCompleteRequestCreditsDonorAndStock() {
	s.seedParties()
	s.seedUser(domain.User{ID: "center", Email: "c@example.com", Role: domain.RoleAdmin, BloodStock: domain.Stock{domain.BloodGroupOPos: 0}})
	req := s.broadcast("center", domain.BloodGroupOPos)
	_, err := s.engine.AcceptRequest(s.ctx, req.ID, "donor", fullDeclaration("Male"))
	s.Require().NoError(err)

	got, err := s.engine.CompleteRequest(s.ctx, req.ID, "center")
	s.Require().NoError(err)
	s.Equal(domain.StatusCompleted, got.Status)
	s.Require().NotNil(got.CompletedAt)

	donor := s.user("donor")
	s.Equal(1, donor.LivesSaved)
	s.False(donor.IsAvailable)
	s.Require().NotNil(donor.LastDonated)
	s.True(clock.Equal(*donor.LastDonated))

	donations, err := s.store.ListDonations(s.ctx, "donor")
	s.Require().NoError(err)
	s.Require().Len(donations, 1)
	s.Equal(req.ID, donations[0].ID)
	s.Equal(domain.BloodGroupOPos, donations[0].BloodGroup)
	s.Equal(domain.StatusCompleted, donations[0].Status)

	s.Equal(1, s.user("center").BloodStock.Units(domain.BloodGroupOPos))
}

func (s *EngineSuite) TestCompletePatientRequestLeavesStockAlone() {
	s.seedParties()
	s.seedUser(domain.User{ID: "bdonor", Email: "b@example.com", Role: domain.RoleDonor, BloodGroup: domain.BloodGroupBPos})
	req := s.broadcast("patient", domain.BloodGroupBPos)
	_, err := s.engine.AcceptRequest(s.ctx, req.ID, "bdonor", fullDeclaration(""))
	s.Require().NoError(err)

	_, err = s.engine.CompleteRequest(s.ctx, req.ID, "patient")
	s.Require().NoError(err)
	s.Empty(s.user("patient").BloodStock)
}

func (s *EngineSuite) TestCompleteRequestGuards() {
	s.seedParties()
	req := s.broadcast("patient", domain.BloodGroupBPos)

	_, err := s.engine.CompleteRequest(s.ctx, req.ID, "patient")
	s.ErrorIs(err, ErrInvalidState)

	_, err = s.engine.CompleteRequest(s.ctx, "missing", "patient")
	s.ErrorIs(err, common.ErrNotFound)

	status := domain.StatusAccepted
	s.Require().NoError(s.store.UpdateRequest(s.ctx, req.ID, store.RequestPatch{Status: &status}))
	_, err = s.engine.CompleteRequest(s.ctx, req.ID, "patient")
	s.ErrorIs(err, ErrMissingDonor)

	_, err = s.engine.CompleteRequest(s.ctx, req.ID, "donor")
	s.ErrorIs(err, common.ErrForbidden)
}

var sixDigits = regexp.MustCompile(`^\d{6}$`)

// Scenarios B and C.
func (s *EngineSuite) TestFulfillAndVerifyPickup() {
	s.seedParties()
	req := s.broadcast("patient", domain.BloodGroupBPos)

	got, err := s.engine.FulfillRequestByAdmin(s.ctx, req.ID, "bank", domain.BloodGroupBPos)
	s.Require().NoError(err)
	s.Equal(domain.StatusReadyForPickup, got.Status)
	s.Regexp(sixDigits, got.PickupCode)
	s.Equal("bank", got.DonorID)
	s.Equal("City Blood Bank", got.DonorName)
	s.Equal("Blood Bank", got.DonorPhone)
	s.Equal(domain.FulfillmentStockSupply, got.FulfillmentType)

	bank := s.user("bank")
	s.Equal(1, bank.BloodStock.Units(domain.BloodGroupBPos))
	s.Equal(0, bank.LivesSaved)

	msgs, err := s.store.ListMessages(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Require().Len(msgs, 1)
	s.Equal(domain.MessageSystem, msgs[0].Type)
	s.Contains(msgs[0].Text, got.PickupCode)
	s.Equal(got.PickupCode, msgs[0].PickupCode)

	done, err := s.engine.VerifyPickupCode(s.ctx, req.ID, "bank", got.PickupCode)
	s.Require().NoError(err)
	s.Equal(domain.StatusCompleted, done.Status)
	s.Equal("bank", done.VerifiedBy)
	s.Equal(got.PickupCode, done.PickupCode)
	s.Equal(1, s.user("bank").LivesSaved)

	_, err = s.engine.VerifyPickupCode(s.ctx, req.ID, "bank", got.PickupCode)
	s.ErrorIs(err, ErrInvalidState)
	s.Equal(1, s.user("bank").LivesSaved)

	msgs, err = s.store.ListMessages(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Len(msgs, 2)
}

func (s *EngineSuite) TestVerifyPickupCodeMismatch() {
	s.seedParties()
	req := s.broadcast("patient", domain.BloodGroupBPos)
	s.engine.nextCode = func() (string, error) { return "123456", nil }
	_, err := s.engine.FulfillRequestByAdmin(s.ctx, req.ID, "bank", domain.BloodGroupBPos)
	s.Require().NoError(err)

	_, err = s.engine.VerifyPickupCode(s.ctx, req.ID, "bank", "654321")
	s.ErrorIs(err, ErrCodeMismatch)
	_, err = s.engine.VerifyPickupCode(s.ctx, req.ID, "bank", "12345")
	s.ErrorIs(err, ErrCodeMismatch)

	s.Equal(domain.StatusReadyForPickup, s.request(req.ID).Status)
	s.Equal(0, s.user("bank").LivesSaved)

	_, err = s.engine.VerifyPickupCode(s.ctx, req.ID, "patient", "123456")
	s.ErrorIs(err, common.ErrForbidden)
}

func (s *EngineSuite) TestFulfillGuards() {
	s.seedParties()
	req := s.broadcast("patient", domain.BloodGroupBPos)

	_, err := s.engine.FulfillRequestByAdmin(s.ctx, req.ID, "bank", domain.BloodGroupOPos)
	s.ErrorIs(err, ErrInsufficientStock)

	_, err = s.engine.FulfillRequestByAdmin(s.ctx, "missing", "bank", domain.BloodGroupBPos)
	s.ErrorIs(err, common.ErrNotFound)

	_, err = s.engine.FulfillRequestByAdmin(s.ctx, req.ID, "donor", domain.BloodGroupBPos)
	s.ErrorIs(err, common.ErrForbidden)

	_, err = s.engine.FulfillRequestByAdmin(s.ctx, req.ID, "bank", "Z+")
	s.ErrorIs(err, common.ErrBadRequest)

	completed := domain.StatusCompleted
	s.Require().NoError(s.store.UpdateRequest(s.ctx, req.ID, store.RequestPatch{Status: &completed}))
	_, err = s.engine.FulfillRequestByAdmin(s.ctx, req.ID, "bank", domain.BloodGroupBPos)
	s.ErrorIs(err, ErrAlreadyCompleted)

	s.Equal(2, s.user("bank").BloodStock.Units(domain.BloodGroupBPos))
}

func (s *EngineSuite) TestFulfillAfterAcceptIsInvalid() {
	s.seedParties()
	s.seedUser(domain.User{ID: "bdonor", Email: "b@example.com", Role: domain.RoleDonor, BloodGroup: domain.BloodGroupBPos})
	req := s.broadcast("patient", domain.BloodGroupBPos)
	_, err := s.engine.AcceptRequest(s.ctx, req.ID, "bdonor", fullDeclaration(""))
	s.Require().NoError(err)

	_, err = s.engine.FulfillRequestByAdmin(s.ctx, req.ID, "bank", domain.BloodGroupBPos)
	s.ErrorIs(err, ErrInvalidState)
	s.Equal(2, s.user("bank").BloodStock.Units(domain.BloodGroupBPos))
}

var errInjected = errors.New("injected failure")

// failAfterStock fails the request write that follows a stock decrement.
type failAfterStock struct {
	*gormstore.Store
}

func (f failAfterStock) RunInTransaction(ctx context.Context, fn func(context.Context, store.Tx) error) error {
	return f.Store.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, &failingTx{Tx: tx})
	})
}

type failingTx struct {
	store.Tx
	decremented bool
}

func (t *failingTx) IncrementStock(ctx context.Context, userID string, group domain.BloodGroup, delta int) error {
	if err := t.Tx.IncrementStock(ctx, userID, group, delta); err != nil {
		return err
	}
	t.decremented = true
	return nil
}

func (t *failingTx) UpdateRequest(ctx context.Context, id string, patch store.RequestPatch) error {
	if t.decremented {
		return errInjected
	}
	return t.Tx.UpdateRequest(ctx, id, patch)
}

func (s *EngineSuite) TestFulfillRollsBackOnFailure() {
	s.seedParties()
	req := s.broadcast("patient", domain.BloodGroupBPos)

	s.engine.store = failAfterStock{Store: s.store}
	_, err := s.engine.FulfillRequestByAdmin(s.ctx, req.ID, "bank", domain.BloodGroupBPos)
	s.ErrorIs(err, errInjected)

	s.Equal(2, s.user("bank").BloodStock.Units(domain.BloodGroupBPos))
	got := s.request(req.ID)
	s.Equal(domain.StatusPending, got.Status)
	s.Empty(got.PickupCode)

	msgs, err := s.store.ListMessages(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Empty(msgs)
}

func (s *EngineSuite) TestCancelRequest() {
	s.seedParties()
	req := s.broadcast("patient", domain.BloodGroupBPos)

	_, err := s.engine.CancelRequest(s.ctx, req.ID, "donor")
	s.ErrorIs(err, common.ErrForbidden)

	got, err := s.engine.CancelRequest(s.ctx, req.ID, "patient")
	s.Require().NoError(err)
	s.Equal(domain.StatusCancelled, got.Status)
	s.NotNil(got.ClosedAt)

	_, err = s.engine.CancelRequest(s.ctx, req.ID, "patient")
	s.ErrorIs(err, ErrInvalidState)
	_, err = s.engine.FulfillRequestByAdmin(s.ctx, req.ID, "bank", domain.BloodGroupBPos)
	s.ErrorIs(err, ErrInvalidState)
}

func (s *EngineSuite) TestExpireStaleRequests() {
	s.seedParties()
	s.seedUser(domain.User{ID: "bdonor", Email: "b@example.com", Role: domain.RoleDonor, BloodGroup: domain.BloodGroupBPos})
	old := s.broadcast("patient", domain.BloodGroupBPos)
	taken := s.broadcast("patient", domain.BloodGroupBPos)
	_, err := s.engine.AcceptRequest(s.ctx, taken.ID, "bdonor", fullDeclaration(""))
	s.Require().NoError(err)

	s.store.SetClock(func() time.Time { return clock.Add(80 * time.Hour) })
	fresh := s.broadcast("patient", domain.BloodGroupBPos)

	s.engine.now = func() time.Time { return clock.Add(90 * time.Hour) }
	n, err := s.engine.ExpireStaleRequests(s.ctx, 72*time.Hour)
	s.Require().NoError(err)
	s.Equal(1, n)

	s.Equal(domain.StatusExpired, s.request(old.ID).Status)
	s.Equal(domain.StatusAccepted, s.request(taken.ID).Status)
	s.Equal(domain.StatusPending, s.request(fresh.ID).Status)

	n, err = s.engine.ExpireStaleRequests(s.ctx, 72*time.Hour)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *EngineSuite) TestToggleDonorAvailability() {
	s.seedParties()

	_, err := s.engine.ToggleDonorAvailability(s.ctx, "donor", true, nil)
	s.ErrorIs(err, ErrDeclarationIncomplete)

	u, err := s.engine.ToggleDonorAvailability(s.ctx, "donor", true, fullDeclaration("Male"))
	s.Require().NoError(err)
	s.True(u.IsAvailable)
	s.Require().NotNil(u.LastActive)

	u, err = s.engine.ToggleDonorAvailability(s.ctx, "donor", false, nil)
	s.Require().NoError(err)
	s.False(u.IsAvailable)

	// Consent is never remembered across toggles.
	_, err = s.engine.ToggleDonorAvailability(s.ctx, "donor", true, nil)
	s.ErrorIs(err, ErrDeclarationIncomplete)
}

func (s *EngineSuite) TestToggleAvailabilityRequiresVerificationAndEligibility() {
	s.seedUser(domain.User{ID: "new", Email: "n@example.com", Role: domain.RoleDonor, BloodGroup: domain.BloodGroupAPos})
	_, err := s.engine.ToggleDonorAvailability(s.ctx, "new", true, fullDeclaration(""))
	s.ErrorIs(err, ErrNotVerified)

	recent := clock.Add(-10 * 24 * time.Hour)
	s.seedUser(domain.User{ID: "rested", Email: "r@example.com", Role: domain.RoleDonor, IsVerified: true, LastDonated: &recent, Gender: "FEMALE"})
	_, err = s.engine.ToggleDonorAvailability(s.ctx, "rested", true, fullDeclaration("female"))
	s.ErrorIs(err, ErrNotEligible)

	_, err = s.engine.ToggleDonorAvailability(s.ctx, "rested", false, nil)
	s.NoError(err)

	s.seedParties()
	_, err = s.engine.ToggleDonorAvailability(s.ctx, "patient", true, fullDeclaration(""))
	s.ErrorIs(err, common.ErrForbidden)
}

func (s *EngineSuite) TestAssignRole() {
	s.seedUser(domain.User{ID: "fresh", Email: "f@example.com"})

	u, err := s.engine.AssignRole(s.ctx, "fresh", domain.RoleDonor)
	s.Require().NoError(err)
	s.Equal(domain.RoleDonor, u.Role)
	s.True(u.IsAvailable)

	u, err = s.engine.AssignRole(s.ctx, "fresh", domain.RolePatient)
	s.Require().NoError(err)
	s.Equal(domain.RolePatient, u.Role)

	_, err = s.engine.AssignRole(s.ctx, "fresh", domain.RoleAdmin)
	s.ErrorIs(err, common.ErrBadRequest)

	s.seedParties()
	_, err = s.engine.AssignRole(s.ctx, "bank", domain.RoleDonor)
	s.ErrorIs(err, common.ErrForbidden)
	s.Equal(domain.RoleAdmin, s.user("bank").Role)
}

func (s *EngineSuite) TestGrantAdmin() {
	s.seedUser(domain.User{ID: "center", Email: "c@example.com", Role: domain.RoleDonor, IsAvailable: true})
	u, err := s.engine.GrantAdmin(s.ctx, "center")
	s.Require().NoError(err)
	s.Equal(domain.RoleAdmin, u.Role)
	s.False(u.IsAvailable)
}

func (s *EngineSuite) TestSendMessage() {
	s.seedParties()
	s.seedUser(domain.User{ID: "bdonor", Email: "b@example.com", DisplayName: "Bina", Role: domain.RoleDonor, BloodGroup: domain.BloodGroupBPos})
	req := s.broadcast("patient", domain.BloodGroupBPos)

	_, err := s.engine.SendMessage(s.ctx, req.ID, "bdonor", MessageInput{Text: "on my way"})
	s.ErrorIs(err, common.ErrForbidden)

	_, err = s.engine.AcceptRequest(s.ctx, req.ID, "bdonor", fullDeclaration(""))
	s.Require().NoError(err)

	msg, err := s.engine.SendMessage(s.ctx, req.ID, "bdonor", MessageInput{Text: " on my way "})
	s.Require().NoError(err)
	s.Equal("on my way", msg.Text)
	s.Equal("Bina", msg.SenderName)
	s.Equal(domain.MessageText, msg.Type)

	_, err = s.engine.SendMessage(s.ctx, req.ID, "patient", MessageInput{Type: domain.MessageLocation, Location: &domain.GeoPoint{Lat: 1, Lng: 2}})
	s.Require().NoError(err)

	_, err = s.engine.SendMessage(s.ctx, req.ID, "patient", MessageInput{Type: domain.MessageLocation})
	s.ErrorIs(err, common.ErrBadRequest)
	_, err = s.engine.SendMessage(s.ctx, req.ID, "patient", MessageInput{Type: domain.MessageSystem, Text: "spoof"})
	apiErr, ok := common.IsAPIError(err)
	s.Require().True(ok)
	s.Equal("VALIDATION_ERROR", apiErr.Code)

	msgs, err := s.store.ListMessages(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Require().Len(msgs, 2)
	s.Equal(domain.MessageText, msgs[0].Type)
	s.Equal(domain.MessageLocation, msgs[1].Type)
}

func (s *EngineSuite) TestUpdateLiveLocation() {
	s.seedParties()
	req := s.broadcast("patient", domain.BloodGroupBPos)

	got, err := s.engine.UpdateLiveLocation(s.ctx, req.ID, "patient", domain.GeoPoint{Lat: 12.5, Lng: 77.1})
	s.Require().NoError(err)
	s.Require().NotNil(got.LiveLocation)
	s.Equal("patient", got.LiveLocation.SharerID)
	s.Equal(12.5, got.LiveLocation.Lat)
	s.True(clock.Equal(got.LiveLocation.UpdatedAt))

	_, err = s.engine.UpdateLiveLocation(s.ctx, req.ID, "donor", domain.GeoPoint{})
	s.ErrorIs(err, common.ErrForbidden)

	_, err = s.engine.CancelRequest(s.ctx, req.ID, "patient")
	s.Require().NoError(err)
	_, err = s.engine.UpdateLiveLocation(s.ctx, req.ID, "patient", domain.GeoPoint{})
	s.ErrorIs(err, ErrInvalidState)
}

func (s *EngineSuite) TestSetStock() {
	s.seedParties()
	u, err := s.engine.SetStock(s.ctx, "bank", domain.BloodGroupONeg, 7)
	s.Require().NoError(err)
	s.Equal(7, u.BloodStock.Units(domain.BloodGroupONeg))
	s.Equal(2, u.BloodStock.Units(domain.BloodGroupBPos))

	_, err = s.engine.SetStock(s.ctx, "bank", domain.BloodGroupONeg, -1)
	s.ErrorIs(err, common.ErrBadRequest)
	_, err = s.engine.SetStock(s.ctx, "donor", domain.BloodGroupONeg, 1)
	s.ErrorIs(err, common.ErrForbidden)
}

// Every completed request went through exactly one of accepted and
// ready_for_pickup, whatever order the actions are attempted in.
func (s *EngineSuite) TestCompletedOnlyThroughOneIntermediateState() {
	s.seedParties()
	s.engine.nextCode = func() (string, error) { return "111111", nil }

	type step func(id, donorID string) error
	accept := func(id, donorID string) error {
		_, err := s.engine.AcceptRequest(s.ctx, id, donorID, fullDeclaration(""))
		return err
	}
	fulfill := func(id, _ string) error {
		_, err := s.engine.FulfillRequestByAdmin(s.ctx, id, "bank", domain.BloodGroupBPos)
		return err
	}
	complete := func(id, _ string) error {
		_, err := s.engine.CompleteRequest(s.ctx, id, "patient")
		return err
	}
	verify := func(id, _ string) error {
		_, err := s.engine.VerifyPickupCode(s.ctx, id, "bank", "111111")
		return err
	}
	all := []step{accept, fulfill, complete, verify}

	completions := 0
	for i := range all {
		for j := range all {
			if i == j {
				continue
			}
			donorID := fmt.Sprintf("donor-%d-%d", i, j)
			s.seedUser(domain.User{ID: donorID, Email: donorID + "@example.com", Role: domain.RoleDonor, BloodGroup: domain.BloodGroupBPos})
			_, err := s.engine.SetStock(s.ctx, "bank", domain.BloodGroupBPos, 5)
			s.Require().NoError(err)
			req := s.broadcast("patient", domain.BloodGroupBPos)

			var seen []domain.RequestStatus
			for _, k := range []int{i, j, i, j} {
				if err := all[k](req.ID, donorID); err == nil {
					seen = append(seen, s.request(req.ID).Status)
				}
			}

			if s.request(req.ID).Status != domain.StatusCompleted {
				continue
			}
			completions++
			s.Require().Len(seen, 2, "steps %d,%d", i, j)
			s.Contains([]domain.RequestStatus{domain.StatusAccepted, domain.StatusReadyForPickup}, seen[0])
			s.Equal(domain.StatusCompleted, seen[1])
		}
	}
	s.Equal(4, completions)
}

func TestErrorsAreDistinct(t *testing.T) {
	all := []*common.APIError{
		ErrInvalidState, ErrRequestUnavailable, ErrMissingDonor, ErrInsufficientStock,
		ErrAlreadyCompleted, ErrCodeMismatch, ErrDeclarationIncomplete, ErrNotEligible,
		ErrIncompatibleBloodGroup, ErrNotVerified,
	}
	codes := make(map[string]bool)
	for _, e := range all {
		require.False(t, codes[e.Code], e.Code)
		codes[e.Code] = true
		require.False(t, errors.Is(e, common.ErrConflict), e.Code)
	}
	require.True(t, errors.Is(ErrInvalidState.WithDetails("x"), ErrInvalidState))
}
