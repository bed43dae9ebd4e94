// File: internal/coordination/engine.go
package coordination

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
	"lifelink_backend/internal/config"
	"lifelink_backend/internal/domain"
	"lifelink_backend/internal/platform/crypto"
	"lifelink_backend/internal/rules"
	"lifelink_backend/internal/store"
)

const (
	unknownPatient  = "Unknown Patient"
	phoneNotShared  = "Not Shared"
	bloodBankName   = "Blood Bank Admin"
	bloodBankPhone  = "Blood Bank"
	pickupNoticeFmt = "Great news! We have reserved the blood for your request. Your Secure Pickup Code is: %s. Please show this code at the Blood Bank counter to collect it."
	handoverNotice  = "Handover Complete! The pickup verification was successful. We are honored to support you, wishing the patient a speedy recovery!"
)

// Engine runs the request lifecycle. Every transition with a cross-entity
// invariant executes inside a single store transaction.
type Engine struct {
	store    store.Store
	cfg      *config.Config
	logger   *zap.Logger
	validate *validator.Validate

	policy   rules.Policy
	now      func() time.Time
	nextCode func() (string, error)
}

// NewEngine creates the coordination engine over st.
func NewEngine(st store.Store, cfg *config.Config, logger *zap.Logger) *Engine {
	return &Engine{
		store:    st,
		cfg:      cfg,
		logger:   logger.Named("coordination"),
		validate: common.NewValidator(),
		policy:   rules.DefaultPolicy,
		now:      time.Now,
		nextCode: crypto.GeneratePickupCode,
	}
}

// BroadcastRequest creates a pending request on behalf of requesterID.
func (e *Engine) BroadcastRequest(ctx context.Context, requesterID string, in BroadcastInput) (*domain.Request, error) {
	if err := common.ValidateStruct(e.validate, in); err != nil {
		return nil, err
	}
	requester, err := e.store.GetUser(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if requester.Role != domain.RolePatient && requester.Role != domain.RoleAdmin {
		return nil, common.ErrForbidden.WithDetails("Only patients and blood banks can broadcast requests.")
	}

	req := &domain.Request{
		PatientID:   requesterID,
		PatientName: patientName(requester),
		BloodGroup:  in.BloodGroup,
		Urgency:     in.Urgency,
		Hospital:    strings.TrimSpace(in.Hospital),
		Notes:       strings.TrimSpace(in.Notes),
		Location:    e.requestLocation(in.Location, requester),
	}
	if err := e.store.CreateRequest(ctx, req); err != nil {
		e.logger.Error("Failed to create request", zap.String("requesterID", requesterID), zap.Error(err))
		return nil, err
	}
	e.logger.Info("Request broadcast",
		zap.String("requestID", req.ID),
		zap.String("bloodGroup", string(req.BloodGroup)),
		zap.String("urgency", string(req.Urgency)))
	return req, nil
}

func patientName(u *domain.User) string {
	if name := strings.TrimSpace(u.DisplayName); name != "" {
		return name
	}
	if u.Email != "" {
		return u.Email
	}
	return unknownPatient
}

func (e *Engine) requestLocation(given *domain.GeoPoint, requester *domain.User) *domain.GeoPoint {
	switch {
	case given != nil:
		return given
	case requester.Location != nil:
		return requester.Location
	default:
		return &domain.GeoPoint{Lat: e.cfg.DefaultLat, Lng: e.cfg.DefaultLng}
	}
}

// AcceptRequest matches donorID to a pending request. At most one donor can
// ever win: the status is re-read and checked inside the transaction.
func (e *Engine) AcceptRequest(ctx context.Context, requestID, donorID string, declaration []string) (*domain.Request, error) {
	err := e.store.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		donor, err := tx.GetUser(ctx, donorID)
		if err != nil {
			return err
		}
		req, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}

		if donor.Role != domain.RoleDonor {
			return common.ErrForbidden.WithDetails("Only donors can accept requests.")
		}
		if req.PatientID == donorID {
			return common.ErrForbidden.WithDetails("You cannot accept your own request.")
		}
		if missing := rules.ValidateDeclaration(donor.Gender, declaration); len(missing) > 0 {
			return ErrDeclarationIncomplete.WithDetails(missing)
		}
		if elig := rules.DonationEligibility(donor.LastDonated, donor.Gender, e.now()); !elig.Eligible {
			return ErrNotEligible.WithDetails(elig.Message)
		}
		if req.Status != domain.StatusPending {
			return ErrRequestUnavailable
		}
		if !e.policy(donor.BloodGroup, req.BloodGroup) {
			return ErrIncompatibleBloodGroup.WithDetails(fmt.Sprintf("Request needs %s, your blood group is %s.", req.BloodGroup, donor.BloodGroup))
		}

		phone := strings.TrimSpace(donor.PhoneNumber)
		if phone == "" {
			phone = phoneNotShared
		}
		if err := tx.UpdateRequest(ctx, requestID, store.RequestPatch{
			Status:          store.Ptr(domain.StatusAccepted),
			DonorID:         store.Ptr(donorID),
			DonorName:       store.Ptr(donor.Name()),
			DonorPhone:      store.Ptr(phone),
			ConsentGiven:    store.Ptr(true),
			FulfillmentType: store.Ptr(domain.FulfillmentPeerDonation),
			StampAcceptedAt: true,
			StampConsentAt:  true,
		}); err != nil {
			return err
		}
		if err := tx.UpdateUser(ctx, donorID, store.UserPatch{StampLastConsentAgreed: true}); err != nil {
			return err
		}
		return tx.RecordDeclaration(ctx, donorID, requestID, sortedCopy(declaration))
	})
	if err != nil {
		e.logger.Warn("Accept request failed", zap.String("requestID", requestID), zap.String("donorID", donorID), zap.Error(err))
		return nil, err
	}
	e.logger.Info("Request accepted", zap.String("requestID", requestID), zap.String("donorID", donorID))
	return e.store.GetRequest(ctx, requestID)
}

// CompleteRequest closes a peer donation on behalf of the requester. The
// donation record, the donor's stats and cooldown, and the requester's stock
// commit together or not at all.
func (e *Engine) CompleteRequest(ctx context.Context, requestID, requesterID string) (*domain.Request, error) {
	err := e.store.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		req, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.PatientID != requesterID {
			return common.ErrForbidden.WithDetails("Only the requester can mark a request as received.")
		}
		if req.Status != domain.StatusAccepted {
			return ErrInvalidState.WithDetails(fmt.Sprintf("Request is %s, expected %s.", req.Status, domain.StatusAccepted))
		}
		if req.DonorID == "" {
			return ErrMissingDonor
		}
		requester, err := tx.GetUser(ctx, req.PatientID)
		if err != nil {
			return err
		}
		if _, err := tx.GetUser(ctx, req.DonorID); err != nil {
			return err
		}

		if err := tx.UpdateRequest(ctx, requestID, store.RequestPatch{
			Status:           store.Ptr(domain.StatusCompleted),
			StampCompletedAt: true,
		}); err != nil {
			return err
		}
		if err := tx.CreateDonation(ctx, req.DonorID, &domain.Donation{
			ID:          req.ID,
			PatientName: req.PatientName,
			BloodGroup:  req.BloodGroup,
			Location:    req.Location,
			Status:      domain.StatusCompleted,
		}); err != nil {
			return err
		}
		if err := tx.IncrementLivesSaved(ctx, req.DonorID, 1); err != nil {
			return err
		}
		if err := tx.UpdateUser(ctx, req.DonorID, store.UserPatch{
			IsAvailable:      store.Ptr(false),
			StampLastDonated: true,
		}); err != nil {
			return err
		}
		if requester.HoldsStock() {
			return tx.IncrementStock(ctx, requester.ID, req.BloodGroup, 1)
		}
		return nil
	})
	if err != nil {
		e.logger.Warn("Complete request failed", zap.String("requestID", requestID), zap.Error(err))
		return nil, err
	}
	e.logger.Info("Request completed", zap.String("requestID", requestID))
	return e.store.GetRequest(ctx, requestID)
}

// FulfillRequestByAdmin reserves one unit of the admin's stock for a pending
// request and issues a pickup code. Lives saved are credited on pickup.
func (e *Engine) FulfillRequestByAdmin(ctx context.Context, requestID, adminID string, group domain.BloodGroup) (*domain.Request, error) {
	if !group.Valid() {
		return nil, common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown blood group %q.", group))
	}
	code, err := e.nextCode()
	if err != nil {
		return nil, fmt.Errorf("generate pickup code: %w", err)
	}

	err = e.store.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		admin, err := tx.GetUser(ctx, adminID)
		if err != nil {
			return err
		}
		if admin.Role != domain.RoleAdmin {
			return common.ErrForbidden.WithDetails("Only blood banks can fulfill requests from stock.")
		}
		if admin.BloodStock.Units(group) <= 0 {
			return ErrInsufficientStock.WithDetails(fmt.Sprintf("No %s units in stock.", group))
		}
		req, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status == domain.StatusCompleted {
			return ErrAlreadyCompleted
		}
		if req.Status != domain.StatusPending {
			return ErrInvalidState.WithDetails(fmt.Sprintf("Request is %s, expected %s.", req.Status, domain.StatusPending))
		}
		if !e.policy(group, req.BloodGroup) {
			return ErrIncompatibleBloodGroup.WithDetails(fmt.Sprintf("Request needs %s, not %s.", req.BloodGroup, group))
		}

		if err := tx.IncrementStock(ctx, adminID, group, -1); err != nil {
			return err
		}
		name := strings.TrimSpace(admin.DisplayName)
		if name == "" {
			name = bloodBankName
		}
		phone := strings.TrimSpace(admin.PhoneNumber)
		if phone == "" {
			phone = bloodBankPhone
		}
		return tx.UpdateRequest(ctx, requestID, store.RequestPatch{
			Status:          store.Ptr(domain.StatusReadyForPickup),
			PickupCode:      store.Ptr(code),
			DonorID:         store.Ptr(adminID),
			DonorName:       store.Ptr(name),
			DonorPhone:      store.Ptr(phone),
			FulfillmentType: store.Ptr(domain.FulfillmentStockSupply),
			StampAcceptedAt: true,
		})
	})
	if err != nil {
		e.logger.Warn("Fulfill request failed", zap.String("requestID", requestID), zap.String("adminID", adminID), zap.Error(err))
		return nil, err
	}
	e.logger.Info("Request reserved from stock", zap.String("requestID", requestID), zap.String("bloodGroup", string(group)))

	e.postSystemMessage(ctx, requestID, adminID, fmt.Sprintf(pickupNoticeFmt, code), code)
	return e.store.GetRequest(ctx, requestID)
}

// VerifyPickupCode completes a ready_for_pickup request when code matches the
// issued one exactly, and credits the supplying blood bank.
func (e *Engine) VerifyPickupCode(ctx context.Context, requestID, adminID, code string) (*domain.Request, error) {
	err := e.store.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		admin, err := tx.GetUser(ctx, adminID)
		if err != nil {
			return err
		}
		if admin.Role != domain.RoleAdmin {
			return common.ErrForbidden.WithDetails("Only blood banks can verify pickup codes.")
		}
		req, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != domain.StatusReadyForPickup {
			return ErrInvalidState.WithDetails(fmt.Sprintf("Request is %s, expected %s.", req.Status, domain.StatusReadyForPickup))
		}
		if code != req.PickupCode {
			return ErrCodeMismatch
		}

		supplier := req.DonorID
		if supplier == "" {
			supplier = adminID
		}
		if err := tx.UpdateRequest(ctx, requestID, store.RequestPatch{
			Status:           store.Ptr(domain.StatusCompleted),
			VerifiedBy:       store.Ptr(adminID),
			StampCompletedAt: true,
		}); err != nil {
			return err
		}
		return tx.IncrementLivesSaved(ctx, supplier, 1)
	})
	if err != nil {
		e.logger.Warn("Pickup verification failed", zap.String("requestID", requestID), zap.Error(err))
		return nil, err
	}
	e.logger.Info("Pickup verified", zap.String("requestID", requestID), zap.String("adminID", adminID))

	e.postSystemMessage(ctx, requestID, adminID, handoverNotice, "")
	return e.store.GetRequest(ctx, requestID)
}

// postSystemMessage appends a system line after a committed transition.
// Failures are logged and never undo the transition.
func (e *Engine) postSystemMessage(ctx context.Context, requestID, senderID, text, code string) {
	msg := &domain.Message{
		SenderID:   senderID,
		SenderName: "System",
		Text:       text,
		Type:       domain.MessageSystem,
		PickupCode: code,
	}
	if err := e.store.AddMessage(ctx, requestID, msg); err != nil {
		e.logger.Warn("Failed to post system message", zap.String("requestID", requestID), zap.Error(err))
	}
}

// CancelRequest withdraws a pending request on behalf of its requester.
func (e *Engine) CancelRequest(ctx context.Context, requestID, requesterID string) (*domain.Request, error) {
	err := e.store.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		req, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.PatientID != requesterID {
			return common.ErrForbidden.WithDetails("Only the requester can cancel a request.")
		}
		if req.Status != domain.StatusPending {
			return ErrInvalidState.WithDetails(fmt.Sprintf("Only pending requests can be cancelled; this one is %s.", req.Status))
		}
		return tx.UpdateRequest(ctx, requestID, store.RequestPatch{
			Status:        store.Ptr(domain.StatusCancelled),
			StampClosedAt: true,
		})
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("Request cancelled", zap.String("requestID", requestID))
	return e.store.GetRequest(ctx, requestID)
}

// ExpireStaleRequests moves pending requests created more than olderThan ago
// to expired. Each request is re-checked in its own transaction, so a request
// accepted meanwhile is left alone.
func (e *Engine) ExpireStaleRequests(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := e.now().Add(-olderThan)
	stale, err := e.store.ListRequests(ctx, store.RequestQuery{
		Statuses:      []domain.RequestStatus{domain.StatusPending},
		CreatedBefore: &cutoff,
	})
	if err != nil {
		return 0, err
	}

	expired := 0
	var errs []error
	for _, r := range stale {
		id := r.ID
		var changed bool
		err := e.store.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
			changed = false
			req, err := tx.GetRequest(ctx, id)
			if err != nil {
				return err
			}
			if req.Status != domain.StatusPending || !req.CreatedAt.Before(cutoff) {
				return nil
			}
			changed = true
			return tx.UpdateRequest(ctx, id, store.RequestPatch{
				Status:        store.Ptr(domain.StatusExpired),
				StampClosedAt: true,
			})
		})
		if err != nil {
			e.logger.Warn("Failed to expire request", zap.String("requestID", id), zap.Error(err))
			errs = append(errs, fmt.Errorf("expire %s: %w", id, err))
			continue
		}
		if changed {
			expired++
		}
	}
	return expired, errors.Join(errs...)
}

// ToggleDonorAvailability switches a donor on or off. Going available needs
// eligibility, verification and a declaration confirmed for this very call.
func (e *Engine) ToggleDonorAvailability(ctx context.Context, donorID string, want bool, declaration []string) (*domain.User, error) {
	err := e.store.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		donor, err := tx.GetUser(ctx, donorID)
		if err != nil {
			return err
		}
		if donor.Role != domain.RoleDonor {
			return common.ErrForbidden.WithDetails("Only donors can change availability.")
		}
		if want {
			if elig := rules.DonationEligibility(donor.LastDonated, donor.Gender, e.now()); !elig.Eligible {
				return ErrNotEligible.WithDetails(elig.Message)
			}
			if !donor.IsVerified {
				return ErrNotVerified
			}
			if missing := rules.ValidateDeclaration(donor.Gender, declaration); len(missing) > 0 {
				return ErrDeclarationIncomplete.WithDetails(missing)
			}
		}

		if err := tx.UpdateUser(ctx, donorID, store.UserPatch{
			IsAvailable:     store.Ptr(want),
			StampLastActive: true,
		}); err != nil {
			return err
		}
		if want {
			return tx.RecordDeclaration(ctx, donorID, "", sortedCopy(declaration))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("Donor availability changed", zap.String("donorID", donorID), zap.Bool("available", want))
	return e.store.GetUser(ctx, donorID)
}

// AssignRole switches a user between donor and patient. Admin accounts keep
// their role.
func (e *Engine) AssignRole(ctx context.Context, userID string, role domain.Role) (*domain.User, error) {
	if role != domain.RoleDonor && role != domain.RolePatient {
		return nil, common.ErrBadRequest.WithDetails("Role must be donor or patient.")
	}
	err := e.store.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if u.Role == domain.RoleAdmin {
			return common.ErrForbidden.WithDetails("Blood bank accounts cannot switch roles.")
		}
		patch := store.UserPatch{Role: store.Ptr(role)}
		if role == domain.RoleDonor {
			patch.IsAvailable = store.Ptr(true)
		}
		return tx.UpdateUser(ctx, userID, patch)
	})
	if err != nil {
		return nil, err
	}
	return e.store.GetUser(ctx, userID)
}

// GrantAdmin turns an account into a blood bank. It is an operator action
// and is not exposed over HTTP.
func (e *Engine) GrantAdmin(ctx context.Context, userID string) (*domain.User, error) {
	if err := e.store.MergeUser(ctx, userID, store.UserPatch{
		Role:        store.Ptr(domain.RoleAdmin),
		IsAvailable: store.Ptr(false),
	}); err != nil {
		return nil, err
	}
	e.logger.Info("Admin role granted", zap.String("userID", userID))
	return e.store.GetUser(ctx, userID)
}

// SendMessage appends a participant's chat line to a request.
func (e *Engine) SendMessage(ctx context.Context, requestID, senderID string, in MessageInput) (*domain.Message, error) {
	if err := common.ValidateStruct(e.validate, in); err != nil {
		return nil, err
	}
	if in.Type == "" {
		in.Type = domain.MessageText
	}
	if in.Type == domain.MessageText && strings.TrimSpace(in.Text) == "" {
		return nil, common.ErrBadRequest.WithDetails("Message text is required.")
	}
	if in.Type == domain.MessageLocation && in.Location == nil {
		return nil, common.ErrBadRequest.WithDetails("A location message needs coordinates.")
	}

	req, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.IsParticipant(senderID) {
		return nil, common.ErrForbidden.WithDetails("Only the requester and the matched donor can chat on this request.")
	}
	sender, err := e.store.GetUser(ctx, senderID)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		SenderID:   senderID,
		SenderName: sender.Name(),
		Text:       strings.TrimSpace(in.Text),
		Type:       in.Type,
		Location:   in.Location,
	}
	if err := e.store.AddMessage(ctx, requestID, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// UpdateLiveLocation publishes the position of the participant in transit.
func (e *Engine) UpdateLiveLocation(ctx context.Context, requestID, sharerID string, p domain.GeoPoint) (*domain.Request, error) {
	req, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.IsParticipant(sharerID) {
		return nil, common.ErrForbidden.WithDetails("Only participants can share their location on this request.")
	}
	if req.Status.Terminal() {
		return nil, ErrInvalidState.WithDetails(fmt.Sprintf("Request is %s.", req.Status))
	}
	if err := e.store.UpdateRequest(ctx, requestID, store.RequestPatch{
		LiveLocation: &domain.LiveLocation{Lat: p.Lat, Lng: p.Lng, SharerID: sharerID},
	}); err != nil {
		return nil, err
	}
	return e.store.GetRequest(ctx, requestID)
}

// SetStock sets the admin's inventory of one blood group to units.
func (e *Engine) SetStock(ctx context.Context, adminID string, group domain.BloodGroup, units int) (*domain.User, error) {
	if !group.Valid() {
		return nil, common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown blood group %q.", group))
	}
	if units < 0 {
		return nil, common.ErrBadRequest.WithDetails("Stock cannot be negative.")
	}
	err := e.store.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		admin, err := tx.GetUser(ctx, adminID)
		if err != nil {
			return err
		}
		if admin.Role != domain.RoleAdmin {
			return common.ErrForbidden.WithDetails("Only blood banks keep stock.")
		}
		return tx.UpdateUser(ctx, adminID, store.UserPatch{BloodStock: domain.Stock{group: units}})
	})
	if err != nil {
		return nil, err
	}
	return e.store.GetUser(ctx, adminID)
}

func sortedCopy(items []string) []string {
	out := append([]string(nil), items...)
	sort.Strings(out)
	return out
}
