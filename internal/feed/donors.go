// File: internal/feed/donors.go
package feed

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"lifelink_backend/internal/domain"
	"lifelink_backend/internal/rules"
	"lifelink_backend/internal/store"
)

// LocationState is the progress of resolving the viewer's position.
type LocationState string

const (
	LocationIdle     LocationState = "idle"
	LocationLocating LocationState = "locating"
	LocationLocated  LocationState = "located"
	LocationFailed   LocationState = "failed"
)

// Donor is one entry of the nearby-donors list.
type Donor struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	BloodGroup domain.BloodGroup `json:"bloodGroup"`
	Phone      string            `json:"phoneNumber,omitempty"`
	IsVerified bool              `json:"isVerified"`
	Location   *domain.GeoPoint  `json:"location,omitempty"`
	Distance   string            `json:"distance"`
	LivesSaved int               `json:"livesSaved"`
}

// DonorSnapshot is what a donor feed emits after each change.
type DonorSnapshot struct {
	State    LocationState   `json:"state"`
	Location domain.GeoPoint `json:"location"`
	Donors   []Donor         `json:"donors"`
}

var donorQuery = store.UserQuery{Role: domain.RoleDonor, AvailableOnly: true}

// donorsFrom keeps the users that can donate right now, measured from
// origin and ordered nearest first. Donors without coordinates sort last.
func donorsFrom(users []domain.User, viewerID string, origin domain.GeoPoint, s *Service) []Donor {
	now := s.now()
	out := make([]Donor, 0, len(users))
	dist := make(map[string]float64, len(users))
	for i := range users {
		u := &users[i]
		if u.ID == viewerID || !u.BloodGroup.Valid() || !u.IsAvailable {
			continue
		}
		if !rules.DonationEligibility(u.LastDonated, u.Gender, now).Eligible {
			continue
		}
		d := Donor{
			ID:         u.ID,
			Name:       u.Name(),
			BloodGroup: u.BloodGroup,
			Phone:      u.PhoneNumber,
			IsVerified: u.IsVerified,
			Location:   u.Location,
			Distance:   rules.UnknownDistance,
			LivesSaved: u.LivesSaved,
		}
		dist[u.ID] = -1
		if u.Location != nil {
			d.Distance = rules.DistanceLabel(&origin.Lat, &origin.Lng, &u.Location.Lat, &u.Location.Lng)
			dist[u.ID] = rules.HaversineKm(origin.Lat, origin.Lng, u.Location.Lat, u.Location.Lng)
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := dist[out[i].ID], dist[out[j].ID]
		if di < 0 || dj < 0 {
			return dj < 0 && di >= 0
		}
		return di < dj
	})
	return out
}

// MatchDonors keeps the donors whose blood the patient group can receive
// under policy. BloodGroupAny keeps everyone.
func MatchDonors(donors []Donor, patient domain.BloodGroup, policy rules.Policy) []Donor {
	if patient == domain.BloodGroupAny || patient == "" {
		return donors
	}
	out := make([]Donor, 0, len(donors))
	for _, d := range donors {
		if policy(d.BloodGroup, patient) {
			out = append(out, d)
		}
	}
	return out
}

// DonorFeed is a live nearby-donors list for one viewer. The viewer's
// position moves it through idle, locating, then located or failed; a failed
// lookup measures from the default location. Every position change replaces
// the underlying subscription.
type DonorFeed struct {
	svc      *Service
	ctx      context.Context
	viewerID string
	emit     func(DonorSnapshot, error)

	mu       sync.Mutex
	state    LocationState
	location domain.GeoPoint
	filter   domain.BloodGroup
	users    []domain.User
	unsub    store.Unsubscribe
	closed   bool
}

// NewDonorFeed creates an idle feed. emit receives a snapshot after each
// subscription update and each position change; it is called with the feed
// lock released.
func (s *Service) NewDonorFeed(ctx context.Context, viewerID string, emit func(DonorSnapshot, error)) *DonorFeed {
	return &DonorFeed{
		svc:      s,
		ctx:      ctx,
		viewerID: viewerID,
		emit:     emit,
		state:    LocationIdle,
		location: s.DefaultLocation(),
		filter:   domain.BloodGroupAny,
	}
}

// State returns the current location state.
func (f *DonorFeed) State() LocationState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Location returns the point distances are measured from.
func (f *DonorFeed) Location() domain.GeoPoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.location
}

// Locate marks the start of a position lookup.
func (f *DonorFeed) Locate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.state = LocationLocating
}

// Resolve ends a position lookup. A nil point or a lookup error moves the
// feed to failed and falls back to the default location.
func (f *DonorFeed) Resolve(p *domain.GeoPoint, lookupErr error) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	if p == nil || lookupErr != nil {
		f.svc.logger.Debug("Location lookup failed, using default", zap.String("viewerID", f.viewerID), zap.Error(lookupErr))
		f.state = LocationFailed
		f.location = f.svc.DefaultLocation()
	} else {
		f.state = LocationLocated
		f.location = *p
	}
	old := f.unsub
	f.unsub = nil
	f.users = nil
	f.mu.Unlock()

	if old != nil {
		old()
	}
	return f.subscribe()
}

func (f *DonorFeed) subscribe() error {
	unsub, err := f.svc.src.WatchUsers(f.ctx, donorQuery, func(users []domain.User, err error) {
		if err != nil {
			f.emit(DonorSnapshot{}, err)
			return
		}
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return
		}
		f.users = users
		snap := f.snapshotLocked()
		f.mu.Unlock()
		f.emit(snap, nil)
	})
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.unsub != nil {
		unsub()
		return nil
	}
	f.unsub = unsub
	return nil
}

// SetFilter narrows the list to donors compatible with group.
func (f *DonorFeed) SetFilter(group domain.BloodGroup) {
	f.mu.Lock()
	f.filter = group
	if f.users == nil || f.closed {
		f.mu.Unlock()
		return
	}
	snap := f.snapshotLocked()
	f.mu.Unlock()
	f.emit(snap, nil)
}

func (f *DonorFeed) snapshotLocked() DonorSnapshot {
	donors := donorsFrom(f.users, f.viewerID, f.location, f.svc)
	return DonorSnapshot{
		State:    f.state,
		Location: f.location,
		Donors:   MatchDonors(donors, f.filter, f.svc.policy),
	}
}

// Close stops the feed. It is safe to call more than once.
func (f *DonorFeed) Close() {
	f.mu.Lock()
	f.closed = true
	old := f.unsub
	f.unsub = nil
	f.mu.Unlock()
	if old != nil {
		old()
	}
}
