package memory

import (
	"sync"

	"context"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/role"
	"github.com/xraph/escrow/service"
	"github.com/xraph/escrow/store"
	"github.com/xraph/escrow/stream"
	"github.com/xraph/escrow/subscription"
	"github.com/xraph/escrow/types"
)

type Store struct {
	mu sync.RWMutex

	// Role registry
	roles map[types.Address]role.Role

	// Service catalog. Ids are dense and 1-based, so iteration walks
	// 1..lastServiceID.
	services      map[id.ServiceID]*service.Service
	lastServiceID id.ServiceID

	// Subscription ledger
	subscriptions      map[id.SubscriptionID]*subscription.Subscription
	lastSubscriptionID id.SubscriptionID

	// Reverse indexes, append-only. Entries are never removed when a
	// subscription terminates.
	subsByClient  map[types.Address][]id.SubscriptionID
	subsByVendor  map[types.Address][]id.SubscriptionID
	subsByService map[id.ServiceID][]id.SubscriptionID

	// Payment streams
	streams      map[id.StreamID]*stream.Stream
	lastStreamID id.StreamID

	// Payment journal, append-only.
	payments []*payment.Record
}

func New() *Store {
	return &Store{
		roles:         make(map[types.Address]role.Role),
		services:      make(map[id.ServiceID]*service.Service),
		subscriptions: make(map[id.SubscriptionID]*subscription.Subscription),
		subsByClient:  make(map[types.Address][]id.SubscriptionID),
		subsByVendor:  make(map[types.Address][]id.SubscriptionID),
		subsByService: make(map[id.ServiceID][]id.SubscriptionID),
		streams:       make(map[id.StreamID]*stream.Stream),
		payments:      make([]*payment.Record, 0),
	}
}

// Role Store implementation
func (s *Store) GetRole(_ context.Context, addr types.Address) (role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.roles[addr]; ok {
		return r, nil
	}
	return role.None, nil
}

func (s *Store) SetRole(_ context.Context, addr types.Address, r role.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.roles[addr]; ok && existing != role.None {
		return escrow.ErrAlreadyRegistered
	}
	s.roles[addr] = r
	return nil
}

// Service Store implementation
func (s *Store) CreateService(_ context.Context, svc *service.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastServiceID++
	svc.ID = s.lastServiceID
	s.services[svc.ID] = svc
	return nil
}

func (s *Store) GetService(_ context.Context, serviceID id.ServiceID) (*service.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if svc, ok := s.services[serviceID]; ok {
		return svc, nil
	}
	return nil, escrow.ErrServiceNotFound
}

func (s *Store) UpdateService(_ context.Context, svc *service.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.services[svc.ID]; !exists {
		return escrow.ErrServiceNotFound
	}
	s.services[svc.ID] = svc
	return nil
}

func (s *Store) ListServices(_ context.Context, opts service.ListOpts) ([]*service.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*service.Service, 0)
	for sid := id.ServiceID(1); sid <= s.lastServiceID; sid++ {
		svc := s.services[sid]
		if !opts.Provider.IsZero() && svc.Provider != opts.Provider {
			continue
		}
		if opts.ActiveOnly && !svc.Active {
			continue
		}
		result = append(result, svc)
	}

	return paginate(result, opts.Offset, opts.Limit), nil
}

// Subscription Store implementation
func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSubscriptionID++
	sub.ID = s.lastSubscriptionID
	s.subscriptions[sub.ID] = sub

	s.subsByClient[sub.Client] = append(s.subsByClient[sub.Client], sub.ID)
	s.subsByVendor[sub.Vendor] = append(s.subsByVendor[sub.Vendor], sub.ID)
	s.subsByService[sub.ServiceID] = append(s.subsByService[sub.ServiceID], sub.ID)
	return nil
}

func (s *Store) GetSubscription(_ context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub, ok := s.subscriptions[subID]; ok {
		return sub, nil
	}
	return nil, escrow.ErrSubscriptionNotFound
}

func (s *Store) UpdateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[sub.ID]; !exists {
		return escrow.ErrSubscriptionNotFound
	}
	s.subscriptions[sub.ID] = sub
	return nil
}

func (s *Store) ListSubscriptions(_ context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Narrow by the most selective index available, then filter.
	var candidates []id.SubscriptionID
	switch {
	case !opts.Client.IsZero():
		candidates = s.subsByClient[opts.Client]
	case !opts.Vendor.IsZero():
		candidates = s.subsByVendor[opts.Vendor]
	case !opts.Service.IsZero():
		candidates = s.subsByService[opts.Service]
	default:
		candidates = make([]id.SubscriptionID, 0, len(s.subscriptions))
		for sid := id.SubscriptionID(1); sid <= s.lastSubscriptionID; sid++ {
			candidates = append(candidates, sid)
		}
	}

	result := make([]*subscription.Subscription, 0)
	for _, sid := range candidates {
		sub := s.subscriptions[sid]
		if !opts.Client.IsZero() && sub.Client != opts.Client {
			continue
		}
		if !opts.Vendor.IsZero() && sub.Vendor != opts.Vendor {
			continue
		}
		if !opts.Service.IsZero() && sub.ServiceID != opts.Service {
			continue
		}
		if opts.Status != "" && sub.Status != opts.Status {
			continue
		}
		result = append(result, sub)
	}

	return paginate(result, opts.Offset, opts.Limit), nil
}

// Stream Store implementation
func (s *Store) CreateStream(_ context.Context, st *stream.Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastStreamID++
	st.ID = s.lastStreamID
	s.streams[st.ID] = st
	return nil
}

func (s *Store) GetStream(_ context.Context, streamID id.StreamID) (*stream.Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.streams[streamID]; ok {
		return st, nil
	}
	return nil, escrow.ErrStreamNotFound
}

func (s *Store) UpdateStream(_ context.Context, st *stream.Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.streams[st.ID]; !exists {
		return escrow.ErrStreamNotFound
	}
	s.streams[st.ID] = st
	return nil
}

func (s *Store) ListStreams(_ context.Context, opts stream.ListOpts) ([]*stream.Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*stream.Stream, 0)
	for sid := id.StreamID(1); sid <= s.lastStreamID; sid++ {
		st := s.streams[sid]
		if !opts.Sender.IsZero() && st.Sender != opts.Sender {
			continue
		}
		if !opts.Recipient.IsZero() && st.Recipient != opts.Recipient {
			continue
		}
		result = append(result, st)
	}

	return paginate(result, opts.Offset, opts.Limit), nil
}

// Payment journal implementation
func (s *Store) AppendPayment(_ context.Context, r *payment.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.payments = append(s.payments, r)
	return nil
}

func (s *Store) ListPayments(_ context.Context, opts payment.ListOpts) ([]*payment.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*payment.Record, 0)
	for _, r := range s.payments {
		if !opts.SubscriptionID.IsZero() && r.SubscriptionID != opts.SubscriptionID {
			continue
		}
		if !opts.StreamID.IsZero() && r.StreamID != opts.StreamID {
			continue
		}
		if opts.Kind != "" && r.Kind != opts.Kind {
			continue
		}
		if !opts.Address.IsZero() && r.From != opts.Address && r.To != opts.Address {
			continue
		}
		result = append(result, r)
	}

	return paginate(result, opts.Offset, opts.Limit), nil
}

// Store management
func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}

// Helper functions
func paginate[T any](items []T, offset, limit int) []T {
	start := offset
	if start < 0 {
		start = 0
	}
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit == 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

var _ store.Store = (*Store)(nil)
