package store

import (
	"context"

	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/role"
	"github.com/xraph/escrow/service"
	"github.com/xraph/escrow/stream"
	"github.com/xraph/escrow/subscription"
	"github.com/xraph/escrow/types"
)

// Store is the unified storage interface for all escrow entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Role methods
	GetRole(ctx context.Context, addr types.Address) (role.Role, error)
	SetRole(ctx context.Context, addr types.Address, r role.Role) error

	// Service methods
	CreateService(ctx context.Context, svc *service.Service) error
	GetService(ctx context.Context, serviceID id.ServiceID) (*service.Service, error)
	UpdateService(ctx context.Context, svc *service.Service) error
	ListServices(ctx context.Context, opts service.ListOpts) ([]*service.Service, error)

	// Subscription methods
	CreateSubscription(ctx context.Context, s *subscription.Subscription) error
	GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error)
	UpdateSubscription(ctx context.Context, s *subscription.Subscription) error
	ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error)

	// Stream methods
	CreateStream(ctx context.Context, s *stream.Stream) error
	GetStream(ctx context.Context, streamID id.StreamID) (*stream.Stream, error)
	UpdateStream(ctx context.Context, s *stream.Stream) error
	ListStreams(ctx context.Context, opts stream.ListOpts) ([]*stream.Stream, error)

	// Payment journal methods
	AppendPayment(ctx context.Context, r *payment.Record) error
	ListPayments(ctx context.Context, opts payment.ListOpts) ([]*payment.Record, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
