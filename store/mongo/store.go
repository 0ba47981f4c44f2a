// Package mongo implements the unified store on MongoDB. Dense numeric
// ids come from a counters collection updated with an atomic $inc.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	escrow "github.com/xraph/escrow"
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/role"
	"github.com/xraph/escrow/service"
	escrowstore "github.com/xraph/escrow/store"
	"github.com/xraph/escrow/stream"
	"github.com/xraph/escrow/subscription"
	"github.com/xraph/escrow/types"
)

// Collection name constants.
const (
	colRoles         = "escrow_roles"
	colCounters      = "escrow_counters"
	colServices      = "escrow_services"
	colSubscriptions = "escrow_subscriptions"
	colStreams       = "escrow_streams"
	colPayments      = "escrow_payments"
)

// compile-time interface check
var _ escrowstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New creates a new MongoDB store on the given database.
func New(client *mongo.Client, database string) *Store {
	return &Store{
		client: client,
		db:     client.Database(database),
	}
}

// Database returns the underlying database handle for direct access.
func (s *Store) Database() *mongo.Database { return s.db }

// Migrate creates indexes for all escrow collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		_, err := s.db.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("escrow/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// nextID draws the next dense id for the named counter. The upsert with
// $inc is atomic, so concurrent creates never observe the same value.
func (s *Store) nextID(ctx context.Context, name string) (uint64, error) {
	var counter struct {
		Value int64 `bson:"value"`
	}
	err := s.db.Collection(colCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("escrow/mongo: next %s id: %w", name, err)
	}
	return uint64(counter.Value), nil
}

// ==================== Role Store ====================

func (s *Store) GetRole(ctx context.Context, addr types.Address) (role.Role, error) {
	var m roleModel
	err := s.db.Collection(colRoles).FindOne(ctx,
		bson.M{"_id": addr.String()},
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return role.None, nil
		}
		return role.None, fmt.Errorf("escrow/mongo: get role: %w", err)
	}
	return role.Role(m.Role), nil
}

func (s *Store) SetRole(ctx context.Context, addr types.Address, r role.Role) error {
	_, err := s.db.Collection(colRoles).InsertOne(ctx, &roleModel{
		Address: addr.String(),
		Role:    string(r),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return escrow.ErrAlreadyRegistered
		}
		return fmt.Errorf("escrow/mongo: set role: %w", err)
	}
	return nil
}

// ==================== Service Store ====================

func (s *Store) CreateService(ctx context.Context, svc *service.Service) error {
	next, err := s.nextID(ctx, "service")
	if err != nil {
		return err
	}
	svc.ID = id.ServiceID(next)

	_, err = s.db.Collection(colServices).InsertOne(ctx, toServiceModel(svc))
	if err != nil {
		return fmt.Errorf("escrow/mongo: create service: %w", err)
	}
	return nil
}

func (s *Store) GetService(ctx context.Context, serviceID id.ServiceID) (*service.Service, error) {
	var m serviceModel
	err := s.db.Collection(colServices).FindOne(ctx,
		bson.M{"_id": int64(serviceID)},
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, escrow.ErrServiceNotFound
		}
		return nil, fmt.Errorf("escrow/mongo: get service: %w", err)
	}
	return fromServiceModel(&m), nil
}

func (s *Store) UpdateService(ctx context.Context, svc *service.Service) error {
	res, err := s.db.Collection(colServices).ReplaceOne(ctx,
		bson.M{"_id": int64(svc.ID)},
		toServiceModel(svc),
	)
	if err != nil {
		return fmt.Errorf("escrow/mongo: update service: %w", err)
	}
	if res.MatchedCount == 0 {
		return escrow.ErrServiceNotFound
	}
	return nil
}

func (s *Store) ListServices(ctx context.Context, opts service.ListOpts) ([]*service.Service, error) {
	filter := bson.M{}
	if !opts.Provider.IsZero() {
		filter["provider"] = opts.Provider.String()
	}
	if opts.ActiveOnly {
		filter["active"] = true
	}

	cursor, err := s.db.Collection(colServices).Find(ctx, filter,
		findOpts(opts.Limit, opts.Offset))
	if err != nil {
		return nil, fmt.Errorf("escrow/mongo: list services: %w", err)
	}

	var models []serviceModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("escrow/mongo: list services: %w", err)
	}

	result := make([]*service.Service, len(models))
	for i := range models {
		result[i] = fromServiceModel(&models[i])
	}
	return result, nil
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	next, err := s.nextID(ctx, "subscription")
	if err != nil {
		return err
	}
	sub.ID = id.SubscriptionID(next)

	_, err = s.db.Collection(colSubscriptions).InsertOne(ctx, toSubscriptionModel(sub))
	if err != nil {
		return fmt.Errorf("escrow/mongo: create subscription: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	var m subscriptionModel
	err := s.db.Collection(colSubscriptions).FindOne(ctx,
		bson.M{"_id": int64(subID)},
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, escrow.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("escrow/mongo: get subscription: %w", err)
	}
	return fromSubscriptionModel(&m), nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	res, err := s.db.Collection(colSubscriptions).ReplaceOne(ctx,
		bson.M{"_id": int64(sub.ID)},
		toSubscriptionModel(sub),
	)
	if err != nil {
		return fmt.Errorf("escrow/mongo: update subscription: %w", err)
	}
	if res.MatchedCount == 0 {
		return escrow.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	filter := bson.M{}
	if !opts.Client.IsZero() {
		filter["client"] = opts.Client.String()
	}
	if !opts.Vendor.IsZero() {
		filter["vendor"] = opts.Vendor.String()
	}
	if !opts.Service.IsZero() {
		filter["service_id"] = int64(opts.Service)
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	cursor, err := s.db.Collection(colSubscriptions).Find(ctx, filter,
		findOpts(opts.Limit, opts.Offset))
	if err != nil {
		return nil, fmt.Errorf("escrow/mongo: list subscriptions: %w", err)
	}

	var models []subscriptionModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("escrow/mongo: list subscriptions: %w", err)
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		result[i] = fromSubscriptionModel(&models[i])
	}
	return result, nil
}

// ==================== Stream Store ====================

func (s *Store) CreateStream(ctx context.Context, st *stream.Stream) error {
	next, err := s.nextID(ctx, "stream")
	if err != nil {
		return err
	}
	st.ID = id.StreamID(next)

	_, err = s.db.Collection(colStreams).InsertOne(ctx, toStreamModel(st))
	if err != nil {
		return fmt.Errorf("escrow/mongo: create stream: %w", err)
	}
	return nil
}

func (s *Store) GetStream(ctx context.Context, streamID id.StreamID) (*stream.Stream, error) {
	var m streamModel
	err := s.db.Collection(colStreams).FindOne(ctx,
		bson.M{"_id": int64(streamID)},
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, escrow.ErrStreamNotFound
		}
		return nil, fmt.Errorf("escrow/mongo: get stream: %w", err)
	}
	return fromStreamModel(&m), nil
}

func (s *Store) UpdateStream(ctx context.Context, st *stream.Stream) error {
	res, err := s.db.Collection(colStreams).ReplaceOne(ctx,
		bson.M{"_id": int64(st.ID)},
		toStreamModel(st),
	)
	if err != nil {
		return fmt.Errorf("escrow/mongo: update stream: %w", err)
	}
	if res.MatchedCount == 0 {
		return escrow.ErrStreamNotFound
	}
	return nil
}

func (s *Store) ListStreams(ctx context.Context, opts stream.ListOpts) ([]*stream.Stream, error) {
	filter := bson.M{}
	if !opts.Sender.IsZero() {
		filter["sender"] = opts.Sender.String()
	}
	if !opts.Recipient.IsZero() {
		filter["recipient"] = opts.Recipient.String()
	}

	cursor, err := s.db.Collection(colStreams).Find(ctx, filter,
		findOpts(opts.Limit, opts.Offset))
	if err != nil {
		return nil, fmt.Errorf("escrow/mongo: list streams: %w", err)
	}

	var models []streamModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("escrow/mongo: list streams: %w", err)
	}

	result := make([]*stream.Stream, len(models))
	for i := range models {
		result[i] = fromStreamModel(&models[i])
	}
	return result, nil
}

// ==================== Payment journal ====================

func (s *Store) AppendPayment(ctx context.Context, r *payment.Record) error {
	_, err := s.db.Collection(colPayments).InsertOne(ctx, toPaymentModel(r))
	if err != nil {
		return fmt.Errorf("escrow/mongo: append payment: %w", err)
	}
	return nil
}

func (s *Store) ListPayments(ctx context.Context, opts payment.ListOpts) ([]*payment.Record, error) {
	filter := bson.M{}
	if !opts.SubscriptionID.IsZero() {
		filter["subscription_id"] = int64(opts.SubscriptionID)
	}
	if !opts.StreamID.IsZero() {
		filter["stream_id"] = int64(opts.StreamID)
	}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}
	if !opts.Address.IsZero() {
		filter["$or"] = bson.A{
			bson.M{"from_address": opts.Address.String()},
			bson.M{"to_address": opts.Address.String()},
		}
	}

	fo := findOpts(opts.Limit, opts.Offset).
		SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := s.db.Collection(colPayments).Find(ctx, filter, fo)
	if err != nil {
		return nil, fmt.Errorf("escrow/mongo: list payments: %w", err)
	}

	var models []paymentModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("escrow/mongo: list payments: %w", err)
	}

	result := make([]*payment.Record, 0, len(models))
	for i := range models {
		r, err := fromPaymentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, nil
}

// findOpts builds Find options with id ordering plus optional paging.
func findOpts(limit, offset int) *options.FindOptionsBuilder {
	fo := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		fo.SetLimit(int64(limit))
	}
	if offset > 0 {
		fo.SetSkip(int64(offset))
	}
	return fo
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all escrow collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colServices: {
			{Keys: bson.D{{Key: "provider", Value: 1}}},
			{Keys: bson.D{{Key: "provider", Value: 1}, {Key: "active", Value: 1}}},
		},
		colSubscriptions: {
			{Keys: bson.D{{Key: "client", Value: 1}}},
			{Keys: bson.D{{Key: "vendor", Value: 1}}},
			{Keys: bson.D{{Key: "service_id", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "next_payment_block", Value: 1}}},
		},
		colStreams: {
			{Keys: bson.D{{Key: "sender", Value: 1}}},
			{Keys: bson.D{{Key: "recipient", Value: 1}}},
		},
		colPayments: {
			{Keys: bson.D{{Key: "subscription_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "stream_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "from_address", Value: 1}}},
			{Keys: bson.D{{Key: "to_address", Value: 1}}},
		},
	}
}
