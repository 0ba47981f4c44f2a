// Package postgres implements the unified store on PostgreSQL via pgx.
//
// Dense 1-based ids are assigned from the escrow_counters table inside the
// inserting transaction rather than from sequences, because sequences leave
// gaps on aborted transactions and the id scheme requires contiguity.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

// compile-time interface check
var _ escrowstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL store on top of an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying connection pool for direct access.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("escrow/postgres: migrate: %w", err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// nextID draws the next dense id for the named counter within tx.
func nextID(ctx context.Context, tx pgx.Tx, name string) (uint64, error) {
	var value int64
	err := tx.QueryRow(ctx,
		`UPDATE escrow_counters SET value = value + 1 WHERE name = $1 RETURNING value`,
		name,
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("escrow/postgres: next %s id: %w", name, err)
	}
	return uint64(value), nil
}

// ==================== Role Store ====================

func (s *Store) GetRole(ctx context.Context, addr types.Address) (role.Role, error) {
	var r string
	err := s.pool.QueryRow(ctx,
		`SELECT role FROM escrow_roles WHERE address = $1`,
		addr.String(),
	).Scan(&r)
	if err != nil {
		if isNoRows(err) {
			return role.None, nil
		}
		return role.None, fmt.Errorf("escrow/postgres: get role: %w", err)
	}
	return role.Role(r), nil
}

func (s *Store) SetRole(ctx context.Context, addr types.Address, r role.Role) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO escrow_roles (address, role) VALUES ($1, $2) ON CONFLICT (address) DO NOTHING`,
		addr.String(), string(r),
	)
	if err != nil {
		return fmt.Errorf("escrow/postgres: set role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return escrow.ErrAlreadyRegistered
	}
	return nil
}

// ==================== Service Store ====================

func (s *Store) CreateService(ctx context.Context, svc *service.Service) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("escrow/postgres: create service: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	next, err := nextID(ctx, tx, "service")
	if err != nil {
		return err
	}
	svc.ID = id.ServiceID(next)

	_, err = tx.Exec(ctx, `
INSERT INTO escrow_services
    (id, provider, name, description, token, amount_per_cycle, frequency_in_blocks, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		int64(svc.ID), svc.Provider.String(), svc.Name, svc.Description, svc.Token,
		svc.AmountPerCycle, int64(svc.FrequencyInBlocks), svc.Active,
		svc.CreatedAt, svc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("escrow/postgres: create service: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Store) GetService(ctx context.Context, serviceID id.ServiceID) (*service.Service, error) {
	svc, err := scanService(s.pool.QueryRow(ctx,
		serviceColumns+` WHERE id = $1`,
		int64(serviceID),
	))
	if err != nil {
		if isNoRows(err) {
			return nil, escrow.ErrServiceNotFound
		}
		return nil, fmt.Errorf("escrow/postgres: get service: %w", err)
	}
	return svc, nil
}

func (s *Store) UpdateService(ctx context.Context, svc *service.Service) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE escrow_services SET
    name = $2, description = $3, active = $4, updated_at = $5
WHERE id = $1`,
		int64(svc.ID), svc.Name, svc.Description, svc.Active, svc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("escrow/postgres: update service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return escrow.ErrServiceNotFound
	}
	return nil
}

func (s *Store) ListServices(ctx context.Context, opts service.ListOpts) ([]*service.Service, error) {
	query := serviceColumns
	var conds []string
	var args []any

	if !opts.Provider.IsZero() {
		args = append(args, opts.Provider.String())
		conds = append(conds, fmt.Sprintf("provider = $%d", len(args)))
	}
	if opts.ActiveOnly {
		conds = append(conds, "active = TRUE")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"
	query += limitOffset(&args, opts.Limit, opts.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("escrow/postgres: list services: %w", err)
	}
	defer rows.Close()

	result := make([]*service.Service, 0)
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("escrow/postgres: list services: %w", err)
		}
		result = append(result, svc)
	}
	return result, rows.Err()
}

const serviceColumns = `
SELECT id, provider, name, description, token, amount_per_cycle, frequency_in_blocks, active, created_at, updated_at
FROM escrow_services`

func scanService(row pgx.Row) (*service.Service, error) {
	var svc service.Service
	var sid, freq int64
	var provider string

	err := row.Scan(&sid, &provider, &svc.Name, &svc.Description, &svc.Token,
		&svc.AmountPerCycle, &freq, &svc.Active, &svc.CreatedAt, &svc.UpdatedAt)
	if err != nil {
		return nil, err
	}

	svc.ID = id.ServiceID(sid)
	svc.Provider = types.Address(provider)
	svc.FrequencyInBlocks = uint64(freq)
	return &svc, nil
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("escrow/postgres: create subscription: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	next, err := nextID(ctx, tx, "subscription")
	if err != nil {
		return err
	}
	sub.ID = id.SubscriptionID(next)

	_, err = tx.Exec(ctx, `
INSERT INTO escrow_subscriptions
    (id, service_id, client, vendor, token, amount_per_cycle, frequency_in_blocks,
     remaining_balance, last_payment_block, next_payment_block, status,
     cancel_effective_block, cancel_requested_by, cancel_present, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		int64(sub.ID), int64(sub.ServiceID), sub.Client.String(), sub.Vendor.String(), sub.Token,
		sub.AmountPerCycle, int64(sub.FrequencyInBlocks),
		sub.RemainingBalance, int64(sub.LastPaymentBlock), int64(sub.NextPaymentBlock), string(sub.Status),
		int64(sub.CancelEffectiveBlock), sub.CancelRequest.RequestedBy.String(), sub.CancelRequest.Present,
		sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("escrow/postgres: create subscription: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	sub, err := scanSubscription(s.pool.QueryRow(ctx,
		subscriptionColumns+` WHERE id = $1`,
		int64(subID),
	))
	if err != nil {
		if isNoRows(err) {
			return nil, escrow.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("escrow/postgres: get subscription: %w", err)
	}
	return sub, nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE escrow_subscriptions SET
    remaining_balance = $2, last_payment_block = $3, next_payment_block = $4,
    status = $5, cancel_effective_block = $6, cancel_requested_by = $7,
    cancel_present = $8, updated_at = $9
WHERE id = $1`,
		int64(sub.ID), sub.RemainingBalance, int64(sub.LastPaymentBlock), int64(sub.NextPaymentBlock),
		string(sub.Status), int64(sub.CancelEffectiveBlock), sub.CancelRequest.RequestedBy.String(),
		sub.CancelRequest.Present, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("escrow/postgres: update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return escrow.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	query := subscriptionColumns
	var conds []string
	var args []any

	if !opts.Client.IsZero() {
		args = append(args, opts.Client.String())
		conds = append(conds, fmt.Sprintf("client = $%d", len(args)))
	}
	if !opts.Vendor.IsZero() {
		args = append(args, opts.Vendor.String())
		conds = append(conds, fmt.Sprintf("vendor = $%d", len(args)))
	}
	if !opts.Service.IsZero() {
		args = append(args, int64(opts.Service))
		conds = append(conds, fmt.Sprintf("service_id = $%d", len(args)))
	}
	if opts.Status != "" {
		args = append(args, string(opts.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"
	query += limitOffset(&args, opts.Limit, opts.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("escrow/postgres: list subscriptions: %w", err)
	}
	defer rows.Close()

	result := make([]*subscription.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("escrow/postgres: list subscriptions: %w", err)
		}
		result = append(result, sub)
	}
	return result, rows.Err()
}

const subscriptionColumns = `
SELECT id, service_id, client, vendor, token, amount_per_cycle, frequency_in_blocks,
       remaining_balance, last_payment_block, next_payment_block, status,
       cancel_effective_block, cancel_requested_by, cancel_present, created_at, updated_at
FROM escrow_subscriptions`

func scanSubscription(row pgx.Row) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	var subID, serviceID, freq, lastBlock, nextBlock, effBlock int64
	var client, vendor, status, requestedBy string

	err := row.Scan(&subID, &serviceID, &client, &vendor, &sub.Token,
		&sub.AmountPerCycle, &freq,
		&sub.RemainingBalance, &lastBlock, &nextBlock, &status,
		&effBlock, &requestedBy, &sub.CancelRequest.Present,
		&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}

	sub.ID = id.SubscriptionID(subID)
	sub.ServiceID = id.ServiceID(serviceID)
	sub.Client = types.Address(client)
	sub.Vendor = types.Address(vendor)
	sub.FrequencyInBlocks = uint64(freq)
	sub.LastPaymentBlock = uint64(lastBlock)
	sub.NextPaymentBlock = uint64(nextBlock)
	sub.Status = subscription.Status(status)
	sub.CancelEffectiveBlock = uint64(effBlock)
	sub.CancelRequest.RequestedBy = types.Address(requestedBy)
	return &sub, nil
}

// ==================== Stream Store ====================

func (s *Store) CreateStream(ctx context.Context, st *stream.Stream) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("escrow/postgres: create stream: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	next, err := nextID(ctx, tx, "stream")
	if err != nil {
		return err
	}
	st.ID = id.StreamID(next)

	_, err = tx.Exec(ctx, `
INSERT INTO escrow_streams
    (id, sender, recipient, token, total_deposit, claimed_amount, start_block, end_block, closed, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		int64(st.ID), st.Sender.String(), st.Recipient.String(), st.Token,
		st.TotalDeposit, st.ClaimedAmount, int64(st.StartBlock), int64(st.EndBlock), st.Closed,
		st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("escrow/postgres: create stream: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Store) GetStream(ctx context.Context, streamID id.StreamID) (*stream.Stream, error) {
	st, err := scanStream(s.pool.QueryRow(ctx,
		streamColumns+` WHERE id = $1`,
		int64(streamID),
	))
	if err != nil {
		if isNoRows(err) {
			return nil, escrow.ErrStreamNotFound
		}
		return nil, fmt.Errorf("escrow/postgres: get stream: %w", err)
	}
	return st, nil
}

func (s *Store) UpdateStream(ctx context.Context, st *stream.Stream) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE escrow_streams SET
    claimed_amount = $2, closed = $3, updated_at = $4
WHERE id = $1`,
		int64(st.ID), st.ClaimedAmount, st.Closed, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("escrow/postgres: update stream: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return escrow.ErrStreamNotFound
	}
	return nil
}

func (s *Store) ListStreams(ctx context.Context, opts stream.ListOpts) ([]*stream.Stream, error) {
	query := streamColumns
	var conds []string
	var args []any

	if !opts.Sender.IsZero() {
		args = append(args, opts.Sender.String())
		conds = append(conds, fmt.Sprintf("sender = $%d", len(args)))
	}
	if !opts.Recipient.IsZero() {
		args = append(args, opts.Recipient.String())
		conds = append(conds, fmt.Sprintf("recipient = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"
	query += limitOffset(&args, opts.Limit, opts.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("escrow/postgres: list streams: %w", err)
	}
	defer rows.Close()

	result := make([]*stream.Stream, 0)
	for rows.Next() {
		st, err := scanStream(rows)
		if err != nil {
			return nil, fmt.Errorf("escrow/postgres: list streams: %w", err)
		}
		result = append(result, st)
	}
	return result, rows.Err()
}

const streamColumns = `
SELECT id, sender, recipient, token, total_deposit, claimed_amount, start_block, end_block, closed, created_at, updated_at
FROM escrow_streams`

func scanStream(row pgx.Row) (*stream.Stream, error) {
	var st stream.Stream
	var sid, startBlock, endBlock int64
	var sender, recipient string

	err := row.Scan(&sid, &sender, &recipient, &st.Token,
		&st.TotalDeposit, &st.ClaimedAmount, &startBlock, &endBlock, &st.Closed,
		&st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}

	st.ID = id.StreamID(sid)
	st.Sender = types.Address(sender)
	st.Recipient = types.Address(recipient)
	st.StartBlock = uint64(startBlock)
	st.EndBlock = uint64(endBlock)
	return &st, nil
}

// ==================== Payment journal ====================

func (s *Store) AppendPayment(ctx context.Context, r *payment.Record) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO escrow_payments
    (id, subscription_id, stream_id, kind, from_address, to_address, token, amount, block, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.ID.String(), int64(r.SubscriptionID), int64(r.StreamID), string(r.Kind),
		r.From.String(), r.To.String(), r.Coin.Token, r.Coin.Amount, int64(r.Block),
		r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("escrow/postgres: append payment: %w", err)
	}
	return nil
}

func (s *Store) ListPayments(ctx context.Context, opts payment.ListOpts) ([]*payment.Record, error) {
	query := `
SELECT id, subscription_id, stream_id, kind, from_address, to_address, token, amount, block, created_at, updated_at
FROM escrow_payments`
	var conds []string
	var args []any

	if !opts.SubscriptionID.IsZero() {
		args = append(args, int64(opts.SubscriptionID))
		conds = append(conds, fmt.Sprintf("subscription_id = $%d", len(args)))
	}
	if !opts.StreamID.IsZero() {
		args = append(args, int64(opts.StreamID))
		conds = append(conds, fmt.Sprintf("stream_id = $%d", len(args)))
	}
	if opts.Kind != "" {
		args = append(args, string(opts.Kind))
		conds = append(conds, fmt.Sprintf("kind = $%d", len(args)))
	}
	if !opts.Address.IsZero() {
		args = append(args, opts.Address.String())
		conds = append(conds, fmt.Sprintf("(from_address = $%d OR to_address = $%d)", len(args), len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at"
	query += limitOffset(&args, opts.Limit, opts.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("escrow/postgres: list payments: %w", err)
	}
	defer rows.Close()

	result := make([]*payment.Record, 0)
	for rows.Next() {
		var r payment.Record
		var rawID, kind, from, to string
		var subID, streamID, block int64

		err := rows.Scan(&rawID, &subID, &streamID, &kind, &from, &to,
			&r.Coin.Token, &r.Coin.Amount, &block, &r.CreatedAt, &r.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("escrow/postgres: list payments: %w", err)
		}

		pid, err := id.ParsePaymentID(rawID)
		if err != nil {
			return nil, fmt.Errorf("escrow/postgres: list payments: %w", err)
		}

		r.ID = pid
		r.SubscriptionID = id.SubscriptionID(subID)
		r.StreamID = id.StreamID(streamID)
		r.Kind = payment.Kind(kind)
		r.From = types.Address(from)
		r.To = types.Address(to)
		r.Block = uint64(block)
		result = append(result, &r)
	}
	return result, rows.Err()
}

// limitOffset appends LIMIT/OFFSET clauses and their args when set.
func limitOffset(args *[]any, limit, offset int) string {
	var clause string
	if limit > 0 {
		*args = append(*args, limit)
		clause += fmt.Sprintf(" LIMIT $%d", len(*args))
	}
	if offset > 0 {
		*args = append(*args, offset)
		clause += fmt.Sprintf(" OFFSET $%d", len(*args))
	}
	return clause
}
