// Package sqlite implements the unified store on SQLite via database/sql
// and the modernc.org/sqlite driver (no cgo). It mirrors the postgres
// driver's layout, including counter-table id assignment.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // database/sql driver registration

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

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store on top of an existing database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens a SQLite database at the given path and wraps it in a Store.
// Use ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("escrow/sqlite: open %s: %w", path, err)
	}
	// SQLite handles one writer at a time; more connections just contend.
	db.SetMaxOpenConns(1)
	return New(db), nil
}

// DB returns the underlying database handle for direct access.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("escrow/sqlite: migrate: %w", err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// nextID draws the next dense id for the named counter within tx.
func nextID(ctx context.Context, tx *sql.Tx, name string) (uint64, error) {
	if _, err := tx.ExecContext(ctx,
		`UPDATE escrow_counters SET value = value + 1 WHERE name = ?`, name,
	); err != nil {
		return 0, fmt.Errorf("escrow/sqlite: next %s id: %w", name, err)
	}

	var value int64
	err := tx.QueryRowContext(ctx,
		`SELECT value FROM escrow_counters WHERE name = ?`, name,
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("escrow/sqlite: next %s id: %w", name, err)
	}
	return uint64(value), nil
}

// ==================== Role Store ====================

func (s *Store) GetRole(ctx context.Context, addr types.Address) (role.Role, error) {
	var r string
	err := s.db.QueryRowContext(ctx,
		`SELECT role FROM escrow_roles WHERE address = ?`,
		addr.String(),
	).Scan(&r)
	if err != nil {
		if isNoRows(err) {
			return role.None, nil
		}
		return role.None, fmt.Errorf("escrow/sqlite: get role: %w", err)
	}
	return role.Role(r), nil
}

func (s *Store) SetRole(ctx context.Context, addr types.Address, r role.Role) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO escrow_roles (address, role) VALUES (?, ?)`,
		addr.String(), string(r),
	)
	if err != nil {
		return fmt.Errorf("escrow/sqlite: set role: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("escrow/sqlite: set role: %w", err)
	}
	if affected == 0 {
		return escrow.ErrAlreadyRegistered
	}
	return nil
}

// ==================== Service Store ====================

func (s *Store) CreateService(ctx context.Context, svc *service.Service) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("escrow/sqlite: create service: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	next, err := nextID(ctx, tx, "service")
	if err != nil {
		return err
	}
	svc.ID = id.ServiceID(next)

	_, err = tx.ExecContext(ctx, `
INSERT INTO escrow_services
    (id, provider, name, description, token, amount_per_cycle, frequency_in_blocks, active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(svc.ID), svc.Provider.String(), svc.Name, svc.Description, svc.Token,
		svc.AmountPerCycle, int64(svc.FrequencyInBlocks), svc.Active,
		svc.CreatedAt, svc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("escrow/sqlite: create service: %w", err)
	}

	return tx.Commit()
}

func (s *Store) GetService(ctx context.Context, serviceID id.ServiceID) (*service.Service, error) {
	svc, err := scanService(s.db.QueryRowContext(ctx,
		serviceColumns+` WHERE id = ?`,
		int64(serviceID),
	))
	if err != nil {
		if isNoRows(err) {
			return nil, escrow.ErrServiceNotFound
		}
		return nil, fmt.Errorf("escrow/sqlite: get service: %w", err)
	}
	return svc, nil
}

func (s *Store) UpdateService(ctx context.Context, svc *service.Service) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE escrow_services SET
    name = ?, description = ?, active = ?, updated_at = ?
WHERE id = ?`,
		svc.Name, svc.Description, svc.Active, svc.UpdatedAt, int64(svc.ID),
	)
	if err != nil {
		return fmt.Errorf("escrow/sqlite: update service: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("escrow/sqlite: update service: %w", err)
	}
	if affected == 0 {
		return escrow.ErrServiceNotFound
	}
	return nil
}

func (s *Store) ListServices(ctx context.Context, opts service.ListOpts) ([]*service.Service, error) {
	query := serviceColumns
	var conds []string
	var args []any

	if !opts.Provider.IsZero() {
		conds = append(conds, "provider = ?")
		args = append(args, opts.Provider.String())
	}
	if opts.ActiveOnly {
		conds = append(conds, "active = 1")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"
	query += limitOffset(&args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("escrow/sqlite: list services: %w", err)
	}
	defer rows.Close()

	result := make([]*service.Service, 0)
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("escrow/sqlite: list services: %w", err)
		}
		result = append(result, svc)
	}
	return result, rows.Err()
}

const serviceColumns = `
SELECT id, provider, name, description, token, amount_per_cycle, frequency_in_blocks, active, created_at, updated_at
FROM escrow_services`

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanService(row scanner) (*service.Service, error) {
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
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("escrow/sqlite: create subscription: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	next, err := nextID(ctx, tx, "subscription")
	if err != nil {
		return err
	}
	sub.ID = id.SubscriptionID(next)

	_, err = tx.ExecContext(ctx, `
INSERT INTO escrow_subscriptions
    (id, service_id, client, vendor, token, amount_per_cycle, frequency_in_blocks,
     remaining_balance, last_payment_block, next_payment_block, status,
     cancel_effective_block, cancel_requested_by, cancel_present, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(sub.ID), int64(sub.ServiceID), sub.Client.String(), sub.Vendor.String(), sub.Token,
		sub.AmountPerCycle, int64(sub.FrequencyInBlocks),
		sub.RemainingBalance, int64(sub.LastPaymentBlock), int64(sub.NextPaymentBlock), string(sub.Status),
		int64(sub.CancelEffectiveBlock), sub.CancelRequest.RequestedBy.String(), sub.CancelRequest.Present,
		sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("escrow/sqlite: create subscription: %w", err)
	}

	return tx.Commit()
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRowContext(ctx,
		subscriptionColumns+` WHERE id = ?`,
		int64(subID),
	))
	if err != nil {
		if isNoRows(err) {
			return nil, escrow.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("escrow/sqlite: get subscription: %w", err)
	}
	return sub, nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE escrow_subscriptions SET
    remaining_balance = ?, last_payment_block = ?, next_payment_block = ?,
    status = ?, cancel_effective_block = ?, cancel_requested_by = ?,
    cancel_present = ?, updated_at = ?
WHERE id = ?`,
		sub.RemainingBalance, int64(sub.LastPaymentBlock), int64(sub.NextPaymentBlock),
		string(sub.Status), int64(sub.CancelEffectiveBlock), sub.CancelRequest.RequestedBy.String(),
		sub.CancelRequest.Present, sub.UpdatedAt, int64(sub.ID),
	)
	if err != nil {
		return fmt.Errorf("escrow/sqlite: update subscription: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("escrow/sqlite: update subscription: %w", err)
	}
	if affected == 0 {
		return escrow.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	query := subscriptionColumns
	var conds []string
	var args []any

	if !opts.Client.IsZero() {
		conds = append(conds, "client = ?")
		args = append(args, opts.Client.String())
	}
	if !opts.Vendor.IsZero() {
		conds = append(conds, "vendor = ?")
		args = append(args, opts.Vendor.String())
	}
	if !opts.Service.IsZero() {
		conds = append(conds, "service_id = ?")
		args = append(args, int64(opts.Service))
	}
	if opts.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(opts.Status))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"
	query += limitOffset(&args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("escrow/sqlite: list subscriptions: %w", err)
	}
	defer rows.Close()

	result := make([]*subscription.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("escrow/sqlite: list subscriptions: %w", err)
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

func scanSubscription(row scanner) (*subscription.Subscription, error) {
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
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("escrow/sqlite: create stream: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	next, err := nextID(ctx, tx, "stream")
	if err != nil {
		return err
	}
	st.ID = id.StreamID(next)

	_, err = tx.ExecContext(ctx, `
INSERT INTO escrow_streams
    (id, sender, recipient, token, total_deposit, claimed_amount, start_block, end_block, closed, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(st.ID), st.Sender.String(), st.Recipient.String(), st.Token,
		st.TotalDeposit, st.ClaimedAmount, int64(st.StartBlock), int64(st.EndBlock), st.Closed,
		st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("escrow/sqlite: create stream: %w", err)
	}

	return tx.Commit()
}

func (s *Store) GetStream(ctx context.Context, streamID id.StreamID) (*stream.Stream, error) {
	st, err := scanStream(s.db.QueryRowContext(ctx,
		streamColumns+` WHERE id = ?`,
		int64(streamID),
	))
	if err != nil {
		if isNoRows(err) {
			return nil, escrow.ErrStreamNotFound
		}
		return nil, fmt.Errorf("escrow/sqlite: get stream: %w", err)
	}
	return st, nil
}

func (s *Store) UpdateStream(ctx context.Context, st *stream.Stream) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE escrow_streams SET
    claimed_amount = ?, closed = ?, updated_at = ?
WHERE id = ?`,
		st.ClaimedAmount, st.Closed, st.UpdatedAt, int64(st.ID),
	)
	if err != nil {
		return fmt.Errorf("escrow/sqlite: update stream: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("escrow/sqlite: update stream: %w", err)
	}
	if affected == 0 {
		return escrow.ErrStreamNotFound
	}
	return nil
}

func (s *Store) ListStreams(ctx context.Context, opts stream.ListOpts) ([]*stream.Stream, error) {
	query := streamColumns
	var conds []string
	var args []any

	if !opts.Sender.IsZero() {
		conds = append(conds, "sender = ?")
		args = append(args, opts.Sender.String())
	}
	if !opts.Recipient.IsZero() {
		conds = append(conds, "recipient = ?")
		args = append(args, opts.Recipient.String())
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"
	query += limitOffset(&args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("escrow/sqlite: list streams: %w", err)
	}
	defer rows.Close()

	result := make([]*stream.Stream, 0)
	for rows.Next() {
		st, err := scanStream(rows)
		if err != nil {
			return nil, fmt.Errorf("escrow/sqlite: list streams: %w", err)
		}
		result = append(result, st)
	}
	return result, rows.Err()
}

const streamColumns = `
SELECT id, sender, recipient, token, total_deposit, claimed_amount, start_block, end_block, closed, created_at, updated_at
FROM escrow_streams`

func scanStream(row scanner) (*stream.Stream, error) {
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
	_, err := s.db.ExecContext(ctx, `
INSERT INTO escrow_payments
    (id, subscription_id, stream_id, kind, from_address, to_address, token, amount, block, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), int64(r.SubscriptionID), int64(r.StreamID), string(r.Kind),
		r.From.String(), r.To.String(), r.Coin.Token, r.Coin.Amount, int64(r.Block),
		r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("escrow/sqlite: append payment: %w", err)
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
		conds = append(conds, "subscription_id = ?")
		args = append(args, int64(opts.SubscriptionID))
	}
	if !opts.StreamID.IsZero() {
		conds = append(conds, "stream_id = ?")
		args = append(args, int64(opts.StreamID))
	}
	if opts.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(opts.Kind))
	}
	if !opts.Address.IsZero() {
		conds = append(conds, "(from_address = ? OR to_address = ?)")
		args = append(args, opts.Address.String(), opts.Address.String())
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at"
	query += limitOffset(&args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("escrow/sqlite: list payments: %w", err)
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
			return nil, fmt.Errorf("escrow/sqlite: list payments: %w", err)
		}

		pid, err := id.ParsePaymentID(rawID)
		if err != nil {
			return nil, fmt.Errorf("escrow/sqlite: list payments: %w", err)
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
// SQLite requires a LIMIT before OFFSET; -1 means unlimited.
func limitOffset(args *[]any, limit, offset int) string {
	var clause string
	switch {
	case limit > 0:
		clause += " LIMIT ?"
		*args = append(*args, limit)
	case offset > 0:
		clause += " LIMIT -1"
	}
	if offset > 0 {
		clause += " OFFSET ?"
		*args = append(*args, offset)
	}
	return clause
}
