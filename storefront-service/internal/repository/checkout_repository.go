package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/nana-k-osei/LAGC/storefront-service/domain"
)

const sessionColumns = `id, idempotency_key, reference, cart_id, user_id, email, is_member, status,
	failure_reason, failure_detail, payment_reference, authorization_url, lines,
	discount_percent, totals, currency, shortage, created_at, updated_at`

// CreateSession inserts a new checkout session. A session with the same
// idempotency key yields ErrDuplicateKey.
func (r *Postgres) CreateSession(ctx context.Context, s *domain.CheckoutSession) error {
	lines, totals, shortage, err := marshalSession(s)
	if err != nil {
		return err
	}

	query := `INSERT INTO checkout_sessions (` + sessionColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err = r.db.ExecContext(ctx, query,
		s.ID,
		s.IdempotencyKey,
		s.Reference,
		s.CartID,
		s.UserID,
		s.Email,
		s.IsMember,
		s.Status,
		s.FailureReason,
		s.FailureDetail,
		s.PaymentReference,
		s.AuthorizationURL,
		lines,
		s.DiscountPercent,
		totals,
		s.Currency,
		shortage,
		s.CreatedAt,
		s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("checkout session %s: %w", s.IdempotencyKey, ErrDuplicateKey)
		}
		return fmt.Errorf("insert checkout session: %w", err)
	}
	return nil
}

// UpdateSession writes back every mutable column of the session.
func (r *Postgres) UpdateSession(ctx context.Context, s *domain.CheckoutSession) error {
	return updateSession(ctx, r.db, s)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateSession(ctx context.Context, db execer, s *domain.CheckoutSession) error {
	lines, totals, shortage, err := marshalSession(s)
	if err != nil {
		return err
	}

	query := `UPDATE checkout_sessions
	          SET status = $2, failure_reason = $3, failure_detail = $4, payment_reference = $5,
	              authorization_url = $6, lines = $7, discount_percent = $8, totals = $9,
	              shortage = $10, email = $11, is_member = $12, updated_at = $13
	          WHERE id = $1`

	res, err := db.ExecContext(ctx, query,
		s.ID,
		s.Status,
		s.FailureReason,
		s.FailureDetail,
		s.PaymentReference,
		s.AuthorizationURL,
		lines,
		s.DiscountPercent,
		totals,
		shortage,
		s.Email,
		s.IsMember,
		s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update checkout session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("checkout session %s: %w", s.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *Postgres) GetSession(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	return r.getSessionBy(ctx, "id", id)
}

func (r *Postgres) GetSessionByIdempotencyKey(ctx context.Context, key string) (*domain.CheckoutSession, error) {
	return r.getSessionBy(ctx, "idempotency_key", key)
}

func (r *Postgres) GetSessionByReference(ctx context.Context, reference string) (*domain.CheckoutSession, error) {
	return r.getSessionBy(ctx, "reference", reference)
}

func (r *Postgres) getSessionBy(ctx context.Context, column, value string) (*domain.CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions WHERE ` + column + ` = $1`

	s, err := scanSession(r.db.QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checkout session %s=%s: %w", column, value, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query checkout session by %s: %w", column, err)
	}
	return s, nil
}

// ListSessions returns sessions in any of the given statuses that have not
// been touched since updatedBefore, oldest first.
func (r *Postgres) ListSessions(ctx context.Context, statuses []domain.CheckoutStatus, updatedBefore time.Time, limit int) ([]*domain.CheckoutSession, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions
	          WHERE status = ANY($1) AND updated_at < $2
	          ORDER BY updated_at
	          LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(names), updatedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("query checkout sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.CheckoutSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkout session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sessions, nil
}

// ListReconcilable returns sessions whose payment was captured but whose
// stock commit has not been acknowledged.
func (r *Postgres) ListReconcilable(ctx context.Context, limit int) ([]*domain.CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions
	          WHERE status = $1 AND failure_reason = $2
	          ORDER BY updated_at
	          LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, domain.CheckoutStatusFailed, domain.FailureCommitError, limit)
	if err != nil {
		return nil, fmt.Errorf("query reconcilable sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.CheckoutSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkout session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sessions, nil
}

// CompleteCheckout records the transaction, queues its outbox event and
// stores the completed session in one database transaction. A transaction
// already recorded for the checkout leaves the table untouched and returns
// ErrAlreadyRecorded after the session update.
func (r *Postgres) CompleteCheckout(ctx context.Context, s *domain.CheckoutSession, t *domain.Transaction, event *OutboxEvent) error {
	items, err := json.Marshal(t.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction items: %w", err)
	}

	var recorded bool
	err = r.inTx(ctx, func(tx *sql.Tx) error {
		query := `INSERT INTO transactions (id, checkout_id, reference, payment_reference, user_id, email,
		              is_member, discount_percent, items, subtotal, discount_amount, shipping, tax, total,
		              currency, payment_method, payment_status, created_at)
		          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		          ON CONFLICT (checkout_id) DO NOTHING`

		res, err := tx.ExecContext(ctx, query,
			t.ID,
			t.CheckoutID,
			t.Reference,
			t.PaymentReference,
			t.UserID,
			t.Email,
			t.IsMember,
			t.DiscountPercent,
			items,
			t.Subtotal,
			t.DiscountAmount,
			t.Shipping,
			t.Tax,
			t.Total,
			t.Currency,
			t.PaymentMethod,
			t.PaymentStatus,
			t.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		recorded = n == 0

		if !recorded && event != nil {
			if err := insertOutboxEvent(ctx, tx, event); err != nil {
				return err
			}
		}

		return updateSession(ctx, tx, s)
	})
	if err != nil {
		return err
	}
	if recorded {
		return fmt.Errorf("checkout %s: %w", s.ID, ErrAlreadyRecorded)
	}
	return nil
}

const transactionColumns = `id, checkout_id, reference, payment_reference, user_id, email, is_member,
	discount_percent, items, subtotal, discount_amount, shipping, tax, total, currency,
	payment_method, payment_status, created_at`

func (r *Postgres) GetTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1`

	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, reference))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", reference, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query transaction by reference: %w", err)
	}
	return t, nil
}

func (r *Postgres) ListTransactionsByUser(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query transactions by user id: %w", err)
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return txs, nil
}

func marshalSession(s *domain.CheckoutSession) (lines, totals []byte, shortage any, err error) {
	if s.Lines == nil {
		lines = []byte("[]")
	} else if lines, err = json.Marshal(s.Lines); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal session lines: %w", err)
	}
	if totals, err = json.Marshal(s.Totals); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal session totals: %w", err)
	}
	if s.Shortage != nil {
		raw, err := json.Marshal(s.Shortage)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal session shortage: %w", err)
		}
		shortage = raw
	}
	return lines, totals, shortage, nil
}

func scanSession(row rowScanner) (*domain.CheckoutSession, error) {
	var (
		s                      domain.CheckoutSession
		lines, totals, shorted []byte
	)
	err := row.Scan(
		&s.ID,
		&s.IdempotencyKey,
		&s.Reference,
		&s.CartID,
		&s.UserID,
		&s.Email,
		&s.IsMember,
		&s.Status,
		&s.FailureReason,
		&s.FailureDetail,
		&s.PaymentReference,
		&s.AuthorizationURL,
		&lines,
		&s.DiscountPercent,
		&totals,
		&s.Currency,
		&shorted,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(lines, &s.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal session lines: %w", err)
	}
	if err := json.Unmarshal(totals, &s.Totals); err != nil {
		return nil, fmt.Errorf("unmarshal session totals: %w", err)
	}
	if len(shorted) > 0 {
		s.Shortage = &domain.InsufficientStockError{}
		if err := json.Unmarshal(shorted, s.Shortage); err != nil {
			return nil, fmt.Errorf("unmarshal session shortage: %w", err)
		}
	}
	return &s, nil
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		t     domain.Transaction
		items []byte
	)
	err := row.Scan(
		&t.ID,
		&t.CheckoutID,
		&t.Reference,
		&t.PaymentReference,
		&t.UserID,
		&t.Email,
		&t.IsMember,
		&t.DiscountPercent,
		&items,
		&t.Subtotal,
		&t.DiscountAmount,
		&t.Shipping,
		&t.Tax,
		&t.Total,
		&t.Currency,
		&t.PaymentMethod,
		&t.PaymentStatus,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &t.Items); err != nil {
		return nil, fmt.Errorf("unmarshal transaction items: %w", err)
	}
	return &t, nil
}
