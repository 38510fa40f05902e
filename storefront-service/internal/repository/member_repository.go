package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nana-k-osei/LAGC/storefront-service/domain"
)

func (r *Postgres) CreateMember(ctx context.Context, m *domain.Member) error {
	query := `INSERT INTO members (user_id, email, full_name, status, is_admin, join_discount, joined_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		m.UserID,
		m.Email,
		m.FullName,
		m.Status,
		m.IsAdmin,
		m.JoinDiscount,
		m.JoinedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("member %s: %w", m.UserID, ErrDuplicateKey)
		}
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (r *Postgres) GetMember(ctx context.Context, userID string) (*domain.Member, error) {
	query := `SELECT user_id, email, full_name, status, is_admin, join_discount, joined_at
	          FROM members WHERE user_id = $1`

	var m domain.Member
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&m.UserID,
		&m.Email,
		&m.FullName,
		&m.Status,
		&m.IsAdmin,
		&m.JoinDiscount,
		&m.JoinedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("member %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query member: %w", err)
	}
	return &m, nil
}

// ListMembers returns every member, oldest first.
func (r *Postgres) ListMembers(ctx context.Context) ([]*domain.Member, error) {
	query := `SELECT user_id, email, full_name, status, is_admin, join_discount, joined_at
	          FROM members ORDER BY joined_at, user_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []*domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.UserID, &m.Email, &m.FullName, &m.Status, &m.IsAdmin, &m.JoinDiscount, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return members, nil
}

func (r *Postgres) SetMemberStatus(ctx context.Context, userID string, status domain.MemberStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE members SET status = $2 WHERE user_id = $1`, userID, status)
	if err != nil {
		return fmt.Errorf("update member status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("member %s: %w", userID, domain.ErrNotFound)
	}
	return nil
}

const discountColumns = `version, percentage, previous_percentage, set_by, set_at`

// CurrentDiscount returns the newest discount record.
func (r *Postgres) CurrentDiscount(ctx context.Context) (*domain.DiscountRecord, error) {
	query := `SELECT ` + discountColumns + ` FROM discount_rates ORDER BY version DESC LIMIT 1`

	d, err := scanDiscount(r.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("discount rate: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query current discount: %w", err)
	}
	return d, nil
}

// AppendDiscount stores a new version of the global discount, carrying the
// previous percentage forward. Writers are serialized by a table lock.
func (r *Postgres) AppendDiscount(ctx context.Context, percent decimal.Decimal, setBy string, at time.Time) (*domain.DiscountRecord, error) {
	var rec *domain.DiscountRecord
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `LOCK TABLE discount_rates IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("lock discount rates: %w", err)
		}

		query := `INSERT INTO discount_rates (percentage, previous_percentage, set_by, set_at)
		          SELECT $1, COALESCE((SELECT percentage FROM discount_rates ORDER BY version DESC LIMIT 1), 0), $2, $3
		          RETURNING ` + discountColumns

		d, err := scanDiscount(tx.QueryRowContext(ctx, query, percent, setBy, at))
		if err != nil {
			return fmt.Errorf("insert discount rate: %w", err)
		}
		rec = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// DiscountHistory lists discount records newest first.
func (r *Postgres) DiscountHistory(ctx context.Context, limit int) ([]*domain.DiscountRecord, error) {
	query := `SELECT ` + discountColumns + ` FROM discount_rates ORDER BY version DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query discount history: %w", err)
	}
	defer rows.Close()

	var history []*domain.DiscountRecord
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan discount record: %w", err)
		}
		history = append(history, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return history, nil
}

func scanDiscount(row rowScanner) (*domain.DiscountRecord, error) {
	var d domain.DiscountRecord
	if err := row.Scan(&d.Version, &d.Percentage, &d.PreviousPercentage, &d.SetBy, &d.SetAt); err != nil {
		return nil, err
	}
	return &d, nil
}
