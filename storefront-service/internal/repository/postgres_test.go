package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nana-k-osei/LAGC/pkg/pricing"
	"github.com/nana-k-osei/LAGC/storefront-service/domain"
)

func setupPostgres(t *testing.T) *Postgres {
	if testing.Short() {
		t.Skip("skipping Postgres container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "../../migrations/postgres",
	}

	repo, err := NewPostgres(ctx, creds)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	require.NoError(t, repo.RunMigrations(creds))
	return repo
}

func newSession(key string) *domain.CheckoutSession {
	now := time.Now().UTC().Truncate(time.Microsecond)
	totals, _ := pricing.ComputeTotals([]pricing.Line{{UnitPrice: decimal.NewFromInt(50), Quantity: 2}}, decimal.NewFromInt(10))
	return &domain.CheckoutSession{
		ID:              uuid.NewString(),
		IdempotencyKey:  key,
		Reference:       "LAGC-" + uuid.NewString(),
		CartID:          "cart-1",
		UserID:          "user-1",
		Email:           "ama@example.com",
		IsMember:        true,
		Status:          domain.CheckoutStatusValidating,
		DiscountPercent: decimal.NewFromInt(10),
		Totals:          totals,
		Currency:        "GHS",
		Lines: []domain.CheckoutLine{{
			LineItem: domain.LineItem{
				ProductID: "performance-tennis-shirt",
				Name:      "Uni Tee",
				UnitPrice: decimal.NewFromInt(50),
				Quantity:  2,
				Variant:   domain.Variant{Size: "M"},
			},
			ReservationID: "res-1",
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateSession_DuplicateIdempotencyKey(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateSession(ctx, newSession("key-1")))
	err := repo.CreateSession(ctx, newSession("key-1"))
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestSession_RoundTrip(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()
	s := newSession("key-1")
	require.NoError(t, repo.CreateSession(ctx, s))

	byKey, err := repo.GetSessionByIdempotencyKey(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, s.ID, byKey.ID)
	assert.Equal(t, "117.00", byKey.Totals.Total.StringFixed(2))
	require.Len(t, byKey.Lines, 1)
	assert.Equal(t, "res-1", byKey.Lines[0].ReservationID)
	assert.Nil(t, byKey.Shortage)

	require.NoError(t, s.Fail(domain.FailureInsufficientStock, "short", time.Now()))
	s.Shortage = &domain.InsufficientStockError{ProductID: "love-cap", Requested: 5, Available: 3}
	require.NoError(t, repo.UpdateSession(ctx, s))

	byRef, err := repo.GetSessionByReference(ctx, s.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusFailed, byRef.Status)
	assert.Equal(t, domain.FailureInsufficientStock, byRef.FailureReason)
	require.NotNil(t, byRef.Shortage)
	assert.Equal(t, 3, byRef.Shortage.Available)

	_, err = repo.GetSession(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCompleteCheckout_RecordsOnce(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()
	s := newSession("key-1")
	s.Status = domain.CheckoutStatusCommitting
	s.PaymentReference = "PSK-1"
	require.NoError(t, repo.CreateSession(ctx, s))

	s.Status = domain.CheckoutStatusCompleted
	tx := domain.NewTransaction(uuid.NewString(), s, "paystack", time.Now())
	event := &OutboxEvent{AggregateID: s.ID, EventType: EventCheckoutCompleted, Payload: []byte(`{"checkout_id":"x"}`)}

	require.NoError(t, repo.CompleteCheckout(ctx, s, tx, event))

	again := domain.NewTransaction(uuid.NewString(), s, "paystack", time.Now())
	assert.ErrorIs(t, repo.CompleteCheckout(ctx, s, again, event), ErrAlreadyRecorded)

	recorded, err := repo.GetTransactionByReference(ctx, s.Reference)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, recorded.ID)
	assert.Equal(t, "117.00", recorded.Total.StringFixed(2))

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, s.ID, events[0].AggregateID)

	require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))
	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)

	byUser, err := repo.ListTransactionsByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, byUser, 1)
}

func TestTransactions_AppendOnly(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()
	s := newSession("key-1")
	s.PaymentReference = "PSK-1"
	require.NoError(t, repo.CreateSession(ctx, s))
	require.NoError(t, repo.CompleteCheckout(ctx, s, domain.NewTransaction(uuid.NewString(), s, "paystack", time.Now()), nil))

	_, err := repo.db.ExecContext(ctx, `UPDATE transactions SET total = 0`)
	assert.Error(t, err)
}

func TestListReconcilable(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()

	stuck := newSession("key-1")
	stuck.Status = domain.CheckoutStatusCommitting
	require.NoError(t, repo.CreateSession(ctx, stuck))
	require.NoError(t, stuck.Fail(domain.FailureCommitError, "ledger down", time.Now()))
	require.NoError(t, repo.UpdateSession(ctx, stuck))

	cancelled := newSession("key-2")
	cancelled.Status = domain.CheckoutStatusAwaitingPayment
	require.NoError(t, repo.CreateSession(ctx, cancelled))

	sessions, err := repo.ListReconcilable(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, stuck.ID, sessions[0].ID)

	awaiting, err := repo.ListSessions(ctx, []domain.CheckoutStatus{domain.CheckoutStatusAwaitingPayment}, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, awaiting, 1)
	assert.Equal(t, cancelled.ID, awaiting[0].ID)
}

func TestMembersAndDiscounts(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()

	current, err := repo.CurrentDiscount(ctx)
	require.NoError(t, err)
	assert.True(t, current.Percentage.IsZero())

	rec, err := repo.AppendDiscount(ctx, decimal.NewFromInt(15), "admin-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "15", rec.Percentage.String())
	assert.True(t, rec.PreviousPercentage.IsZero())

	rec, err = repo.AppendDiscount(ctx, decimal.NewFromInt(20), "admin-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "15", rec.PreviousPercentage.String())

	history, err := repo.DiscountHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "20", history[0].Percentage.String())

	m := &domain.Member{UserID: "user-1", Email: "ama@example.com", Status: domain.MemberStatusActive, JoinDiscount: decimal.NewFromInt(20), JoinedAt: time.Now()}
	require.NoError(t, repo.CreateMember(ctx, m))
	assert.ErrorIs(t, repo.CreateMember(ctx, m), ErrDuplicateKey)

	require.NoError(t, repo.SetMemberStatus(ctx, "user-1", domain.MemberStatusInactive))
	loaded, err := repo.GetMember(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, loaded.IsActive())

	_, err = repo.GetMember(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	later := &domain.Member{UserID: "user-2", Email: "kofi@example.com", Status: domain.MemberStatusActive, JoinDiscount: decimal.NewFromInt(20), JoinedAt: m.JoinedAt.Add(time.Minute)}
	require.NoError(t, repo.CreateMember(ctx, later))

	members, err := repo.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "user-1", members[0].UserID)
	assert.Equal(t, domain.MemberStatusInactive, members[0].Status)
	assert.Equal(t, "user-2", members[1].UserID)
}
