// Package membership resolves who the caller is and what member discount
// applies to them.
package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nana-k-osei/LAGC/pkg/pricing"
	"github.com/nana-k-osei/LAGC/storefront-service/domain"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/repository"
)

var (
	ErrNotReady      = errors.New("membership provider not ready")
	ErrAlreadyMember = errors.New("already a member")
	ErrInvalidStatus = errors.New("unknown member status")
)

type Store interface {
	CreateMember(ctx context.Context, m *domain.Member) error
	GetMember(ctx context.Context, userID string) (*domain.Member, error)
	ListMembers(ctx context.Context) ([]*domain.Member, error)
	SetMemberStatus(ctx context.Context, userID string, status domain.MemberStatus) error
	CurrentDiscount(ctx context.Context) (*domain.DiscountRecord, error)
	AppendDiscount(ctx context.Context, percent decimal.Decimal, setBy string, at time.Time) (*domain.DiscountRecord, error)
	DiscountHistory(ctx context.Context, limit int) ([]*domain.DiscountRecord, error)
}

type Service struct {
	store        Store
	readyTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time

	ready     chan struct{}
	readyOnce sync.Once

	mu      sync.RWMutex
	current decimal.Decimal
}

func NewService(store Store, readyTimeout time.Duration, logger *slog.Logger) *Service {
	if readyTimeout <= 0 {
		readyTimeout = 5 * time.Second
	}
	return &Service{
		store:        store,
		readyTimeout: readyTimeout,
		logger:       logger,
		now:          time.Now,
		ready:        make(chan struct{}),
	}
}

// Run loads the current global rate, retrying with backoff until it succeeds
// or ctx is done. Ready resolves once the first load succeeds; later reads go
// to the store.
func (s *Service) Run(ctx context.Context) error {
	backoff := 500 * time.Millisecond
	for {
		rec, err := s.store.CurrentDiscount(ctx)
		if err == nil {
			s.setCurrent(rec.Percentage)
			s.readyOnce.Do(func() { close(s.ready) })
			s.logger.InfoContext(ctx, "member discount loaded", "percent", rec.Percentage.String(), "version", rec.Version)
			return nil
		}
		s.logger.WarnContext(ctx, "failed to load member discount", "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 30*time.Second)
	}
}

// Ready blocks until the current rate has been loaded. Waiting longer than
// the configured timeout yields ErrNotReady.
func (s *Service) Ready(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	default:
	}

	timer := time.NewTimer(s.readyTimeout)
	defer timer.Stop()
	select {
	case <-s.ready:
		return nil
	case <-timer.C:
		return ErrNotReady
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DiscountPercent is the member discount for user: zero for guests and
// inactive members, the current global rate otherwise.
func (s *Service) DiscountPercent(ctx context.Context, user *domain.User) (decimal.Decimal, error) {
	_, p, err := s.MemberDiscount(ctx, user)
	return p, err
}

// MemberDiscount reports whether user is an active member and the rate they
// pay. The rate is read from the store on every call so a change made on
// another instance applies immediately.
func (s *Service) MemberDiscount(ctx context.Context, user *domain.User) (bool, decimal.Decimal, error) {
	if user == nil {
		return false, decimal.Zero, nil
	}
	if err := s.Ready(ctx); err != nil {
		return false, decimal.Zero, err
	}

	m, err := s.store.GetMember(ctx, user.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, decimal.Zero, nil
	}
	if err != nil {
		return false, decimal.Zero, fmt.Errorf("get member %s: %w", user.ID, err)
	}
	if !m.IsActive() {
		return false, decimal.Zero, nil
	}

	p, err := s.rate(ctx)
	if err != nil {
		return true, decimal.Zero, err
	}
	return true, p, nil
}

func (s *Service) SignUp(ctx context.Context, user *domain.User, fullName string) (*domain.Member, error) {
	if user == nil {
		return nil, domain.ErrUnauthorized
	}
	if err := s.Ready(ctx); err != nil {
		return nil, err
	}

	rate, err := s.rate(ctx)
	if err != nil {
		return nil, err
	}

	m := &domain.Member{
		UserID:       user.ID,
		Email:        user.Email,
		FullName:     fullName,
		Status:       domain.MemberStatusActive,
		IsAdmin:      user.IsAdmin,
		JoinDiscount: rate,
		JoinedAt:     s.now().UTC(),
	}
	if err := s.store.CreateMember(ctx, m); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrAlreadyMember
		}
		return nil, fmt.Errorf("create member: %w", err)
	}

	s.logger.InfoContext(ctx, "member signed up", "user_id", user.ID)
	return m, nil
}

func (s *Service) Member(ctx context.Context, user *domain.User) (*domain.Member, error) {
	if user == nil {
		return nil, domain.ErrUnauthorized
	}
	return s.store.GetMember(ctx, user.ID)
}

// ListMembers returns every member for an admin.
func (s *Service) ListMembers(ctx context.Context, admin *domain.User) ([]*domain.Member, error) {
	if admin == nil {
		return nil, domain.ErrUnauthorized
	}
	if !admin.IsAdmin {
		return nil, domain.ErrForbidden
	}
	return s.store.ListMembers(ctx)
}

// SetStatus activates or deactivates a member. Inactive members pay full
// price until reactivated.
func (s *Service) SetStatus(ctx context.Context, admin *domain.User, userID string, status domain.MemberStatus) (*domain.Member, error) {
	if admin == nil {
		return nil, domain.ErrUnauthorized
	}
	if !admin.IsAdmin {
		return nil, domain.ErrForbidden
	}
	if status != domain.MemberStatusActive && status != domain.MemberStatusInactive {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	if err := s.store.SetMemberStatus(ctx, userID, status); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "member status changed", "user_id", userID, "status", status, "set_by", admin.ID)
	return s.store.GetMember(ctx, userID)
}

// SetGlobalDiscount records a new version of the global rate.
func (s *Service) SetGlobalDiscount(ctx context.Context, admin *domain.User, percent decimal.Decimal) (*domain.DiscountRecord, error) {
	if admin == nil {
		return nil, domain.ErrUnauthorized
	}
	if !admin.IsAdmin {
		return nil, domain.ErrForbidden
	}
	if err := pricing.ValidateDiscount(percent); err != nil {
		return nil, err
	}

	rec, err := s.store.AppendDiscount(ctx, percent, admin.ID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("append discount: %w", err)
	}
	s.setCurrent(rec.Percentage)
	s.readyOnce.Do(func() { close(s.ready) })

	s.logger.InfoContext(ctx, "member discount changed",
		"version", rec.Version,
		"from", rec.PreviousPercentage.String(),
		"to", rec.Percentage.String(),
		"set_by", admin.ID,
	)
	return rec, nil
}

func (s *Service) History(ctx context.Context, admin *domain.User, limit int) ([]*domain.DiscountRecord, error) {
	if admin == nil {
		return nil, domain.ErrUnauthorized
	}
	if !admin.IsAdmin {
		return nil, domain.ErrForbidden
	}
	if limit <= 0 {
		limit = 50
	}
	return s.store.DiscountHistory(ctx, limit)
}

// rate reads the current global rate and remembers it as the last known one.
func (s *Service) rate(ctx context.Context) (decimal.Decimal, error) {
	rec, err := s.store.CurrentDiscount(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to read member discount", "error", err, "last_known", s.currentRate().String())
		return decimal.Zero, fmt.Errorf("%w: read member discount: %v", domain.ErrTransient, err)
	}
	s.setCurrent(rec.Percentage)
	return rec.Percentage, nil
}

func (s *Service) currentRate() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Service) setCurrent(p decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = p
}
