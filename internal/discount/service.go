package discount

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/automart/settlement/internal/money"
	"github.com/automart/settlement/internal/storage"
	"github.com/automart/settlement/internal/types/discount"
)

var (
	ErrCodeNotFound  = errors.New("discount code not found")
	ErrCodeNotValid  = errors.New("discount code is not valid")
	ErrBelowMinimum  = errors.New("order amount below discount minimum")
	ErrUsageExceeded = errors.New("discount usage limit reached")
	ErrInvalidAmount = errors.New("invalid order amount")
)

// Evaluation is the answer to "what would this code take off this amount".
type Evaluation struct {
	Code           string      `json:"code"`
	Type           string      `json:"type"`
	DiscountAmount money.Money `json:"discount_amount"`
}

type Service struct {
	repo DiscountRepository
	// now is swappable so validity windows are testable.
	now func() time.Time
}

func NewService(repo DiscountRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Evaluate checks a code against an order amount without consuming a use.
func (s *Service) Evaluate(ctx context.Context, code string, orderAmount money.Money) (*Evaluation, error) {
	d, err := s.lookup(ctx, code, orderAmount)
	if err != nil {
		return nil, err
	}
	return &Evaluation{
		Code:           d.Code,
		Type:           string(d.Type),
		DiscountAmount: d.Calculate(orderAmount),
	}, nil
}

// Apply consumes one use of the code for the user. The per-user count here
// is only a fast path; the authoritative per-user and global guards run
// inside the ApplyDiscountUsage transaction.
func (s *Service) Apply(ctx context.Context, userID uuid.UUID, code string, orderAmount money.Money) (*Evaluation, error) {
	d, err := s.lookup(ctx, code, orderAmount)
	if err != nil {
		return nil, err
	}

	used, err := s.repo.CountDiscountUsageByUser(ctx, d.ID, userID)
	if err != nil {
		return nil, err
	}
	if d.MaxUsesPerUser > 0 && used >= d.MaxUsesPerUser {
		return nil, ErrUsageExceeded
	}

	if err := s.repo.ApplyDiscountUsage(ctx, d.ID, userID, d.MaxUsesPerUser); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			// The last allowed use went to a concurrent request.
			return nil, ErrUsageExceeded
		}
		return nil, err
	}
	return &Evaluation{
		Code:           d.Code,
		Type:           string(d.Type),
		DiscountAmount: d.Calculate(orderAmount),
	}, nil
}

func (s *Service) lookup(ctx context.Context, code string, orderAmount money.Money) (*discount.Discount, error) {
	if !orderAmount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	d, err := s.repo.FindDiscountByCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}
	if !d.IsValid(s.now()) {
		return nil, ErrCodeNotValid
	}
	if orderAmount.LessThan(d.MinOrderAmount) {
		return nil, ErrBelowMinimum
	}
	return d, nil
}
