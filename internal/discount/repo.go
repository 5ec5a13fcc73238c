package discount

import (
	"context"

	"github.com/google/uuid"

	"github.com/automart/settlement/internal/types/discount"
)

type DiscountRepository interface {
	FindDiscountByCode(ctx context.Context, code string) (*discount.Discount, error)
	CountDiscountUsageByUser(ctx context.Context, discountID, userID uuid.UUID) (int64, error)
	ApplyDiscountUsage(ctx context.Context, discountID, userID uuid.UUID, maxUsesPerUser int64) error
}
