package order

import (
	"context"

	"github.com/google/uuid"

	"github.com/automart/settlement/internal/types/order"
)

type OrderRepository interface {
	CreateOrder(ctx context.Context, o *order.Order) error
	FindOrderByID(ctx context.Context, id uuid.UUID) (*order.Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]order.Order, error)
	UpdateOrder(ctx context.Context, o *order.Order) error
}
