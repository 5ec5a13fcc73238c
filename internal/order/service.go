package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/automart/settlement/internal/catalog"
	"github.com/automart/settlement/internal/middleware"
	"github.com/automart/settlement/internal/money"
	"github.com/automart/settlement/internal/notification"
	"github.com/automart/settlement/internal/types/order"
)

var (
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrPermissionDenied = errors.New("permission denied")
)

type CreateRequest struct {
	ItemKind        order.ItemKind `json:"item_kind"`
	ItemID          uuid.UUID      `json:"item_id"`
	Quantity        int64          `json:"quantity"`
	Tax             string         `json:"tax"`
	Shipping        string         `json:"shipping"`
	ShippingAddress order.Address  `json:"shipping_address"`
	BillingAddress  order.Address  `json:"billing_address"`
	BuyerNotes      string         `json:"buyer_notes"`
}

type ShipRequest struct {
	TrackingNumber string `json:"tracking_number"`
	TrackingURL    string `json:"tracking_url"`
}

type Service struct {
	repo     OrderRepository
	catalog  catalog.Catalog
	notifier notification.Notifier
}

func NewService(repo OrderRepository, cat catalog.Catalog, notifier notification.Notifier) *Service {
	return &Service{repo: repo, catalog: cat, notifier: notifier}
}

// Create snapshots the listing and builds the order with a server-computed
// total. The buyer never submits prices for the item itself.
func (s *Service) Create(ctx context.Context, buyerID uuid.UUID, req CreateRequest) (*order.Order, error) {
	if req.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	listing, err := s.catalog.FindListing(ctx, req.ItemKind, req.ItemID)
	if err != nil {
		return nil, err
	}

	currency := listing.UnitPrice.Currency
	tax, err := parseAmount(req.Tax, currency)
	if err != nil {
		return nil, err
	}
	shipping, err := parseAmount(req.Shipping, currency)
	if err != nil {
		return nil, err
	}

	o := &order.Order{
		ID:              uuid.New(),
		Number:          newOrderNumber(),
		BuyerID:         buyerID,
		SellerID:        listing.SellerID,
		ItemKind:        req.ItemKind,
		ItemID:          req.ItemID,
		ItemName:        listing.Name,
		ItemDescription: listing.Description,
		UnitPrice:       listing.UnitPrice,
		Quantity:        req.Quantity,
		Subtotal:        listing.UnitPrice.Mul(req.Quantity),
		Tax:             tax,
		Shipping:        shipping,
		Discount:        money.Zero(currency),
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Status:          order.StatusPending,
		BuyerNotes:      req.BuyerNotes,
		CreatedAt:       time.Now().UTC(),
		Version:         1,
	}
	if err := o.CalculateTotal(); err != nil {
		return nil, err
	}
	if o.Total.IsNegative() {
		return nil, ErrInvalidAmount
	}
	if err := s.repo.CreateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.publish("order.created", o)
	return o, nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]order.Order, error) {
	return s.repo.ListOrdersByUser(ctx, userID)
}

// Get hides orders the caller is not a party to.
func (s *Service) Get(ctx context.Context, actor middleware.Actor, id uuid.UUID) (*order.Order, error) {
	o, err := s.repo.FindOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != middleware.RoleAdmin && o.BuyerID != actor.UserID && o.SellerID != actor.UserID {
		return nil, ErrPermissionDenied
	}
	return o, nil
}

// Confirm is buyer-only.
func (s *Service) Confirm(ctx context.Context, actor middleware.Actor, id uuid.UUID) (*order.Order, error) {
	return s.transition(ctx, id, "order.confirmed", func(o *order.Order) error {
		if actor.Role != middleware.RoleAdmin && o.BuyerID != actor.UserID {
			return ErrPermissionDenied
		}
		return o.Confirm()
	})
}

// Ship is seller-only.
func (s *Service) Ship(ctx context.Context, actor middleware.Actor, id uuid.UUID, req ShipRequest) (*order.Order, error) {
	return s.transition(ctx, id, "order.shipped", func(o *order.Order) error {
		if actor.Role != middleware.RoleAdmin && o.SellerID != actor.UserID {
			return ErrPermissionDenied
		}
		return o.Ship(req.TrackingNumber, req.TrackingURL)
	})
}

// Deliver is buyer-only: the buyer confirms receipt.
func (s *Service) Deliver(ctx context.Context, actor middleware.Actor, id uuid.UUID) (*order.Order, error) {
	return s.transition(ctx, id, "order.delivered", func(o *order.Order) error {
		if actor.Role != middleware.RoleAdmin && o.BuyerID != actor.UserID {
			return ErrPermissionDenied
		}
		return o.Deliver()
	})
}

// Cancel may be called by either side while the order is still cancellable.
func (s *Service) Cancel(ctx context.Context, actor middleware.Actor, id uuid.UUID) (*order.Order, error) {
	return s.transition(ctx, id, "order.cancelled", func(o *order.Order) error {
		if actor.Role != middleware.RoleAdmin && o.BuyerID != actor.UserID && o.SellerID != actor.UserID {
			return ErrPermissionDenied
		}
		return o.Cancel()
	})
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, event string, apply func(*order.Order) error) (*order.Order, error) {
	o, err := s.repo.FindOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(o); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateOrder(ctx, o); err != nil {
		return nil, err
	}
	s.publish(event, o)
	return o, nil
}

func (s *Service) publish(event string, o *order.Order) {
	s.notifier.Publish(event, map[string]any{
		"order_id":     o.ID.String(),
		"order_number": o.Number,
		"buyer_id":     o.BuyerID.String(),
		"seller_id":    o.SellerID.String(),
		"status":       string(o.Status),
		"total":        o.Total.StringFixed(),
		"currency":     o.Total.Currency,
	})
}

func parseAmount(v, currency string) (money.Money, error) {
	if v == "" {
		return money.Zero(currency), nil
	}
	m, err := money.FromString(v, currency)
	if err != nil {
		return money.Money{}, ErrInvalidAmount
	}
	if m.IsNegative() {
		return money.Money{}, ErrInvalidAmount
	}
	return m, nil
}

func newOrderNumber() string {
	return "ORD-" + strings.ToUpper(uuid.New().String()[:8])
}
