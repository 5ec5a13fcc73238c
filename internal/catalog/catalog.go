// Package catalog is the client for the car/part listing collaborator. The
// settlement service only needs seller, name, description and unit price to
// snapshot an order at checkout.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/automart/settlement/internal/money"
	"github.com/automart/settlement/internal/types/order"
)

var ErrListingNotFound = errors.New("listing not found")

type Listing struct {
	ID          uuid.UUID   `json:"id"`
	SellerID    uuid.UUID   `json:"seller_id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	UnitPrice   money.Money `json:"unit_price"`
}

type Catalog interface {
	FindListing(ctx context.Context, kind order.ItemKind, id uuid.UUID) (*Listing, error)
}

type HTTPCatalogClient struct {
	Client  *http.Client
	BaseURL string
}

func (c *HTTPCatalogClient) FindListing(ctx context.Context, kind order.ItemKind, id uuid.UUID) (*Listing, error) {
	var path string
	switch kind {
	case order.ItemCar:
		path = fmt.Sprintf("%s/api/cars/%s", c.BaseURL, id)
	case order.ItemPart:
		path = fmt.Sprintf("%s/api/parts/%s", c.BaseURL, id)
	default:
		return nil, order.ErrUnknownItemKind
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrListingNotFound
	default:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var l Listing
	if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return &l, nil
}
