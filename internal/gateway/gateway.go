// Package gateway encapsulates the hosted-payment-page provider. Nothing
// outside this package knows the provider's wire format; swapping providers
// means swapping the Client implementation.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/automart/settlement/internal/types/order"
)

var (
	// ErrTimeout means the gateway did not answer in time; callers may retry.
	ErrTimeout = errors.New("gateway timeout")
	// ErrUnreachable is a transport-level failure before any gateway answer.
	ErrUnreachable = errors.New("gateway unreachable")
	// ErrRejected means the gateway answered and declined; not retryable.
	ErrRejected = errors.New("gateway rejected")
)

const (
	statusSuccess = "SUCCESS"
	statusValid   = "VALID"
	// The gateway requires non-empty customer fields; orders from buyers
	// without a phone on file go out with this placeholder.
	fallbackPhone = "01700000000"
)

// Buyer carries the contact fields the gateway insists on.
type Buyer struct {
	Name  string
	Email string
	Phone string
}

// Session is an opened hosted-payment-page transaction.
type Session struct {
	GatewayURL string
	SessionID  string
}

// Validation is the gateway's server-to-server answer for a reference id.
type Validation struct {
	Valid      bool
	Raw        json.RawMessage
	RefID      string
	FailReason string
}

type Client interface {
	Initiate(ctx context.Context, o *order.Order, buyer Buyer) (*Session, error)
	Validate(ctx context.Context, refID string) (*Validation, error)
}

type Config struct {
	APIURL        string
	ValidationURL string
	StoreID       string
	StorePassword string
	SuccessURL    string
	FailURL       string
	CancelURL     string
}

type HTTPClient struct {
	Client *http.Client
	Config Config
}

func (c *HTTPClient) Initiate(ctx context.Context, o *order.Order, buyer Buyer) (*Session, error) {
	form := url.Values{}
	form.Set("store_id", c.Config.StoreID)
	form.Set("store_passwd", c.Config.StorePassword)
	form.Set("total_amount", o.Total.StringFixed())
	form.Set("currency", o.Total.Currency)
	form.Set("tran_id", o.Number)
	form.Set("success_url", c.Config.SuccessURL)
	form.Set("fail_url", c.Config.FailURL)
	form.Set("cancel_url", c.Config.CancelURL)
	form.Set("cus_name", buyerName(buyer))
	form.Set("cus_email", buyerEmail(buyer))
	form.Set("cus_phone", buyerPhone(buyer))
	form.Set("cus_add1", o.ShippingAddress.Line)
	form.Set("cus_city", o.ShippingAddress.City)
	form.Set("cus_state", o.ShippingAddress.State)
	form.Set("cus_postcode", o.ShippingAddress.PostalCode)
	form.Set("cus_country", o.ShippingAddress.Country)
	form.Set("shipping_method", "NO")
	form.Set("product_name", o.ItemName)
	form.Set("product_category", "marketplace")
	form.Set("product_profile", "general")

	result, err := c.post(ctx, c.Config.APIURL, form)
	if err != nil {
		return nil, err
	}
	if result["status"] != statusSuccess {
		reason := result["failedreason"]
		if reason == "" {
			reason = "payment initiation failed"
		}
		return nil, fmt.Errorf("%w: %s", ErrRejected, reason)
	}
	return &Session{
		GatewayURL: result["GatewayPageURL"],
		SessionID:  result["sessionkey"],
	}, nil
}

func (c *HTTPClient) Validate(ctx context.Context, refID string) (*Validation, error) {
	form := url.Values{}
	form.Set("store_id", c.Config.StoreID)
	form.Set("store_passwd", c.Config.StorePassword)
	form.Set("ref_id", refID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Config.ValidationURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnreachable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: validation status %d", ErrRejected, resp.StatusCode)
	}

	result := parseResponse(body)
	return &Validation{
		Valid:      result["status"] == statusValid,
		Raw:        json.RawMessage(body),
		RefID:      refID,
		FailReason: result["failedreason"],
	}, nil
}

func (c *HTTPClient) post(ctx context.Context, endpoint string, form url.Values) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnreachable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}
	return parseResponse(body), nil
}

func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// parseResponse accepts either JSON or the provider's legacy key=value lines.
func parseResponse(body []byte) map[string]string {
	var asJSON map[string]any
	if err := json.Unmarshal(body, &asJSON); err == nil {
		result := make(map[string]string, len(asJSON))
		for k, v := range asJSON {
			if s, ok := v.(string); ok {
				result[k] = s
			} else {
				result[k] = fmt.Sprint(v)
			}
		}
		return result
	}
	result := map[string]string{}
	for _, line := range strings.Split(string(body), "\n") {
		if k, v, found := strings.Cut(line, "="); found {
			result[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return result
}

func buyerName(b Buyer) string {
	if strings.TrimSpace(b.Name) != "" {
		return b.Name
	}
	if b.Email != "" {
		if local, _, found := strings.Cut(b.Email, "@"); found {
			return local
		}
	}
	return "Customer"
}

func buyerEmail(b Buyer) string {
	if b.Email != "" {
		return b.Email
	}
	return "customer@example.com"
}

func buyerPhone(b Buyer) string {
	if b.Phone != "" {
		return b.Phone
	}
	return fallbackPhone
}
