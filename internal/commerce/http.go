package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hollandm/idunn/internal/domain"
)

const defaultTimeout = 15 * time.Second

// HTTPClient implements Client against the storefront JSON API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// HTTPConfig contains configuration for the HTTP commerce client.
type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Logger  *slog.Logger // Optional: defaults to slog.Default()

	// Timeout per request; defaults to 15s.
	Timeout time.Duration
}

// NewHTTPClient creates a commerce client for the configured backend.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	const op = "commerce.NewHTTPClient"

	if cfg.BaseURL == "" {
		return nil, domain.Invalid(op, "commerce base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, domain.WrapError(err, domain.EINVALID, op, "invalid commerce base URL")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

// Wire shapes. These are the only place backend field names appear.

type sessionResponse struct {
	SessionToken string `json:"session_token"`
}

type cartLinePayload struct {
	ID                 string            `json:"id"`
	ProductID          string            `json:"product_id"`
	ProductName        string            `json:"product_name"`
	UnitPriceCents     int64             `json:"unit_price_cents"`
	DiscountPriceCents int64             `json:"discount_price_cents"`
	Quantity           int32             `json:"quantity"`
	SelectedOptions    map[string]string `json:"selected_options"`
}

type cartResponse struct {
	Lines []cartLinePayload `json:"lines"`
}

type rewardBalanceResponse struct {
	Points     int64 `json:"points"`
	ValueCents int64 `json:"value_cents"`
}

type wishlistItemPayload struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	PriceCents  int64  `json:"price_cents"`
}

type wishlistResponse struct {
	Items []wishlistItemPayload `json:"items"`
}

type wishlistCheckResponse struct {
	InWishlist bool `json:"in_wishlist"`
}

type orderResponse struct {
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// mapCart converts the wire cart into the normalized domain shape. This is the
// single normalization point; missing names or prices pass through as zero
// values rather than being patched up downstream.
func mapCart(identity domain.Identity, resp cartResponse) *domain.Cart {
	lines := make([]domain.CartLine, 0, len(resp.Lines))
	for _, l := range resp.Lines {
		lines = append(lines, domain.CartLine{
			ProductID:          l.ProductID,
			CartLineID:         l.ID,
			ProductName:        l.ProductName,
			UnitPriceCents:     l.UnitPriceCents,
			DiscountPriceCents: l.DiscountPriceCents,
			Quantity:           l.Quantity,
			SelectedOptions:    l.SelectedOptions,
		})
	}
	return &domain.Cart{
		Identity: identity,
		Lines:    lines,
		SyncedAt: time.Now(),
	}
}

func (c *HTTPClient) StartGuestSession(ctx context.Context) (string, error) {
	const op = "commerce.StartGuestSession"

	var resp sessionResponse
	if err := c.do(ctx, op, http.MethodPost, "/api/sessions", domain.Identity{}, nil, &resp); err != nil {
		return "", err
	}
	if resp.SessionToken == "" {
		return "", domain.Errorf(domain.EINTERNAL, op, "backend returned empty session token")
	}
	return resp.SessionToken, nil
}

func (c *HTTPClient) GetCart(ctx context.Context, identity domain.Identity) (*domain.Cart, error) {
	const op = "commerce.GetCart"

	var resp cartResponse
	if err := c.do(ctx, op, http.MethodGet, "/api/cart", identity, nil, &resp); err != nil {
		return nil, err
	}
	return mapCart(identity, resp), nil
}

func (c *HTTPClient) AddLine(ctx context.Context, identity domain.Identity, params AddLineParams) (*domain.Cart, error) {
	const op = "commerce.AddLine"

	if params.ProductID == "" {
		return nil, domain.Invalid(op, "product ID is required")
	}
	if params.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	body := map[string]any{
		"product_id": params.ProductID,
		"quantity":   params.Quantity,
	}
	if len(params.SelectedOptions) > 0 {
		body["selected_options"] = params.SelectedOptions
	}

	var resp cartResponse
	if err := c.do(ctx, op, http.MethodPost, "/api/cart/lines", identity, body, &resp); err != nil {
		return nil, err
	}
	return mapCart(identity, resp), nil
}

func (c *HTTPClient) RemoveLine(ctx context.Context, identity domain.Identity, cartLineID string) error {
	const op = "commerce.RemoveLine"

	if cartLineID == "" {
		return domain.Invalid(op, "cart line ID is required")
	}
	path := "/api/cart/lines/" + url.PathEscape(cartLineID)
	return c.do(ctx, op, http.MethodDelete, path, identity, nil, nil)
}

func (c *HTTPClient) ClearCart(ctx context.Context, identity domain.Identity) error {
	const op = "commerce.ClearCart"
	return c.do(ctx, op, http.MethodDelete, "/api/cart", identity, nil, nil)
}

func (c *HTTPClient) GetRewardBalance(ctx context.Context, identity domain.Identity) (*domain.RewardBalance, error) {
	const op = "commerce.GetRewardBalance"

	var resp rewardBalanceResponse
	err := c.do(ctx, op, http.MethodGet, "/api/rewards/balance", identity, nil, &resp)
	if err != nil {
		// No balance record is not an error for callers.
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			return nil, nil
		}
		return nil, err
	}
	return &domain.RewardBalance{Points: resp.Points, ValueCents: resp.ValueCents}, nil
}

func (c *HTTPClient) ListWishlist(ctx context.Context, identity domain.Identity) ([]WishlistItem, error) {
	const op = "commerce.ListWishlist"

	var resp wishlistResponse
	if err := c.do(ctx, op, http.MethodGet, "/api/wishlist", identity, nil, &resp); err != nil {
		return nil, err
	}
	items := make([]WishlistItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		items = append(items, WishlistItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			PriceCents:  it.PriceCents,
		})
	}
	return items, nil
}

func (c *HTTPClient) CheckWishlist(ctx context.Context, identity domain.Identity, productID string) (bool, error) {
	const op = "commerce.CheckWishlist"

	var resp wishlistCheckResponse
	path := "/api/wishlist/" + url.PathEscape(productID)
	if err := c.do(ctx, op, http.MethodGet, path, identity, nil, &resp); err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			return false, nil
		}
		return false, err
	}
	return resp.InWishlist, nil
}

func (c *HTTPClient) AddWishlist(ctx context.Context, identity domain.Identity, productID string) error {
	const op = "commerce.AddWishlist"

	if productID == "" {
		return domain.Invalid(op, "product ID is required")
	}
	body := map[string]any{"product_id": productID}
	return c.do(ctx, op, http.MethodPost, "/api/wishlist", identity, body, nil)
}

func (c *HTTPClient) RemoveWishlist(ctx context.Context, identity domain.Identity, productID string) error {
	const op = "commerce.RemoveWishlist"

	path := "/api/wishlist/" + url.PathEscape(productID)
	return c.do(ctx, op, http.MethodDelete, path, identity, nil, nil)
}

func (c *HTTPClient) ClearWishlist(ctx context.Context, identity domain.Identity) error {
	const op = "commerce.ClearWishlist"
	return c.do(ctx, op, http.MethodDelete, "/api/wishlist", identity, nil, nil)
}

func (c *HTTPClient) CreateAuthenticatedOrder(ctx context.Context, identity domain.Identity, payload OrderPayload) (*OrderResult, error) {
	const op = "commerce.CreateAuthenticatedOrder"
	return c.createOrder(ctx, op, "/api/orders", identity, payload)
}

func (c *HTTPClient) CreateGuestOrder(ctx context.Context, identity domain.Identity, payload OrderPayload) (*OrderResult, error) {
	const op = "commerce.CreateGuestOrder"
	return c.createOrder(ctx, op, "/api/guest/orders", identity, payload)
}

func (c *HTTPClient) createOrder(ctx context.Context, op, path string, identity domain.Identity, payload OrderPayload) (*OrderResult, error) {
	var resp orderResponse
	if err := c.do(ctx, op, http.MethodPost, path, identity, payload, &resp); err != nil {
		return nil, err
	}
	if resp.OrderID == "" {
		return nil, domain.Errorf(domain.EINTERNAL, op, "backend returned order without ID")
	}
	return &OrderResult{
		OrderID:   resp.OrderID,
		Status:    domain.OrderStatus(resp.Status),
		CreatedAt: resp.CreatedAt,
	}, nil
}

// do issues one JSON request with identity headers and decodes the response
// into out (when non-nil). Transport failures map to EUNAVAILABLE; backend
// error statuses map through statusToCode.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, identity domain.Identity, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return &domain.Error{Code: domain.EINTERNAL, Op: op, Err: err}
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &domain.Error{Code: domain.EINTERNAL, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	switch {
	case identity.Authenticated():
		req.Header.Set("Authorization", "Bearer "+identity.Credential)
	case identity.SessionToken != "":
		req.Header.Set("X-Session-Token", identity.SessionToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("commerce request failed", "op", op, "method", method, "path", path, "error", err)
		return &domain.Error{
			Code:    domain.EUNAVAILABLE,
			Message: "Commerce backend unreachable",
			Op:      op,
			Err:     err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.errorFromResponse(op, resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.Error{
			Code:    domain.EINTERNAL,
			Message: "Malformed backend response",
			Op:      op,
			Err:     err,
		}
	}
	return nil
}

// errorFromResponse maps a non-2xx backend response onto the error taxonomy,
// preferring the backend's own message when the body carries one.
func (c *HTTPClient) errorFromResponse(op string, resp *http.Response) error {
	code := statusToCode(resp.StatusCode)
	message := fmt.Sprintf("Commerce backend returned status %d", resp.StatusCode)

	var body errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil && body.Error.Message != "" {
		message = body.Error.Message
	}

	c.logger.Warn("commerce request rejected", "op", op, "status", resp.StatusCode, "code", code)
	return &domain.Error{Code: code, Message: message, Op: op}
}

func statusToCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return domain.EINVALID
	case http.StatusUnauthorized:
		return domain.EUNAUTHORIZED
	case http.StatusForbidden:
		return domain.EFORBIDDEN
	case http.StatusNotFound:
		return domain.ENOTFOUND
	case http.StatusConflict:
		return domain.ECONFLICT
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return domain.EUNAVAILABLE
	default:
		if status >= 500 {
			return domain.EUNAVAILABLE
		}
		return domain.EINTERNAL
	}
}
