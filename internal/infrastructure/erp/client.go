// Package erp is the JSON-RPC client of the sales back office (Odoo). Node orders
// become sale order quotations there, and the nodes shipped for a sale order are read
// from its delivery lots.
package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tffhost/backend/internal/domain/hosting"
	"github.com/tffhost/backend/internal/domain/integration"
	"github.com/tffhost/backend/internal/infrastructure/config"
	"github.com/tffhost/backend/internal/infrastructure/telemetry"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxResponseSize is the maximum allowed response size from the ERP (10MB)
const maxResponseSize = 10 * 1024 * 1024

// DefaultSocket is the product used for sockets without a configured product
const DefaultSocket = "EU"

var _ integration.ERP = (*Client)(nil)

// Client implements integration.ERP over Odoo's /jsonrpc endpoint
type Client struct {
	cfg        config.ERPConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	requestID  atomic.Int64

	mu  sync.Mutex
	uid int64
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// NewClient creates an ERP client. It logs in lazily on the first call.
func NewClient(cfg config.ERPConfig, opts ...Option) (*Client, error) {
	if cfg.URL == "" || cfg.Database == "" || cfg.Username == "" {
		return nil, integration.ErrNotConfigured
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateQuotation creates a draft sale order for a node order. The order reference is
// stored as client_order_ref, so a retried call returns the quotation created before.
func (c *Client) CreateQuotation(ctx context.Context, req integration.QuotationRequest) (int64, error) {
	existing, err := c.executeKw(ctx, "sale.order", "search",
		[]any{[]any{[]any{"client_order_ref", "=", req.Reference}}},
		map[string]any{"limit": 1})
	if err != nil {
		return 0, err
	}
	if ids := existing.Array(); len(ids) > 0 {
		c.logger.Info("Quotation already exists", zap.String("reference", req.Reference), zap.Int64("sale_order_id", ids[0].Int()))
		return ids[0].Int(), nil
	}

	productID, err := c.productFor(req.Socket)
	if err != nil {
		return 0, err
	}

	billing, err := c.createPartner(ctx, req.Billing, 0, "invoice")
	if err != nil {
		return 0, err
	}
	shipping := billing
	if !req.Shipping.IsEmpty() && req.Shipping != req.Billing {
		if shipping, err = c.createPartner(ctx, req.Shipping, billing, "delivery"); err != nil {
			return 0, err
		}
	}

	res, err := c.executeKw(ctx, "sale.order", "create", []any{map[string]any{
		"partner_id":          billing,
		"partner_invoice_id":  billing,
		"partner_shipping_id": shipping,
		"client_order_ref":    req.Reference,
		"order_line": []any{
			[]any{0, 0, map[string]any{"product_id": productID, "product_uom_qty": 1}},
		},
	}}, nil)
	if err != nil {
		return 0, err
	}
	if res.Type != gjson.Number {
		return 0, fmt.Errorf("%w: sale order id %s", integration.ErrInvalidResponse, res.Raw)
	}
	return res.Int(), nil
}

// CancelQuotation sets the sale order to the cancel state
func (c *Client) CancelQuotation(ctx context.Context, saleOrderID int64) error {
	_, err := c.executeKw(ctx, "sale.order", "write",
		[]any{[]any{saleOrderID}, map[string]any{"state": "cancel"}}, nil)
	return err
}

// ConfirmQuotation turns the quotation into a confirmed sale order
func (c *Client) ConfirmQuotation(ctx context.Context, saleOrderID int64) error {
	_, err := c.executeKw(ctx, "sale.order", "action_confirm", []any{[]any{saleOrderID}}, nil)
	return err
}

// NodesForSaleOrder reads the serial lots delivered for the sale order. Lots carry
// the node id in their ref field; lots without one are not nodes.
func (c *Client) NodesForSaleOrder(ctx context.Context, saleOrderID int64) ([]integration.ERPNode, error) {
	order, err := c.executeKw(ctx, "sale.order", "read",
		[]any{[]any{saleOrderID}}, map[string]any{"fields": []string{"picking_ids"}})
	if err != nil {
		return nil, err
	}
	if len(order.Array()) == 0 {
		return nil, integration.ErrNotFound
	}
	pickings := int64s(order.Get("0.picking_ids"))
	if len(pickings) == 0 {
		return []integration.ERPNode{}, nil
	}

	lines, err := c.executeKw(ctx, "stock.move.line", "search_read",
		[]any{[]any{[]any{"picking_id", "in", pickings}}},
		map[string]any{"fields": []string{"lot_id"}})
	if err != nil {
		return nil, err
	}
	var lots []int64
	for _, line := range lines.Array() {
		// many2one values are [id, display name] or false
		if id := line.Get("lot_id.0"); id.Exists() {
			lots = append(lots, id.Int())
		}
	}
	if len(lots) == 0 {
		return []integration.ERPNode{}, nil
	}

	res, err := c.executeKw(ctx, "stock.production.lot", "read",
		[]any{lots}, map[string]any{"fields": []string{"name", "ref"}})
	if err != nil {
		return nil, err
	}
	nodes := make([]integration.ERPNode, 0, len(lots))
	for _, lot := range res.Array() {
		ref := lot.Get("ref")
		if ref.Type != gjson.String || strings.TrimSpace(ref.String()) == "" {
			continue
		}
		nodes = append(nodes, integration.ERPNode{
			ID:           strings.TrimSpace(ref.String()),
			SerialNumber: lot.Get("name").String(),
		})
	}
	return nodes, nil
}

func (c *Client) productFor(socket string) (int64, error) {
	if id, ok := c.cfg.Products[socket]; ok {
		return id, nil
	}
	if id, ok := c.cfg.Products[DefaultSocket]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("%w: no product for socket %q", integration.ErrNotConfigured, socket)
}

func (c *Client) createPartner(ctx context.Context, info hosting.ContactInfo, parentID int64, kind string) (int64, error) {
	values := map[string]any{
		"name":   info.Name,
		"email":  info.Email,
		"phone":  info.Phone,
		"street": info.Address,
		"type":   kind,
	}
	if parentID > 0 {
		values["parent_id"] = parentID
	}
	res, err := c.executeKw(ctx, "res.partner", "create", []any{values}, nil)
	if err != nil {
		return 0, err
	}
	return res.Int(), nil
}

// executeKw calls a model method as the configured user
func (c *Client) executeKw(ctx context.Context, model, method string, args []any, kwargs map[string]any) (gjson.Result, error) {
	uid, err := c.login(ctx)
	if err != nil {
		return gjson.Result{}, err
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	res, err := c.call(ctx, "object", "execute_kw", model+"."+method,
		c.cfg.Database, uid, c.cfg.Password, model, method, args, kwargs)
	if errors.Is(err, integration.ErrAuthFailed) {
		// the session may have been revoked; log in again on the next call
		c.mu.Lock()
		c.uid = 0
		c.mu.Unlock()
	}
	return res, err
}

func (c *Client) login(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uid != 0 {
		return c.uid, nil
	}
	res, err := c.call(ctx, "common", "login", "login", c.cfg.Database, c.cfg.Username, c.cfg.Password)
	if err != nil {
		return 0, err
	}
	// a failed login answers false
	if res.Type != gjson.Number || res.Int() == 0 {
		return 0, integration.ErrAuthFailed
	}
	c.uid = res.Int()
	return c.uid, nil
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	ID      int64     `json:"id"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

func (c *Client) call(ctx context.Context, service, method, operation string, args ...any) (_ gjson.Result, err error) {
	ctx, span := telemetry.StartClientSpan(ctx, "erp", operation)
	defer func() { telemetry.End(span, err) }()

	if err := c.limiter.Wait(ctx); err != nil {
		return gjson.Result{}, err
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		ID:      c.requestID.Add(1),
		Params:  rpcParams{Service: service, Method: method, Args: args},
	})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("erp: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.URL, "/")+"/jsonrpc", bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("erp: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %v", integration.ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("erp: failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return gjson.Result{}, fmt.Errorf("%w: HTTP %d", integration.ErrRequestFailed, resp.StatusCode)
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("%w: body is not JSON", integration.ErrInvalidResponse)
	}

	parsed := gjson.ParseBytes(raw)
	if rpcErr := parsed.Get("error"); rpcErr.Exists() {
		return gjson.Result{}, rpcError(rpcErr)
	}
	return parsed.Get("result"), nil
}

func rpcError(rpcErr gjson.Result) error {
	name := rpcErr.Get("data.name").String()
	message := rpcErr.Get("data.message").String()
	if message == "" {
		message = rpcErr.Get("message").String()
	}
	if strings.Contains(name, "AccessDenied") {
		return fmt.Errorf("%w: %s", integration.ErrAuthFailed, message)
	}
	if strings.Contains(name, "MissingError") {
		return fmt.Errorf("%w: %s", integration.ErrNotFound, message)
	}
	return fmt.Errorf("%w: %s", integration.ErrRequestFailed, message)
}

func int64s(r gjson.Result) []int64 {
	var out []int64
	for _, v := range r.Array() {
		out = append(out, v.Int())
	}
	return out
}
