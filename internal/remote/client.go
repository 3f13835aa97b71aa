// Package remote is the HTTP client for the authoritative order service.
// Every payload call goes through the network monitor, which enforces the
// breaker and the fixed call timeout.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/exp/slog"

	"orderkeeper/internal/domain/order"
	"orderkeeper/internal/netmon"
)

type Client struct {
	client    *http.Client
	baseURL   string
	monitor   *netmon.Monitor
	log       *slog.Logger
	userAgent string
}

// New builds a client for the remote order service at baseURL
// (e.g. "http://pos.example.com"). The monitor may be attached later via
// SetMonitor because the monitor itself probes through this client.
func New(baseURL string, log *slog.Logger) *Client {
	return &Client{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		baseURL:   baseURL,
		log:       log.With("component", "remote"),
		userAgent: "OrderKeeper/1.0",
	}
}

func (c *Client) SetMonitor(m *netmon.Monitor) {
	c.monitor = m
}

// RemoteOrder is the wire shape of an order on the server. LocalID is the
// correlation key back to a client-created order, when the server knows one.
type RemoteOrder struct {
	ID            string       `json:"id"`
	OrderNumber   string       `json:"order_number"`
	LocalID       string       `json:"local_id,omitempty"`
	Status        string       `json:"status"`
	PaymentStatus string       `json:"payment_status"`
	Items         []order.Item `json:"items"`
	Total         float64      `json:"total"`
	OrderType     string       `json:"order_type"`
	TableID       string       `json:"table_id,omitempty"`
	TableName     string       `json:"table_name,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// CreateResult is the identity assignment returned by the server for a
// client-created order.
type CreateResult struct {
	ServerID    string `json:"id"`
	OrderNumber string `json:"order_number"`
}

// Ping is the lightweight reachability probe: HEAD /health, any 2xx counts.
// It bypasses the monitor gate since the monitor itself drives it.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health probe returned status %d", resp.StatusCode)
	}
	return nil
}

// FetchOrders pulls the server's full order list for reconciliation.
func (c *Client) FetchOrders(ctx context.Context) ([]RemoteOrder, error) {
	var out []RemoteOrder
	err := c.monitor.Do(ctx, 0, func(cctx context.Context) error {
		resp, err := c.doRequest(cctx, http.MethodGet, "/orders?loadAll=true", nil)
		if err != nil {
			return err
		}

		var body struct {
			Orders []RemoteOrder `json:"orders"`
		}
		if err := c.parseResponse(resp, &body); err != nil {
			return err
		}
		out = body.Orders
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type createOrderRequest struct {
	LocalID       string       `json:"local_id"`
	Status        string       `json:"status"`
	PaymentStatus string       `json:"payment_status"`
	Items         []order.Item `json:"items"`
	Total         float64      `json:"total"`
	OrderType     string       `json:"order_type"`
	TableID       string       `json:"table_id,omitempty"`
	TableName     string       `json:"table_name,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// CreateOrder posts a locally created order, including its local id so later
// pulls can correlate it, and returns the server-assigned identity.
func (c *Client) CreateOrder(ctx context.Context, o *order.Order) (*CreateResult, error) {
	payload := createOrderRequest{
		LocalID:       o.ID,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Items:         o.Items,
		Total:         o.Total,
		OrderType:     string(o.OrderType),
		TableID:       o.TableID,
		TableName:     o.TableName,
		CreatedAt:     o.CreatedAt,
	}

	var out CreateResult
	err := c.monitor.Do(ctx, 0, func(cctx context.Context) error {
		resp, err := c.doRequest(cctx, http.MethodPost, "/orders", payload)
		if err != nil {
			return err
		}
		return c.parseResponse(resp, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateOrder pushes the current state of an already-synced order.
func (c *Client) UpdateOrder(ctx context.Context, serverID string, o *order.Order) error {
	payload := createOrderRequest{
		LocalID:       o.ID,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Items:         o.Items,
		Total:         o.Total,
		OrderType:     string(o.OrderType),
		TableID:       o.TableID,
		TableName:     o.TableName,
		CreatedAt:     o.CreatedAt,
	}

	return c.monitor.Do(ctx, 0, func(cctx context.Context) error {
		resp, err := c.doRequest(cctx, http.MethodPut, "/orders/"+serverID, payload)
		if err != nil {
			return err
		}
		return c.parseResponse(resp, nil)
	})
}

// DeleteOrder removes an order on the server.
func (c *Client) DeleteOrder(ctx context.Context, serverID string) error {
	return c.monitor.Do(ctx, 0, func(cctx context.Context) error {
		resp, err := c.doRequest(cctx, http.MethodDelete, "/orders/"+serverID, nil)
		if err != nil {
			return err
		}
		return c.parseResponse(resp, nil)
	})
}

// PostPayment records a payment against a synced order. Only the status of
// the response is consumed.
func (c *Client) PostPayment(ctx context.Context, serverID string, mode string, amount float64) error {
	payload := struct {
		PaymentMode string  `json:"payment_mode"`
		Amount      float64 `json:"amount"`
	}{
		PaymentMode: mode,
		Amount:      amount,
	}

	return c.monitor.Do(ctx, 0, func(cctx context.Context) error {
		resp, err := c.doRequest(cctx, http.MethodPost, "/orders/"+serverID+"/payment", payload)
		if err != nil {
			return err
		}
		return c.parseResponse(resp, nil)
	})
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	c.log.Debug("sending request", "method", method, "url", req.URL.String())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	return resp, nil
}

func (c *Client) parseResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("server error: %s", errResp.Error)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}
