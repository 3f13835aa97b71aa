package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"orderkeeper/internal/domain/order"
	"orderkeeper/internal/netmon"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *netmon.Monitor) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := New(srv.URL, log)
	monitor := netmon.New(c, netmon.DefaultConfig(), log)
	monitor.SetOnline(true)
	c.SetMonitor(monitor)
	return c, monitor
}

func TestClient_Ping(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodHead, r.Method)
			assert.Equal(t, "/health", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		}))

		assert.NoError(t, c.Ping(context.Background()))
	})

	t.Run("ServerError", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))

		err := c.Ping(context.Background())
		assert.ErrorContains(t, err, "status 500")
	})

	t.Run("BypassesBreaker", func(t *testing.T) {
		c, monitor := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		for i := 0; i < 3; i++ {
			monitor.ReportFailure()
		}
		require.False(t, monitor.CanMakeAPICall())

		assert.NoError(t, c.Ping(context.Background()))
	})
}

func TestClient_FetchOrders(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("loadAll"))

		json.NewEncoder(w).Encode(map[string]any{
			"orders": []RemoteOrder{
				{ID: "srv-1", OrderNumber: "ORD-001", LocalID: "loc-1", Status: "pending", Total: 20.00},
			},
		})
	}))

	out, err := c.FetchOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "srv-1", out[0].ID)
	assert.Equal(t, "loc-1", out[0].LocalID)
}

func TestClient_CreateOrder(t *testing.T) {
	o := &order.Order{
		ID:            "loc-42",
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentPending,
		Items:         []order.Item{{ID: "itm-1", Name: "Gyoza", Price: 6.50, Quantity: 2}},
		Total:         13.00,
		OrderType:     order.TypeTakeaway,
		CreatedAt:     time.Now().UTC(),
	}

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "loc-42", body["local_id"], "the local id must travel so pulls can correlate")
		assert.Equal(t, "TAKEAWAY", body["order_type"])

		json.NewEncoder(w).Encode(map[string]string{
			"id":           "srv-42",
			"order_number": "ORD-042",
		})
	}))

	res, err := c.CreateOrder(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, "srv-42", res.ServerID)
	assert.Equal(t, "ORD-042", res.OrderNumber)
}

func TestClient_PostPayment(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders/srv-7/payment", r.URL.Path)

		var body struct {
			PaymentMode string  `json:"payment_mode"`
			Amount      float64 `json:"amount"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cash", body.PaymentMode)
		assert.Equal(t, 23.00, body.Amount)

		w.WriteHeader(http.StatusOK)
	}))

	assert.NoError(t, c.PostPayment(context.Background(), "srv-7", "cash", 23.00))
}

func TestClient_ServerErrorMessage(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "order already paid"})
	}))

	err := c.PostPayment(context.Background(), "srv-1", "cash", 10.00)
	assert.ErrorContains(t, err, "order already paid")
}

func TestClient_RefusesWhileBlocked(t *testing.T) {
	var calls int
	c, monitor := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	monitor.SetOnline(false)

	_, err := c.FetchOrders(context.Background())
	assert.ErrorIs(t, err, netmon.ErrUnavailable)
	assert.Zero(t, calls, "payload calls must never reach the wire while offline")
}

func TestClient_FailuresFeedBreaker(t *testing.T) {
	c, monitor := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	for i := 0; i < 3; i++ {
		err := c.DeleteOrder(context.Background(), "srv-1")
		require.Error(t, err)
	}
	assert.False(t, monitor.CanMakeAPICall(), "repeated payload failures must open the breaker")
}
