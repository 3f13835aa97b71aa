package api

import (
	"context"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

type statusOutput struct {
	Body struct {
		Online              bool      `json:"online" doc:"Raw connectivity signal"`
		BreakerOpen         bool      `json:"breaker_open" doc:"Circuit breaker state"`
		SyncAllowed         bool      `json:"sync_allowed" doc:"Whether remote calls are currently permitted"`
		ConsecutiveFailures int       `json:"consecutive_failures"`
		LastSuccess         time.Time `json:"last_success"`
		PendingSyncItems    int       `json:"pending_sync_items" doc:"Queue depth awaiting push"`
	}
}

func (h *Handler) registerStatus(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-status",
		Method:      "GET",
		Path:        "/api/v1/status",
		Summary:     "Connectivity and sync backlog",
		Tags:        []string{"Service"},
	}, h.getStatus)
}

func (h *Handler) getStatus(ctx context.Context, _ *struct{}) (*statusOutput, error) {
	pending, err := h.store.PendingSyncCount(ctx)
	if err != nil {
		return nil, h.mapError(fmt.Errorf("count pending sync items: %w", err))
	}

	st := h.monitor.Status()
	resp := &statusOutput{}
	resp.Body.Online = st.Online
	resp.Body.BreakerOpen = st.BreakerOpen
	resp.Body.SyncAllowed = h.monitor.CanMakeAPICall()
	resp.Body.ConsecutiveFailures = st.ConsecutiveFailures
	resp.Body.LastSuccess = st.LastSuccess
	resp.Body.PendingSyncItems = pending
	return resp, nil
}
