package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"orderkeeper/internal/domain/syncq"
)

type deadLettersOutput struct {
	Body struct {
		Items []*syncq.Item `json:"items"`
	}
}

func (h *Handler) registerSync(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-dead-letters",
		Method:      "GET",
		Path:        "/api/v1/sync/dead-letters",
		Summary:     "Queue items frozen after exhausting retries",
		Tags:        []string{"Sync"},
	}, h.listDeadLetters)

	huma.Register(api, huma.Operation{
		OperationID:   "trigger-sync",
		Method:        "POST",
		Path:          "/api/v1/sync",
		Summary:       "Request an immediate sync cycle",
		Tags:          []string{"Sync"},
		DefaultStatus: http.StatusAccepted,
	}, h.triggerSync)
}

func (h *Handler) listDeadLetters(ctx context.Context, _ *struct{}) (*deadLettersOutput, error) {
	items, err := h.store.FailedSyncItems(ctx)
	if err != nil {
		return nil, h.mapError(fmt.Errorf("list dead letters: %w", err))
	}
	resp := &deadLettersOutput{}
	resp.Body.Items = items
	return resp, nil
}

func (h *Handler) triggerSync(_ context.Context, _ *struct{}) (*struct{}, error) {
	h.syncer.Kick()
	return nil, nil
}
