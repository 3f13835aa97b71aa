package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type healthOutput struct {
	Body struct {
		Status string `json:"status" example:"ok" doc:"Service liveness"`
	}
}

func (h *Handler) registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-health",
		Method:      "GET",
		Path:        "/api/v1/health",
		Summary:     "Liveness probe",
		Tags:        []string{"Service"},
	}, h.getHealth)
}

func (h *Handler) getHealth(_ context.Context, _ *struct{}) (*healthOutput, error) {
	resp := &healthOutput{}
	resp.Body.Status = "ok"
	return resp, nil
}
