package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"worldbuilder-agent/internal/domain"
	"worldbuilder-agent/internal/usecase"
	"worldbuilder-agent/internal/workflow"
)

const correlationHeader = "X-Correlation-Id"

var newCorrelationID = func() string { return uuid.NewString() }

// UseCase is the router API the handler exposes.
type UseCase interface {
	Process(ctx context.Context, in usecase.RouteInput) (usecase.RouteOutput, error)
}

type Handler struct {
	uc     UseCase
	logger *zap.Logger
}

type routeRequest struct {
	Input    string `json:"input"`
	ThreadID int64  `json:"threadId"`
}

type routeResponse struct {
	Response           string               `json:"response"`
	SelectedCapability string               `json:"selectedCapability"`
	Rationale          string               `json:"rationale"`
	Source             domain.Source        `json:"source"`
	ThreadID           int64                `json:"threadId"`
	MemoryCount        int                  `json:"memoryCount"`
	TurnID             string               `json:"turnId"`
	Transcript         []domain.ChatMessage `json:"transcript"`
	Trace              []workflow.Status    `json:"trace"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func NewHandler(uc UseCase, logger *zap.Logger) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{uc: uc, logger: logger}, nil
}

// Handle serves POST {"input": "...", "threadId": n}.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(event.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = newCorrelationID()
	}
	logger := h.logger.With(zap.String("correlation_id", correlationID))

	var req routeRequest
	dec := json.NewDecoder(bytes.NewReader([]byte(event.Body)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		logger.Warn("invalid request body", zap.Error(err))
		return respond(http.StatusBadRequest, correlationID, errorResponse{
			Error:  string(usecase.ErrorInvalidInput),
			Reason: "invalid_body",
		}), nil
	}

	out, err := h.uc.Process(ctx, usecase.RouteInput{Input: req.Input, ThreadID: req.ThreadID})
	if err != nil {
		code := usecase.CodeOf(err)
		resp := errorResponse{Error: string(code)}
		var ue *usecase.Error
		if errors.As(err, &ue) {
			resp.Reason = ue.Reason
		}
		status := statusFor(code)
		if status >= http.StatusInternalServerError {
			logger.Error("route request failed", zap.Error(err), zap.Int("status", status))
		} else {
			logger.Warn("route request rejected", zap.Error(err), zap.Int("status", status))
		}
		return respond(status, correlationID, resp), nil
	}

	return respond(http.StatusOK, correlationID, routeResponse{
		Response:           out.Response,
		SelectedCapability: out.SelectedCapability,
		Rationale:          out.Rationale,
		Source:             out.Source,
		ThreadID:           out.ThreadID,
		MemoryCount:        out.MemoryCount,
		TurnID:             out.TurnID,
		Transcript:         out.Transcript,
		Trace:              out.Trace,
	}), nil
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorOracleUnavailable:
		return http.StatusServiceUnavailable
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respond(status int, correlationID string, body any) events.APIGatewayProxyResponse {
	payload, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		payload = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(payload),
	}
}

// headerValue looks a header up case-insensitively; API Gateway forwards
// whatever casing the client sent.
func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
