package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"worldbuilder-agent/internal/domain"
	"worldbuilder-agent/internal/usecase"
	"worldbuilder-agent/internal/workflow"
)

type stubUseCase struct {
	out usecase.RouteOutput
	err error
	in  usecase.RouteInput
}

func (s *stubUseCase) Process(_ context.Context, in usecase.RouteInput) (usecase.RouteOutput, error) {
	s.in = in
	return s.out, s.err
}

func makeEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/route",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func newTestHandler(t *testing.T, uc UseCase) *Handler {
	t.Helper()
	h, err := NewHandler(uc, zaptest.NewLogger(t))
	require.NoError(t, err)
	return h
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil, nil)
	require.Error(t, err)
}

func TestHandle_HappyPath(t *testing.T) {
	orig := newCorrelationID
	t.Cleanup(func() { newCorrelationID = orig })
	newCorrelationID = func() string { return "generated-id" }

	transcript := []domain.ChatMessage{
		{Role: domain.RoleSelector, Content: "Routing to EconomicsAgent: trade"},
		{Role: domain.RoleAssistant, Name: "EconomicsAgent", Content: "Salt caravans."},
	}
	uc := &stubUseCase{out: usecase.RouteOutput{
		Response:           "Salt caravans.",
		SelectedCapability: "EconomicsAgent",
		Rationale:          "trade",
		Source:             domain.SourceOracle,
		ThreadID:           3,
		MemoryCount:        2,
		TurnID:             "turn-1",
		Transcript:         transcript,
		Trace:              []workflow.Status{workflow.StatusPending, workflow.StatusSelecting, workflow.StatusDispatched, workflow.StatusCompleted},
	}}
	h := newTestHandler(t, uc)

	resp, err := h.Handle(context.Background(), makeEvent(`{"input":"Tell me about a desert trading empire","threadId":3}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, usecase.RouteInput{Input: "Tell me about a desert trading empire", ThreadID: 3}, uc.in)

	out := parseBody[routeResponse](t, resp.Body)
	require.Equal(t, "Salt caravans.", out.Response)
	require.Equal(t, "EconomicsAgent", out.SelectedCapability)
	require.Equal(t, domain.SourceOracle, out.Source)
	require.Equal(t, int64(3), out.ThreadID)
	require.Equal(t, 2, out.MemoryCount)
	require.Equal(t, "turn-1", out.TurnID)
	require.Equal(t, uc.out.Transcript, out.Transcript)
	require.Equal(t, uc.out.Trace, out.Trace)
	require.Contains(t, resp.Body, `"transcript":[{"role":"selector"`)
	require.Equal(t, "generated-id", resp.Headers["X-Correlation-Id"])
	require.Equal(t, "application/json", resp.Headers["Content-Type"])
}

func TestHandle_InvalidBody(t *testing.T) {
	for _, body := range []string{`not-json`, `{"input":"x","conversationId":"c"}`, ``} {
		uc := &stubUseCase{}
		h := newTestHandler(t, uc)

		resp, err := h.Handle(context.Background(), makeEvent(body))
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, "body %q", body)

		out := parseBody[errorResponse](t, resp.Body)
		require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
		require.Equal(t, "invalid_body", out.Reason)
		require.Empty(t, uc.in.Input)
	}
}

func TestHandle_MapsUseCaseErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_input"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "rate limited", err: &usecase.Error{Code: usecase.ErrorRateLimited, Reason: "oracle_rate_limited"}, status: http.StatusTooManyRequests, code: string(usecase.ErrorRateLimited)},
		{name: "oracle unavailable", err: &usecase.Error{Code: usecase.ErrorOracleUnavailable, Reason: "oracle_unavailable"}, status: http.StatusServiceUnavailable, code: string(usecase.ErrorOracleUnavailable)},
		{name: "upstream", err: &usecase.Error{Code: usecase.ErrorUpstream, Reason: "handler_error"}, status: http.StatusBadGateway, code: string(usecase.ErrorUpstream)},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "unroutable_capability"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(t, &stubUseCase{err: tc.err})

			resp, err := h.Handle(context.Background(), makeEvent(`{"input":"A mountain kingdom"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[errorResponse](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
		})
	}
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	h := newTestHandler(t, &stubUseCase{out: usecase.RouteOutput{Response: "ok"}})

	event := makeEvent(`{"input":"A mountain kingdom"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}
