package usecase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"worldbuilder-agent/internal/domain"
	"worldbuilder-agent/internal/integrations/gemini"
	"worldbuilder-agent/internal/integrations/paramstore"
	"worldbuilder-agent/internal/registry"
)

// geminiServer answers generateContent calls that ask for a response schema
// with selection and all others with handler.
func geminiServer(t *testing.T, selection, handler string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			GenerationConfig struct {
				ResponseSchema json.RawMessage `json:"responseSchema"`
			} `json:"generationConfig"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		text := handler
		if len(body.GenerationConfig.ResponseSchema) > 0 {
			text = selection
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]string{{"text": text}},
				},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProcess_GeminiBlankHandlerReplyCompletesTurn(t *testing.T) {
	srv := geminiServer(t, selection(registry.Lore, "myth"), "")
	llm, err := gemini.NewClient(paramstore.Static{"oracle-token": "gm-key"}, "oracle-token", gemini.WithBaseURL(srv.URL))
	require.NoError(t, err)
	svc, mem := newTestService(t, llm)

	out, err := svc.Process(context.Background(), RouteInput{Input: "Tell a legend of the drowned kings"})
	require.NoError(t, err)
	require.Equal(t, registry.Lore, out.SelectedCapability)
	require.Equal(t, domain.SourceOracle, out.Source)
	require.Equal(t, "No response generated", out.Response)
	require.Len(t, out.Transcript, 1)
	require.Equal(t, "No response generated", mem.Window(1)[0].Response)
}
