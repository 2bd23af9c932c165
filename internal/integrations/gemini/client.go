// Package gemini adapts the Gemini API to the oracle boundary.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"worldbuilder-agent/internal/domain"
)

const jsonMIMEType = "application/json"

type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError carries the upstream status of a failed API call.
type HTTPStatusError struct {
	StatusCode int
	Err        error
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d: %v", e.StatusCode, e.Err)
}

func (e *HTTPStatusError) Unwrap() error {
	return e.Err
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client calls generateContent on the Gemini API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	getter     Getter
	tokenParam string

	apiOnce sync.Once
	api     *genai.Client
	apiErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client whose API key is read from tokenParam on the
// first call to Chat and reused for the lifetime of the process.
func NewClient(ps Getter, tokenParam string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("gemini: paramstore getter must not be nil")
	}
	tokenParam = strings.TrimSpace(tokenParam)
	if tokenParam == "" {
		return nil, errors.New("gemini: token parameter name must not be empty")
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		getter:     ps,
		tokenParam: tokenParam,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveAPI(ctx context.Context) (*genai.Client, error) {
	c.apiOnce.Do(func() {
		key, err := fetchAPIKey(ctx, c.getter, c.tokenParam)
		if err != nil {
			c.apiErr = err
			return
		}
		cfg := &genai.ClientConfig{
			APIKey:     key,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: c.httpClient,
		}
		if c.baseURL != "" {
			cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
		}
		c.api, c.apiErr = genai.NewClient(ctx, cfg)
		if c.apiErr != nil {
			c.apiErr = fmt.Errorf("gemini: create client: %w", c.apiErr)
		}
	})
	return c.api, c.apiErr
}

func (c *Client) Chat(ctx context.Context, req domain.ChatRequest) (string, error) {
	if strings.TrimSpace(req.Model) == "" {
		return "", errors.New("gemini: model must not be empty")
	}
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return "", err
	}

	system, contents := splitMessages(req.Messages)
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.Schema != nil {
		cfg.ResponseMIMEType = jsonMIMEType
		cfg.ResponseSchema = responseSchema(req.Schema)
	}

	resp, err := api.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: request failed: %w", withStatus(err))
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("gemini: no candidates in response")
	}
	// A candidate with blank text is an answer; callers decide what it means.
	return resp.Text(), nil
}

// splitMessages folds system messages into one instruction and maps the rest
// onto Gemini's user/model roles.
func splitMessages(msgs []domain.ChatMessage) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleSystem:
			system = append(system, m.Content)
		case domain.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}

func responseSchema(s *domain.ResponseSchema) *genai.Schema {
	props := make(map[string]*genai.Schema, len(s.Properties))
	required := make([]string, 0, len(s.Properties))
	ordering := make([]string, 0, len(s.Properties))
	for _, p := range s.Properties {
		props[p.Name] = &genai.Schema{
			Type:        genai.TypeString,
			Description: p.Description,
			Enum:        p.Enum,
		}
		required = append(required, p.Name)
		ordering = append(ordering, p.Name)
	}
	return &genai.Schema{
		Type:             genai.TypeObject,
		Properties:       props,
		Required:         required,
		PropertyOrdering: ordering,
	}
}

func withStatus(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code > 0 {
		return &HTTPStatusError{StatusCode: apiErr.Code, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.Code > 0 {
		return &HTTPStatusError{StatusCode: apiErrPtr.Code, Err: err}
	}
	return err
}

func fetchAPIKey(ctx context.Context, getter Getter, name string) (string, error) {
	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("gemini: fetch token from paramstore: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var tp tokenPayload
		if err := json.Unmarshal([]byte(raw), &tp); err != nil {
			return "", fmt.Errorf("gemini: unmarshal paramstore token value as JSON: %w", err)
		}
		raw = tp.Token
	}
	if raw == "" {
		return "", errors.New("gemini: API key is empty")
	}
	return raw, nil
}
