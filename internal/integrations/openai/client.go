package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"worldbuilder-agent/internal/domain"
)

const defaultBaseURL = "https://api.openai.com/v1"

// tokenPayload is the JSON shape stored in the parameter store for the API token.
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
	return fmt.Sprintf("openai: unexpected status %d: %v", e.StatusCode, e.Err)
}

func (e *HTTPStatusError) Unwrap() error {
	return e.Err
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	getter     Getter
	tokenParam string

	apiOnce sync.Once
	api     *goopenai.Client
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

// NewClient creates a Client whose API token is read from tokenParam on the
// first call to Chat and reused for the lifetime of the process.
func NewClient(ps Getter, tokenParam string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("openai: paramstore getter must not be nil")
	}
	tokenParam = strings.TrimSpace(tokenParam)
	if tokenParam == "" {
		return nil, errors.New("openai: token parameter name must not be empty")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		getter:     ps,
		tokenParam: tokenParam,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveAPI(ctx context.Context) (*goopenai.Client, error) {
	c.apiOnce.Do(func() {
		key, err := fetchAPIKeyFromParamStore(ctx, c.getter, c.tokenParam)
		if err != nil {
			c.apiErr = err
			return
		}
		cfg := goopenai.DefaultConfig(key)
		cfg.BaseURL = normalizeBaseURL(c.baseURL)
		if c.httpClient != nil {
			cfg.HTTPClient = c.httpClient
		}
		c.api = goopenai.NewClientWithConfig(cfg)
	})
	return c.api, c.apiErr
}

func normalizeBaseURL(baseURL string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return defaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}

func (c *Client) Chat(ctx context.Context, req domain.ChatRequest) (string, error) {
	if strings.TrimSpace(req.Model) == "" {
		return "", errors.New("openai: model must not be empty")
	}
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return "", err
	}

	messages := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:          req.Model,
		Messages:       messages,
		Temperature:    temperature(req.Temperature),
		ResponseFormat: responseFormat(req.Schema),
	})
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", withStatus(err))
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// temperature maps zero to the smallest positive value: go-openai drops a
// zero temperature from the request and the API then applies its default.
func temperature(t float32) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

func responseFormat(s *domain.ResponseSchema) *goopenai.ChatCompletionResponseFormat {
	if s == nil {
		return nil
	}
	props := make(map[string]jsonschema.Definition, len(s.Properties))
	required := make([]string, 0, len(s.Properties))
	for _, p := range s.Properties {
		props[p.Name] = jsonschema.Definition{
			Type:        jsonschema.String,
			Description: p.Description,
			Enum:        p.Enum,
		}
		required = append(required, p.Name)
	}
	return &goopenai.ChatCompletionResponseFormat{
		Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
			Name: s.Name,
			Schema: &jsonschema.Definition{
				Type:                 jsonschema.Object,
				Properties:           props,
				Required:             required,
				AdditionalProperties: false,
			},
			Strict: true,
		},
	}
}

func withStatus(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &HTTPStatusError{StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return &HTTPStatusError{StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return err
}

// fetchAPIKeyFromParamStore accepts either a {"token": "..."} document or a
// bare token.
func fetchAPIKeyFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("openai: paramstore getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("openai: token parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("openai: fetch token from paramstore: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "{") {
		if raw == "" {
			return "", errors.New("openai: API token is empty")
		}
		return raw, nil
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("openai: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", errors.New("openai: API token is empty")
	}
	return tp.Token, nil
}
