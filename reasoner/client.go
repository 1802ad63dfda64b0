// Package reasoner asks an OpenAI-compatible chat completions endpoint for a
// trading decision on a market snapshot.
package reasoner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rustyeddy/llmtrader/config"
	"github.com/rustyeddy/llmtrader/market"
	"github.com/rustyeddy/llmtrader/risk"
)

var ErrEmptyResponse = errors.New("reasoner returned no choices")

// Usage is the token accounting reported with a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Reply is the raw model text plus accounting. The text is untrusted and must
// go through decision.Parse.
type Reply struct {
	Text  string
	Model string
	Usage Usage
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type Client struct {
	http        *resty.Client
	model       string
	temperature float64
	maxTokens   int
}

func NewClient(cfg config.ReasonerConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	c := resty.New()
	c.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	c.SetTimeout(timeout)
	c.SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		c.SetAuthToken(cfg.APIKey)
	}

	return &Client{
		http:        c,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (c *Client) Model() string { return c.model }

// Complete sends one system and one user message and returns the first choice.
func (c *Client) Complete(ctx context.Context, system, user string) (Reply, error) {
	body := chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	var out chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/chat/completions")
	if err != nil {
		return Reply{}, fmt.Errorf("chat completion: %w", err)
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil && resp.StatusCode() == http.StatusOK {
		return Reply{}, fmt.Errorf("decode chat completion: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		msg := strings.TrimSpace(resp.String())
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return Reply{}, fmt.Errorf("chat completion: status %d: %s", resp.StatusCode(), msg)
	}
	if len(out.Choices) == 0 {
		return Reply{}, ErrEmptyResponse
	}

	model := out.Model
	if model == "" {
		model = c.model
	}
	return Reply{Text: out.Choices[0].Message.Content, Model: model, Usage: out.Usage}, nil
}

// Reasoner pairs a client with the system prompt for each trading mode.
type Reasoner struct {
	client *Client
	policy risk.Policy
}

func New(client *Client, policy risk.Policy) *Reasoner {
	return &Reasoner{client: client, policy: policy}
}

func (r *Reasoner) Model() string { return r.client.Model() }

// Decide asks for a decision on the snapshot summary.
func (r *Reasoner) Decide(ctx context.Context, mode market.Mode, summary string) (Reply, error) {
	return r.client.Complete(ctx, SystemPrompt(mode, r.policy),
		"Here is the current market analysis:\n"+summary)
}
