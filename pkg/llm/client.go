// Package llm implements the external language-model collaborator: prompt
// construction, the Anthropic messages call behind a circuit breaker and
// rate limiter, and strict parsing of the structured JSON response. Callers
// treat it as an opaque generateInsights capability; every failure mode
// surfaces as an error so the service layer can fall back deterministically.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/onco-review-server/internal/domain"
)

const systemPrompt = "You are a clinical oncology analyst generating structured dashboard insights from a single patient record. Respond with strict JSON only, exactly matching the documented schema. Never invent findings that are not present in the record; write 'not documented' for absent data."

// Messager is the slice of the Anthropic SDK the client uses, narrowed for
// test substitution.
type Messager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Client calls the model service and returns parsed insight responses.
type Client struct {
	messages  Messager
	model     anthropic.Model
	maxTokens int64
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	logger    *logrus.Logger
}

// NewClient creates a model client from configuration. The API key is
// required; model and limits fall back to defaults.
func NewClient(cfg *domain.LLMConfig, logger *logrus.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("model API key not configured")
	}
	sdk := anthropic.NewClient(option.WithAPIKey(apiKey))
	return newClientWithMessager(&sdk.Messages, cfg, logger), nil
}

func newClientWithMessager(messages Messager, cfg *domain.LLMConfig, logger *logrus.Logger) *Client {
	model := anthropic.ModelClaudeSonnet4_20250514
	if cfg.Model != "" {
		model = anthropic.Model(cfg.Model)
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	perSecond := cfg.RateLimit
	if perSecond <= 0 {
		perSecond = 2
	}
	breakerName := cfg.BreakerName
	if breakerName == "" {
		breakerName = "insight-model"
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 2,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Model circuit breaker state changed")
		},
	})

	return &Client{
		messages:  messages,
		model:     model,
		maxTokens: maxTokens,
		limiter:   rate.NewLimiter(rate.Limit(perSecond), perSecond),
		breaker:   breaker,
		logger:    logger,
	}
}

// GenerateInsights builds the request payload from the full patient record,
// invokes the model, and parses the structured response. Any transport,
// parse, or schema failure returns an error.
func (c *Client) GenerateInsights(ctx context.Context, patient *domain.Patient) (*domain.MasterAIResponse, error) {
	prompt, err := BuildPrompt(patient)
	if err != nil {
		return nil, fmt.Errorf("building insight prompt: %w", err)
	}

	raw, err := c.generateJSON(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	response, err := ParseResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("model response rejected: %w", err)
	}
	return response, nil
}

// generateJSON runs one rate-limited, breaker-guarded messages call and
// concatenates the text blocks of the reply.
func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.messages.New(ctx, anthropic.MessageNewParams{
			Model:       c.model,
			MaxTokens:   c.maxTokens,
			System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
			Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
			Temperature: anthropic.Float(0),
		})
	})
	if err != nil {
		return "", err
	}

	message := result.(*anthropic.Message)
	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", errors.New("empty model response")
	}
	return sb.String(), nil
}
