package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/tracing"
)

// OpenAIConfig configures the OpenAI provider. BaseURL may point at any
// OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// OpenAI implements Provider on the chat completions API.
type OpenAI struct {
	client  openai.Client
	cfg     OpenAIConfig
	breaker *resilience.Breaker
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewOpenAI creates the provider. metrics may be nil.
func NewOpenAI(cfg OpenAIConfig, metrics *monitoring.Metrics, log *zap.Logger) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if log == nil {
		log = zap.NewNop()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithHTTPClient(&http.Client{Transport: &tracing.Transport{}}),
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}

	p := &OpenAI{
		client:  openai.NewClient(opts...),
		cfg:     cfg,
		metrics: metrics,
		log:     log,
	}
	p.breaker = resilience.New("ai-openai", resilience.Settings{
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		IsSuccessful: func(err error) bool {
			var pe *ProviderError
			if errors.As(err, &pe) {
				return !pe.transient()
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			log.Warn("AI provider breaker changed state", zap.String("from", from.String()), zap.String("to", to.String()))
			if metrics != nil {
				metrics.SetBreakerState(name, int(to))
			}
		},
	})
	return p
}

// Name identifies the provider.
func (p *OpenAI) Name() string { return "openai" }

// Breaker exposes the provider's circuit breaker.
func (p *OpenAI) Breaker() *resilience.Breaker { return p.breaker }

// Complete sends the prompt as one chat completion request.
func (p *OpenAI) Complete(ctx context.Context, prompt Prompt, opts Options) (*Completion, error) {
	timer := monitoring.NewTimer(p.metrics, "openai", "chat.completions")
	span, ctx := tracing.Start(ctx, "ai.complete")
	span.SetAttr("provider", p.Name())

	c, err := resilience.Call(p.breaker, func() (*Completion, error) {
		return p.complete(ctx, prompt, opts)
	})
	if resilience.IsRejection(err) {
		err = &ProviderError{Provider: p.Name(), Reason: ReasonCircuitOpen, Err: err}
	}
	timer.StopErr(err)
	span.End(err)
	if err != nil {
		p.log.Warn("AI completion failed", zap.String("reason", Reason(err)), zap.Error(err))
		return nil, err
	}
	return c, nil
}

func (p *OpenAI) complete(ctx context.Context, prompt Prompt, opts Options) (*Completion, error) {
	model := opts.Model
	if model == "" {
		model = p.cfg.Model
	}
	temperature := p.cfg.Temperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.cfg.MaxTokens
	}

	system := prompt.System
	if opts.JSON {
		system = strings.TrimSpace(system + "\n\n" + jsonInstruction)
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(prompt.Messages)+1)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	for _, m := range prompt.Messages {
		switch m.Role {
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(model),
		Messages:            messages,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	})
	if err != nil {
		return nil, p.translate(ctx, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, &ProviderError{Provider: p.Name(), Reason: ReasonEmpty}
	}

	content := resp.Choices[0].Message.Content
	if opts.JSON {
		obj, ok := ExtractJSON(content)
		if !ok {
			return nil, &ProviderError{Provider: p.Name(), Reason: ReasonMalformed}
		}
		content = obj
	}

	return &Completion{
		Content:          content,
		Model:            resp.Model,
		FinishReason:     string(resp.Choices[0].FinishReason),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// translate maps client errors to provider errors.
func (p *OpenAI) translate(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return err
	}

	pe := &ProviderError{Provider: p.Name(), Err: err}
	var apiErr *openai.Error
	switch {
	case errors.As(err, &apiErr):
		pe.StatusCode = apiErr.StatusCode
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			pe.Reason = ReasonUnauthorized
		case apiErr.StatusCode == http.StatusTooManyRequests:
			pe.Reason = ReasonRateLimited
		case apiErr.StatusCode >= 500:
			pe.Reason = ReasonUnavailable
		default:
			pe.Reason = ReasonBadRequest
		}
	case errors.Is(err, context.DeadlineExceeded):
		pe.Reason = ReasonTimeout
	default:
		pe.Reason = ReasonUnavailable
	}
	return pe
}
