package service

import (
	"context"
	"time"

	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/biz"
	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/conf"
	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/model"
	"github.com/Enochthedev/ProjectHub-backend-sub007/pkg/aierrors"
	"github.com/Enochthedev/ProjectHub-backend-sub007/pkg/openrouter"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// systemPrompt frames every assistant conversation.
const systemPrompt = "You are the ProjectHub AI assistant. You help final-year students " +
	"plan, research and write up their projects. Answer concisely and point students " +
	"to their supervisor for decisions you cannot make for them."

// degradedMaxTokens caps completions when the caller's budget is critical.
const degradedMaxTokens = 256

// FallbackStore supplies stored responses for degraded answers and captures
// fresh AI answers for later reuse.
type FallbackStore interface {
	LookupFallbackResponse(ctx context.Context, query string) (*model.FallbackResponse, error)
	StoreFallbackResponse(ctx context.Context, query, content string)
}

// BudgetLedger records what a completed request cost.
type BudgetLedger interface {
	AddSpend(ctx context.Context, userID string, cost float64) error
}

// ModelPricer resolves a model's per-1K-token price.
type ModelPricer interface {
	CostPer1K(ctx context.Context, model string) (float64, error)
}

// AskRequest is the input of POST /v1/assistant/ask.
type AskRequest struct {
	UserID              string  `json:"user_id"`
	Query               string  `json:"query"`
	ConversationContext string  `json:"conversation_context,omitempty"`
	Model               string  `json:"model,omitempty"`
	MaxCost             float64 `json:"max_cost,omitempty"`
}

// AskResponse is the output of POST /v1/assistant/ask.
type AskResponse struct {
	Answer           string `json:"answer"`
	Model            string `json:"model"`
	RecoveryMethod   string `json:"recovery_method"`
	DegradationLevel string `json:"degradation_level"`
	UserMessage      string `json:"user_message,omitempty"`
	Attempts         int    `json:"attempts"`
	TotalTimeMs      int64  `json:"total_time_ms"`
}

// AssistantService answers student questions through the AI routing layer,
// composing the resilience core around every upstream call.
type AssistantService struct {
	orchestrator *biz.DegradationUsecase
	limiter      *biz.RateLimiterUsecase
	client       openrouter.Client
	fallbacks    FallbackStore
	ledger       BudgetLedger
	pricer       ModelPricer

	defaultModel   string
	requestTimeout time.Duration

	logger *log.Helper
}

// NewAssistantService creates a new AssistantService instance.
func NewAssistantService(
	c *conf.OpenRouter,
	orchestrator *biz.DegradationUsecase,
	limiter *biz.RateLimiterUsecase,
	client openrouter.Client,
	fallbacks FallbackStore,
	ledger BudgetLedger,
	pricer ModelPricer,
	logger log.Logger,
) *AssistantService {
	timeout := openrouter.DefaultTimeout
	defaultModel := "openai/gpt-4o-mini"
	if c != nil {
		if c.RequestTimeout > 0 {
			timeout = c.RequestTimeout
		}
		if c.DefaultModel != "" {
			defaultModel = c.DefaultModel
		}
	}

	return &AssistantService{
		orchestrator:   orchestrator,
		limiter:        limiter,
		client:         client,
		fallbacks:      fallbacks,
		ledger:         ledger,
		pricer:         pricer,
		defaultModel:   defaultModel,
		requestTimeout: timeout,
		logger:         log.NewHelper(logger),
	}
}

// serviceName identifies the AI upstream in the health registry and metrics.
const serviceName = "openrouter"

// Ask answers one student question. The primary path is a chat completion
// under the timeout guard, executed through the orchestrator (budget gate,
// retry, circuit breaker). Model-specific failures try an alternative model;
// anything else degrades to a stored fallback response.
func (s *AssistantService) Ask(ctx context.Context, req *AskRequest) (*AskResponse, error) {
	if req == nil || req.Query == "" {
		return nil, errors.BadRequest("EMPTY_QUERY", "query is required")
	}
	if req.UserID == "" {
		return nil, errors.BadRequest("MISSING_USER", "user_id is required")
	}

	modelName := req.Model
	if modelName == "" {
		modelName = s.defaultModel
	}

	estimated := estimateTokens(req)
	if err := s.limiter.Allow(ctx, req.UserID, estimated); err != nil {
		s.orchestrator.Metrics().RecordError(req.UserID, serviceName, err)
		return nil, s.toTransportError(err, "")
	}

	ectx := biz.ExecutionContext{
		UserID:              req.UserID,
		Query:               req.Query,
		ConversationContext: req.ConversationContext,
		ServiceName:         serviceName,
		Label:               "chat_completion",
		Model:               modelName,
		MaxCost:             req.MaxCost,
	}

	var lastPrimaryErr error
	var failoverModel string

	primary := func(ctx context.Context) (*openrouter.ChatResult, error) {
		result, err := s.chat(ctx, modelName, req, 0)
		if err != nil {
			lastPrimaryErr = err
		}
		return result, err
	}

	fallback := func(ctx context.Context) (*openrouter.ChatResult, error) {
		// A model-specific failure is worth one attempt on an alternative
		// model before serving a stored response.
		if aierrors.Classify(lastPrimaryErr) == aierrors.KindModelFailure {
			fr := biz.HandleModelFailure(ctx, s.orchestrator.Failover(), modelName,
				func(ctx context.Context, alt string) (*openrouter.ChatResult, error) {
					return s.chat(ctx, alt, req, 0)
				}, ectx)
			if fr.Success {
				failoverModel = fr.FallbackModel
				return fr.Result, nil
			}
		}

		// Stored fallback chain: cached response, knowledge base, template.
		fb, err := s.fallbacks.LookupFallbackResponse(ctx, req.Query)
		if err != nil {
			return nil, err
		}
		return &openrouter.ChatResult{Content: fb.Content, Model: "fallback:" + fb.Source}, nil
	}

	res := biz.ExecuteWithErrorHandling(ctx, s.orchestrator, primary, ectx, fallback)

	if !res.Success && aierrors.Classify(res.Err) == aierrors.KindBudgetConstraint {
		return s.askDegraded(ctx, req, modelName, ectx, res, estimated)
	}
	if !res.Success {
		s.limiter.SettleTokens(ctx, req.UserID, estimated, 0)
		return nil, s.toTransportError(res.Err, res.UserMessage)
	}

	method := res.RecoveryMethod
	level := res.DegradationLevel
	if failoverModel != "" {
		method = biz.RecoveryFallbackModel
	}

	s.recordOutcome(ctx, req, res.Result, method, estimated)

	return &AskResponse{
		Answer:           res.Result.Content,
		Model:            res.Result.Model,
		RecoveryMethod:   string(method),
		DegradationLevel: string(level),
		Attempts:         len(res.Attempts),
		TotalTimeMs:      res.TotalTime.Milliseconds(),
	}, nil
}

// askDegraded reruns a budget-rejected request through the budget gate, which
// either runs it in reduced-cost mode or confirms the rejection.
func (s *AssistantService) askDegraded(
	ctx context.Context,
	req *AskRequest,
	modelName string,
	ectx biz.ExecutionContext,
	rejected *biz.ExecutionResult[*openrouter.ChatResult],
	estimated int32,
) (*AskResponse, error) {
	bres := biz.HandleBudgetConstraint(ctx, s.orchestrator.Budget(),
		func(ctx context.Context, degraded bool) (*openrouter.ChatResult, error) {
			maxTokens := 0
			if degraded {
				maxTokens = degradedMaxTokens
			}
			return s.chat(ctx, modelName, req, maxTokens)
		}, ectx)

	if !bres.Success {
		err := bres.Err
		if err == nil {
			err = rejected.Err
		}
		s.limiter.SettleTokens(ctx, req.UserID, estimated, 0)
		return nil, s.toTransportError(err, s.orchestrator.CreateUserFriendlyErrorMessage(err, serviceName))
	}

	s.recordOutcome(ctx, req, bres.Result, bres.RecoveryMethod, estimated)

	return &AskResponse{
		Answer:           bres.Result.Content,
		Model:            bres.Result.Model,
		RecoveryMethod:   string(bres.RecoveryMethod),
		DegradationLevel: string(bres.DegradationLevel),
		UserMessage:      "Your AI budget is nearly exhausted, so this answer was generated in reduced mode.",
		TotalTimeMs:      bres.TotalTime.Milliseconds(),
	}, nil
}

// chat performs one chat completion under the timeout guard.
func (s *AssistantService) chat(ctx context.Context, modelName string, req *AskRequest, maxTokens int) (*openrouter.ChatResult, error) {
	return biz.WithTimeout(ctx, func(ctx context.Context) (*openrouter.ChatResult, error) {
		return s.client.ChatCompletion(ctx, &openrouter.ChatRequest{
			Model:     modelName,
			Messages:  buildMessages(req),
			MaxTokens: maxTokens,
		})
	}, s.requestTimeout)
}

// recordOutcome charges the spend and captures the answer for future degraded
// periods. Both are best-effort: a bookkeeping failure never fails the request.
func (s *AssistantService) recordOutcome(ctx context.Context, req *AskRequest, result *openrouter.ChatResult, method biz.RecoveryMethod, estimated int32) {
	actual := int32(result.PromptTokens + result.CompletionTokens)
	if method == biz.RecoveryFallbackResponse {
		// Stored responses consumed no upstream tokens and are already stored.
		s.limiter.SettleTokens(ctx, req.UserID, estimated, 0)
		return
	}
	s.limiter.SettleTokens(ctx, req.UserID, estimated, actual)

	s.fallbacks.StoreFallbackResponse(ctx, req.Query, result.Content)

	costPer1K, err := s.pricer.CostPer1K(ctx, result.Model)
	if err != nil {
		s.logger.Warnw("failed to price request, spend not recorded",
			"model", result.Model,
			"error", err)
		return
	}
	totalTokens := result.PromptTokens + result.CompletionTokens
	cost := float64(totalTokens) / 1000 * costPer1K
	if cost <= 0 {
		return
	}
	if err := s.ledger.AddSpend(ctx, req.UserID, cost); err != nil {
		s.logger.Warnw("failed to record spend",
			"user_id", req.UserID,
			"cost", cost,
			"error", err)
	}
}

// estimateTokens approximates a request's token usage for rate limit
// reservation: roughly 4 characters per prompt token, plus a completion
// allowance. Corrected to actual usage after the call.
func estimateTokens(req *AskRequest) int32 {
	promptChars := len(systemPrompt) + len(req.Query) + len(req.ConversationContext)
	return int32(promptChars/4) + 512
}

// buildMessages assembles the chat transcript sent upstream.
func buildMessages(req *AskRequest) []openrouter.Message {
	msgs := []openrouter.Message{{Role: "system", Content: systemPrompt}}
	if req.ConversationContext != "" {
		msgs = append(msgs, openrouter.Message{
			Role:    "system",
			Content: "Conversation so far:\n" + req.ConversationContext,
		})
	}
	return append(msgs, openrouter.Message{Role: "user", Content: req.Query})
}

// toTransportError maps a terminal resilience error to the HTTP boundary.
// The client sees only the kind-derived user message.
func (s *AssistantService) toTransportError(err error, userMessage string) error {
	if userMessage == "" {
		userMessage = s.orchestrator.CreateUserFriendlyErrorMessage(err, serviceName)
	}

	switch aierrors.Classify(err) {
	case aierrors.KindTimeout:
		return errors.GatewayTimeout("AI_TIMEOUT", userMessage)
	case aierrors.KindRateLimit:
		return errors.New(429, "AI_RATE_LIMITED", userMessage)
	case aierrors.KindCircuitOpen:
		return errors.ServiceUnavailable("AI_CIRCUIT_OPEN", userMessage)
	case aierrors.KindBudgetConstraint:
		return errors.New(402, "AI_BUDGET_EXHAUSTED", userMessage)
	case aierrors.KindValidation:
		return errors.BadRequest("AI_BAD_REQUEST", userMessage)
	case aierrors.KindModelFailure, aierrors.KindTransientUpstream:
		return errors.ServiceUnavailable("AI_UPSTREAM_UNAVAILABLE", userMessage)
	default:
		return errors.InternalServer("AI_INTERNAL", userMessage)
	}
}
