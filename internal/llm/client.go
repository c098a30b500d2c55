// Package llm talks to a single OpenAI-compatible chat-completion endpoint
// (OpenRouter by default) for concept extraction, grounded on the
// retrieval pack's only official-SDK provider,
// sweetpotato0-ai-allin/contrib/provider/openai, adapted from its generic
// chat-message conversion to this module's single fixed-prompt concept
// extraction call (spec.md section 6).
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/concept-rag/conceptrag/internal/domainerr"
	"github.com/concept-rag/conceptrag/internal/resilience"
)

// ConceptBundle is one document's extracted concepts, per spec.md section
// 6's "returns JSON with primary_concepts, categories, related_concepts".
type ConceptBundle struct {
	PrimaryConcepts []string `json:"primary_concepts"`
	Categories      []string `json:"categories"`
	RelatedConcepts []string `json:"related_concepts"`
}

// Config configures the chat-completion client.
type Config struct {
	BaseURL   string
	Model     string
	APIKey    string
	Executor  resilience.EndpointConfig
}

// Client wraps openai.Client with the resilience composition spec.md
// section 4.5 requires around every LLM call.
type Client struct {
	client   openai.Client
	model    string
	executor *resilience.Executor
}

// NewClient builds a Client against an OpenAI-compatible base URL.
func NewClient(cfg Config) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		client:   openai.NewClient(opts...),
		model:    cfg.Model,
		executor: resilience.NewExecutor(cfg.Executor),
	}
}

const extractionSystemPrompt = `You are a concept-extraction engine for a technical document library.
Given a document's text, respond with strict JSON only, matching:
{"primary_concepts": string[], "categories": string[], "related_concepts": string[]}
primary_concepts are the 3-12 most important named ideas or techniques discussed.
categories are 1-3 broad subject areas the document belongs to.
related_concepts are ideas mentioned but not central. No prose, no markdown fencing.`

// ExtractConcepts runs spec.md section 4.3 step 7: once per document,
// producing primary concepts, categories, and related concepts. The call
// runs through the LLM resilience executor (bulkhead, circuit breaker,
// timeout, retry, shared rate limiter).
func (c *Client) ExtractConcepts(ctx context.Context, documentText string) (*ConceptBundle, error) {
	return resilience.DoWithResult(ctx, c.executor, func(ctx context.Context) (*ConceptBundle, error) {
		completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(c.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(extractionSystemPrompt),
				openai.UserMessage(documentText),
			},
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
			},
		})
		if err != nil {
			return nil, classifyLLMError(err)
		}
		if len(completion.Choices) == 0 {
			return nil, domainerr.New(domainerr.CodeSchemaValidationError, "LLM returned no choices", nil)
		}

		var bundle ConceptBundle
		if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &bundle); err != nil {
			return nil, domainerr.New(domainerr.CodeSchemaValidationError, "LLM response was not valid JSON", err)
		}
		return &bundle, nil
	})
}

// Preflight sends a 1-token request and expects HTTP 200, per spec.md
// section 6: "Preflight check sends a 1-token request and expects HTTP
// 200; HTTP 401/403 aborts with exit code 1."
func (c *Client) Preflight(ctx context.Context) error {
	_, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(c.model),
		Messages:            []openai.ChatCompletionMessageParamUnion{openai.UserMessage("ping")},
		MaxCompletionTokens: param.NewOpt(int64(1)),
	})
	if err != nil {
		return classifyLLMError(err)
	}
	return nil
}

// classifyLLMError maps SDK errors to stable domain codes: unauthorized
// responses are a non-retryable misconfiguration, not a transient failure
// the resilience executor should retry.
func classifyLLMError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return domainerr.New(domainerr.CodeMissingParameter, fmt.Sprintf("LLM API key rejected (status %d)", apiErr.StatusCode), err)
		case 429:
			return domainerr.New(domainerr.CodeRateLimit, "LLM rate limited", err)
		}
	}
	return domainerr.Wrap(domainerr.CodeTimeout, err)
}
