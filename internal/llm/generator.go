// Package llm generates candidate fixes for failing tests through an
// OpenAI-compatible chat completion endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/testmend/testmend/internal/fixer"
)

// ErrInvalidTemperature is returned when a sampling temperature lies outside
// [0, 1].
var ErrInvalidTemperature = errors.New("temperature must be between 0 and 1")

// ErrEmptyCompletion is returned when the model replies without any choices.
var ErrEmptyCompletion = errors.New("model returned no completion choices")

// systemPrompt frames every fix request.
const systemPrompt = "You are an expert Python engineer who repairs failing " +
	"pytest tests. You reply with the complete corrected test file in a " +
	"single fenced code block and no commentary."

// completionClient is the slice of the OpenAI client used by FixGenerator.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// FixGenerator implements fixer.Generator on a chat completion API.
type FixGenerator struct {
	client  completionClient
	model   string
	prompts *PromptBuilder
	logger  *log.Logger

	// readFile is replaceable in tests.
	readFile func(string) ([]byte, error)
}

// NewFixGenerator creates a FixGenerator. An empty baseURL uses the public
// OpenAI endpoint; a non-empty one targets any compatible server (Ollama,
// vLLM, a proxy). logger may be nil.
func NewFixGenerator(apiKey, baseURL, model string, logger *log.Logger) (*FixGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("llm: api key is empty")
	}
	if model == "" {
		return nil, errors.New("llm: model is empty")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &FixGenerator{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		prompts:  NewPromptBuilder(),
		logger:   logger,
		readFile: os.ReadFile,
	}, nil
}

// GenerateFix asks the model for a corrected version of the failing test
// file at the given sampling temperature.
func (g *FixGenerator) GenerateFix(ctx context.Context, tc *fixer.TestCase, temperature float64) (*fixer.CodeChanges, error) {
	if temperature < 0 || temperature > 1 {
		return nil, fmt.Errorf("llm: temperature %v: %w", temperature, ErrInvalidTemperature)
	}

	// The current file content anchors the model to the real code; a read
	// failure degrades the prompt rather than aborting the attempt.
	var fileContent string
	if data, err := g.readFile(tc.TestFile); err == nil {
		fileContent = string(data)
	} else if g.logger != nil {
		g.logger.Warn("reading test file for prompt", "file", tc.TestFile, "error", err)
	}

	prompt, err := g.prompts.Build(tc, fileContent)
	if err != nil {
		return nil, err
	}

	if g.logger != nil {
		g.logger.Info("requesting fix",
			"model", g.model,
			"test", tc.TestFunction,
			"temperature", temperature,
		)
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm: %w", ErrEmptyCompletion)
	}

	return &fixer.CodeChanges{
		OriginalCode: fileContent,
		ModifiedCode: resp.Choices[0].Message.Content,
	}, nil
}
