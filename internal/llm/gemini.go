// Package llm wraps the Gemini API behind the two narrow operations the
// pipelines need: batch text embedding and context-grounded answer
// generation.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lawgic-ai/docqa/internal/config"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiClient provides embeddings and chat completions using Gemini models.
type GeminiClient struct {
	client          *genai.Client
	chatModel       string
	embedModel      string
	embedDimension  int
	temperature     float32
	maxOutputTokens int32
	timeout         time.Duration
	logger          *zap.Logger
}

// NewGeminiClient initializes a Gemini client from configuration.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GoogleAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	logger.Info("Gemini client initialized",
		zap.String("chat_model", cfg.ChatModel),
		zap.String("embed_model", cfg.EmbedModel),
		zap.Int("embed_dimension", cfg.EmbedDimension),
	)

	return &GeminiClient{
		client:          client,
		chatModel:       cfg.ChatModel,
		embedModel:      cfg.EmbedModel,
		embedDimension:  cfg.EmbedDimension,
		temperature:     cfg.Temperature,
		maxOutputTokens: cfg.MaxOutputTokens,
		timeout:         cfg.Timeout,
		logger:          logger,
	}, nil
}

// Embed generates embedding vectors for the given texts in one API call.
func (c *GeminiClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts cannot be empty for embedding generation")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	outputDim := int32(c.embedDimension)
	result, err := c.client.Models.EmbedContent(timeoutCtx, c.embedModel, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}
	if result == nil || len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding response mismatch: expected %d vectors", len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range result.Embeddings {
		if len(emb.Values) == 0 {
			return nil, fmt.Errorf("no embedding returned for text %d", i)
		}
		vectors[i] = emb.Values
	}

	return vectors, nil
}

// systemTemplate keeps the model grounded in the retrieved context. The
// fallback phrase is fixed so callers and tests can rely on it verbatim.
const systemTemplate = `You are Lawgic AI, a legal assistant.
Use only the provided context to answer.
If the context does not contain the answer, clearly say:
"I could not find this in the document, but here's a general insight."
Never state claims the context does not support.`

// Generate answers a question from the retrieved context documents.
func (c *GeminiClient) Generate(ctx context.Context, contextDocs []string, question string) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()

	var prompt strings.Builder
	prompt.WriteString("Context:\n")
	for _, doc := range contextDocs {
		prompt.WriteString(doc)
		prompt.WriteString("\n\n")
	}
	prompt.WriteString("Question: ")
	prompt.WriteString(question)

	contents := []*genai.Content{genai.NewContentFromText(prompt.String(), genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(c.temperature),
		MaxOutputTokens:   c.maxOutputTokens,
		SystemInstruction: genai.NewContentFromText(systemTemplate, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(timeoutCtx, c.chatModel, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("answer generation failed: %w", err)
	}

	var answer strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					answer.WriteString(part.Text)
				}
			}
			if answer.Len() > 0 {
				break
			}
		}
	}
	if answer.Len() == 0 {
		return "", fmt.Errorf("no response generated from chat model")
	}

	c.logger.Debug("answer generated",
		zap.Int("context_docs", len(contextDocs)),
		zap.Int("response_length", answer.Len()),
		zap.Duration("duration", time.Since(start)),
	)

	return strings.TrimSpace(answer.String()), nil
}
