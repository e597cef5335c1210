package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	VisionName           = "vision"
	visionDefaultModel   = "gpt-4o-mini"
	visionDefaultTimeout = 120 * time.Second
	visionDefaultRetries = 3
	visionDefaultDelay   = 2 * time.Second

	visionDefaultPrompt = "Transcribe all text visible in this page image. " +
		"Preserve reading order and line breaks. Output the text only, with no commentary."
)

// VisionConfig holds configuration for the vision-model engine.
type VisionConfig struct {
	APIKey     string
	Model      string        // "gpt-4o-mini" (default)
	Prompt     string        // Transcription instruction
	Timeout    time.Duration // HTTP timeout
	MaxRetries int           // Attempts per page
	RetryDelay time.Duration // Base backoff delay
	BaseURL    string        // Optional (tests)
	HTTPClient *http.Client  // Optional (tests)
}

// VisionEngine recognizes page text by sending the rendered image to a
// multimodal chat model.
type VisionEngine struct {
	model      string
	prompt     string
	maxRetries int
	retryDelay time.Duration
	client     openai.Client
}

// NewVisionEngine creates a vision engine, filling defaults for anything
// unset.
func NewVisionEngine(cfg VisionConfig) *VisionEngine {
	if cfg.Model == "" {
		cfg.Model = visionDefaultModel
	}
	if cfg.Prompt == "" {
		cfg.Prompt = visionDefaultPrompt
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = visionDefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = visionDefaultRetries
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = visionDefaultDelay
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		// Attempts are governed by the retry loop in ProcessImage.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &VisionEngine{
		model:      cfg.Model,
		prompt:     cfg.Prompt,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		client:     openai.NewClient(opts...),
	}
}

// Name returns the engine identifier.
func (e *VisionEngine) Name() string {
	return VisionName
}

// ProcessImage sends the page image to the chat model and returns its
// transcription. Vision models report no word confidence, so Confidence
// stays zero.
func (e *VisionEngine) ProcessImage(ctx context.Context, image []byte, pageNum int) (*PageResult, error) {
	start := time.Now()

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(e.prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
	}

	var text string
	err := retry.Do(
		func() error {
			resp, err := e.client.Chat.Completions.New(ctx, params)
			if err != nil {
				return err
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("empty completion response")
			}
			text = resp.Choices[0].Message.Content
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(e.maxRetries)),
		retry.Delay(e.retryDelay),
	)
	if err != nil {
		return &PageResult{
			Engine:        VisionName,
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}, err
	}

	return &PageResult{
		Success:       true,
		Text:          strings.TrimSpace(text),
		Engine:        VisionName,
		ExecutionTime: time.Since(start),
	}, nil
}

var (
	_ Engine = (*TesseractEngine)(nil)
	_ Engine = (*VisionEngine)(nil)
)
