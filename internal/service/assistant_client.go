package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/sgpt-dev/sgpt-api/pkg/errors"
)

// AssistantMessage is one turn sent to the upstream model.
type AssistantMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type assistantRequest struct {
	Model    string             `json:"model"`
	Messages []AssistantMessage `json:"messages"`
	Stream   bool               `json:"stream,omitempty"`
}

type assistantResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type assistantStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// AssistantClientConfig configures the upstream assistant endpoint.
type AssistantClientConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type assistantObserver interface {
	ObserveAssistantCall(mode string, err error, duration time.Duration)
}

// AssistantClient is a thin HTTP proxy to the external model provider. The
// backend never retries; the client surfaces upstream failures directly.
type AssistantClient struct {
	httpClient *http.Client
	config     AssistantClientConfig
	logger     *zap.Logger
	metrics    assistantObserver
}

// SetMetrics attaches the optional upstream call observer.
func (c *AssistantClient) SetMetrics(observer assistantObserver) {
	c.metrics = observer
}

// NewAssistantClient constructs an AssistantClient.
func NewAssistantClient(config AssistantClientConfig, logger *zap.Logger) *AssistantClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &AssistantClient{
		httpClient: &http.Client{Timeout: timeout},
		config:     config,
		logger:     logger,
	}
}

// Complete sends the conversation and returns the full assistant reply.
func (c *AssistantClient) Complete(ctx context.Context, messages []AssistantMessage) (reply string, err error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.ObserveAssistantCall("complete", err, time.Since(start))
		}
	}()

	body, err := c.do(ctx, assistantRequest{Model: c.config.Model, Messages: messages})
	if err != nil {
		return "", err
	}
	defer body.Close() //nolint:errcheck

	var parsed assistantResponse
	if err := json.NewDecoder(body).Decode(&parsed); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "respuesta del asistente ilegible")
	}
	if len(parsed.Choices) == 0 {
		return "", appErrors.Clone(appErrors.ErrInternal, "el asistente no devolvió contenido")
	}
	return parsed.Choices[0].Message.Content, nil
}

// Stream sends the conversation in streaming mode and invokes emit for each
// content delta. It returns the accumulated reply once the stream ends.
func (c *AssistantClient) Stream(ctx context.Context, messages []AssistantMessage, emit func(delta string) error) (text string, err error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.ObserveAssistantCall("stream", err, time.Since(start))
		}
	}()

	body, err := c.do(ctx, assistantRequest{Model: c.config.Model, Messages: messages, Stream: true})
	if err != nil {
		return "", err
	}
	defer body.Close() //nolint:errcheck

	var full strings.Builder
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var chunk assistantStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			c.logger.Warn("skipping malformed stream chunk", zap.Error(err))
			continue
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			full.WriteString(choice.Delta.Content)
			if err := emit(choice.Delta.Content); err != nil {
				return full.String(), err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "el stream del asistente se interrumpió")
	}
	return full.String(), nil
}

func (c *AssistantClient) do(ctx context.Context, payload assistantRequest) (io.ReadCloser, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode assistant request")
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build assistant request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusBadGateway, "el asistente no está disponible")
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close() //nolint:errcheck
		return nil, appErrors.New("ASSISTANT_ERROR", http.StatusBadGateway, fmt.Sprintf("el asistente respondió %d: %s", resp.StatusCode, string(snippet)))
	}
	return resp.Body, nil
}
