package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultHTTPTimeout = 120 * time.Second

// ChatCompletionsProvider speaks the OpenAI chat/completions dialect, which
// OpenRouter and most self-hosted gateways also accept.
type ChatCompletionsProvider struct {
	apiBase      string
	apiKey       string
	defaultModel string
	httpClient   *http.Client
}

func NewChatCompletionsProvider(apiBase, apiKey, defaultModel string) (*ChatCompletionsProvider, error) {
	apiBase = strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if apiBase == "" {
		return nil, fmt.Errorf("provider API base not configured")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("provider API key not configured")
	}

	return &ChatCompletionsProvider{
		apiBase:      apiBase,
		apiKey:       strings.TrimSpace(apiKey),
		defaultModel: strings.TrimSpace(defaultModel),
		httpClient:   &http.Client{Timeout: defaultHTTPTimeout},
	}, nil
}

func (p *ChatCompletionsProvider) DefaultModel() string {
	if p == nil {
		return ""
	}
	return p.defaultModel
}

func (p *ChatCompletionsProvider) Chat(ctx context.Context, messages []Message, opts Options) (*LLMResponse, error) {
	if p == nil {
		return nil, fmt.Errorf("provider not initialized")
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = p.defaultModel
	}

	requestBody := map[string]interface{}{
		"model":    model,
		"messages": messages,
	}
	if opts.MaxTokens > 0 {
		requestBody["max_tokens"] = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		requestBody["temperature"] = opts.Temperature
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	endpoint := p.apiBase + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("chat API request failed: status=%d error=%s", resp.StatusCode, extractAPIError(body))
	}

	result, err := parseChatResponse(body)
	if err != nil {
		return nil, fmt.Errorf("parse chat response: %w", err)
	}
	return result, nil
}

func parseChatResponse(body []byte) (*LLMResponse, error) {
	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content interface{} `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage *UsageInfo `json:"usage"`
	}

	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, err
	}

	if len(apiResponse.Choices) == 0 {
		return &LLMResponse{Content: "", FinishReason: "stop"}, nil
	}

	choice := apiResponse.Choices[0]
	return &LLMResponse{
		Content:      flattenMessageContent(choice.Message.Content),
		FinishReason: choice.FinishReason,
		Usage:        apiResponse.Usage,
	}, nil
}

// flattenMessageContent accepts both the plain-string and the multi-part
// content forms providers return.
func flattenMessageContent(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return v
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if text, ok := m["text"].(string); ok {
				parts = append(parts, text)
				continue
			}
			if content, ok := m["content"].(string); ok {
				parts = append(parts, content)
			}
		}
		return strings.Join(parts, "")
	default:
		return ""
	}
}

func extractAPIError(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "empty response body"
	}

	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Error.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
	}

	if len(trimmed) > 2000 {
		return trimmed[:2000] + "..."
	}
	return trimmed
}
