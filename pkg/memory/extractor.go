package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cyberFlowTech/wanqing/pkg/logger"
	"github.com/cyberFlowTech/wanqing/pkg/providers"
)

const extractionPrompt = `你是一个记忆提炼助手。下面是用户与塔罗师晚晴的一段对话。
请从中提炼值得长期记住的用户信息：喜好、处境、重要的人、反复出现的困扰等。
只输出一个 JSON 数组，每个元素是一条简短的事实（不超过 50 字）。
没有值得记住的内容就输出 []。不要输出数组以外的任何文字。`

// MemorySink persists distilled facts; *store.SQLiteStore satisfies it.
type MemorySink interface {
	SaveMemories(ctx context.Context, userID string, facts []string) error
}

// LLMExtractor distills drained conversation batches into long-term facts
// via the chat provider and persists them.
type LLMExtractor struct {
	provider providers.Provider
	sink     MemorySink
	maxFacts int
}

func NewLLMExtractor(provider providers.Provider, sink MemorySink) *LLMExtractor {
	return &LLMExtractor{provider: provider, sink: sink, maxFacts: 10}
}

func (e *LLMExtractor) ExtractMemories(ctx context.Context, userID string, batch []Message) error {
	if len(batch) == 0 {
		return nil
	}

	var sb strings.Builder
	for _, msg := range batch {
		name := "用户"
		if msg.Role == "assistant" {
			name = "晚晴"
		}
		fmt.Fprintf(&sb, "%s: %s\n", name, msg.Content)
	}

	resp, err := e.provider.Chat(ctx, []providers.Message{
		{Role: "system", Content: extractionPrompt},
		{Role: "user", Content: sb.String()},
	}, providers.Options{Temperature: 0.2})
	if err != nil {
		return fmt.Errorf("extract memories chat: %w", err)
	}

	facts, err := parseFacts(resp.Content)
	if err != nil {
		return fmt.Errorf("extract memories parse: %w", err)
	}
	if len(facts) > e.maxFacts {
		facts = facts[:e.maxFacts]
	}
	if len(facts) == 0 {
		logger.DebugCF("memory", "extraction found nothing to keep", map[string]any{
			"user_id": userID,
			"turns":   len(batch),
		})
		return nil
	}

	if err := e.sink.SaveMemories(ctx, userID, facts); err != nil {
		return fmt.Errorf("extract memories save: %w", err)
	}
	logger.InfoCF("memory", "memories extracted", map[string]any{
		"user_id": userID,
		"facts":   len(facts),
	})
	return nil
}

// parseFacts reads the model output, tolerating markdown code fences around
// the JSON array.
func parseFacts(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
		raw = strings.TrimSpace(raw)
	}

	var facts []string
	if err := json.Unmarshal([]byte(raw), &facts); err != nil {
		return nil, err
	}

	out := facts[:0]
	for _, f := range facts {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out, nil
}
