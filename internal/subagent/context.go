package subagent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/quillworks/quill/pkg/models"
)

// previewRunes caps how much of each entry the relevance prompt shows.
const previewRunes = 200

const relevanceSystem = `You select which conversation entries a focused sub-agent needs for its task. Reply with only a JSON array of zero-based entry indices, most relevant first. No other text.`

// filterContext reduces messages to fit maxSize (measured in runes across
// all message contents). A non-positive budget or an already-fitting
// conversation passes through unchanged. Otherwise the generator is asked
// to pick the relevant entries; if that fails for any reason, the newest
// entries that fit are kept instead.
func (m *Manager) filterContext(ctx context.Context, task string, messages []models.Message, maxSize int) []models.Message {
	if maxSize <= 0 || contextSize(messages) <= maxSize {
		return messages
	}

	selected, err := m.selectRelevant(ctx, task, messages, maxSize)
	if err != nil {
		log.Printf("[subagent] relevance selection failed, using recency: %v", err)
		return trimNewestFirst(messages, maxSize)
	}
	return selected
}

// contextSize is the total rune count of all message contents.
func contextSize(messages []models.Message) int {
	total := 0
	for _, msg := range messages {
		total += utf8.RuneCountInString(msg.Content)
	}
	return total
}

// selectRelevant asks the generator which entries matter for the task,
// fills the budget in the order the generator ranked them, then restores
// conversation order.
func (m *Manager) selectRelevant(ctx context.Context, task string, messages []models.Message, maxSize int) ([]models.Message, error) {
	var listing strings.Builder
	for i, msg := range messages {
		fmt.Fprintf(&listing, "[%d] %s: %s\n", i, msg.Role, preview(msg.Content))
	}

	prompt := fmt.Sprintf(`A sub-agent will perform this task:

%s

The conversation history exceeds its context budget of %d characters. The entries are:

%s
Reply with a JSON array of the indices of the entries the sub-agent needs, most relevant first.`, task, maxSize, listing.String())

	reply, err := m.gen.Generate(ctx, relevanceSystem, []models.Message{
		{Role: models.RoleUser, Content: prompt},
	})
	if err != nil {
		return nil, fmt.Errorf("relevance generation: %w", err)
	}

	indices, err := parseIndexArray(reply)
	if err != nil {
		return nil, err
	}

	// Fill the budget in relevance order so the highest-ranked entries
	// win the space, then re-sort into conversation order.
	kept := make([]int, 0, len(indices))
	seen := make(map[int]bool, len(indices))
	used := 0
	for _, idx := range indices {
		if idx < 0 || idx >= len(messages) || seen[idx] {
			continue
		}
		seen[idx] = true
		size := utf8.RuneCountInString(messages[idx].Content)
		if used+size > maxSize {
			continue
		}
		used += size
		kept = append(kept, idx)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("no selected entry fits the budget of %d", maxSize)
	}
	sort.Ints(kept)

	selected := make([]models.Message, 0, len(kept))
	for _, idx := range kept {
		selected = append(selected, messages[idx])
	}
	return selected, nil
}

// trimNewestFirst keeps the most recent messages that fit the budget,
// preserving their original order. Entries too large to fit are skipped so
// an oversized old message cannot starve out newer ones.
func trimNewestFirst(messages []models.Message, maxSize int) []models.Message {
	var kept []models.Message
	used := 0
	for i := len(messages) - 1; i >= 0; i-- {
		size := utf8.RuneCountInString(messages[i].Content)
		if used+size > maxSize {
			continue
		}
		used += size
		kept = append([]models.Message{messages[i]}, kept...)
	}
	return kept
}

// parseIndexArray extracts the first JSON array of integers from a model
// reply, tolerating surrounding prose.
func parseIndexArray(reply string) ([]int, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array in reply")
	}

	var indices []int
	if err := json.Unmarshal([]byte(reply[start:end+1]), &indices); err != nil {
		return nil, fmt.Errorf("parse index array: %w", err)
	}
	return indices, nil
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewRunes {
		return content
	}
	return string(runes[:previewRunes]) + "..."
}
