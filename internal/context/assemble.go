// Package context assembles a token-budgeted block of chunk text from a
// ranked search result, for feeding into a downstream prompt.
package context

import (
	"strings"

	"github.com/recall-db/recall/internal/model"
)

// ContextChunk is one chunk that made it into an assembled context, carrying
// enough of its parent doc's identity to cite where the text came from.
type ContextChunk struct {
	ID     string
	DocID  string
	Offset int64
	Tokens int64
	Text   string
	Path   string
	Hash   string
	MTime  string
}

// AssembledContext is the result of Assemble: the concatenated text plus
// the chunk list and token accounting that produced it.
type AssembledContext struct {
	Text         string
	BudgetTokens int
	UsedTokens   int
	Chunks       []ContextChunk
}

// Assemble walks a ranked result in order, pulling whitespace-delimited
// tokens from each chunk until the budget is spent. Chunks already seen
// (possible if the caller passes doc-grouped and chunk-level results
// together) are skipped, and diversity, if set, caps how many chunks may
// come from any one document.
func Assemble(items []model.ScoredItem, budgetTokens int, diversity *int) AssembledContext {
	used := 0
	var textParts []string
	var chunks []ContextChunk
	seen := make(map[string]bool)
	perDoc := make(map[string]int)

	for _, item := range items {
		if item.Chunk == nil {
			continue
		}
		chunk := item.Chunk
		if seen[chunk.ID] {
			continue
		}
		if diversity != nil && perDoc[item.Doc.ID] >= *diversity {
			continue
		}

		remaining := budgetTokens - used
		if remaining <= 0 {
			break
		}

		text, tokenCount := takeTokens(chunk.Text, remaining)
		if tokenCount == 0 {
			continue
		}

		used += tokenCount
		perDoc[item.Doc.ID]++
		seen[chunk.ID] = true

		textParts = append(textParts, text)
		chunks = append(chunks, ContextChunk{
			ID:     chunk.ID,
			DocID:  chunk.DocID,
			Offset: chunk.Offset,
			Tokens: int64(tokenCount),
			Text:   text,
			Path:   item.Doc.Path,
			Hash:   item.Doc.Hash,
			MTime:  item.Doc.MTime,
		})
	}

	return AssembledContext{
		Text:         strings.Join(textParts, "\n\n"),
		BudgetTokens: budgetTokens,
		UsedTokens:   used,
		Chunks:       chunks,
	}
}

func takeTokens(text string, limit int) (string, int) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return "", 0
	}
	if len(tokens) <= limit {
		return text, len(tokens)
	}
	return strings.Join(tokens[:limit], " "), limit
}
