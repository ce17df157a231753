package domain

import (
	"fmt"
	"sort"
	"strings"

	generation "github.com/felixgeelhaar/augur/internal/generation/domain"
)

// History bounds. Older turns are dropped, long ones cut.
const (
	MaxHistoryTurns = 10
	MaxTurnRunes    = 500
)

// BuildPrompt assembles the backend prompt: persona and caller context as
// the system instruction, then the bounded history and the message.
func BuildPrompt(m Module, r Request) generation.Prompt {
	return generation.Prompt{
		System:  systemInstruction(m, r),
		History: boundedHistory(r.ConversationHistory),
		Message: strings.TrimSpace(r.UserMessage),
	}
}

func systemInstruction(m Module, r Request) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(m.Persona))

	var lines []string
	for _, field := range []string{"fullName", "birthDate", "zodiacSign", "partnerName"} {
		if v := strings.TrimSpace(r.Field(field)); v != "" {
			lines = append(lines, fmt.Sprintf("- %s: %s", field, v))
		}
	}
	keys := make([]string, 0, len(r.ModuleContextData))
	for k := range r.ModuleContextData {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("- %s: %s", k, truncateRunes(fmt.Sprint(r.ModuleContextData[k]), MaxTurnRunes)))
	}

	if len(lines) > 0 {
		b.WriteString("\n\nContext about the person asking:\n")
		b.WriteString(strings.Join(lines, "\n"))
	}
	return b.String()
}

func boundedHistory(entries []HistoryEntry) []generation.Turn {
	turns := make([]generation.Turn, 0, min(len(entries), MaxHistoryTurns))
	for _, e := range entries {
		text := strings.TrimSpace(e.Message)
		if text == "" {
			continue
		}
		role := generation.RoleAssistant
		if strings.EqualFold(e.Role, "user") {
			role = generation.RoleUser
		}
		turns = append(turns, generation.Turn{Role: role, Text: truncateRunes(text, MaxTurnRunes)})
	}
	if len(turns) > MaxHistoryTurns {
		turns = turns[len(turns)-MaxHistoryTurns:]
	}
	return turns
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
