package archival

import (
	"fmt"
	"strings"

	"semantic-memory/internal/convlog"
)

// Transcript renders a day's entries as "<name>: content" lines in order.
func Transcript(entries []convlog.Entry, userName, botName string) string {
	var b strings.Builder
	for _, e := range entries {
		name := userName
		if e.Role == convlog.Assistant {
			name = botName
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", name, e.Content)
	}
	return b.String()
}

// SummaryPrompt asks for a first-person recollection of one day of conversation.
func SummaryPrompt(day convlog.Date, transcript, userName, botName string) string {
	return fmt.Sprintf(`You are %[2]s. Write a short first-person recollection of your conversation with %[1]s on %[3]s, as you would remember it later. Focus on:

1. Main topics discussed
2. Important information %[1]s shared
3. Questions asked and answers given
4. Any decisions or conclusions reached
5. Context that might matter in future conversations

Keep it to 2-4 sentences.

Conversation from %[3]s:
%[4]s

Summary:`, userName, botName, day.String(), transcript)
}

// CleanSummary trims whitespace and a leading "Summary:" label.
func CleanSummary(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 8 && strings.EqualFold(s[:8], "summary:") {
		s = strings.TrimSpace(s[8:])
	}
	return s
}
