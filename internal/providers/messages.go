package providers

import "strings"

// BuildMessages assembles the outgoing message list: the system prompt,
// if it has any non-whitespace content, followed by the last window
// history messages. A window of zero or less sends the full history.
func BuildMessages(history []Message, systemPrompt string, window int) []Message {
	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}

	messages := make([]Message, 0, len(history)+1)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, Message{Role: "system", Content: systemPrompt})
	}
	return append(messages, history...)
}
