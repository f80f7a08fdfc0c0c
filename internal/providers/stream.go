package providers

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// StreamAssembler rebuilds the reply text from a chat completion event
// stream. Chunks may split lines anywhere; an incomplete trailing line is
// kept until the next Write or Close. Lines that are not data records or
// do not decode are skipped.
type StreamAssembler struct {
	pending []byte
	text    strings.Builder
	done    bool
}

// NewStreamAssembler creates an empty assembler
func NewStreamAssembler() *StreamAssembler {
	return &StreamAssembler{}
}

// Write consumes one raw chunk.
func (a *StreamAssembler) Write(chunk []byte) {
	a.pending = append(a.pending, chunk...)

	for {
		i := bytes.IndexByte(a.pending, '\n')
		if i < 0 {
			break
		}
		a.consumeLine(a.pending[:i])
		a.pending = a.pending[i+1:]
	}
}

// Close flushes a final line that had no trailing newline.
func (a *StreamAssembler) Close() {
	if len(a.pending) > 0 {
		a.consumeLine(a.pending)
		a.pending = nil
	}
}

// Text returns the content accumulated so far.
func (a *StreamAssembler) Text() string {
	return a.text.String()
}

// Done reports whether the terminal sentinel was seen.
func (a *StreamAssembler) Done() bool {
	return a.done
}

func (a *StreamAssembler) consumeLine(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return
	}

	payload := bytes.TrimSpace(line[len(dataPrefix):])
	if string(payload) == doneSentinel {
		a.done = true
		return
	}

	var event openai.ChatCompletionStreamResponse
	if err := json.Unmarshal(payload, &event); err != nil {
		return
	}
	if len(event.Choices) == 0 {
		return
	}
	a.text.WriteString(event.Choices[0].Delta.Content)
}
