package llm

import (
	"encoding/json"
	"strings"
)

const (
	eventPrefix  = "data:"
	doneSentinel = "[DONE]"
)

// chunkFrame is one streamed chat-completion frame.
type chunkFrame struct {
	Choices []struct {
		Delta struct {
			ReasoningContent string `json:"reasoning_content"`
			Content          string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// StreamDecoder turns server-sent event bytes into reasoning and answer text.
// Feed may be called with arbitrarily split chunks.
type StreamDecoder struct {
	lines     LineReader
	reasoning strings.Builder
	final     strings.Builder
	done      bool
	skipped   int
}

// Feed decodes every complete line in chunk. Lines without the event prefix,
// lines that are not valid JSON frames, and frames without choices are
// skipped. Once the sentinel is seen further input is ignored.
func (d *StreamDecoder) Feed(chunk []byte) {
	if d.done {
		return
	}
	d.lines.Append(chunk)
	for {
		line, ok := d.lines.Next()
		if !ok {
			return
		}
		d.decodeLine(line)
		if d.done {
			return
		}
	}
}

func (d *StreamDecoder) decodeLine(line string) {
	data, ok := strings.CutPrefix(line, eventPrefix)
	if !ok {
		return
	}
	data = strings.TrimSpace(data)
	if data == doneSentinel {
		d.done = true
		return
	}
	var frame chunkFrame
	if err := json.Unmarshal([]byte(data), &frame); err != nil || len(frame.Choices) == 0 {
		d.skipped++
		return
	}
	delta := frame.Choices[0].Delta
	d.reasoning.WriteString(delta.ReasoningContent)
	d.final.WriteString(delta.Content)
}

// Flush decodes a trailing line that arrived without a terminator. Call it
// once the transport reports end of stream.
func (d *StreamDecoder) Flush() {
	if d.done {
		return
	}
	if rest := d.lines.Buffered(); len(rest) > 0 {
		line := strings.TrimSuffix(string(rest), "\r")
		d.lines = LineReader{}
		d.decodeLine(line)
	}
}

// Done reports whether the termination sentinel was seen.
func (d *StreamDecoder) Done() bool { return d.done }

// Reasoning returns the accumulated chain-of-thought text.
func (d *StreamDecoder) Reasoning() string { return d.reasoning.String() }

// Final returns the accumulated answer text.
func (d *StreamDecoder) Final() string { return d.final.String() }

// Skipped returns the number of event lines that could not be decoded.
func (d *StreamDecoder) Skipped() int { return d.skipped }

// DebugResponse renders both accumulators for the debug report column.
func (d *StreamDecoder) DebugResponse() string {
	return "--- Reasoning ---\n" + d.Reasoning() + "\n\n--- Final Answer ---\n" + d.Final()
}
