// Package llm classifies log excerpts with a streaming chat-completion
// endpoint. The response is decoded incrementally from server-sent events.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/mesh-intelligence/logtriage/pkg/types"
)

// DefaultTimeout bounds one classification call end to end.
const DefaultTimeout = 120 * time.Second

const readChunkSize = 4096

// Outcome is the result of one classification call. Prompt and Response are
// populated even when the call failed, for the debug columns.
type Outcome struct {
	Status   string
	Detail   string
	Prompt   string
	Response string
	Cached   bool
}

// Options configures a Client.
type Options struct {
	EndpointURL string
	Credential  string
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
	Timeout     time.Duration
	HTTPClient  *http.Client
	Tracer      trace.Tracer
}

// Client calls the chat-completion endpoint. A Client is safe for
// concurrent use.
type Client struct {
	opts    Options
	prompts *PromptBuilder
	http    *http.Client
	tracer  trace.Tracer
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
}

// NewClient builds a Client from options and prompt templates.
func NewClient(opts Options, t Templates) (*Client, error) {
	if opts.EndpointURL == "" {
		return nil, types.ErrEndpointEmpty
	}
	if opts.Model == "" {
		return nil, types.ErrModelEmpty
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	pb, err := NewPromptBuilder(t)
	if err != nil {
		return nil, err
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	tr := opts.Tracer
	if tr == nil {
		tr = noop.NewTracerProvider().Tracer("")
	}
	return &Client{opts: opts, prompts: pb, http: hc, tracer: tr}, nil
}

// OptionsFromConfig maps the run configuration onto client options.
func OptionsFromConfig(cfg types.Config) Options {
	return Options{
		EndpointURL: cfg.EndpointURL,
		Credential:  cfg.Credential,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		Timeout:     cfg.Timeout,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.opts.Model }

// Classify sends content to the model and extracts a verdict from the
// streamed answer. On any transport, status or read failure it returns the
// error together with an Outcome whose status is types.StatusAPIError,
// whose detail is the error text, and which still carries the prompt and
// the raw bytes received so far.
func (c *Client) Classify(ctx context.Context, content string) (Outcome, error) {
	prompt, err := c.prompts.Build(content)
	if err != nil {
		return Outcome{Status: types.StatusAPIError, Detail: err.Error()}, err
	}

	ctx, span := c.tracer.Start(ctx, "llm.classify",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("llm.model", c.opts.Model)),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	var raw bytes.Buffer
	dec, err := c.stream(ctx, prompt, &raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Outcome{
			Status:   types.StatusAPIError,
			Detail:   err.Error(),
			Prompt:   prompt,
			Response: raw.String(),
		}, err
	}

	status, detail := ParseVerdict(dec.Final())
	span.SetAttributes(attribute.String("llm.verdict", status))
	return Outcome{
		Status:   status,
		Detail:   detail,
		Prompt:   prompt,
		Response: dec.DebugResponse(),
	}, nil
}

func (c *Client) stream(ctx context.Context, prompt string, raw *bytes.Buffer) (*StreamDecoder, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.opts.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   c.opts.MaxTokens,
		Stream:      true,
		Temperature: c.opts.Temperature,
		TopP:        c.opts.TopP,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.Credential)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", c.opts.EndpointURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, readChunkSize))
		raw.Write(msg)
		return nil, fmt.Errorf("unexpected status %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	dec := &StreamDecoder{}
	buf := make([]byte, readChunkSize)
	for !dec.Done() {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			raw.Write(buf[:n])
			dec.Feed(buf[:n])
		}
		if errors.Is(rerr, io.EOF) {
			dec.Flush()
			break
		}
		if rerr != nil {
			return nil, fmt.Errorf("read stream: %w", rerr)
		}
	}
	return dec, nil
}
