// Package llm provides prompted text and JSON generation with robust
// extraction of JSON from messy model output.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/liliang-cn/studydesk/internal/domain"
)

// Client generates text or JSON from a prompt.
type Client interface {
	// GenerateText returns the raw completion for the prompt.
	GenerateText(ctx context.Context, prompt string) (string, error)
	// GenerateJSON returns the parsed JSON value extracted from the
	// completion, or domain.ErrParseFailed when no JSON can be recovered.
	GenerateJSON(ctx context.Context, prompt string) (any, error)
}

// OutputKind tags the variant carried by Output.
type OutputKind int

const (
	OutputText OutputKind = iota
	OutputJSON
	OutputRaw
)

// Output is a tagged generation result. Raw carries the unparsed
// completion when JSON extraction failed.
type Output struct {
	Kind OutputKind
	Text string
	JSON any
	Raw  string
}

// TextOutput wraps a plain completion.
func TextOutput(s string) Output { return Output{Kind: OutputText, Text: s} }

// JSONOutput wraps a parsed JSON value.
func JSONOutput(v any) Output { return Output{Kind: OutputJSON, JSON: v} }

// RawOutput wraps an unparsable completion.
func RawOutput(s string) Output { return Output{Kind: OutputRaw, Raw: s} }

// Complete generates for the prompt and tags the result. With wantJSON
// the JSON value is extracted from the completion; a completion with no
// recoverable JSON comes back tagged Raw with a nil error, so the
// caller still sees the text and decides how to degrade.
func Complete(ctx context.Context, c Client, prompt string, wantJSON bool) (Output, error) {
	text, err := c.GenerateText(ctx, prompt)
	if err != nil {
		return Output{}, err
	}
	if !wantJSON {
		return TextOutput(text), nil
	}
	v, err := ExtractJSON(text)
	if err != nil {
		return RawOutput(text), nil
	}
	return JSONOutput(v), nil
}

// Decode unmarshals a JSON output into out. Text and Raw outputs carry
// no JSON value and decode as ErrParseFailed.
func (o Output) Decode(out any) error {
	if o.Kind != OutputJSON {
		return fmt.Errorf("%w: output carries no JSON value", domain.ErrParseFailed)
	}
	blob, err := json.Marshal(o.JSON)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrParseFailed, err)
	}
	if err := json.Unmarshal(blob, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrParseFailed, err)
	}
	return nil
}
