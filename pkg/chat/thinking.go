package chat

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// ThinkResult separates private reasoning from user-visible prose.
type ThinkResult struct {
	// Visible is the text with all reasoning spans removed.
	Visible string

	// Thinking holds a reasoning span that is still being generated. It is
	// shown de-emphasized rather than hidden.
	Thinking string

	// Open reports whether Thinking holds an unterminated span.
	Open bool
}

// ProcessThinkTags strips <think>...</think> spans from raw assistant text.
// Completed spans are removed entirely, markers included. An unterminated
// span is kept for de-emphasized display only while the message is still
// streaming; once finalized it is dropped like any other. Pure function of
// its inputs, safe to re-run on every incremental update.
func ProcessThinkTags(raw string, streaming bool) ThinkResult {
	var visible strings.Builder
	rest := raw

	for {
		open := strings.Index(rest, thinkOpen)
		if open < 0 {
			visible.WriteString(rest)
			return ThinkResult{Visible: visible.String()}
		}

		visible.WriteString(rest[:open])
		rest = rest[open+len(thinkOpen):]

		end := strings.Index(rest, thinkClose)
		if end < 0 {
			res := ThinkResult{Visible: visible.String()}
			if streaming {
				res.Thinking = rest
				res.Open = true
			}
			return res
		}
		rest = rest[end+len(thinkClose):]
	}
}

// StripThinkTags returns only the visible text.
func StripThinkTags(raw string) string {
	return ProcessThinkTags(raw, false).Visible
}
