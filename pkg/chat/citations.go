package chat

import "strings"

// SegmentKind classifies a parsed piece of assistant text.
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentCitation
	SegmentThinking
)

// Segment is one parsed run of assistant text. Citation segments carry the
// referenced filenames instead of literal text. Segments have no identity
// across parses; they are rebuilt fresh on every render.
type Segment struct {
	Kind  SegmentKind
	Text  string
	Files []string
}

// ParseSourceCitations splits text into plain and citation segments. A
// citation marker is a bracketed name that exactly matches an entry of the
// turn's source list; any other bracketed text is left untouched. A run of
// directly adjacent markers collapses into one citation segment with
// duplicates removed. With no sources the whole input is one text segment.
// Stateless and idempotent.
func ParseSourceCitations(text string, sources []string) []Segment {
	if len(sources) == 0 {
		return []Segment{{Kind: SegmentText, Text: text}}
	}

	known := make(map[string]bool, len(sources))
	for _, s := range sources {
		known[s] = true
	}

	var segments []Segment
	var plain strings.Builder

	flush := func() {
		if plain.Len() > 0 {
			segments = append(segments, Segment{Kind: SegmentText, Text: plain.String()})
			plain.Reset()
		}
	}

	i := 0
	for i < len(text) {
		name, next, ok := matchMarker(text, i, known)
		if !ok {
			plain.WriteByte(text[i])
			i++
			continue
		}

		// Collapse the run of adjacent markers into one group.
		group := []string{name}
		seen := map[string]bool{name: true}
		for {
			n, after, ok := matchMarker(text, next, known)
			if !ok {
				break
			}
			if !seen[n] {
				group = append(group, n)
				seen[n] = true
			}
			next = after
		}

		flush()
		segments = append(segments, Segment{Kind: SegmentCitation, Files: group})
		i = next
	}

	flush()
	if len(segments) == 0 {
		segments = append(segments, Segment{Kind: SegmentText, Text: text})
	}
	return segments
}

// matchMarker reports whether text[pos:] starts with a bracketed known source
// name, returning the name and the offset just past the closing bracket.
func matchMarker(text string, pos int, known map[string]bool) (string, int, bool) {
	if pos >= len(text) || text[pos] != '[' {
		return "", 0, false
	}
	end := strings.IndexByte(text[pos+1:], ']')
	if end < 0 {
		return "", 0, false
	}
	name := text[pos+1 : pos+1+end]
	if !known[name] {
		return "", 0, false
	}
	return name, pos + end + 2, true
}
