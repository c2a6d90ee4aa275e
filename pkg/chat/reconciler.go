package chat

import (
	"strings"

	"github.com/lessonworks/sage/pkg/logger"
	"github.com/lessonworks/sage/pkg/ws"
)

// Reconciler consumes protocol events and maintains the single in-flight
// streaming message. It owns the transient stream buffer; the buffer is reset
// on every typing event and cleared on every response event.
type Reconciler struct {
	transcript *Transcript

	buf          strings.Builder
	chunkSources []string
	turnSources  []string // from a dedicated sources frame; wins over chunk sources
	turnOpen     bool

	// onError receives upstream error frames; they never mutate the
	// transcript.
	onError func(message string)
}

func NewReconciler(t *Transcript, onError func(message string)) *Reconciler {
	return &Reconciler{transcript: t, onError: onError}
}

// Apply folds one event into the transcript. Events must be applied in
// arrival order; no reordering or coalescing happens here.
func (r *Reconciler) Apply(ev ws.Event) (mutated bool) {
	switch ev.Type {
	case ws.EventTyping:
		r.reset()
		r.turnOpen = true
		return false

	case ws.EventStream:
		if !r.turnOpen {
			// Late chunk after the turn finalized; drop it.
			logger.Debug("ignoring stream chunk outside an open turn")
			return false
		}
		r.buf.WriteString(ev.Chunk)
		if len(ev.Sources) > 0 {
			r.chunkSources = ev.Sources
		}
		r.transcript.UpsertStreaming(r.buf.String(), r.effectiveSources(r.chunkSources))
		return true

	case ws.EventResponse:
		sources := r.effectiveSources(ev.Sources)
		if !r.transcript.FinalizeStreaming(ev.Response, sources) {
			// Single-shot reply with no streaming phase.
			r.transcript.Append(NewAssistantMessage(ev.Response, sources))
		}
		r.reset()
		return true

	case ws.EventSources:
		r.turnSources = ev.Sources
		return false

	case ws.EventError:
		if r.onError != nil {
			r.onError(ev.Message)
		}
		return false

	case ws.EventPong, ws.EventAuthSuccess:
		return false
	}
	return false
}

// effectiveSources applies the precedence rule: a dedicated sources frame
// received this turn wins over anything embedded in chunks or the response.
func (r *Reconciler) effectiveSources(fallback []string) []string {
	if len(r.turnSources) > 0 {
		return r.turnSources
	}
	return fallback
}

func (r *Reconciler) reset() {
	r.buf.Reset()
	r.chunkSources = nil
	r.turnSources = nil
	r.turnOpen = false
}
