package chat

// Transcript is the ordered message sequence for one session. Append-only,
// except that the single streaming entry is replaced in place until
// finalized. At most one entry has IsStreaming set at any time.
//
// The transcript is not synchronized; the owning Session serializes all
// mutation.
type Transcript struct {
	messages  []Message
	streaming int // index of the streaming entry, -1 when none
}

func NewTranscript() *Transcript {
	return &Transcript{streaming: -1}
}

// Append adds a finalized message at the end.
func (t *Transcript) Append(msg Message) {
	msg.IsStreaming = false
	t.messages = append(t.messages, msg)
}

// UpsertStreaming creates the streaming placeholder if none exists, or
// replaces its content and sources with the accumulated values.
func (t *Transcript) UpsertStreaming(content string, sources []string) {
	if t.streaming < 0 {
		t.messages = append(t.messages, newStreamingMessage(content, sources))
		t.streaming = len(t.messages) - 1
		return
	}
	t.messages[t.streaming].Content = content
	t.messages[t.streaming].Sources = sources
}

// FinalizeStreaming replaces the streaming placeholder with the final content
// and clears its streaming flag. It reports whether a placeholder existed.
func (t *Transcript) FinalizeStreaming(content string, sources []string) bool {
	if t.streaming < 0 {
		return false
	}
	msg := &t.messages[t.streaming]
	msg.Content = content
	msg.Sources = sources
	msg.IsStreaming = false
	t.streaming = -1
	return true
}

// HasStreaming reports whether a streaming placeholder is present.
func (t *Transcript) HasStreaming() bool {
	return t.streaming >= 0
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Transcript) Len() int {
	return len(t.messages)
}

func (t *Transcript) IsEmpty() bool {
	return len(t.messages) == 0
}

// Last returns the newest message, if any.
func (t *Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}
