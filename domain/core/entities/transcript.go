package entities

import "strings"

// Transcript is an append-only, insertion-ordered list of messages with
// at most one entry per message id.
type Transcript struct {
	messages []*Message
	seen     map[string]struct{}
}

// NewTranscript creates a transcript holding messages in order, first copy of each id kept.
func NewTranscript(messages ...*Message) *Transcript {
	t := &Transcript{
		messages: make([]*Message, 0, len(messages)),
		seen:     make(map[string]struct{}, len(messages)),
	}
	for _, m := range messages {
		t.Merge(m)
	}
	return t
}

// Merge appends m unless a message with the same id is already present.
// It reports whether the transcript changed.
func (t *Transcript) Merge(m *Message) bool {
	if m == nil {
		return false
	}
	if _, ok := t.seen[m.ID()]; ok {
		return false
	}
	t.seen[m.ID()] = struct{}{}
	t.messages = append(t.messages, m)
	return true
}

func (t *Transcript) Contains(id string) bool {
	_, ok := t.seen[id]
	return ok
}

func (t *Transcript) Len() int {
	return len(t.messages)
}

// Messages returns a copy of the ordered entries.
func (t *Transcript) Messages() []*Message {
	out := make([]*Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Transcript) Last() *Message {
	if len(t.messages) == 0 {
		return nil
	}
	return t.messages[len(t.messages)-1]
}

// Render joins every message as "<name>: <text>" in transcript order.
func (t *Transcript) Render(name func(*Message) string) string {
	lines := make([]string, len(t.messages))
	for i, m := range t.messages {
		lines[i] = name(m) + ": " + m.Text()
	}
	return strings.Join(lines, "\n")
}
