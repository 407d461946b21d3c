package rtvoice

import (
	"sync"
	"time"

	"github.com/babelforce/rtvoice-go/proto"
)

type TranscriptMessage struct {
	Role      proto.Role
	Text      string
	Timestamp time.Time
	Final     bool
}

// Transcript is the ordered conversation log of one session.
type Transcript struct {
	mu       sync.Mutex
	messages []TranscriptMessage
	now      func() time.Time
}

func NewTranscript() *Transcript {
	return &Transcript{now: time.Now}
}

// open returns the index of the latest unfinished message of role.
func (t *Transcript) open(role proto.Role) int {
	for i := len(t.messages) - 1; i >= 0; i-- {
		m := t.messages[i]
		if m.Role == role && !m.Final {
			return i
		}
	}
	return -1
}

// Delta appends text to the open message of role or starts a new one.
func (t *Transcript) Delta(role proto.Role, text string) bool {
	if text == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if i := t.open(role); i >= 0 {
		t.messages[i].Text += text
		return true
	}
	t.messages = append(t.messages, TranscriptMessage{Role: role, Text: text, Timestamp: t.now()})
	return true
}

// Done finalizes the open message of role. A non empty text replaces what was
// accumulated so far.
func (t *Transcript) Done(role proto.Role, text string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i := t.open(role); i >= 0 {
		if text != "" {
			t.messages[i].Text = text
		}
		t.messages[i].Final = true
		return true
	}
	if text == "" {
		return false
	}
	t.messages = append(t.messages, TranscriptMessage{Role: role, Text: text, Timestamp: t.now(), Final: true})
	return true
}

func (t *Transcript) Messages() []TranscriptMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TranscriptMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
}
