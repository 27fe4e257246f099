// Package mailtest provides a mail.Dispatcher that records messages in memory.
package mailtest

import (
	"context"
	"regexp"
	"sync"

	"github.com/Samocology/noap-backend/internal/mail"
)

// Message is a captured email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Recorder captures sent messages. Set Err to make every Send fail.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

var _ mail.Dispatcher = (*Recorder)(nil)

// Send records the message or returns Err.
func (r *Recorder) Send(_ context.Context, to, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, Message{To: to, Subject: subject, Body: body})
	return nil
}

// Messages returns a copy of everything sent so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Last returns the most recent message sent to `to`.
func (r *Recorder) Last(to string) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].To == to {
			return r.messages[i], true
		}
	}
	return Message{}, false
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// LastCode extracts the six digit code from the latest message to `to`.
func (r *Recorder) LastCode(to string) string {
	msg, ok := r.Last(to)
	if !ok {
		return ""
	}
	return codePattern.FindString(msg.Body)
}
