// file: internal/stream/stream.go
// version: 1.2.0
// guid: 9e8d7f6a-5c4b-4a21-8f9e-8d7c6b5a4392

package stream

import (
	"log"
	"sync"
	"time"

	"github.com/Shapuzzz/bookstrack-backend/internal/metrics"
)

// MessageType defines the type of a progress stream message.
type MessageType string

const (
	TypeHello     MessageType = "hello"
	TypeProgress  MessageType = "progress"
	TypeItemDone  MessageType = "itemDone"
	TypeSnapshot  MessageType = "snapshot"
	TypeCompleted MessageType = "completed"
	TypeFailed    MessageType = "failed"
	TypeCancelled MessageType = "cancelled"
	TypePing      MessageType = "ping"
)

// Message is one typed record on the wire.
type Message struct {
	Type    MessageType `json:"type"`
	JobID   string      `json:"jobId"`
	Seq     uint64      `json:"seq"`
	Payload any         `json:"payload,omitempty"`
}

// retention is the replay ring size; at least the documented 256-message
// minimum, power of two to keep index math cheap.
const retention = 512

// progressCoalesceWindow caps progress bursts at one message per window.
const progressCoalesceWindow = 250 * time.Millisecond

// Session is the single-writer message channel for one job. The owning
// actor is the only sender, which is what guarantees total order; clients
// attach one at a time and may resume with their last seen seq.
type Session struct {
	jobID string

	mu        sync.Mutex
	seq       uint64
	ring      [retention]Message
	ringCount int

	out      chan Message
	attached bool
	closed   bool

	pendingProgress *Message
	flushTimer      *time.Timer
	lastProgressAt  time.Time
}

// NewSession creates a session for a job.
func NewSession(jobID string) *Session {
	return &Session{jobID: jobID}
}

// Send emits a message immediately, flushing any coalesced progress first
// so seq order matches emission order.
func (s *Session) Send(t MessageType, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.flushPendingLocked()
	s.emitLocked(t, payload)
}

// SendProgress emits a progress message, coalescing bursts to at most one
// message per 250ms. The newest payload wins; itemDone and other types are
// never coalesced.
func (s *Session) SendProgress(payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if time.Since(s.lastProgressAt) >= progressCoalesceWindow && s.pendingProgress == nil {
		s.lastProgressAt = time.Now()
		s.emitLocked(TypeProgress, payload)
		return
	}

	s.pendingProgress = &Message{Type: TypeProgress, JobID: s.jobID, Payload: payload}
	if s.flushTimer == nil {
		wait := progressCoalesceWindow - time.Since(s.lastProgressAt)
		if wait < 0 {
			wait = 0
		}
		s.flushTimer = time.AfterFunc(wait, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.flushPendingLocked()
		})
	}
}

func (s *Session) flushPendingLocked() {
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
	if s.pendingProgress == nil || s.closed {
		s.pendingProgress = nil
		return
	}
	payload := s.pendingProgress.Payload
	s.pendingProgress = nil
	s.lastProgressAt = time.Now()
	s.emitLocked(TypeProgress, payload)
}

// emitLocked assigns the next seq, records the message in the replay ring,
// and delivers it to the attached client if any.
func (s *Session) emitLocked(t MessageType, payload any) {
	s.seq++
	msg := Message{Type: t, JobID: s.jobID, Seq: s.seq, Payload: payload}
	s.ring[(s.seq-1)%retention] = msg
	if s.ringCount < retention {
		s.ringCount++
	}
	metrics.IncStreamMessage(string(t))

	if s.out == nil {
		return
	}
	select {
	case s.out <- msg:
	default:
		// Slow client: drop the live delivery, the replay ring keeps the
		// message for the next resume.
		log.Printf("[WARN] stream: job %s client buffer full, dropping seq %d from live feed", s.jobID, msg.Seq)
	}
}

// Attach connects the single allowed client. A snapshot message is sent
// first, then every retained message with seq > lastSeq, then live
// delivery resumes. An existing attachment is displaced.
func (s *Session) Attach(lastSeq uint64, snapshot any) (<-chan Message, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.out != nil {
		close(s.out)
		s.out = nil
	}

	// Replay buffer sized so the snapshot plus full ring always fits
	// without blocking the sender.
	out := make(chan Message, retention+64)

	// The snapshot takes a seq but stays out of the ring: it is derived
	// fresh per attach and must never be replayed to a later client.
	s.seq++
	snap := Message{Type: TypeSnapshot, JobID: s.jobID, Seq: s.seq, Payload: snapshot}
	out <- snap
	metrics.IncStreamMessage(string(TypeSnapshot))

	for _, msg := range s.retainedLocked() {
		if msg.Seq > lastSeq && msg.Seq < snap.Seq {
			out <- msg
		}
	}

	if s.closed {
		// Terminal job: deliver the snapshot and retained history, then
		// end the stream instead of resuming live.
		close(out)
		return out, func() {}
	}
	s.out = out
	s.attached = true

	detach := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.out == out {
			s.out = nil
			s.attached = false
		}
	}
	return out, detach
}

// retainedLocked returns the ring contents in seq order.
func (s *Session) retainedLocked() []Message {
	msgs := make([]Message, 0, s.ringCount)
	start := uint64(1)
	if s.seq > retention {
		start = s.seq - retention + 1
	}
	for seq := start; seq <= s.seq; seq++ {
		msg := s.ring[(seq-1)%retention]
		if msg.Seq == seq {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// Close sends an optional terminal message and closes the channel. The
// session accepts no further sends.
func (s *Session) Close(terminal MessageType, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.flushPendingLocked()
	if terminal != "" {
		s.emitLocked(terminal, payload)
	}
	s.closed = true
	if s.out != nil {
		close(s.out)
		s.out = nil
		s.attached = false
	}
}

// Seq returns the last assigned sequence number.
func (s *Session) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Attached reports whether a client is currently connected.
func (s *Session) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}
