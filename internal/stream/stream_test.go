// file: internal/stream/stream_test.go
// version: 1.0.0
// guid: 6a8b0c2d-4e5f-4a7b-dc8e-1f3a5b7c9d1e

package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(ch <-chan Message, n int, timeout time.Duration) []Message {
	var out []Message
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case msg, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, msg)
		case <-deadline:
			return out
		}
	}
	return out
}

func TestSeqIsMonotonic(t *testing.T) {
	s := NewSession("job1")
	ch, detach := s.Attach(0, map[string]int{"total": 3})
	defer detach()

	s.Send(TypeItemDone, 0)
	s.Send(TypeItemDone, 1)
	s.Send(TypeItemDone, 2)

	msgs := drain(ch, 4, time.Second)
	require.Len(t, msgs, 4)
	assert.Equal(t, TypeSnapshot, msgs[0].Type)
	for i := 1; i < len(msgs); i++ {
		assert.Equal(t, msgs[i-1].Seq+1, msgs[i].Seq, "seq increments by one")
	}
}

func TestAttachReplaysAfterLastSeq(t *testing.T) {
	s := NewSession("job1")

	s.Send(TypeItemDone, "a") // seq 1
	s.Send(TypeItemDone, "b") // seq 2
	s.Send(TypeItemDone, "c") // seq 3

	ch, detach := s.Attach(1, "snap")
	defer detach()

	msgs := drain(ch, 3, time.Second)
	require.Len(t, msgs, 3)
	assert.Equal(t, TypeSnapshot, msgs[0].Type, "snapshot comes first on attach")
	assert.Equal(t, uint64(2), msgs[1].Seq)
	assert.Equal(t, uint64(3), msgs[2].Seq)
}

func TestReattachDisplacesPreviousClient(t *testing.T) {
	s := NewSession("job1")

	first, _ := s.Attach(0, nil)
	second, detach := s.Attach(0, nil)
	defer detach()

	// First channel is closed by the displacement after its snapshot.
	msgs := drain(first, 2, 200*time.Millisecond)
	assert.Len(t, msgs, 1, "displaced client gets no further messages")

	s.Send(TypeItemDone, nil)
	msgs = drain(second, 2, time.Second)
	require.Len(t, msgs, 2)
	assert.Equal(t, TypeItemDone, msgs[1].Type)
}

func TestProgressCoalescing(t *testing.T) {
	s := NewSession("job1")
	ch, detach := s.Attach(0, nil)
	defer detach()

	for i := 0; i < 20; i++ {
		s.SendProgress(i)
	}
	time.Sleep(300 * time.Millisecond)

	// Snapshot + the first immediate progress + one coalesced flush.
	msgs := drain(ch, 4, 200*time.Millisecond)
	require.GreaterOrEqual(t, len(msgs), 3)
	require.LessOrEqual(t, len(msgs), 3, "burst coalesces to at most one message per window")
	last := msgs[len(msgs)-1]
	assert.Equal(t, TypeProgress, last.Type)
	assert.Equal(t, 19, last.Payload, "newest payload wins")
}

func TestItemDoneIsNeverCoalesced(t *testing.T) {
	s := NewSession("job1")
	ch, detach := s.Attach(0, nil)
	defer detach()

	s.SendProgress("p1")
	s.SendProgress("p2") // pending
	s.Send(TypeItemDone, "done")

	msgs := drain(ch, 4, time.Second)
	require.Len(t, msgs, 4)
	// Pending progress flushes before itemDone so order matches emission.
	assert.Equal(t, TypeProgress, msgs[2].Type)
	assert.Equal(t, "p2", msgs[2].Payload)
	assert.Equal(t, TypeItemDone, msgs[3].Type)
}

func TestCloseSendsTerminalMessage(t *testing.T) {
	s := NewSession("job1")
	ch, _ := s.Attach(0, nil)

	s.Close(TypeCompleted, map[string]string{"status": "completed"})

	msgs := drain(ch, 3, time.Second)
	require.Len(t, msgs, 2)
	assert.Equal(t, TypeCompleted, msgs[1].Type)

	// Channel is closed after the terminal message.
	_, open := <-ch
	assert.False(t, open)

	// Sends after close are dropped.
	s.Send(TypeItemDone, nil)
	assert.Equal(t, msgs[1].Seq, s.Seq())
}

func TestAttachAfterCloseReplaysAndEnds(t *testing.T) {
	s := NewSession("job1")
	s.Send(TypeItemDone, "a")
	s.Close(TypeCompleted, nil)

	ch, _ := s.Attach(0, "final")
	msgs := drain(ch, 4, time.Second)
	require.Len(t, msgs, 3, "snapshot plus retained history")
	assert.Equal(t, TypeSnapshot, msgs[0].Type)
	assert.Equal(t, TypeItemDone, msgs[1].Type)
	assert.Equal(t, TypeCompleted, msgs[2].Type)

	_, open := <-ch
	assert.False(t, open, "terminal session ends the stream after replay")
}

func TestRetentionWindow(t *testing.T) {
	s := NewSession("job1")
	for i := 0; i < retention+50; i++ {
		s.Send(TypeItemDone, i)
	}

	ch, detach := s.Attach(0, nil)
	defer detach()

	msgs := drain(ch, retention+2, time.Second)
	// Snapshot plus at most the retained ring.
	require.LessOrEqual(t, len(msgs), retention+1)
	assert.Equal(t, TypeSnapshot, msgs[0].Type)
	// Oldest retained message is beyond the overwritten prefix.
	assert.Greater(t, msgs[1].Seq, uint64(50))
}
