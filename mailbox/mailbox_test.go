package mailbox

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// receive is a small test helper bridging selective Receive's
// filter/handler style back to a plain (value, error) shape.
func receive(t *testing.T, m *Mailbox, filter func(any) bool) (any, error) {
	t.Helper()
	var got any
	err := m.Receive(filter, func(v any) { got = v })
	return got, err
}

func receiveTimeout(t *testing.T, m *Mailbox, d time.Duration, filter func(any) bool) (any, error) {
	t.Helper()
	var got any
	err := m.ReceiveTimeout(d, filter, func(v any) { got = v })
	return got, err
}

func TestMailbox_PriorityBeforeNormal(t *testing.T) {
	m := New(10, Block)
	require.NoError(t, m.Send("normal", false))
	require.NoError(t, m.Send("priority", true))

	v, err := receive(t, m, nil)
	require.NoError(t, err)
	assert.Equal(t, "priority", v)

	v, err = receive(t, m, nil)
	require.NoError(t, err)
	assert.Equal(t, "normal", v)
}

func TestMailbox_DropPolicyDiscardsOnFull(t *testing.T) {
	m := New(1, Drop)
	require.NoError(t, m.Send("a", false))
	require.NoError(t, m.Send("b", false)) // dropped, no error

	v, err := receive(t, m, nil)
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	assert.Equal(t, 0, m.Len())
}

func TestMailbox_ThrowPolicyErrorsOnFull(t *testing.T) {
	m := New(1, Throw)
	require.NoError(t, m.Send("a", false))
	err := m.Send("b", false)
	require.Error(t, err)
}

func TestMailbox_BlockWakesOnReceive(t *testing.T) {
	m := New(1, Block)
	require.NoError(t, m.Send("a", false))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		require.NoError(t, m.Send("b", false))
	}()

	time.Sleep(10 * time.Millisecond)
	v, err := receive(t, m, nil)
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	wg.Wait() // the blocked Send must have completed by now
	v, err = receive(t, m, nil)
	require.NoError(t, err)
	assert.Equal(t, "b", v)
}

func TestMailbox_CloseWakesReceivers(t *testing.T) {
	m := New(4, Block)
	done := make(chan error, 1)
	go func() {
		_, err := receive(t, m, nil)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	m.Close()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("close did not wake blocked receiver")
	}
}

func TestMailbox_SelectiveReceiveSkipsNonMatchingAndLeavesThemQueued(t *testing.T) {
	m := New(10, Block)
	require.NoError(t, m.Send(1, false))
	require.NoError(t, m.Send(2, false))
	require.NoError(t, m.Send(3, false))

	isEven := func(v any) bool { return v.(int)%2 == 0 }
	v, err := receive(t, m, isEven)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, m.Len()) // 1 and 3 remain, in their original order

	v, err = receive(t, m, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = receive(t, m, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestMailbox_SelectiveReceivePrefersPriorityLane(t *testing.T) {
	m := New(10, Block)
	require.NoError(t, m.Send(1, false))
	require.NoError(t, m.Send(2, true))

	matchAny := func(any) bool { return true }
	v, err := receive(t, m, matchAny)
	require.NoError(t, err)
	assert.Equal(t, 2, v, "priority lane message must win even though the normal-lane one was sent first")
}

func TestMailbox_ReceiveTimeout_ExpiresWithoutMatch(t *testing.T) {
	m := New(4, Block)
	require.NoError(t, m.Send("x", false))

	neverMatches := func(any) bool { return false }
	_, err := receiveTimeout(t, m, 20*time.Millisecond, neverMatches)
	require.Error(t, err)
	assert.Equal(t, 1, m.Len(), "the unmatched message must still be queued")
}

func TestMailbox_ReceiveTimeout_MatchesBeforeDeadline(t *testing.T) {
	m := New(4, Block)
	require.NoError(t, m.Send("x", false))

	v, err := receiveTimeout(t, m, time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}
