package aioerr

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message only",
			err:  &Error{Kind: IO, Message: "accept failed"},
			want: "accept failed",
		},
		{
			name: "message with cause",
			err:  &Error{Kind: IO, Message: "accept failed", Cause: io.EOF},
			want: "accept failed: EOF",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWrap_UnwrapsCause(t *testing.T) {
	err := Wrap(IO, "read failed", io.ErrUnexpectedEOF)
	require.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	require.True(t, Is(err, IO))
	require.False(t, Is(err, Protocol))
}

func TestWrap_NilCauseIsPlainNew(t *testing.T) {
	err := Wrap(TimedOut, "deadline exceeded", nil)
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Nil(t, e.Cause)
	assert.True(t, Is(err, TimedOut))
}

func TestOf(t *testing.T) {
	k, ok := Of(New(Protocol, "bad base64"))
	require.True(t, ok)
	assert.Equal(t, Protocol, k)

	_, ok = Of(io.EOF)
	assert.False(t, ok)
}

func TestIs_DistinguishesKinds(t *testing.T) {
	err := New(LimitExceeded, "mailbox full")
	assert.True(t, Is(err, LimitExceeded))
	assert.False(t, Is(err, InvariantViolation))
	assert.False(t, Is(err, BrokenPipeOnWrite))
}

func TestKind_String(t *testing.T) {
	tests := map[Kind]string{
		Interrupted:        "interrupted",
		TimedOut:           "timed out",
		IO:                 "io",
		BrokenPipeOnWrite:  "broken pipe on write",
		LimitExceeded:      "limit exceeded",
		Protocol:           "protocol",
		InvariantViolation: "invariant violation",
	}
	for k, want := range tests {
		assert.Equal(t, want, k.String())
	}
}
