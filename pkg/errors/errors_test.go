package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "op and cause",
			err:  Wrap(KindNotFound, CodeFileNotFound, "reader.local.open", fs.ErrNotExist),
			want: "reader.local.open: [File.NotFound]: file does not exist",
		},
		{
			name: "op only",
			err:  New(KindValidation, CodeValidation, "queue.enqueue", "empty event id"),
			want: "queue.enqueue: empty event id [Validation.Failed]",
		},
		{
			name: "bare",
			err:  New(KindUnspecified, CodeUnspecified, "", "boom"),
			want: "boom [Unspecified]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWrapNil(t *testing.T) {
	var err error = Wrap(KindIO, CodeIO, "sink.local.write", nil)
	// Wrap(nil) must stay nil through the error interface.
	if e, ok := err.(*Error); ok && e == nil {
		return
	}
	t.Fatalf("Wrap(nil) = %v, want typed nil", err)
}

func TestUnwrapChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindNetwork, CodeConnectFailed, "poller.sftp.connect", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Equal(t, CodeConnectFailed, CodeOf(err))
}

func TestKindOfWrappedDeep(t *testing.T) {
	inner := New(KindAuth, CodeAuthFailed, "poller.ftp.login", "bad credentials")
	outer := fmt.Errorf("cycle aborted: %w", inner)

	assert.Equal(t, KindAuth, KindOf(outer))
	assert.Equal(t, CodeAuthFailed, CodeOf(outer))
}

func TestIsRetriable(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindValidation, false},
		{KindNotFound, false},
		{KindAuth, false},
		{KindIO, true},
		{KindNetwork, true},
		{KindQueue, true},
		{KindIdempotency, true},
		{KindUnspecified, true},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := New(tt.kind, CodeUnspecified, "op", "msg")
			assert.Equal(t, tt.want, IsRetriable(err))
		})
	}
}

func TestKindOfUntagged(t *testing.T) {
	assert.Equal(t, KindUnspecified, KindOf(errors.New("plain")))
	assert.Equal(t, CodeUnspecified, CodeOf(errors.New("plain")))
}
