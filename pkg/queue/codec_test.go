package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
	"github.com/filehorizon/filehorizon/pkg/event"
)

func TestCodecRoundTrip(t *testing.T) {
	mtime := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	ev := event.FileEvent{
		ID: "ev-1",
		Metadata: event.FileMetadata{
			SourcePath:      "sftp://partner.example.com:22/outbox/report.csv",
			SizeBytes:       2048,
			LastModifiedUTC: mtime,
			HashAlgorithm:   "sha256",
			Checksum:        "deadbeef",
		},
		DiscoveredAtUTC:     mtime.Add(time.Minute),
		Protocol:            event.ProtocolSFTP,
		DestinationPath:     "archive/report.csv",
		DeleteAfterTransfer: true,
	}

	decoded, err := decodeEvent(encodeEvent(ev))
	require.NoError(t, err)
	assert.Equal(t, ev, decoded)
}

func TestCodecOptionalFieldsOmitted(t *testing.T) {
	ev := testEvent(t, "/in/plain.txt")

	values := encodeEvent(ev)
	assert.NotContains(t, values, fieldChecksum)
	assert.NotContains(t, values, fieldDestinationPath)
	assert.NotContains(t, values, fieldDeleteAfterTransfer)

	decoded, err := decodeEvent(values)
	require.NoError(t, err)
	assert.Empty(t, decoded.Metadata.Checksum)
	assert.False(t, decoded.DeleteAfterTransfer)
}

func TestDecodeMalformedEntries(t *testing.T) {
	valid := encodeEvent(testEvent(t, "/in/a.txt"))

	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing id", func(v map[string]any) { delete(v, fieldID) }},
		{"missing source path", func(v map[string]any) { delete(v, fieldSourcePath) }},
		{"non-numeric size", func(v map[string]any) { v[fieldSizeBytes] = "lots" }},
		{"negative size", func(v map[string]any) { v[fieldSizeBytes] = "-1" }},
		{"unknown protocol", func(v map[string]any) { v[fieldProtocol] = "gopher" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := make(map[string]any, len(valid))
			for k, v := range valid {
				values[k] = v
			}
			tt.mutate(values)

			_, err := decodeEvent(values)
			require.Error(t, err)
			assert.Equal(t, fherrors.KindValidation, fherrors.KindOf(err))
		})
	}
}

func TestConsumerNameUniquePerReplica(t *testing.T) {
	a := consumerName("worker")
	b := consumerName("worker")

	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "worker-")

	// Empty prefix falls back to the application name.
	assert.Contains(t, consumerName(""), "filehorizon-")
}

func TestGroupErrorClassification(t *testing.T) {
	assert.True(t, isBusyGroupErr(errors.New("BUSYGROUP Consumer Group name already exists")))
	assert.False(t, isBusyGroupErr(nil))
	assert.False(t, isBusyGroupErr(errors.New("connection refused")))

	assert.True(t, isNoGroupErr(errors.New("NOGROUP No such consumer group 'g' for key name 's'")))
	assert.False(t, isNoGroupErr(errors.New("BUSYGROUP Consumer Group name already exists")))
}
