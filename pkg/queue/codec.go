package queue

import (
	"strconv"
	"time"

	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
	"github.com/filehorizon/filehorizon/pkg/event"
)

// Wire field names for one stream entry. All values are strings; timestamps
// are unix milliseconds, sizes decimal.
const (
	fieldID                  = "id"
	fieldSourcePath          = "sourcePath"
	fieldSizeBytes           = "sizeBytes"
	fieldLastModifiedUtc     = "lastModifiedUtc"
	fieldHashAlgorithm       = "hashAlgorithm"
	fieldChecksum            = "checksum"
	fieldDiscoveredAtUtc     = "discoveredAtUtc"
	fieldProtocol            = "protocol"
	fieldDestinationPath     = "destinationPath"
	fieldDeleteAfterTransfer = "deleteAfterTransfer"
)

// encodeEvent flattens a FileEvent into stream entry values.
func encodeEvent(ev event.FileEvent) map[string]any {
	values := map[string]any{
		fieldID:              ev.ID,
		fieldSourcePath:      ev.Metadata.SourcePath,
		fieldSizeBytes:       strconv.FormatInt(ev.Metadata.SizeBytes, 10),
		fieldLastModifiedUtc: strconv.FormatInt(ev.Metadata.LastModifiedUTC.UnixMilli(), 10),
		fieldHashAlgorithm:   ev.Metadata.HashAlgorithm,
		fieldDiscoveredAtUtc: strconv.FormatInt(ev.DiscoveredAtUTC.UnixMilli(), 10),
		fieldProtocol:        string(ev.Protocol),
	}
	if ev.Metadata.Checksum != "" {
		values[fieldChecksum] = ev.Metadata.Checksum
	}
	if ev.DestinationPath != "" {
		values[fieldDestinationPath] = ev.DestinationPath
	}
	if ev.DeleteAfterTransfer {
		values[fieldDeleteAfterTransfer] = "1"
	}
	return values
}

// decodeEvent rebuilds a FileEvent from stream entry values. A decode failure
// marks the entry as malformed; the caller logs and acknowledges it to avoid
// a poison loop.
func decodeEvent(values map[string]any) (event.FileEvent, error) {
	id := stringField(values, fieldID)
	if id == "" {
		return event.FileEvent{}, fherrors.New(fherrors.KindValidation, fherrors.CodeValidation,
			"queue.decodeEvent", "entry missing id field")
	}

	sourcePath := stringField(values, fieldSourcePath)
	if sourcePath == "" {
		return event.FileEvent{}, fherrors.New(fherrors.KindValidation, fherrors.CodeValidation,
			"queue.decodeEvent", "entry missing sourcePath field")
	}

	size, err := strconv.ParseInt(stringField(values, fieldSizeBytes), 10, 64)
	if err != nil || size < 0 {
		return event.FileEvent{}, fherrors.Newf(fherrors.KindValidation, fherrors.CodeValidation,
			"queue.decodeEvent", "entry has invalid sizeBytes %q", stringField(values, fieldSizeBytes))
	}

	ev := event.FileEvent{
		ID: id,
		Metadata: event.FileMetadata{
			SourcePath:      sourcePath,
			SizeBytes:       size,
			LastModifiedUTC: millisField(values, fieldLastModifiedUtc),
			HashAlgorithm:   stringField(values, fieldHashAlgorithm),
			Checksum:        stringField(values, fieldChecksum),
		},
		DiscoveredAtUTC:     millisField(values, fieldDiscoveredAtUtc),
		Protocol:            event.Protocol(stringField(values, fieldProtocol)),
		DestinationPath:     stringField(values, fieldDestinationPath),
		DeleteAfterTransfer: stringField(values, fieldDeleteAfterTransfer) == "1",
	}

	if err := event.Validate(ev); err != nil {
		return event.FileEvent{}, err
	}
	return ev, nil
}

func stringField(values map[string]any, key string) string {
	v, ok := values[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func millisField(values map[string]any, key string) time.Time {
	ms, err := strconv.ParseInt(stringField(values, key), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
