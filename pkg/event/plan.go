package event

// DestinationKind selects the sink implementation for a plan.
type DestinationKind int

const (
	DestinationLocal DestinationKind = iota + 1
	DestinationSFTP
	DestinationBus
	DestinationS3
)

// String returns a human-readable name for the destination kind.
func (k DestinationKind) String() string {
	switch k {
	case DestinationLocal:
		return "local"
	case DestinationSFTP:
		return "sftp"
	case DestinationBus:
		return "bus"
	case DestinationS3:
		return "s3"
	default:
		return "unknown"
	}
}

// PlanOptions carries the per-destination write options resolved by routing.
type PlanOptions struct {
	// Overwrite allows replacing an existing target file.
	Overwrite bool

	// ComputeHash requests a checksum of the copied bytes.
	ComputeHash bool

	// RenamePattern is the target file name template. Supports {fileName}
	// and {yyyyMMdd} (UTC).
	RenamePattern string
}

// DestinationPlan is the immutable result of routing one event to one
// destination.
type DestinationPlan struct {
	// DestinationName is the configured destination this plan targets.
	DestinationName string

	// TargetPath is the rendered path relative to the destination root.
	TargetPath string

	// Options are the write options in effect for this destination.
	Options PlanOptions

	// Kind selects the sink implementation.
	Kind DestinationKind

	// IsTopic marks bus destinations that publish to a topic rather than a
	// point-to-point queue.
	IsTopic bool
}
