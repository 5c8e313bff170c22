package sim

import "errors"

// Error taxonomy for the engine. Configuration errors are raised by the
// config package before the engine exists; everything else lives here.
var (
	// ErrCapacityExceeded is returned when a create request would push the
	// entity count past the configured maximum. Recoverable: the request
	// is rejected, the frame continues.
	ErrCapacityExceeded = errors.New("entity capacity exceeded")

	// ErrUnknownEntity is returned for operations on an id that is not
	// live. Recoverable: the operation no-ops.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrStageInvariant marks a broken internal invariant (index
	// misalignment between per-entity buffers). Fatal: the simulation
	// halts rather than run on corrupt state.
	ErrStageInvariant = errors.New("stage invariant violation")
)
