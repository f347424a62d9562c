package aggregator

import "errors"

var (
	// ErrInvalidRecord is returned by Fold for records no session could
	// produce: negative time spent, empty domain or missing end time.
	ErrInvalidRecord = errors.New("invalid session record")

	// ErrNotLoaded is returned by Flush and Reset before Load succeeded.
	ErrNotLoaded = errors.New("aggregation store not loaded")
)
