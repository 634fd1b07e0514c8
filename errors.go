package adcsim

import "errors"

// Errors returned by the sampling engine. Callers should test with errors.Is,
// because the engine wraps them with details about the offending value.
var (
	// ErrInvalidParameter means a constructor argument was out of range.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrEmptyDataset means a recorded dataset had no rows to replay.
	ErrEmptyDataset = errors.New("empty dataset")

	// ErrEncoding means bytes or text could not be decoded into a Sample.
	ErrEncoding = errors.New("sample encoding error")
)
