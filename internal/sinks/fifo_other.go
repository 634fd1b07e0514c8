//go:build !linux

package sinks

import (
	"context"
	"fmt"

	"github.com/usnistgov/adcsim"
)

// OpenFIFO is available only on Linux.
func OpenFIFO(ctx context.Context, path string, pipeSize int, enc adcsim.Encoding) (*Stream, error) {
	return nil, fmt.Errorf("%w: named pipe sinks need Linux", adcsim.ErrInvalidParameter)
}
