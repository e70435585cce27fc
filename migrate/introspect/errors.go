package introspect

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedProvider is returned by NewCatalog for providers without a
	// catalog reader.
	ErrUnsupportedProvider = errors.New("unsupported database provider")
	// ErrIntrospectionFailed wraps every failed catalog read.
	ErrIntrospectionFailed = errors.New("database introspection failed")
)

// failed wraps a catalog error so callers can test for
// ErrIntrospectionFailed and still reach the driver error.
func failed(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIntrospectionFailed, step, err)
}
