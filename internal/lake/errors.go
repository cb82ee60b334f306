package lake

import "fmt"

// Error categories recorded on failed manifest entries so operators can
// re-run selectively with force.
const (
	CategoryConfiguration = "configuration"
	CategoryParse         = "parse"
	CategoryStorage       = "storage"
	CategoryInternal      = "internal"
)

// ConfigurationError is fatal and pre-write: an unknown vendor/data_type
// combination or a canonical schema the input cannot satisfy.
type ConfigurationError struct {
	Key string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for %s: %v", e.Key, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ParseError is fatal for the whole file: nothing is written and the
// manifest entry is marked failed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError is fatal and surfaced; stages after the failing write do
// not run.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
