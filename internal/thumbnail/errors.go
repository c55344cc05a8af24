package thumbnail

import "fmt"

// DecodeError reports a blob that is not a decodable raster image.
// It is permanent; retrying the same blob cannot succeed.
type DecodeError struct {
	Key string
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode image %q: %v", e.Key, e.Err)
}

// Unwrap returns the underlying decoder error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// StorageError reports a failed read from the attachment store or a failed
// write to the derived-artifact store.
type StorageError struct {
	// Op is "get" or "put".
	Op  string
	Key string
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying storage error.
func (e *StorageError) Unwrap() error {
	return e.Err
}
