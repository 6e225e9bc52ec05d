package sensor

import (
	"fmt"
	"io"
	"io/fs"

	"github.com/pkg/errors"
)

// Kind classifies a failed read.
type Kind int

const (
	Unknown Kind = iota
	DeviceUnavailable
	PermissionDenied
	ShortRead
)

func (k Kind) String() string {
	switch k {
	case DeviceUnavailable:
		return "device unavailable"
	case PermissionDenied:
		return "permission denied"
	case ShortRead:
		return "short read"
	}
	return "unknown"
}

var (
	ErrDeviceUnavailable = errors.New("device unavailable")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrShortRead         = errors.New("short read")
)

// ReadError is returned by every sensor operation that touches the device.
type ReadError struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Is lets errors.Is match the sentinel for the error's kind.
func (e *ReadError) Is(target error) bool {
	switch target {
	case ErrDeviceUnavailable:
		return e.Kind == DeviceUnavailable
	case ErrPermissionDenied:
		return e.Kind == PermissionDenied
	case ErrShortRead:
		return e.Kind == ShortRead
	}
	return false
}

// KindOf returns the Kind carried by err, or Unknown.
func KindOf(err error) Kind {
	var re *ReadError
	if errors.As(err, &re) {
		return re.Kind
	}
	return Unknown
}

const (
	opOpen   = "open"
	opRead   = "read"
	opDecode = "decode"
)

func classify(op, path string, err error) error {
	kind := Unknown
	switch {
	case errors.Is(err, fs.ErrPermission):
		kind = PermissionDenied
	case errors.Is(err, fs.ErrNotExist):
		kind = DeviceUnavailable
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		kind = ShortRead
	case op == opOpen:
		// ENXIO, ENODEV and friends: the node exists but no driver answers
		kind = DeviceUnavailable
	}
	return &ReadError{Kind: kind, Op: op, Path: path, Err: err}
}
