package gpu

import "fmt"

// ResultError carries a non-success API result code from a backend call.
type ResultError struct {
	Op   string
	Code int32
	Err  error
}

func (e *ResultError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v (%d)", e.Op, e.Err, e.Code)
	}
	return fmt.Sprintf("%s: result %d", e.Op, e.Code)
}

func (e *ResultError) Unwrap() error { return e.Err }

// NoSuitableDeviceError means no enumerated adapter scored above zero.
type NoSuitableDeviceError struct {
	Candidates int
}

func (e *NoSuitableDeviceError) Error() string {
	return fmt.Sprintf("no suitable GPU found among %d adapter(s)", e.Candidates)
}

// NoSuitableMemoryTypeError means no memory type both passes the resource's
// type filter and carries every requested property.
type NoSuitableMemoryTypeError struct {
	TypeBits   uint32
	Properties MemoryPropertyFlags
}

func (e *NoSuitableMemoryTypeError) Error() string {
	return fmt.Sprintf("no memory type in filter %#b with properties %s", e.TypeBits, e.Properties)
}

type UnsupportedLayoutTransitionError struct {
	Old, New ImageLayout
}

func (e *UnsupportedLayoutTransitionError) Error() string {
	return fmt.Sprintf("unsupported layout transition %s -> %s", e.Old, e.New)
}
