package directory

import "errors"

// ErrDeviceNotFound indicates the requested device is not in the projection.
var ErrDeviceNotFound = errors.New("device not found")
