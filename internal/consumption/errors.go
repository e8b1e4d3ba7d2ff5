package consumption

import "errors"

// ErrDeviceNotRegistered indicates a rollup referenced a device id absent
// from the directory projection. The aggregator reacts by inserting a
// placeholder row and retrying once.
var ErrDeviceNotRegistered = errors.New("device not registered")
