package store

import "errors"

// Sentinel errors matching the TransientIO and CorruptPayload kinds from
// spec.md §7. Callers use errors.Is to classify a returned error without
// depending on bbolt's own error types.
var (
	ErrTransientIO    = errors.New("store: transient io error")
	ErrCorruptPayload = errors.New("store: corrupt payload")
)
