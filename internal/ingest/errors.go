package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ablate-ai/iris/internal/store"
)

// Kind classifies a StorageError into one of the taxonomy buckets every
// caller (gRPC handlers, the read API, the CLI) can switch on without
// inspecting error strings.
type Kind int

const (
	// KindTransientIO wraps a retryable failure from the persistent store
	// (disk pressure, a bbolt transaction timeout). Callers may retry.
	KindTransientIO Kind = iota
	// KindCorruptPayload marks a sample that failed to decode or encode;
	// never retryable as-is.
	KindCorruptPayload
	// KindBackpressure means save_async dropped the sample because the
	// write queue was full.
	KindBackpressure
	// KindShutdown means the façade is draining or closed and can no
	// longer accept work.
	KindShutdown
	// KindNotFound means the requested agent has no known samples.
	KindNotFound
	// KindConfigInvalid means the façade could not be constructed from its
	// configuration (New reports a store file that cannot be opened this
	// way; non-positive sizes are replaced by defaults, not rejected).
	KindConfigInvalid
)

func (k Kind) String() string {
	switch k {
	case KindTransientIO:
		return "transient_io"
	case KindCorruptPayload:
		return "corrupt_payload"
	case KindBackpressure:
		return "backpressure"
	case KindShutdown:
		return "shutdown"
	case KindNotFound:
		return "not_found"
	case KindConfigInvalid:
		return "config_invalid"
	default:
		return "unknown"
	}
}

// StorageError wraps an underlying error with a Kind so callers can branch
// on classification (errors.As) while still seeing the original cause via
// errors.Unwrap.
type StorageError struct {
	Kind Kind
	Err  error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func newStorageError(kind Kind, err error) *StorageError {
	return &StorageError{Kind: kind, Err: err}
}

// Sentinel values for classification checks that carry no underlying cause.
var (
	// ErrBackpressure is returned by SaveAsync when the write queue is full.
	ErrBackpressure = newStorageError(KindBackpressure, errors.New("write queue full"))
	// ErrShutdown is returned by SaveAsync and SaveSync once Shutdown has
	// been called, including while it is still in progress. Read operations
	// do not check for shutdown.
	ErrShutdown = newStorageError(KindShutdown, errors.New("ingest façade is shutting down"))
	// ErrNotFound is returned when an agent has no recorded samples.
	ErrNotFound = newStorageError(KindNotFound, errors.New("agent not found"))
	// ErrConfigInvalid is the KindConfigInvalid sentinel for errors.Is
	// checks. New does not return this value itself: it wraps the store-open
	// failure in a *StorageError of the same Kind.
	ErrConfigInvalid = newStorageError(KindConfigInvalid, errors.New("invalid configuration"))
)

// ErrInvalidAgentID is returned by SaveAsync/SaveSync for a sample whose
// AgentID is empty or contains the NUL byte, which the persistent store
// reserves as a key separator (spec.md §3 "AgentId").
var ErrInvalidAgentID = newStorageError(KindCorruptPayload, errors.New("agent id is empty or contains a NUL byte"))

// ValidateAgentID reports whether id is a legal agent identifier: non-empty
// and free of the NUL byte. The gRPC and HTTP front-ends are expected to
// call this (directly or via SaveAsync/SaveSync, which enforce it too)
// before a sample's key is ever constructed, since store.metricsKey's
// agent-scoped range scans are only exclusive of other agents' rows when no
// agent id contains NUL (spec.md §4.2).
func ValidateAgentID(id string) error {
	if id == "" || strings.IndexByte(id, 0x00) >= 0 {
		return ErrInvalidAgentID
	}
	return nil
}

// classifyStoreErr maps an internal/store sentinel to a façade StorageError,
// defaulting to transient-io for anything unrecognised (spec.md §7:
// "unexpected store errors should be treated as transient by default").
func classifyStoreErr(err error) error {
	if err == nil {
		return nil
	}
	kind := KindTransientIO
	if errors.Is(err, store.ErrCorruptPayload) {
		kind = KindCorruptPayload
	}
	return newStorageError(kind, err)
}
