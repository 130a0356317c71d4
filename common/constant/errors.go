package constant

import "errors"

// Sentinel errors for the core subsystems. Each subsystem sentinel is mapped by
// common.ValidateBusinessError to a structured, client-presentable error; the generic ones
// at the end are used by the other helpers in common. Codes are stable identifiers, not HTTP statuses.
var (
	// Command engine (C9)
	ErrInvalidInput     = errors.New("CMD-0001")
	ErrInvalidSelection = errors.New("CMD-0002")
	ErrInvalidState     = errors.New("CMD-0003")
	ErrEntityNotFound   = errors.New("CMD-0004")
	ErrResourceLimit    = errors.New("CMD-0005")
	ErrCancelled        = errors.New("CMD-0006")

	// Undo/redo history
	ErrNothingToUndo = errors.New("HIST-0001")
	ErrNothingToRedo = errors.New("HIST-0002")
	ErrGroupNotFound = errors.New("HIST-0003")

	// Event store (C5)
	ErrConcurrencyConflict = errors.New("EVT-0001")
	ErrStreamNotFound      = errors.New("EVT-0002")

	// Command bus (C7)
	ErrValidationFailed   = errors.New("BUS-0001")
	ErrEmptyHandlerResult = errors.New("BUS-0002")

	// Multi-tier cache (C4)
	ErrTierUnavailable     = errors.New("CACHE-0001")
	ErrSerializationFailed = errors.New("CACHE-0002")

	// Connection pool (C3)
	ErrAcquireTimeout   = errors.New("POOL-0001")
	ErrDriverError      = errors.New("POOL-0002")
	ErrHealthProbeFailed = errors.New("POOL-0003")
	ErrPoolClosed       = errors.New("POOL-0004")

	// Envelope crypto (C1)
	ErrNoRecipients         = errors.New("CRYPTO-0001")
	ErrRecipientNotFound    = errors.New("CRYPTO-0002")
	ErrDekDecryptionFailed  = errors.New("CRYPTO-0003")
	ErrAeadFailed           = errors.New("CRYPTO-0004")
	ErrInvalidEnvelopeFormat = errors.New("CRYPTO-0005")

	// Spatial index (C2)
	ErrSpatialUnsupported = errors.New("SPATIAL-0001")

	// Generic, reused across subsystems
	ErrInternalServer               = errors.New("SYS-0001")
	ErrBadRequest                   = errors.New("SYS-0002")
	ErrUnexpectedFieldsInTheRequest = errors.New("SYS-0003")
	ErrMetadataKeyLengthExceeded    = errors.New("SYS-0004")
	ErrMetadataValueLengthExceeded  = errors.New("SYS-0005")
)
