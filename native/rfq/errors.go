package rfq

import "errors"

// Kind classifies why an operation was rejected. Callers decide whether to
// retry with corrected input based on the kind; the engine never retries.
type Kind uint8

const (
	KindAuthorization Kind = iota + 1
	KindState
	KindValidation
	KindAuthenticity
	KindStaleness
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindValidation:
		return "validation"
	case KindAuthenticity:
		return "authenticity"
	case KindStaleness:
		return "staleness"
	default:
		return "unknown"
	}
}

// Error is a typed rejection. Sentinel values are compared with errors.Is.
type Error struct {
	Code    string
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return "rfq: " + e.Message }

func newError(kind Kind, code, msg string) *Error {
	return &Error{Code: code, Kind: kind, Message: msg}
}

// KindOf extracts the rejection kind from err.
func KindOf(err error) (Kind, bool) {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind, true
	}
	return 0, false
}

// CodeOf returns the stable code of a typed rejection, or "" for other errors.
func CodeOf(err error) string {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Code
	}
	return ""
}

var (
	ErrProtocolPaused      = newError(KindAuthorization, "ProtocolPaused", "protocol is paused")
	ErrUnauthorized        = newError(KindAuthorization, "Unauthorized", "unauthorized")
	ErrUnauthorizedFill    = newError(KindAuthorization, "UnauthorizedFill", "only the designated market maker can fill this intent")
	ErrUnauthorizedDispute = newError(KindAuthorization, "UnauthorizedDispute", "only the user or market maker can flag a dispute")
	ErrMMNotRegistered     = newError(KindAuthorization, "MMNotRegistered", "market maker is not registered")
	ErrMMNotActive         = newError(KindAuthorization, "MMNotActive", "market maker is not active")

	ErrMMAlreadyRegistered = newError(KindState, "MMAlreadyRegistered", "market maker already registered")
	ErrIntentNotFound      = newError(KindState, "IntentNotFound", "intent not found")
	ErrIntentNotPending    = newError(KindState, "IntentNotPending", "intent is not pending")
	ErrIntentExpired       = newError(KindState, "IntentExpired", "intent fill deadline has passed")
	ErrIntentNotExpired    = newError(KindState, "IntentNotExpired", "intent fill deadline has not passed")
	ErrIntentNotResolvable = newError(KindState, "IntentNotResolvable", "intent is not in a resolvable status")
	ErrEscrowReleased      = newError(KindState, "EscrowReleased", "intent escrow has already been released")
	ErrQuoteExpired        = newError(KindState, "QuoteExpired", "quote has expired")
	ErrPositionNotFound    = newError(KindState, "PositionNotFound", "position not found")
	ErrPositionNotActive   = newError(KindState, "PositionNotActive", "position is not active")
	ErrPositionNotExpired  = newError(KindState, "PositionNotExpired", "position has not expired yet")

	ErrAssetNotEnabled        = newError(KindValidation, "AssetNotEnabled", "asset is not enabled for trading")
	ErrInvalidQuoteParameters = newError(KindValidation, "InvalidQuoteParameters", "invalid quote parameters")
	ErrInvalidPercentage      = newError(KindValidation, "InvalidPercentage", "basis points must not exceed 10000")
	ErrDisputeReasonTooLong   = newError(KindValidation, "DisputeReasonTooLong", "reason exceeds 200 bytes")
	ErrMalformedSignatureData = newError(KindValidation, "MalformedSignatureData", "companion signature instruction is malformed")
	ErrInvalidSigningKey      = newError(KindValidation, "InvalidSigningKey", "signing key must not be empty")

	ErrInvalidSignature   = newError(KindAuthenticity, "InvalidSignature", "invalid ed25519 signature")
	ErrSigningKeyMismatch = newError(KindAuthenticity, "SigningKeyMismatch", "signing key mismatch")
	ErrNonceAlreadyUsed   = newError(KindAuthenticity, "NonceAlreadyUsed", "quote nonce has already been used")

	ErrPriceTooStale      = newError(KindStaleness, "PriceTooStale", "oracle price is too stale")
	ErrPythFeedIdMismatch = newError(KindStaleness, "PythFeedIdMismatch", "oracle feed id mismatch")
)
