package federation

import "github.com/goliatone/go-errors"

const (
	TextCodeMissingSignature = "federation_missing_signature"
	TextCodeDigestMismatch   = "federation_digest_mismatch"
	TextCodeBadSignature     = "federation_bad_signature"
	TextCodeUnknownKey       = "federation_unknown_key"
	TextCodeActorMismatch    = "federation_actor_mismatch"
	TextCodeWrongObjectKind  = "federation_wrong_object_kind"
	TextCodeMalformedObject  = "federation_malformed_object"
	TextCodeObjectNotFound   = "federation_object_not_found"
	TextCodeObjectNotLocal   = "federation_object_not_local"
	TextCodeFetchFailed      = "federation_fetch_failed"
	TextCodeDomainBlocked    = "federation_domain_blocked"
	TextCodeDepthExceeded    = "federation_depth_exceeded"
)

// ErrMissingSignature is returned when an inbox request carries no Signature header.
var ErrMissingSignature = errors.New("missing signature header", errors.CategoryAuth).
	WithTextCode(TextCodeMissingSignature).
	WithCode(errors.CodeUnauthorized)

// ErrDigestMismatch is returned when the request body does not hash to the Digest header.
var ErrDigestMismatch = errors.New("body digest mismatch", errors.CategoryAuth).
	WithTextCode(TextCodeDigestMismatch).
	WithCode(errors.CodeUnauthorized)

// ErrBadSignature is returned when the HTTP signature fails to verify against the actor key.
var ErrBadSignature = errors.New("invalid http signature", errors.CategoryAuth).
	WithTextCode(TextCodeBadSignature).
	WithCode(errors.CodeUnauthorized)

// ErrUnknownKey is returned when the signing actor cannot be resolved.
var ErrUnknownKey = errors.New("signing key owner could not be resolved", errors.CategoryAuth).
	WithTextCode(TextCodeUnknownKey).
	WithCode(errors.CodeUnauthorized)

// ErrActorMismatch is returned when the envelope actor differs from the signing actor.
var ErrActorMismatch = errors.New("activity actor does not match signing actor", errors.CategoryAuth).
	WithTextCode(TextCodeActorMismatch).
	WithCode(errors.CodeUnauthorized)

// ErrWrongObjectKind is returned when a fetched document declares an unexpected type.
var ErrWrongObjectKind = errors.New("object kind does not match expectation", errors.CategoryValidation).
	WithTextCode(TextCodeWrongObjectKind).
	WithCode(errors.CodeBadRequest)

// ErrMalformedObject is returned when a wire document is missing required fields.
var ErrMalformedObject = errors.New("malformed wire document", errors.CategoryValidation).
	WithTextCode(TextCodeMalformedObject).
	WithCode(errors.CodeBadRequest)

// ErrObjectNotFound is returned when a local lookup by URL misses.
var ErrObjectNotFound = errors.New("object not found", errors.CategoryNotFound).
	WithTextCode(TextCodeObjectNotFound).
	WithCode(errors.CodeNotFound)

// ErrObjectNotLocal is returned by local-only dereferencing when the reference is remote.
var ErrObjectNotLocal = errors.New("object is not local to this instance", errors.CategoryBadInput).
	WithTextCode(TextCodeObjectNotLocal).
	WithCode(errors.CodeBadRequest)

// ErrFetchFailed is returned on transport failure or a non-2xx remote response.
var ErrFetchFailed = errors.New("remote object fetch failed", errors.CategoryExternal).
	WithTextCode(TextCodeFetchFailed).
	WithCode(errors.CodeInternal)

// ErrDomainBlocked is returned before any request is issued to a disallowed domain.
var ErrDomainBlocked = errors.New("remote domain not allowed", errors.CategoryAuthz).
	WithTextCode(TextCodeDomainBlocked).
	WithCode(errors.CodeForbidden)

// ErrDepthExceeded is returned when nested reference traversal passes the configured cap.
var ErrDepthExceeded = errors.New("object resolution depth exceeded", errors.CategoryOperation).
	WithTextCode(TextCodeDepthExceeded).
	WithCode(errors.CodeBadRequest)

// IsTransportError reports whether err came from the network layer and may be
// retried by a caller at a higher level. Resolution itself never retries.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	var rich *errors.Error
	if errors.As(err, &rich) {
		return rich.Category == errors.CategoryExternal
	}
	return false
}

// IsValidationError reports whether err describes a malformed or forged
// message. These are terminal and must never be retried.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var rich *errors.Error
	if errors.As(err, &rich) {
		return rich.Category == errors.CategoryValidation || rich.Category == errors.CategoryAuth
	}
	return false
}
