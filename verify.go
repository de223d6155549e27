package federation

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"net/url"

	"github.com/go-fed/httpsig"
)

// SignatureVerifier is the hard gate in front of every inbound activity: it
// recomputes the body digest and verifies the HTTP signature against the
// signing actor's published key. No mutation caused by a message may happen
// before Verify returns.
type SignatureVerifier struct {
	resolver *Resolver
	logger   Logger
}

func NewSignatureVerifier(resolver *Resolver, opts ...VerifierOption) *SignatureVerifier {
	v := &SignatureVerifier{
		resolver: resolver,
		logger:   defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

type VerifierOption func(*SignatureVerifier)

func WithVerifierLogger(logger Logger) VerifierOption {
	return func(v *SignatureVerifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// Verify checks the Digest header against body, resolves the signing actor
// from the signature's keyId, and verifies the signature. It returns the
// signing actor on success. The signing actor is resolved through the
// regular object resolver, so unknown remote signers are fetched on demand.
func (v *SignatureVerifier) Verify(ctx context.Context, req *http.Request, body []byte) (*Actor, error) {
	if err := VerifyDigest(req.Header.Get("Digest"), body); err != nil {
		return nil, err
	}

	if req.Header.Get("Signature") == "" {
		return nil, ErrMissingSignature
	}

	verifier, err := httpsig.NewVerifier(req)
	if err != nil {
		v.logger.Debug("unparseable signature header: %s", err)
		return nil, ErrBadSignature.WithMetadata(map[string]any{"detail": err.Error()})
	}

	keyURL, err := url.Parse(verifier.KeyId())
	if err != nil || !keyURL.IsAbs() {
		return nil, ErrUnknownKey.WithMetadata(map[string]any{"key_id": verifier.KeyId()})
	}

	// Keys are published as fragments of the actor document; the actor URL
	// is the keyId without its fragment.
	actorURL := *keyURL
	actorURL.Fragment = ""

	actorRef, err := NewObjectID[*Actor](actorURL.String())
	if err != nil {
		return nil, ErrUnknownKey.WithMetadata(map[string]any{"key_id": verifier.KeyId()})
	}

	actor, err := actorRef.Dereference(ctx, v.resolver)
	if err != nil {
		v.logger.Debug("could not resolve signing actor %s: %s", actorURL.String(), err)
		return nil, ErrUnknownKey.WithMetadata(map[string]any{"actor": actorURL.String()})
	}

	pubKey, err := ParsePublicKey(actor.PublicKeyPEM)
	if err != nil {
		return nil, ErrUnknownKey.WithMetadata(map[string]any{"actor": actor.URL})
	}

	if err := verifier.Verify(pubKey, httpsig.RSA_SHA256); err != nil {
		v.logger.Debug("signature verification failed for %s: %s", actor.URL, err)
		return nil, ErrBadSignature
	}

	return actor, nil
}

// VerifyDigest recomputes the SHA-256 digest of body and compares it to the
// Digest header value in constant time.
func VerifyDigest(header string, body []byte) error {
	if header == "" {
		return ErrMissingSignature.WithMetadata(map[string]any{"detail": "missing digest header"})
	}

	sum := sha256.Sum256(body)
	want := "SHA-256=" + base64.StdEncoding.EncodeToString(sum[:])

	if subtle.ConstantTimeCompare([]byte(header), []byte(want)) != 1 {
		return ErrDigestMismatch
	}
	return nil
}

// DigestHeader computes the Digest header value for an outbound body.
func DigestHeader(body []byte) string {
	sum := sha256.Sum256(body)
	return "SHA-256=" + base64.StdEncoding.EncodeToString(sum[:])
}
