package federation_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/goliatone/go-federation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newVerifierFixture(t *testing.T) (*federation.SignatureVerifier, *MockStorage, *federation.Actor) {
	t.Helper()

	instance := newTestInstance("example.com", &http.Client{Transport: failingTransport{t}}, nil)
	storage := new(MockStorage)
	resolver := federation.NewResolver(instance, storage)

	actor := newTestActor(t, "https://example.com/u/alice", true)

	return federation.NewSignatureVerifier(resolver), storage, actor
}

func signedInboxRequest(t *testing.T, actor *federation.Actor, body []byte) *http.Request {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, "https://example.com/u/alice/inbox", nil)
	require.NoError(t, err)

	signTestRequest(t, req, actor.URL+"#main-key", actor.PrivateKeyPEM, body)
	return req
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	verifier, storage, actor := newVerifierFixture(t)
	body := []byte(`{"type":"Create"}`)

	storage.On("FindActorByURL", mock.Anything, mustParseURL(t, actor.URL)).Return(actor, nil)

	req := signedInboxRequest(t, actor, body)

	signer, err := verifier.Verify(context.Background(), req, body)
	require.NoError(t, err)
	assert.Equal(t, actor.URL, signer.URL)
	storage.AssertExpectations(t)
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	verifier, storage, actor := newVerifierFixture(t)
	body := []byte(`{"type":"Create"}`)

	req := signedInboxRequest(t, actor, body)

	// body mutated after signing
	_, err := verifier.Verify(context.Background(), req, []byte(`{"type":"Delete"}`))
	require.Error(t, err)
	assert.ErrorContains(t, err, "digest")

	// the digest gate runs before any actor resolution
	storage.AssertNotCalled(t, "FindActorByURL", mock.Anything, mock.Anything)
}

func TestVerifyRejectsMissingSignature(t *testing.T) {
	verifier, storage, _ := newVerifierFixture(t)
	body := []byte(`{"type":"Create"}`)

	req, err := http.NewRequest(http.MethodPost, "https://example.com/u/alice/inbox", nil)
	require.NoError(t, err)
	req.Header.Set("Digest", digestFor(body))

	_, err = verifier.Verify(context.Background(), req, body)
	require.Error(t, err)
	assert.ErrorContains(t, err, "signature")
	storage.AssertNotCalled(t, "FindActorByURL", mock.Anything, mock.Anything)
}

func TestVerifyRejectsUnknownSigner(t *testing.T) {
	verifier, storage, actor := newVerifierFixture(t)
	body := []byte(`{"type":"Create"}`)

	storage.On("FindActorByURL", mock.Anything, mock.Anything).
		Return(nil, federation.ErrObjectNotFound)

	req := signedInboxRequest(t, actor, body)

	_, err := verifier.Verify(context.Background(), req, body)
	require.Error(t, err)
	assert.ErrorContains(t, err, "key")
}

func TestVerifyRejectsForgedSignature(t *testing.T) {
	verifier, storage, actor := newVerifierFixture(t)
	body := []byte(`{"type":"Create"}`)

	// the stored actor advertises a key the request was not signed with
	forged, err := federation.GenerateKeyPair()
	require.NoError(t, err)

	stored := *actor
	stored.PublicKeyPEM = forged.PublicPEM
	storage.On("FindActorByURL", mock.Anything, mock.Anything).Return(&stored, nil)

	req := signedInboxRequest(t, actor, body)

	_, err = verifier.Verify(context.Background(), req, body)
	require.Error(t, err)
	assert.ErrorContains(t, err, "signature")
}

func TestVerifyDigestConstantHelpers(t *testing.T) {
	body := []byte("hello")

	require.NoError(t, federation.VerifyDigest(federation.DigestHeader(body), body))
	require.Error(t, federation.VerifyDigest(federation.DigestHeader(body), []byte("tampered")))
	require.Error(t, federation.VerifyDigest("", body))
}
