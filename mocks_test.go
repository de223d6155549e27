package federation_test

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-fed/httpsig"
	"github.com/goliatone/go-federation"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStorage implements federation.Storage
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) FindActorByURL(ctx context.Context, u *url.URL) (*federation.Actor, error) {
	args := m.Called(ctx, u)
	if actor := args.Get(0); actor != nil {
		return actor.(*federation.Actor), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStorage) FindLocalActorByName(ctx context.Context, name string) (*federation.Actor, error) {
	args := m.Called(ctx, name)
	if actor := args.Get(0); actor != nil {
		return actor.(*federation.Actor), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStorage) FindPostByURL(ctx context.Context, u *url.URL) (*federation.Post, error) {
	args := m.Called(ctx, u)
	if post := args.Get(0); post != nil {
		return post.(*federation.Post), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStorage) UpsertActor(ctx context.Context, actor *federation.Actor) (*federation.Actor, error) {
	args := m.Called(ctx, actor)
	if out := args.Get(0); out != nil {
		return out.(*federation.Actor), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStorage) UpsertPost(ctx context.Context, post *federation.Post) (*federation.Post, error) {
	args := m.Called(ctx, post)
	if out := args.Get(0); out != nil {
		return out.(*federation.Post), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStorage) DeletePostByURL(ctx context.Context, u *url.URL) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockStorage) MarkProcessed(ctx context.Context, activityID *url.URL) (bool, error) {
	args := m.Called(ctx, activityID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) AddFollower(ctx context.Context, actor *federation.Actor, followerURL *url.URL) error {
	args := m.Called(ctx, actor, followerURL)
	return args.Error(0)
}

func (m *MockStorage) RemoveFollower(ctx context.Context, actor *federation.Actor, followerURL *url.URL) error {
	args := m.Called(ctx, actor, followerURL)
	return args.Error(0)
}

func (m *MockStorage) ListFollowers(ctx context.Context, actor *federation.Actor) ([]*url.URL, error) {
	args := m.Called(ctx, actor)
	if out := args.Get(0); out != nil {
		return out.([]*url.URL), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockLanguagePolicy implements federation.LanguagePolicy
type MockLanguagePolicy struct {
	mock.Mock
}

func (m *MockLanguagePolicy) Allows(ctx context.Context, language string) (bool, error) {
	args := m.Called(ctx, language)
	return args.Bool(0), args.Error(1)
}

// testLogger implements federation.Logger and discards everything.
type testLogger struct{}

func (testLogger) Debug(format string, args ...any) {}
func (testLogger) Info(format string, args ...any)  {}
func (testLogger) Error(format string, args ...any) {}

var (
	sharedKeys     *federation.KeyPair
	sharedKeysOnce sync.Once
)

// testKeyPair returns a process-wide RSA key pair so each test does not pay
// for key generation.
func testKeyPair(t *testing.T) *federation.KeyPair {
	t.Helper()
	sharedKeysOnce.Do(func() {
		keys, err := federation.GenerateKeyPair()
		if err != nil {
			t.Fatalf("generate key pair: %v", err)
		}
		sharedKeys = keys
	})
	return sharedKeys
}

func newTestInstance(hostname string, client *http.Client, mutate func(*federation.InstanceSettings)) *federation.LocalInstance {
	settings := federation.DefaultInstanceSettings()
	if mutate != nil {
		mutate(&settings)
	}
	return federation.NewLocalInstance(hostname, client, settings)
}

func newTestActor(t *testing.T, actorURL string, local bool) *federation.Actor {
	t.Helper()
	keys := testKeyPair(t)
	actor := &federation.Actor{
		URL:          actorURL,
		Username:     "tester",
		InboxURL:     actorURL + "/inbox",
		PublicKeyPEM: keys.PublicPEM,
		Local:        local,
	}
	if local {
		actor.PrivateKeyPEM = keys.PrivatePEM
	}
	return actor
}

func digestFor(body []byte) string {
	sum := sha256.Sum256(body)
	return "SHA-256=" + base64.StdEncoding.EncodeToString(sum[:])
}

// signTestRequest signs req the way a federating peer would: request target,
// host, date and body digest under the actor's main key.
func signTestRequest(t *testing.T, req *http.Request, keyID, privatePEM string, body []byte) {
	t.Helper()

	key, err := federation.ParsePrivateKey(privatePEM)
	require.NoError(t, err)

	signer, _, err := httpsig.NewSigner(
		[]httpsig.Algorithm{httpsig.RSA_SHA256},
		httpsig.DigestSha256,
		[]string{httpsig.RequestTarget, "host", "date", "digest"},
		httpsig.Signature,
		0,
	)
	require.NoError(t, err)

	if req.Header.Get("Date") == "" {
		req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	}
	if req.Header.Get("Host") == "" {
		req.Header.Set("Host", req.URL.Host)
	}

	require.NoError(t, signer.SignRequest(key, keyID, req, body))
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
