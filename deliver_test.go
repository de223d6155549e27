package federation_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/goliatone/go-federation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelivererPostsSignedActivity(t *testing.T) {
	var deliveries atomic.Int64
	var gotBody []byte
	var gotHeaders http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deliveries.Add(1)
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(server.Close)

	instance := newTestInstance("local.test", server.Client(), nil)
	deliverer := federation.NewDeliverer(instance)

	from := newTestActor(t, "https://local.test/u/alice", true)

	activity := federation.DeleteActivity{
		Kind:   federation.KindDelete,
		ID:     from.URL + "/activities/delete-1",
		Actor:  from.URL,
		Object: from.URL + "/objects/1",
	}

	inbox := mustParseURL(t, server.URL+"/u/bob/inbox")
	err := deliverer.Deliver(context.Background(), from, activity, []*url.URL{inbox})
	require.NoError(t, err)

	require.Equal(t, int64(1), deliveries.Load())
	assert.Equal(t, federation.APubJSONContentType, gotHeaders.Get("Content-Type"))
	assert.NotEmpty(t, gotHeaders.Get("Signature"))
	assert.Equal(t, digestFor(gotBody), gotHeaders.Get("Digest"))
	assert.Contains(t, string(gotBody), `"@context"`)
	assert.Contains(t, string(gotBody), activity.ID)
}

func TestDelivererFansOutToEveryInbox(t *testing.T) {
	var deliveries atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deliveries.Add(1)
	}))
	t.Cleanup(server.Close)

	instance := newTestInstance("local.test", server.Client(), func(s *federation.InstanceSettings) {
		s.WorkerCount = 2
	})
	deliverer := federation.NewDeliverer(instance)

	from := newTestActor(t, "https://local.test/u/alice", true)

	inboxes := make([]*url.URL, 0, 8)
	for i := 0; i < 8; i++ {
		inboxes = append(inboxes, mustParseURL(t, server.URL+"/inbox"))
	}

	err := deliverer.Deliver(context.Background(), from, map[string]any{"type": "Create"}, inboxes)
	require.NoError(t, err)
	assert.Equal(t, int64(8), deliveries.Load())
}

func TestDelivererSkipsBlockedDomains(t *testing.T) {
	client := &http.Client{Transport: failingTransport{t}}
	instance := newTestInstance("local.test", client, func(s *federation.InstanceSettings) {
		s.BlockedDomains = []string{"bad.example"}
	})
	deliverer := federation.NewDeliverer(instance)

	from := newTestActor(t, "https://local.test/u/alice", true)

	err := deliverer.Deliver(context.Background(), from, map[string]any{"type": "Create"}, []*url.URL{
		mustParseURL(t, "https://bad.example/inbox"),
	})
	require.NoError(t, err)
}

func TestDelivererCollectsTargetFailures(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(good.Close)

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(bad.Close)

	instance := newTestInstance("local.test", good.Client(), nil)
	deliverer := federation.NewDeliverer(instance)

	from := newTestActor(t, "https://local.test/u/alice", true)

	err := deliverer.Deliver(context.Background(), from, map[string]any{"type": "Create"}, []*url.URL{
		mustParseURL(t, good.URL+"/inbox"),
		mustParseURL(t, bad.URL+"/inbox"),
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "fetch failed")
}

func TestDelivererRequiresPrivateKey(t *testing.T) {
	instance := newTestInstance("local.test", nil, nil)
	deliverer := federation.NewDeliverer(instance)

	from := newTestActor(t, "https://remote.example/u/bob", false)

	err := deliverer.Deliver(context.Background(), from, map[string]any{"type": "Create"}, []*url.URL{
		mustParseURL(t, "https://remote.example/inbox"),
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "private key")
}
