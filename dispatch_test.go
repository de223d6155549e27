package federation_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-federation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHandler struct {
	kind   string
	err    error
	called int
}

func (h *stubHandler) Kind() string { return h.kind }

func (h *stubHandler) Handle(ctx context.Context, actor *federation.Actor, envelope *federation.Envelope, deps federation.HandlerDeps) error {
	h.called++
	return h.err
}

func TestDispatcherRoutesByKind(t *testing.T) {
	handler := &stubHandler{kind: "Move"}
	dispatcher := federation.NewDispatcher().MustRegister(handler)

	envelope := mustEnvelope(t, map[string]any{
		"type":  "Move",
		"id":    "https://other.example/activities/1",
		"actor": "https://other.example/u/bob",
	})

	handled, err := dispatcher.Dispatch(context.Background(), nil, envelope, federation.HandlerDeps{})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, 1, handler.called)
}

func TestDispatcherUnknownKindIsNonFatal(t *testing.T) {
	dispatcher := federation.NewDispatcher()

	envelope := mustEnvelope(t, map[string]any{
		"type":  "Question",
		"id":    "https://other.example/activities/2",
		"actor": "https://other.example/u/bob",
	})

	handled, err := dispatcher.Dispatch(context.Background(), nil, envelope, federation.HandlerDeps{})
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestDispatcherWrapsHandlerFailure(t *testing.T) {
	handler := &stubHandler{kind: "Move", err: federation.ErrObjectNotFound}
	dispatcher := federation.NewDispatcher().MustRegister(handler)

	envelope := mustEnvelope(t, map[string]any{
		"type":  "Move",
		"id":    "https://other.example/activities/3",
		"actor": "https://other.example/u/bob",
	})

	handled, err := dispatcher.Dispatch(context.Background(), nil, envelope, federation.HandlerDeps{})
	require.Error(t, err)
	assert.True(t, handled)
	assert.ErrorContains(t, err, "handler failed")
}

func TestDispatcherRejectsDuplicateRegistration(t *testing.T) {
	dispatcher := federation.NewDispatcher()
	require.NoError(t, dispatcher.Register(&stubHandler{kind: "Move"}))

	err := dispatcher.Register(&stubHandler{kind: "Move"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "already registered")
}

func TestDispatcherRejectsNilHandler(t *testing.T) {
	require.Error(t, federation.NewDispatcher().Register(nil))
}

func TestDefaultDispatcherCoversBuiltinKinds(t *testing.T) {
	kinds := federation.DefaultDispatcher().Kinds()

	for _, kind := range []string{
		federation.KindCreate,
		federation.KindFollow,
		federation.KindAccept,
		federation.KindUndo,
		federation.KindDelete,
	} {
		assert.Contains(t, kinds, kind)
	}
	assert.Len(t, kinds, 5)
}
