package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultDispatcher returns a dispatcher with every built-in activity
// handler registered.
func DefaultDispatcher() *Dispatcher {
	return NewDispatcher().MustRegister(
		CreateNoteHandler{},
		FollowHandler{},
		AcceptHandler{},
		UndoHandler{},
		DeleteHandler{},
	)
}

// CreateNoteHandler persists inbound posts after checking attribution and
// the instance language policy.
type CreateNoteHandler struct{}

func (CreateNoteHandler) Kind() string { return KindCreate }

func (CreateNoteHandler) Handle(ctx context.Context, actor *Actor, envelope *Envelope, deps HandlerDeps) error {
	var activity CreateActivity
	if err := json.Unmarshal(envelope.Raw, &activity); err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "failed to decode create activity")
	}

	post, err := NoteToPost(&activity.Object)
	if err != nil {
		return err
	}

	if post.ActorURL != actor.URL {
		return ErrActorMismatch.WithMetadata(map[string]any{
			"attributed_to": post.ActorURL,
			"actor":         actor.URL,
		})
	}

	if post.Language != "" {
		allowed, err := deps.Languages.Allows(ctx, post.Language)
		if err != nil {
			return errors.Wrap(err, errors.CategoryOperation, "language policy lookup failed")
		}
		if !allowed {
			return errors.New("language_not_allowed", errors.CategoryValidation).
				WithMetadata(map[string]any{"language": post.Language})
		}
	}

	if _, err := deps.Storage.UpsertPost(ctx, post); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to persist post")
	}

	deps.Logger.Debug("created post %s from %s", post.URL, actor.URL)
	return nil
}

// FollowHandler records the sender as a follower of a local actor and
// responds with an Accept.
type FollowHandler struct{}

func (FollowHandler) Kind() string { return KindFollow }

func (FollowHandler) Handle(ctx context.Context, actor *Actor, envelope *Envelope, deps HandlerDeps) error {
	var activity FollowActivity
	if err := json.Unmarshal(envelope.Raw, &activity); err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "failed to decode follow activity")
	}

	targetRef, err := NewObjectID[*Actor](activity.Object)
	if err != nil {
		return err
	}

	target, err := targetRef.DereferenceLocal(ctx, deps.Resolver)
	if err != nil {
		return err
	}

	if err := deps.Storage.AddFollower(ctx, target, actor.CanonicalURL()); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to record follower")
	}

	if deps.Deliverer == nil || target.PrivateKeyPEM == "" {
		return nil
	}

	accept := AcceptActivity{
		Kind:   KindAccept,
		ID:     fmt.Sprintf("%s/activities/%s", target.URL, uuid.New()),
		Actor:  target.URL,
		Object: activity,
	}

	inbox := actor.Inbox()
	if inbox == nil {
		return errors.New("follower has no usable inbox", errors.CategoryValidation).
			WithMetadata(map[string]any{"actor": actor.URL})
	}

	return deps.Deliverer.Deliver(ctx, target, accept, []*url.URL{inbox})
}

// AcceptHandler acknowledges a confirmed follow. There is no state to flip
// locally, the follow was recorded optimistically at send time.
type AcceptHandler struct{}

func (AcceptHandler) Kind() string { return KindAccept }

func (AcceptHandler) Handle(ctx context.Context, actor *Actor, envelope *Envelope, deps HandlerDeps) error {
	var activity AcceptActivity
	if err := json.Unmarshal(envelope.Raw, &activity); err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "failed to decode accept activity")
	}
	deps.Logger.Debug("follow %s accepted by %s", activity.Object.ID, actor.URL)
	return nil
}

// UndoHandler retracts a previous follow from the sender.
type UndoHandler struct{}

func (UndoHandler) Kind() string { return KindUndo }

func (UndoHandler) Handle(ctx context.Context, actor *Actor, envelope *Envelope, deps HandlerDeps) error {
	var activity UndoActivity
	if err := json.Unmarshal(envelope.Raw, &activity); err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "failed to decode undo activity")
	}

	if activity.Object.Kind != KindFollow {
		deps.Logger.Debug("ignoring undo of unsupported kind %q", activity.Object.Kind)
		return nil
	}

	if activity.Object.Actor != actor.URL {
		return ErrActorMismatch.WithMetadata(map[string]any{
			"undone_actor": activity.Object.Actor,
			"actor":        actor.URL,
		})
	}

	targetRef, err := NewObjectID[*Actor](activity.Object.Object)
	if err != nil {
		return err
	}

	target, err := targetRef.DereferenceLocal(ctx, deps.Resolver)
	if err != nil {
		return err
	}

	if err := deps.Storage.RemoveFollower(ctx, target, actor.CanonicalURL()); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to remove follower")
	}
	return nil
}

// DeleteHandler tombstones a post owned by the sender. Deleting an object
// this instance never saw is a successful no-op.
type DeleteHandler struct{}

func (DeleteHandler) Kind() string { return KindDelete }

func (DeleteHandler) Handle(ctx context.Context, actor *Actor, envelope *Envelope, deps HandlerDeps) error {
	var activity DeleteActivity
	if err := json.Unmarshal(envelope.Raw, &activity); err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "failed to decode delete activity")
	}

	objectURL, err := url.Parse(activity.Object)
	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid delete object reference")
	}

	post, err := deps.Storage.FindPostByURL(ctx, objectURL)
	if err != nil {
		if errors.IsNotFound(err) {
			deps.Logger.Debug("delete for unknown object %s, ignoring", activity.Object)
			return nil
		}
		return errors.Wrap(err, errors.CategoryOperation, "failed to look up post")
	}

	if post.ActorURL != actor.URL {
		return ErrActorMismatch.WithMetadata(map[string]any{
			"owner": post.ActorURL,
			"actor": actor.URL,
		})
	}

	if err := deps.Storage.DeletePostByURL(ctx, objectURL); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to delete post")
	}
	return nil
}
