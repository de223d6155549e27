package federation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// Deliverer posts signed activities to remote inboxes. Fan-out is bounded
// by the instance's WorkerCount; each delivery is independent and a failed
// target never aborts the others.
type Deliverer struct {
	instance *LocalInstance
	logger   Logger
	sem      chan struct{}
}

type DelivererOption func(*Deliverer)

func WithDelivererLogger(logger Logger) DelivererOption {
	return func(d *Deliverer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func NewDeliverer(instance *LocalInstance, opts ...DelivererOption) *Deliverer {
	d := &Deliverer{
		instance: instance,
		logger:   defLogger{},
		sem:      make(chan struct{}, instance.Settings().WorkerCount),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Deliver signs activity as the given local actor and posts it to every
// inbox. It returns the joined errors of failed targets.
func (d *Deliverer) Deliver(ctx context.Context, from *Actor, activity any, inboxes []*url.URL) error {
	if from == nil || from.PrivateKeyPEM == "" {
		return goerrors.New("deliver: sending actor has no private key", goerrors.CategoryBadInput)
	}

	body, err := json.Marshal(NewDefaultContext(activity))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "deliver: failed to encode activity")
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, inbox := range inboxes {
		if inbox == nil {
			continue
		}
		if !d.instance.DomainAllowed(inbox.Host) {
			d.logger.Debug("skipping delivery to blocked domain %s", inbox.Host)
			continue
		}

		wg.Add(1)
		d.sem <- struct{}{}
		go func(inbox *url.URL) {
			defer wg.Done()
			defer func() { <-d.sem }()

			if err := d.deliverOne(ctx, from, body, inbox); err != nil {
				d.logger.Error("delivery to %s failed: %s", inbox, err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(inbox)
	}

	wg.Wait()
	return errors.Join(errs...)
}

func (d *Deliverer) deliverOne(ctx context.Context, from *Actor, body []byte, inbox *url.URL) error {
	ctx, cancel := context.WithTimeout(ctx, d.instance.Settings().RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, inbox.String(), bytes.NewReader(body))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "deliver: failed to build request")
	}
	req.Header.Set("Content-Type", APubJSONContentType)

	if err := signRequest(req, from.KeyID(), from.PrivateKeyPEM, body); err != nil {
		return err
	}

	res, err := d.instance.Client().Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "deliver: request failed").
			WithMetadata(map[string]any{"inbox": inbox.String()})
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return ErrFetchFailed.WithMetadata(map[string]any{
			"inbox":  inbox.String(),
			"status": res.StatusCode,
		})
	}

	d.logger.Debug("delivered activity to %s", inbox)
	return nil
}
