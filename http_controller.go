package federation

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RegisterFederationRoutes wires the federation endpoints into a router:
// the public object endpoint and the per-actor plus shared inboxes.
func RegisterFederationRoutes[T any](app router.Router[T], opts ...FederationControllerOption) {

	controller := NewFederationController(opts...)

	app.
		Get(controller.Routes.Objects, controller.GetObject).
		SetName("objects.get")

	app.
		Post(controller.Routes.Inbox, controller.PostInbox).
		SetName("inbox.post")

	app.
		Post(controller.Routes.SharedInbox, controller.PostInbox).
		SetName("inbox.shared.post")
}

type FederationControllerRoutes struct {
	Objects     string
	Inbox       string
	SharedInbox string
}

type FederationController struct {
	Debug        bool
	Logger       Logger
	Instance     *LocalInstance
	Pipeline     *InboxPipeline
	Storage      Storage
	Routes       *FederationControllerRoutes
	ErrorHandler router.ErrorHandler
}

type FederationControllerOption func(*FederationController) *FederationController

func NewFederationController(opts ...FederationControllerOption) *FederationController {
	c := &FederationController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Routes: &FederationControllerRoutes{
			Objects:     "/objects/:name",
			Inbox:       "/u/:name/inbox",
			SharedInbox: "/inbox",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Instance == nil {
		panic("Missing LocalInstance in federation controller...")
	}

	if c.Storage == nil {
		panic("Missing Storage in federation controller...")
	}

	if c.Pipeline == nil {
		panic("Missing InboxPipeline in federation controller...")
	}

	return c
}

func WithControllerInstance(instance *LocalInstance) FederationControllerOption {
	return func(c *FederationController) *FederationController {
		c.Instance = instance
		return c
	}
}

func WithControllerStorage(storage Storage) FederationControllerOption {
	return func(c *FederationController) *FederationController {
		c.Storage = storage
		return c
	}
}

func WithControllerPipeline(pipeline *InboxPipeline) FederationControllerOption {
	return func(c *FederationController) *FederationController {
		c.Pipeline = pipeline
		return c
	}
}

func WithControllerLogger(logger Logger) FederationControllerOption {
	return func(c *FederationController) *FederationController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerDebug(debug bool) FederationControllerOption {
	return func(c *FederationController) *FederationController {
		c.Debug = debug
		return c
	}
}

// GetObject serves a local actor's wire document wrapped in the shared
// JSON-LD context. It never issues network I/O.
func (a *FederationController) GetObject(ctx router.Context) error {
	name := ctx.Param("name")

	actor, err := a.Storage.FindLocalActorByName(ctx.Context(), name)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	data, err := json.Marshal(NewDefaultContext(actor.ToWire()))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	ctx.SetHeader("Content-Type", APubJSONContentType)
	return ctx.Status(router.StatusOK).SendString(string(data))
}

// PostInbox feeds a delivery through the inbox pipeline. Success and
// swallowed duplicates both answer with an empty 200; rejections map to a
// status from the failure category.
func (a *FederationController) PostInbox(ctx router.Context) error {
	body := ctx.Body()

	if a.Debug {
		fmt.Println("======= FED INBOX =======")
		fmt.Println(print.MaybePrettyJSON(json.RawMessage(body)))
		fmt.Println("=========================")
	}

	req, err := inboundRequest(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	result, err := a.Pipeline.Receive(ctx.Context(), req, body)
	if err != nil {
		a.Logger.Error("inbox delivery rejected: %s", err)
		return a.ErrorHandler(ctx, err)
	}

	if result.Deduped {
		a.Logger.Debug("duplicate delivery of %s acknowledged", result.ActivityID)
	}

	return ctx.Status(router.StatusOK).SendString("")
}

// inboundRequest rebuilds the http.Request the signature covers from the
// router context: request line plus every signed header.
func inboundRequest(ctx router.Context) (*http.Request, error) {
	target, err := url.Parse(ctx.OriginalURL())
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid request url")
	}

	req := &http.Request{
		Method: ctx.Method(),
		URL:    target,
		Header: http.Header{},
	}

	headers := append(
		signedHeaderNames(ctx.Header("Signature")),
		"Signature", "Digest", "Date", "Host", "Content-Type",
	)
	for _, name := range headers {
		if strings.HasPrefix(name, "(") {
			continue
		}
		if value := ctx.Header(name); value != "" {
			req.Header.Set(name, value)
		}
	}

	req.Host = req.Header.Get("Host")

	return req, nil
}

// signedHeaderNames extracts the headers list from a Signature header value.
func signedHeaderNames(signature string) []string {
	for _, part := range strings.Split(signature, ",") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, "headers=") {
			continue
		}
		list := strings.Trim(strings.TrimPrefix(part, "headers="), `"`)
		return strings.Fields(list)
	}
	return nil
}

func defaultErrHandler(ctx router.Context, err error) error {
	status := router.StatusInternalServerError
	message := "internal error"

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		message = rich.Message
		switch rich.Category {
		case goerrors.CategoryAuth:
			status = router.StatusUnauthorized
		case goerrors.CategoryAuthz:
			status = router.StatusForbidden
		case goerrors.CategoryValidation, goerrors.CategoryBadInput:
			status = router.StatusBadRequest
		case goerrors.CategoryNotFound:
			status = router.StatusNotFound
		case goerrors.CategoryExternal:
			status = router.StatusBadGateway
		}
	} else if goerrors.IsNotFound(err) {
		status = router.StatusNotFound
		message = "not found"
	}

	return ctx.JSON(status, map[string]any{
		"error": message,
	})
}
