// Package web provides a thin layer over httptreemux that turns a route
// handler's API down to a single signature: a function taking a context
// and returning an error. Every cross-cutting concern — request values,
// logging, panic recovery, shutdown signaling — composes as Middleware
// wrapping that one signature, instead of being threaded through each
// handler's parameters.
package web

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/dimfeld/httptreemux/v5"
	"github.com/google/uuid"
)

// ctxKey is unexported so only this package can populate context values
// under it.
type ctxKey int

const key ctxKey = 1

// Values carries request-scoped information a handler or middleware
// needs but that doesn't belong in the function signature: a trace id for
// correlating log lines, the time the request began, and the status code
// the handler eventually wrote, filled in by Respond for Logger
// middleware to report.
type Values struct {
	TraceID    string
	Now        time.Time
	StatusCode int
}

// Handler is the signature every route and every Middleware wraps:
// application logic returns an error instead of writing one directly, so
// error-handling middleware can inspect and map it to a response.
type Handler func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// Middleware wraps a Handler with cross-cutting behavior and returns the
// wrapped Handler, so composing several is plain function composition.
type Middleware func(Handler) Handler

// App is the application's router: a httptreemux.ContextMux plus the
// Middleware every registered route is wrapped in, and a shutdown channel
// a Handler can use to request a graceful stop.
type App struct {
	*httptreemux.ContextMux
	shutdown chan os.Signal
	mw       []Middleware
}

// NewApp constructs an App. mw is applied to every route registered
// through Handle, outermost first.
func NewApp(shutdown chan os.Signal, mw ...Middleware) *App {
	return &App{
		ContextMux: httptreemux.NewContextMux(),
		shutdown:   shutdown,
		mw:         mw,
	}
}

// SignalShutdown tells the service to begin a graceful shutdown, the way
// a Handler returning a shutdown error does automatically through Handle.
func (a *App) SignalShutdown() {
	a.shutdown <- os.Interrupt
}

// Handle registers handler for method and path under group (a version
// prefix such as "v1"; pass "" to skip it), wrapped in routeMW then in
// the App's own Middleware, outermost first.
func (a *App) Handle(method string, group string, path string, handler Handler, routeMW ...Middleware) {
	handler = wrapMiddleware(routeMW, handler)
	handler = wrapMiddleware(a.mw, handler)

	h := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		v := Values{
			TraceID: uuid.NewString(),
			Now:     time.Now(),
		}
		ctx = context.WithValue(ctx, key, &v)

		if err := handler(ctx, w, r); err != nil {
			if isShutdown(err) {
				a.SignalShutdown()
			}
		}
	}

	finalPath := path
	if group != "" {
		finalPath = "/" + group + path
	}

	a.ContextMux.Handle(method, finalPath, h)
}

// wrapMiddleware composes mw around handler, outermost element of mw
// wrapping everything else.
func wrapMiddleware(mw []Middleware, handler Handler) Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		if mw[i] != nil {
			handler = mw[i](handler)
		}
	}
	return handler
}
