package mid

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ardanlabs/dposchain/business/sys/validate"
	"github.com/ardanlabs/dposchain/business/web/errs"
	"github.com/ardanlabs/dposchain/foundation/blockchain/chainerrors"
	"github.com/ardanlabs/dposchain/foundation/web"
)

// Errors handles errors coming out of the call chain. It detects normal
// application errors, which are used to respond to the client in a
// uniform way, and checks for any shutdown error, letting it continue to
// propagate up so the App can stop the service.
func Errors(log *zap.SugaredLogger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := handler(ctx, w, r)
			if err == nil {
				return nil
			}

			if web.IsShutdown(err) {
				return err
			}

			v, verr := web.GetValues(ctx)
			traceID := ""
			if verr == nil {
				traceID = v.TraceID
			}
			log.Errorw("ERROR", "traceid", traceID, "message", err)

			status := statusFor(err)

			var resp errs.Response
			switch {
			case isFieldErrors(err):
				fields := err.(validate.FieldErrors)
				resp = errs.Response{Error: fields.Error(), Fields: fields.Fields()}

			case errs.GetTrusted(err) != nil:
				resp = errs.Response{Error: errs.GetTrusted(err).Err.Error()}

			default:
				resp = errs.Response{Error: http.StatusText(status)}
			}

			return web.Respond(ctx, w, resp, status)
		}
		return h
	}
	return m
}

// isFieldErrors reports whether err is a validate.FieldErrors, the error
// Decode returns when a decoded payload fails its validate struct tags.
func isFieldErrors(err error) bool {
	_, ok := err.(validate.FieldErrors)
	return ok
}

// statusFor maps a chain error onto an HTTP status code: field validation
// failures and a Trusted error carry their own status, a categorized
// chain error maps by category, and anything else is an unexpected
// server error.
func statusFor(err error) int {
	if isFieldErrors(err) {
		return http.StatusBadRequest
	}

	if trusted := errs.GetTrusted(err); trusted != nil {
		return trusted.Status
	}

	category, ok := chainerrors.CategoryOf(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch category {
	case chainerrors.Validation:
		return http.StatusBadRequest
	case chainerrors.Consensus, chainerrors.State:
		return http.StatusConflict
	case chainerrors.Persistence:
		return http.StatusInternalServerError
	case chainerrors.Network:
		return http.StatusBadGateway
	case chainerrors.Pool:
		return http.StatusTooManyRequests
	case chainerrors.Config, chainerrors.Fatal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
