package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dimfeld/httptreemux/v5"

	"github.com/ardanlabs/dposchain/business/sys/validate"
)

// Decode reads r's JSON body into val and checks val's validate struct
// tags. A tag failure comes back as validate.FieldErrors so callers can
// respond with per-field messages instead of a generic 400.
func Decode(r *http.Request, val any) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(val); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	if err := validate.Check(val); err != nil {
		return err
	}

	return nil
}

// Param returns the named httptreemux path parameter, or "" if key was
// not part of the matched route.
func Param(r *http.Request, key string) string {
	params := httptreemux.ContextParams(r.Context())
	return params[key]
}
