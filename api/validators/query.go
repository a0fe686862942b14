package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// ParseQueryInt reads an optional integer query value bounded by [lo, hi].
// A missing value yields fallback.
func ParseQueryInt(r *http.Request, key string, fallback, lo, hi int) (int, error) {
	raw, present := lookupQuery(r, key)
	if !present {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		return 0, fieldError(key, "must be a whole number", nil)
	case n < lo || n > hi:
		return 0, fieldError(key, "is out of range", map[string]any{"min": lo, "max": hi})
	}
	return n, nil
}

// ParseUUIDParam validates a path segment such as chi.URLParam(r, "orderID").
func ParseUUIDParam(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fieldError(field, "is not a valid id", nil)
	}
	return id, nil
}

func lookupQuery(r *http.Request, key string) (string, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	return raw, raw != ""
}

func fieldError(field, problem string, extra map[string]any) error {
	details := map[string]any{"field": field}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.Newf(pkgerrors.CodeValidation, "%s %s", field, problem).WithDetails(details)
}
