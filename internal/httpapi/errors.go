package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/steveyegge/coordinator/internal/errs"
	"github.com/steveyegge/coordinator/internal/storage"
)

// statusFor maps a storage/errs failure onto the status codes spec §6.2
// names explicitly (409 StaleWrite, 422 Cycle/SelfLoop, 404 not-found),
// falling back to the errs.Kind taxonomy of spec §7 for everything else.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrStaleWrite):
		return http.StatusConflict
	case errors.Is(err, storage.ErrCycle), errors.Is(err, storage.ErrSelfLoop):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, storage.ErrMissing):
		return http.StatusUnprocessableEntity
	}
	switch errs.KindOf(err) {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindAuthorization:
		return http.StatusUnauthorized
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes the structured {kind, message} record spec §7 requires
// for user-visible failure, at the status statusFor(err) resolves to.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(err))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"message": err.Error(),
		"kind":  string(errs.KindOf(err)),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
