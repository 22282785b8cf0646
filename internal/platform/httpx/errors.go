package httpx

import (
	"errors"
	"net/http"

	"github.com/voyagedesk/voyagedesk/internal/shared"
)

// RespondError maps domain error kinds to HTTP responses using RFC7807.
// Expected lifecycle outcomes get precise statuses; anything unrecognised
// is an infrastructure failure and surfaces as a 500 without detail.
func RespondError(w http.ResponseWriter, err error) {
	var transition *shared.InvalidTransitionError
	var referential *shared.ReferentialIntegrityError

	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrPermissionDenied):
		Problem(w, http.StatusForbidden, "Permission Denied", err.Error())
	case errors.Is(err, shared.ErrConcurrentModification):
		Problem(w, http.StatusConflict, "Concurrent Modification", err.Error())
	case errors.Is(err, shared.ErrActiveLinkConflict):
		Problem(w, http.StatusConflict, "Active Link Conflict", err.Error())
	case errors.As(err, &transition):
		Problem(w, http.StatusUnprocessableEntity, "Invalid Transition", transition.Error())
	case errors.As(err, &referential):
		Problem(w, http.StatusConflict, "Referential Integrity Violation", referential.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
