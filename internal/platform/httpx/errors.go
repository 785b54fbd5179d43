package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	WriteProblem(w, ProblemFor(err))
}

// ProblemFor builds the problem document for err.
func ProblemFor(err error) ProblemDetail {
	var (
		insufficient shared.InsufficientStockError
		referential  shared.ReferentialError
		validation   ValidationErrors
	)
	switch {
	case errors.As(err, &validation):
		return ProblemDetail{Title: "Validation Failed", Status: http.StatusBadRequest, Detail: err.Error(), Errors: validation}
	case errors.Is(err, shared.ErrValidation):
		return ProblemDetail{Title: "Validation Failed", Status: http.StatusBadRequest, Detail: err.Error()}
	case errors.Is(err, shared.ErrConfirmation):
		return ProblemDetail{Title: "Confirmation Required", Status: http.StatusBadRequest, Detail: err.Error()}
	case errors.Is(err, shared.ErrNotFound):
		return ProblemDetail{Title: "Not Found", Status: http.StatusNotFound, Detail: err.Error()}
	case errors.Is(err, shared.ErrForbidden):
		return ProblemDetail{Title: "Forbidden", Status: http.StatusForbidden, Detail: err.Error()}
	case errors.As(err, &insufficient):
		return ProblemDetail{
			Title:     "Insufficient Stock",
			Status:    http.StatusConflict,
			Detail:    err.Error(),
			Available: &insufficient.Available,
			Requested: &insufficient.Requested,
		}
	case errors.As(err, &referential):
		return ProblemDetail{Title: "Referenced", Status: http.StatusConflict, Detail: err.Error(), Count: &referential.Count}
	case errors.Is(err, shared.ErrDuplicate):
		return ProblemDetail{Title: "Duplicate", Status: http.StatusConflict, Detail: err.Error()}
	case errors.Is(err, shared.ErrState):
		return ProblemDetail{Title: "Invalid State", Status: http.StatusConflict, Detail: err.Error()}
	default:
		return ProblemDetail{Title: "Internal Error", Status: http.StatusInternalServerError, Detail: shared.UserSafeMessage(err)}
	}
}
