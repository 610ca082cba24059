package api

import (
	"errors"
	"net/http"

	"github.com/FelixJx/fupan-game/internal/adapters/repository"
	"github.com/FelixJx/fupan-game/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// statusFor translates domain and storage errors into an HTTP status and a
// stable machine-readable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrReportNotReady):
		return http.StatusNotFound, "report_not_ready"
	case errors.Is(err, model.ErrInvalidStepOrder):
		return http.StatusConflict, "invalid_step_order"
	case errors.Is(err, model.ErrStepAlreadyCompleted):
		return http.StatusConflict, "step_already_completed"
	case errors.Is(err, model.ErrPredictionAlreadySubmitted):
		return http.StatusConflict, "prediction_already_submitted"
	case errors.Is(err, model.ErrStepsIncomplete):
		return http.StatusConflict, "steps_incomplete"
	case errors.Is(err, model.ErrSessionNotActive):
		return http.StatusConflict, "session_not_active"
	case errors.Is(err, model.ErrInsufficientContent):
		return http.StatusUnprocessableEntity, "insufficient_content"
	case errors.Is(err, model.ErrInvalidBundle):
		return http.StatusUnprocessableEntity, "invalid_bundle"
	case errors.Is(err, model.ErrGradingFailed):
		return http.StatusInternalServerError, "grading_failed"
	case errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest, "invalid_limit"
	case errors.Is(err, repository.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeDomainError maps err via statusFor and writes the JSON error body.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}
