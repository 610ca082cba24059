package model

import "errors"

// Sentinel kinds for client-caused validation failures. None of these mutate
// session state when returned.
var (
	ErrInvalidStepOrder           = errors.New("step does not match current step")
	ErrStepAlreadyCompleted       = errors.New("step already completed")
	ErrInsufficientContent        = errors.New("submission content too short")
	ErrSessionNotActive           = errors.New("session is not active")
	ErrInvalidBundle              = errors.New("invalid prediction bundle")
	ErrPredictionAlreadySubmitted = errors.New("prediction already submitted")
	ErrStepsIncomplete            = errors.New("all six steps must be completed first")
	ErrGradingFailed              = errors.New("grading failed after repeated attempts")
	ErrReportNotReady             = errors.New("score report not ready")
)
