package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrMissingCredential = errors.New("gemini api key is not configured")
	ErrImagesRequired    = errors.New("product and model images are required")
	ErrPipelineBusy      = errors.New("pipeline is busy")
	ErrStageConflict     = errors.New("action not allowed in current stage")
	ErrOperationInFlight = errors.New("operation already in flight for this scene")
	ErrGenerationFailed  = errors.New("generation failed")
)
