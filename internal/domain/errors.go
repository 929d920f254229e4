package domain

import "errors"

var (
	ErrModuleNotFound  = errors.New("module not found")
	ErrPhaseNotFound   = errors.New("phase not found")
	ErrGateNotFound    = errors.New("validation gate not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrBuildNotFound   = errors.New("build not found")
	ErrNotFound        = errors.New("not found")

	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidStatusFilter = errors.New("invalid status filter")
	ErrInvalidPagination   = errors.New("invalid pagination parameters")
	ErrInvalidStatus       = errors.New("invalid status value")
	ErrUnknownFields       = errors.New("unknown fields in update")
	ErrEmptyUpdate         = errors.New("empty update")

	ErrConfirmationRequired = errors.New("confirmation required")
	ErrDependenciesNotMet   = errors.New("phase dependencies not met")
	ErrModulesNotReady      = errors.New("modules not ready")

	ErrConflict        = errors.New("operation already in flight")
	ErrPhaseInProgress = errors.New("another recovery operation is in progress")
	ErrBuildInProgress = errors.New("module build already in progress")

	ErrValidationTimeout = errors.New("validation criterion timed out")
	ErrValidationFailed  = errors.New("validation gate failed")
)
