package domain

import "errors"

// Configuration errors are fatal and raised before any simulation work
// starts; data errors degrade to fallback behavior and are logged instead.
var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidDiseaseState    = errors.New("invalid disease state")
	ErrInvalidTransitionTable = errors.New("invalid transition table")
	ErrInvalidProtocol        = errors.New("invalid protocol specification")
	ErrInvalidRunParameters   = errors.New("invalid run parameters")
	ErrUnsupportedEngineType  = errors.New("unsupported engine type")
	ErrInvalidConfig          = errors.New("invalid configuration")
)
