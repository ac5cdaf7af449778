package model

import "errors"

var (
	// ErrValidation marks malformed caller input, surfaced as a 400.
	ErrValidation = errors.New("weather data required")
	// ErrUnauthorized marks a missing or invalid identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrLocationNotFound marks an unknown location query.
	ErrLocationNotFound = errors.New("location not found")
	// ErrProviderUnavailable marks an upstream weather provider failure.
	ErrProviderUnavailable = errors.New("weather service unavailable")
)
