package integration

import "errors"

var (
	ErrNotConfigured    = errors.New("integration: client not configured")
	ErrRequestFailed    = errors.New("integration: request failed")
	ErrInvalidResponse  = errors.New("integration: invalid response")
	ErrAuthFailed       = errors.New("integration: authentication failed")
	ErrRateLimited      = errors.New("integration: rate limited")
	ErrNotFound         = errors.New("integration: remote resource not found")
	ErrDocumentNotFound = errors.New("integration: document not found")
)
