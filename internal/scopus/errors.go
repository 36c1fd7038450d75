package scopus

import (
	"errors"
	"fmt"
)

// Common errors returned by the Scopus client.
var (
	// ErrNotFound indicates an empty result set or an error payload.
	ErrNotFound = errors.New("not found in Scopus")

	// ErrAuthError indicates the API key lacks permission for the resource.
	ErrAuthError = errors.New("Scopus authorization error")

	// ErrRateLimited indicates the service quota has been exceeded.
	ErrRateLimited = errors.New("Scopus quota exceeded")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with Scopus")

	// ErrInvalidResponse indicates an unexpected API response.
	ErrInvalidResponse = errors.New("invalid response from Scopus")
)

// APIError represents a non-success HTTP response from the Scopus API.
type APIError struct {
	StatusCode int
	Code       string // statusCode from the service-error payload, if any
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("Scopus API error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("Scopus API error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound returns true if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404 || apiErr.Code == "RESOURCE_NOT_FOUND"
	}
	return false
}

// IsAuthError returns true if the error indicates an authorization problem.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrAuthError) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 401 || apiErr.StatusCode == 403 || apiErr.Code == "AUTHORIZATION_ERROR"
	}
	return false
}

// IsUnavailable reports whether err means the remote could not supply the
// data (not found or not permitted), as opposed to a transport failure.
func IsUnavailable(err error) bool {
	return IsNotFound(err) || IsAuthError(err)
}
