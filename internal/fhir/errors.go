package fhir

import "fmt"

// AuthExchangeError indicates the authorization-code grant failed
type AuthExchangeError struct {
	Status int
	Body   string
	Err    error
}

func (e *AuthExchangeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authorization code exchange failed: %v", e.Err)
	}
	return fmt.Sprintf("authorization code exchange failed with status %d: %s", e.Status, e.Body)
}

func (e *AuthExchangeError) Unwrap() error { return e.Err }

// TokenRefreshError indicates the refresh-token grant failed. Callers must
// not retry indefinitely; the connection needs operator attention.
type TokenRefreshError struct {
	Status int
	Body   string
	Err    error
}

func (e *TokenRefreshError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token refresh failed: %v", e.Err)
	}
	return fmt.Sprintf("token refresh failed with status %d: %s", e.Status, e.Body)
}

func (e *TokenRefreshError) Unwrap() error { return e.Err }

// RemoteRequestError indicates a non-2xx response from the FHIR server.
// Requests that produced any HTTP response are never retried: FHIR create
// endpoints carry no idempotency key, so a retried create can duplicate the
// resource on the remote side.
type RemoteRequestError struct {
	Status int
	Body   string
}

func (e *RemoteRequestError) Error() string {
	return fmt.Sprintf("FHIR server returned status %d: %s", e.Status, e.Body)
}
