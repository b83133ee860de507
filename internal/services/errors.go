package services

import (
	"fmt"

	"github.com/google/uuid"
)

// MissingCredentialsError indicates a connection without an OAuth client id
// was asked to enter the authorization flow
type MissingCredentialsError struct {
	ConnectionID uuid.UUID
}

func (e *MissingCredentialsError) Error() string {
	return fmt.Sprintf("connection %s has no OAuth client id configured", e.ConnectionID)
}

// StateMismatchError indicates the CSRF state returned on the OAuth callback
// does not match the state issued for the connection
type StateMismatchError struct {
	ConnectionID uuid.UUID
}

func (e *StateMismatchError) Error() string {
	return fmt.Sprintf("authorization state mismatch for connection %s", e.ConnectionID)
}

// ConnectionNotReadyError indicates a sync was requested against an inactive
// or unauthorized connection
type ConnectionNotReadyError struct {
	ConnectionID uuid.UUID
	Reason       string
}

func (e *ConnectionNotReadyError) Error() string {
	return fmt.Sprintf("connection %s is not ready: %s", e.ConnectionID, e.Reason)
}

// IncompleteRecordError indicates the clinical record lacks the content a
// requested sync type needs
type IncompleteRecordError struct {
	RecordID uuid.UUID
	Missing  string
}

func (e *IncompleteRecordError) Error() string {
	return fmt.Sprintf("clinical record %s is missing %s", e.RecordID, e.Missing)
}
