// Package mailerr holds the error types shared by the mailbox session and the
// classification pipeline. Connection, folder and protocol errors stop a run;
// store and malformed-message errors only affect a single message.
package mailerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// ConnectionError reports a failure to reach or authenticate with the server.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// FolderError reports a folder that could not be selected or created.
type FolderError struct {
	Folder string
	Err    error
}

func (e *FolderError) Error() string {
	return fmt.Sprintf("folder %q: %v", e.Folder, e.Err)
}

func (e *FolderError) Unwrap() error { return e.Err }

// ProtocolError reports a failed search or expunge command.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// StoreError reports a failed flag or copy update for one message.
type StoreError struct {
	UID uint32
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s uid %d: %v", e.Op, e.UID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// MalformedMessageError marks a message whose headers cannot be classified.
type MalformedMessageError struct {
	UID    uint32
	Reason string
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("uid %d malformed: %s", e.UID, e.Reason)
}

// NewConnection wraps err as a ConnectionError.
func NewConnection(addr string, err error) error {
	return &ConnectionError{Addr: addr, Err: err}
}

// NewFolder wraps err as a FolderError.
func NewFolder(folder string, err error) error {
	return &FolderError{Folder: folder, Err: err}
}

// NewProtocol wraps err as a ProtocolError.
func NewProtocol(op string, err error) error {
	return &ProtocolError{Op: op, Err: err}
}

// NewStore wraps err as a StoreError.
func NewStore(uid uint32, op string, err error) error {
	return &StoreError{UID: uid, Op: op, Err: err}
}

// NewMalformed returns a MalformedMessageError.
func NewMalformed(uid uint32, reason string) error {
	return &MalformedMessageError{UID: uid, Reason: reason}
}

// IsFatal reports whether err must stop the current run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var connErr *ConnectionError
	var folderErr *FolderError
	var protoErr *ProtocolError
	return errors.As(err, &connErr) || errors.As(err, &folderErr) || errors.As(err, &protoErr)
}

// IsMalformed reports whether err marks a message to skip.
func IsMalformed(err error) bool {
	var malformed *MalformedMessageError
	return errors.As(err, &malformed)
}

// IsStore reports whether err is a per-message store failure.
func IsStore(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr)
}
