package types

import (
	"errors"
	"net/http"
)

// ErrorKind classifies failures at service boundaries.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindNotFound    ErrorKind = "not_found"
	KindStorage     ErrorKind = "storage"
	KindUpstream    ErrorKind = "upstream"
	KindChain       ErrorKind = "chain"
	KindProof       ErrorKind = "proof"
	KindUnavailable ErrorKind = "unavailable"
	KindInternal    ErrorKind = "internal"
)

type kindInfo struct {
	status  int
	message string
}

// kindTable holds the HTTP status and the default caller-safe message per kind.
var kindTable = map[ErrorKind]kindInfo{
	KindValidation:  {http.StatusBadRequest, "Invalid request"},
	KindNotFound:    {http.StatusNotFound, "Resource not found"},
	KindStorage:     {http.StatusInternalServerError, "Storage error"},
	KindUpstream:    {http.StatusInternalServerError, "Upstream request failed"},
	KindChain:       {http.StatusBadGateway, "Transaction failed."},
	KindProof:       {http.StatusUnprocessableEntity, "Proof verification failed"},
	KindUnavailable: {http.StatusServiceUnavailable, "Service unavailable"},
	KindInternal:    {http.StatusInternalServerError, "Internal Server Error"},
}

// StorefrontError carries a kind, a message and the underlying cause.
// Message is what operators see in logs; callers get SafeMessage.
type StorefrontError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *StorefrontError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *StorefrontError) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, message string, err error) *StorefrontError {
	return &StorefrontError{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind of err, defaulting to KindInternal.
func KindOf(err error) ErrorKind {
	var se *StorefrontError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a StorefrontError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

func StatusOf(kind ErrorKind) int {
	if info, ok := kindTable[kind]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

func SafeMessage(kind ErrorKind) string {
	if info, ok := kindTable[kind]; ok {
		return info.message
	}
	return kindTable[KindInternal].message
}
