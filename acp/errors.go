package acp

import (
	"encoding/json"
	"errors"
	"fmt"
)

// JSON-RPC error codes used by the protocol. The standard codes come from the
// JSON-RPC 2.0 specification; the -32000 to -32099 range is reserved for
// protocol-specific errors.
const (
	// CodeParseError indicates invalid JSON was received by the peer.
	CodeParseError = -32700
	// CodeInvalidRequest indicates the JSON sent is not a valid request object.
	CodeInvalidRequest = -32600
	// CodeMethodNotFound indicates the method does not exist or is not available.
	CodeMethodNotFound = -32601
	// CodeInvalidParams indicates invalid method parameters.
	CodeInvalidParams = -32602
	// CodeInternalError is reserved for implementation-defined server errors.
	CodeInternalError = -32603
	// CodeRequestCancelled indicates the method execution was aborted, either
	// because the caller sent a $/cancel_request notification or because of
	// resource constraints or shutdown.
	//
	// This code is part of a draft extension to the protocol and may change.
	CodeRequestCancelled = -32800
	// CodeAuthRequired indicates authentication is required before the
	// operation can be performed.
	CodeAuthRequired = -32000
	// CodeResourceNotFound indicates a given resource, such as a file, was not
	// found.
	CodeResourceNotFound = -32002
)

// RequestError is a JSON-RPC error object. It is returned by protocol methods
// when the peer reports a failure, and agent or client implementations can
// return it from their handlers to control the error code sent over the wire.
type RequestError struct {
	// Code identifies the error type that occurred.
	Code int `json:"code"`
	// Message is a short description of the error, limited to a concise
	// single sentence.
	Message string `json:"message"`
	// Data optionally carries additional information about the error, such as
	// debugging details.
	Data any `json:"data,omitempty"`
}

// NewRequestError creates an error with the given code and message.
func NewRequestError(code int, message string) *RequestError {
	return &RequestError{Code: code, Message: message}
}

// WithData returns a copy of the error carrying additional data.
func (e *RequestError) WithData(data any) *RequestError {
	return &RequestError{Code: e.Code, Message: e.Message, Data: data}
}

func (e *RequestError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("%d", e.Code)
	}
	if e.Data != nil {
		if data, err := json.Marshal(e.Data); err == nil {
			return fmt.Sprintf("%s: %s", msg, data)
		}
	}
	return msg
}

// ErrParseError reports that invalid JSON was received.
func ErrParseError() *RequestError {
	return NewRequestError(CodeParseError, "Parse error")
}

// ErrInvalidRequest reports that the JSON sent is not a valid request object.
func ErrInvalidRequest() *RequestError {
	return NewRequestError(CodeInvalidRequest, "Invalid request")
}

// ErrMethodNotFound reports that the method does not exist or is not available.
func ErrMethodNotFound() *RequestError {
	return NewRequestError(CodeMethodNotFound, "Method not found")
}

// ErrInvalidParams reports invalid method parameters.
func ErrInvalidParams() *RequestError {
	return NewRequestError(CodeInvalidParams, "Invalid params")
}

// ErrInternalError reports an internal JSON-RPC error.
func ErrInternalError() *RequestError {
	return NewRequestError(CodeInternalError, "Internal error")
}

// ErrRequestCancelled reports that execution of the method was aborted, either
// due to a cancellation request from the caller or because of resource
// constraints or shutdown.
//
// This error is part of a draft extension to the protocol and may change.
func ErrRequestCancelled() *RequestError {
	return NewRequestError(CodeRequestCancelled, "Request cancelled")
}

// ErrAuthRequired reports that authentication is required before the operation
// can be performed.
func ErrAuthRequired() *RequestError {
	return NewRequestError(CodeAuthRequired, "Authentication required")
}

// ErrResourceNotFound reports that a given resource, such as a file, was not
// found. When uri is non-empty it is attached as error data.
func ErrResourceNotFound(uri string) *RequestError {
	err := NewRequestError(CodeResourceNotFound, "Resource not found")
	if uri != "" {
		return err.WithData(map[string]string{"uri": uri})
	}
	return err
}

// toRequestError converts an arbitrary handler error into a RequestError for
// transmission. A *RequestError anywhere in the chain passes through untouched;
// anything else becomes an internal error with the error text as data.
func toRequestError(err error) *RequestError {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr
	}
	return ErrInternalError().WithData(err.Error())
}
