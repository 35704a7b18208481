// Package rrerror defines the error taxonomy shared by the resp3 and conn
// packages: a single *Error type carrying a Kind/Code pair plus an immutable
// tag chain, in the shape of the teacher's rediserror/redis error packages.
package rrerror

import (
	"fmt"
	"strings"
)

// ErrorKind groups error Codes by the stage of the pipeline that raised them.
type ErrorKind uint32

const (
	// KindOpts - bad Opts passed to conn.New, or an operation the Opts disable.
	KindOpts ErrorKind = iota + 1
	// KindResolve - DNS resolution failed or timed out.
	KindResolve
	// KindConnect - TCP connect failed or timed out.
	KindConnect
	// KindIO - read/write/deadline error on an established socket.
	KindIO
	// KindProtocol - the byte stream is not valid RESP3.
	KindProtocol
	// KindRequest - a request was malformed or could not be queued.
	KindRequest
	// KindAdapter - an adapter rejected a node; does not abort the run.
	KindAdapter
	// KindConnection - operation attempted while not connected / cancelled.
	KindConnection
)

var kindName = map[ErrorKind]string{
	KindOpts:       "KindOpts",
	KindResolve:    "KindResolve",
	KindConnect:    "KindConnect",
	KindIO:         "KindIO",
	KindProtocol:   "KindProtocol",
	KindRequest:    "KindRequest",
	KindAdapter:    "KindAdapter",
	KindConnection: "KindConnection",
}

func (k ErrorKind) String() string {
	if s, ok := kindName[k]; ok {
		return s
	}
	return fmt.Sprintf("KindUnknown%d", uint32(k))
}

// ErrorCode enumerates every named error from spec.md §7.
type ErrorCode uint32

const (
	// ErrContextIsNil - nil context.Context passed to conn.New.
	ErrContextIsNil ErrorCode = iota + 1
	// ErrNoAddressProvided - empty host/addr in Opts.
	ErrNoAddressProvided
	// ErrResolveTimeout - DNS resolution exceeded ResolveTimeout.
	ErrResolveTimeout
	// ErrConnectTimeout - TCP connect exceeded ConnectTimeout.
	ErrConnectTimeout
	// ErrIdleTimeout - no bytes observed for 2*ping_interval.
	ErrIdleTimeout
	// ErrNotConnected - exec with cancel_if_not_connected submitted while not running.
	ErrNotConnected
	// ErrOperationCanceled - cancel(exec)/cancel(run)/shutdown purge.
	ErrOperationCanceled
	// ErrInvalidResponseType - lead byte does not map to a known RESP3 type.
	ErrInvalidResponseType
	// ErrNotANumber - integer/double token failed to parse.
	ErrNotANumber
	// ErrExpectedCRLF - a line was not terminated by \r\n.
	ErrExpectedCRLF
	// ErrInvalidLeadByte - first byte of a frame is not one of the 16 RESP3 lead bytes.
	ErrInvalidLeadByte
	// ErrUnexpectedEOF - buffer exhausted mid-frame; soft, ask for more bytes.
	ErrUnexpectedEOF
	// ErrIncompatibleSize - adapter rejects an element count mismatch.
	ErrIncompatibleSize
	// ErrIOError - transport read/write error.
	ErrIOError
	// ErrUnsolicitedResponse - a non-push reply arrived with no owning record.
	ErrUnsolicitedResponse
	// ErrAuth - AUTH/HELLO credentials rejected.
	ErrAuth
	// ErrPing - PING response did not match "PONG".
	ErrPing
	// ErrLoading - Redis replied -LOADING while warming up.
	ErrLoading
	// ErrHeaderlineTooLarge - an incomplete frame's buffered bytes reached Opts.MaxReadSize.
	ErrHeaderlineTooLarge
	// ErrHelloFailed - the server rejected HELLO 3 for a reason other than auth.
	ErrHelloFailed
)

var codeName = map[ErrorCode]string{
	ErrContextIsNil:         "ErrContextIsNil",
	ErrNoAddressProvided:    "ErrNoAddressProvided",
	ErrResolveTimeout:       "ErrResolveTimeout",
	ErrConnectTimeout:       "ErrConnectTimeout",
	ErrIdleTimeout:          "ErrIdleTimeout",
	ErrNotConnected:         "ErrNotConnected",
	ErrOperationCanceled:    "ErrOperationCanceled",
	ErrInvalidResponseType:  "ErrInvalidResponseType",
	ErrNotANumber:           "ErrNotANumber",
	ErrExpectedCRLF:         "ErrExpectedCRLF",
	ErrInvalidLeadByte:      "ErrInvalidLeadByte",
	ErrUnexpectedEOF:        "ErrUnexpectedEOF",
	ErrIncompatibleSize:     "ErrIncompatibleSize",
	ErrIOError:              "ErrIOError",
	ErrUnsolicitedResponse:  "ErrUnsolicitedResponse",
	ErrAuth:                 "ErrAuth",
	ErrPing:                 "ErrPing",
	ErrLoading:              "ErrLoading",
	ErrHeaderlineTooLarge:   "ErrHeaderlineTooLarge",
	ErrHelloFailed:          "ErrHelloFailed",
}

func (c ErrorCode) String() string {
	if s, ok := codeName[c]; ok {
		return s
	}
	return fmt.Sprintf("ErrUnknown%d", uint32(c))
}

var defMessage = map[ErrorCode]string{
	ErrContextIsNil:        "context is not set",
	ErrNoAddressProvided:   "no address provided",
	ErrResolveTimeout:      "resolve timed out",
	ErrConnectTimeout:      "connect timed out",
	ErrIdleTimeout:         "no data received within 2x ping interval",
	ErrNotConnected:        "connection is not established",
	ErrOperationCanceled:   "operation was canceled",
	ErrInvalidResponseType: "lead byte does not map to a known RESP3 type",
	ErrNotANumber:          "token is not a valid number",
	ErrExpectedCRLF:        "expected final CRLF",
	ErrInvalidLeadByte:     "unknown RESP3 lead byte",
	ErrUnexpectedEOF:       "need more bytes",
	ErrIncompatibleSize:    "adapter rejected element count",
	ErrIOError:             "io error",
	ErrUnsolicitedResponse: "response with no owning request",
	ErrAuth:                "authentication failed",
	ErrPing:                "ping response mismatch",
	ErrLoading:             "redis is loading the dataset",
	ErrHeaderlineTooLarge:  "header line too large",
	ErrHelloFailed:         "HELLO 3 rejected by server",
}

// Error is a single immutable value: Kind/Code plus an optional causal chain
// of name/value tags, attached with With without mutating the receiver so
// the same template error can be shared across goroutines.
type Error struct {
	Kind ErrorKind
	Code ErrorCode
	kv   *kv
}

type kv struct {
	name  string
	value interface{}
	next  *kv
}

// New builds a bare Error with no tags or message.
func New(kind ErrorKind, code ErrorCode) *Error {
	return &Error{Kind: kind, Code: code}
}

// NewMsg builds an Error carrying an explicit message.
func NewMsg(kind ErrorKind, code ErrorCode, msg string) *Error {
	return Error{Kind: kind, Code: code}.With("message", msg)
}

// NewWrap builds an Error wrapping a causing error (e.g. a net.Error).
func NewWrap(kind ErrorKind, code ErrorCode, cause error) *Error {
	if cause == nil {
		return New(kind, code)
	}
	return Error{Kind: kind, Code: code}.With("cause", cause)
}

// With returns a copy of e with an additional name/value tag; e itself is
// untouched, so a shared template Error can be tagged concurrently.
func (e Error) With(name string, value interface{}) *Error {
	e.kv = &kv{name: name, value: value, next: e.kv}
	return &e
}

// Get returns the most recently attached value for name, or nil.
func (e *Error) Get(name string) interface{} {
	for k := e.kv; k != nil; k = k.next {
		if k.name == name {
			return k.value
		}
	}
	return nil
}

// Cause returns the wrapped error, if any.
func (e *Error) Cause() error {
	if v := e.Get("cause"); v != nil {
		if err, ok := v.(error); ok {
			return err
		}
	}
	return nil
}

// HardError reports whether e should abort the run. Only an adapter
// rejection (KindAdapter) is soft: it fails the originating exec without
// poisoning the connection.
func (e *Error) HardError() bool {
	return e != nil && e.Kind != KindAdapter
}

func (e Error) Error() string {
	msg, ok := e.Get("message").(string)
	if !ok {
		if cause := e.Cause(); cause != nil {
			msg = cause.Error()
		}
	}
	if msg == "" {
		msg = defMessage[e.Code]
	}
	if msg == "" {
		msg = "redis error"
	}
	rest := e.restAsString()
	if rest != "" {
		return fmt.Sprintf("%s (%s/%s %s)", msg, e.Kind, e.Code, rest)
	}
	return fmt.Sprintf("%s (%s/%s)", msg, e.Kind, e.Code)
}

func (e Error) restAsString() string {
	var parts []string
	for k := e.kv; k != nil; k = k.next {
		if k.name == "message" || k.name == "cause" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %v", k.name, k.value))
	}
	if len(parts) == 0 {
		return ""
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Is reports whether err is an *Error with the given code, matching the
// errors.Is contract loosely (by code, not by identity).
func Is(err error, code ErrorCode) bool {
	e, ok := err.(*Error)
	return ok && e != nil && e.Code == code
}

// Code extracts the ErrorCode of err, or 0 if err is not an *Error.
func Code(err error) ErrorCode {
	if e, ok := err.(*Error); ok && e != nil {
		return e.Code
	}
	return 0
}
