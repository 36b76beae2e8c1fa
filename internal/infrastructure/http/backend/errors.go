package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// User-facing fallback messages. The UI is Italian; technical detail never
// reaches it.
const (
	MsgGenericError  = "Si è verificato un errore. Riprova più tardi."
	MsgNetworkError  = "Impossibile raggiungere il server. Controlla la connessione."
	MsgLoginFailed   = "Accesso fallito. Riprova."
	MsgRegisterError = "Registrazione fallita. Riprova."
)

// Error payloads that look like server internals are replaced wholesale.
const maxErrorPayloadSize = 500

// ErrSessionExpired is returned when a 401 could not be recovered by a
// token refresh. Callers treat it as a redirect-to-login signal.
var ErrSessionExpired = errors.New("backend: session expired")

// Kind tags the error variants produced at the HTTP boundary.
type Kind int

const (
	// KindNetwork means the server was unreachable.
	KindNetwork Kind = iota
	// KindValidation means the server rejected the request with
	// field-level errors.
	KindValidation
	// KindServer means the server returned an error payload.
	KindServer
	// KindUnauthorized means the request was rejected with 401 and could
	// not be replayed.
	KindUnauthorized
)

// Error is the normalized form of every failure crossing the HTTP
// boundary. It is constructed in exactly one place (normalizeError) so
// callers never duck-type raw payloads.
type Error struct {
	Kind    Kind
	Status  int
	Message string              // user-facing, already sanitized
	Fields  map[string][]string // set for KindValidation
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("backend: %s (status %d)", e.Message, e.Status)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// JoinedFieldErrors flattens validation errors into a single display
// string, matching how the registration form surfaces them.
func (e *Error) JoinedFieldErrors() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		parts = append(parts, e.Fields[k]...)
	}
	return strings.Join(parts, ", ")
}

// networkError wraps a transport-level failure.
func networkError(cause error) *Error {
	return &Error{Kind: KindNetwork, Message: MsgNetworkError, cause: cause}
}

// normalizeError converts a non-2xx response body into a tagged Error.
// Payloads that look like a stack trace or exceed the size threshold are
// replaced with a generic message so internals never leak to the UI.
func normalizeError(status int, body []byte) *Error {
	kind := KindServer
	if status == 401 {
		kind = KindUnauthorized
	}

	if looksLikeInternals(body) {
		return &Error{Kind: kind, Status: status, Message: MsgGenericError}
	}

	// {"error": "..."} is the backend's plain error shape.
	var plain struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &plain); err == nil {
		if plain.Error != "" {
			return &Error{Kind: kind, Status: status, Message: plain.Error}
		}
		if plain.Detail != "" {
			return &Error{Kind: kind, Status: status, Message: plain.Detail}
		}
	}

	// Field-error maps come back as {"field": ["msg", ...], ...}.
	var fields map[string][]string
	if err := json.Unmarshal(body, &fields); err == nil && len(fields) > 0 {
		e := &Error{
			Kind:   KindValidation,
			Status: status,
			Fields: fields,
		}
		e.Message = e.JoinedFieldErrors()
		if e.Message == "" {
			e.Message = MsgGenericError
		}
		return e
	}

	return &Error{Kind: kind, Status: status, Message: MsgGenericError}
}

// looksLikeInternals reports whether an error payload should never be
// shown: oversized bodies or anything resembling a traceback.
func looksLikeInternals(body []byte) bool {
	if len(body) > maxErrorPayloadSize {
		return true
	}
	s := string(body)
	return strings.Contains(s, "Traceback") ||
		strings.Contains(s, `"File`) ||
		strings.Contains(s, "line ")
}

// AsError extracts a normalized *Error from err, if present.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// UserMessage returns the user-facing message for any error coming out of
// the client, falling back to the generic message.
func UserMessage(err error) string {
	if e, ok := AsError(err); ok {
		return e.Message
	}
	if errors.Is(err, ErrSessionExpired) {
		return "Sessione scaduta. Accedi di nuovo."
	}
	return MsgGenericError
}
