package backend

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeErrorPlainShapes(t *testing.T) {
	e := normalizeError(400, []byte(`{"error": "Credenziali non valide"}`))
	assert.Equal(t, KindServer, e.Kind)
	assert.Equal(t, "Credenziali non valide", e.Message)

	e = normalizeError(404, []byte(`{"detail": "Not found."}`))
	assert.Equal(t, "Not found.", e.Message)

	e = normalizeError(401, []byte(`{"error": "Token non valido"}`))
	assert.Equal(t, KindUnauthorized, e.Kind)
}

func TestNormalizeErrorFieldMap(t *testing.T) {
	body := []byte(`{"password": ["Troppo corta", "Troppo comune"], "email": ["Già registrata"]}`)
	e := normalizeError(400, body)

	assert.Equal(t, KindValidation, e.Kind)
	assert.Equal(t, []string{"Già registrata"}, e.Fields["email"])
	// Keys are joined in sorted order, email before password.
	assert.Equal(t, "Già registrata, Troppo corta, Troppo comune", e.Message)
	assert.Equal(t, e.Message, e.JoinedFieldErrors())
}

func TestNormalizeErrorHidesInternals(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"python traceback", `Traceback (most recent call last): ...`},
		{"file reference", `{"error": "\"File /app/views.py broke"}`},
		{"line reference", `error at line 42 of something`},
		{"oversized payload", strings.Repeat("x", 501)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := normalizeError(500, []byte(tt.body))
			assert.Equal(t, MsgGenericError, e.Message)
			assert.Empty(t, e.Fields)
		})
	}
}

func TestNormalizeErrorUnparseableBody(t *testing.T) {
	e := normalizeError(502, []byte(`<html>Bad Gateway</html>`))
	assert.Equal(t, MsgGenericError, e.Message)
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Boom", UserMessage(&Error{Message: "Boom"}))
	assert.Equal(t, "Sessione scaduta. Accedi di nuovo.", UserMessage(ErrSessionExpired))
	assert.Equal(t, MsgGenericError, UserMessage(assert.AnError))
}
