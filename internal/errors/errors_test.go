package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	plain := NotFoundError("stream not found")
	assert.Equal(t, "not_found: stream not found", plain.Error())

	caused := InternalError("extraction failed", fmt.Errorf("browser crashed"))
	assert.Equal(t, "internal: extraction failed: browser crashed", caused.Error())
	assert.EqualError(t, caused.Unwrap(), "browser crashed")
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{ValidationError("bad stream id"), http.StatusBadRequest},
		{NotFoundError("no such stream"), http.StatusNotFound},
		{InternalError("boom", nil), http.StatusInternalServerError},
		{ExternalError("lookup failed", nil), http.StatusBadGateway},
		{&Error{Type: "unknown"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.HTTPStatus())
	}
}

func TestWithContext(t *testing.T) {
	err := NotFoundError("no such stream").WithContext("stream_id", "abc123")
	assert.Equal(t, "abc123", err.Context["stream_id"])

	resp := err.ToResponse()
	assert.Equal(t, "no such stream", resp.Error)
	assert.Equal(t, TypeNotFound, resp.Type)
	assert.Equal(t, "abc123", resp.Context["stream_id"])
}

func TestAsStructuredError(t *testing.T) {
	structured := ValidationError("bad input")
	assert.Same(t, structured, AsStructuredError(structured))

	wrapped := AsStructuredError(fmt.Errorf("wrapped: %w", structured))
	assert.Same(t, structured, wrapped)

	plain := AsStructuredError(fmt.Errorf("plain failure"))
	require.NotNil(t, plain)
	assert.Equal(t, TypeInternal, plain.Type)

	assert.Nil(t, AsStructuredError(nil))
}
