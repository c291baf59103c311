package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeBadRequest:   http.StatusBadRequest,
		CodeValidation:   http.StatusBadRequest,
		CodeInvalidInput: http.StatusBadRequest,
		CodeUnauthorized: http.StatusUnauthorized,
		CodeForbidden:    http.StatusForbidden,
		CodeNotFound:     http.StatusNotFound,
		CodeConflict:     http.StatusConflict,
		CodeTimeout:      http.StatusGatewayTimeout,
		CodeUnavailable:  http.StatusServiceUnavailable,
		CodeInternal:     http.StatusInternalServerError,
		Code("unknown"):  http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), string(code))
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("processing: %w", Wrap(cause, CodeInternal, "remote call failed"))

	assert.ErrorIs(t, err, cause)
	assert.True(t, HasCode(err, CodeInternal))
	assert.False(t, HasCode(err, CodeUnauthorized))

	de, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "remote call failed", de.Message)
	assert.Contains(t, de.Error(), "connection refused")
}

func TestAsPlainError(t *testing.T) {
	_, ok := As(errors.New("plain"))
	assert.False(t, ok)
	assert.Equal(t, "bad_request: missing", New(CodeBadRequest, "missing").Error())
}
