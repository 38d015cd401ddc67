package errors

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() *ErrorHandler {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewErrorHandler(logrus.NewEntry(logger))
}

func TestHandleError(t *testing.T) {
	handler := newTestHandler()

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedType   ErrorType
	}{
		{
			name:           "parse error",
			err:            NewParseError(errors.New("invalid syntax"), 4),
			expectedStatus: http.StatusBadRequest,
			expectedType:   ErrorTypeParse,
		},
		{
			name:           "standard error",
			err:            errors.New("something went wrong"),
			expectedStatus: http.StatusInternalServerError,
			expectedType:   ErrorTypeInternal,
		},
		{
			name:           "not found",
			err:            New(ErrorTypeNotFound, "endpoint not found"),
			expectedStatus: http.StatusNotFound,
			expectedType:   ErrorTypeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/status", nil)
			req.Header.Set("X-Request-ID", "test-123")
			rr := httptest.NewRecorder()

			handler.HandleError(rr, req, tt.err)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var response ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
			assert.Equal(t, tt.expectedType, response.Error.Type)
			assert.Equal(t, "test-123", response.TraceID)
		})
	}
}

func TestHandleNotFoundAndMethod(t *testing.T) {
	handler := newTestHandler()

	rr := httptest.NewRecorder()
	handler.HandleNotFound(rr, httptest.NewRequest("GET", "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	handler.HandleMethodNotAllowed(rr, httptest.NewRequest("POST", "/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestMiddlewareRecoversPanic(t *testing.T) {
	handler := newTestHandler()
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rr := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.Middleware(panicky).ServeHTTP(rr, httptest.NewRequest("GET", "/status", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	assert.Equal(t, ErrorTypeInternal, response.Error.Type)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrorTypeConfig))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(ErrorTypeSend))
	assert.Equal(t, http.StatusMethodNotAllowed, HTTPStatus(ErrorTypeMethodNotAllowed))
}
