package router

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	apperrors "authmedia/internal/errors"
	"authmedia/internal/logging"
)

func TestStatusCode(t *testing.T) {
	assert.Equal(t, "NOT_FOUND", statusCode(http.StatusNotFound))
	assert.Equal(t, "METHOD_NOT_ALLOWED", statusCode(http.StatusMethodNotAllowed))
	assert.Equal(t, "REQUEST_ENTITY_TOO_LARGE", statusCode(http.StatusRequestEntityTooLarge))
	assert.Equal(t, "HTTP_ERROR", statusCode(599))
}

func TestIPExtractor(t *testing.T) {
	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "127.0.0.1:41234"
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		req.Header.Set("X-Real-IP", "198.51.100.7")
		return req
	}

	assert.Equal(t, "127.0.0.1", ipExtractor(false)(newReq()))
	assert.Equal(t, "203.0.113.9", ipExtractor(true)(newReq()))
}

func TestHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		production bool
		status     int
		body       string
	}{
		{"app error", apperrors.ErrNoAvatar, true, http.StatusNotFound, `{"success":false,"error":"no avatar to delete","code":"NO_AVATAR"}`},
		{"echo error", echo.ErrMethodNotAllowed, true, http.StatusMethodNotAllowed, `{"success":false,"error":"Method Not Allowed","code":"METHOD_NOT_ALLOWED"}`},
		{"foreign error hidden", errors.New("db locked"), true, http.StatusInternalServerError, `{"success":false,"error":"internal server error","code":"INTERNAL_ERROR"}`},
		{"foreign error shown", errors.New("db locked"), false, http.StatusInternalServerError, `{"success":false,"error":"db locked","code":"INTERNAL_ERROR"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/x", nil), rec)

			NewHTTPErrorHandler(tt.production, logging.Nop())(tt.err, c)

			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
}

func TestHTTPErrorHandler_SkipsCommittedResponse(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/x", nil), rec)
	_ = c.String(http.StatusOK, "done")

	NewHTTPErrorHandler(true, logging.Nop())(errors.New("late"), c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "done", rec.Body.String())
}
