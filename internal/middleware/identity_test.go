package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
)

func TestUserID(t *testing.T) {
    e := echo.New()
    c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
    assert.Equal(t, "guest", userID(c))

    c.Set(CtxUserID, uint64(42))
    assert.Equal(t, "42", userID(c))

    c.Set(CtxUserID, uint64(0))
    assert.Equal(t, "guest", userID(c))
}
