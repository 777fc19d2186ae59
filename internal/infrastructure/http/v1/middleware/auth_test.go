package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	appctx "stokku/internal/core/context"
)

func performWithUser(t *testing.T, user *appctx.UserContext) (int, bool) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reached := false
	router := gin.New()
	router.Use(ErrorHandler())
	router.POST("/approve", RequireRole("manager", "admin"), func(c *gin.Context) {
		reached = true
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/approve", nil)
	if user != nil {
		req = req.WithContext(appctx.WithUser(req.Context(), user))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w.Code, reached
}

func TestRequireRoleAllowsMatchingRole(t *testing.T) {
	code, reached := performWithUser(t, &appctx.UserContext{
		UserID: "u1",
		Roles:  []string{"cashier", "manager"},
	})
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, reached)
}

func TestRequireRoleRejectsMissingRole(t *testing.T) {
	code, reached := performWithUser(t, &appctx.UserContext{
		UserID: "u2",
		Roles:  []string{"cashier"},
	})
	assert.Equal(t, http.StatusForbidden, code)
	assert.False(t, reached)
}

func TestRequireRoleRejectsAnonymous(t *testing.T) {
	code, reached := performWithUser(t, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, reached)
}
