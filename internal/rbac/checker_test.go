package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecker(t *testing.T) {
	c := NewChecker(nil)

	assert.True(t, c.Has("learner", PermPractice))
	assert.False(t, c.Has("learner", PermAttemptViewAll))
	assert.True(t, c.Has("admin", PermAttemptViewAll))
	assert.False(t, c.Has("", PermPractice))
	assert.True(t, c.Any("learner", PermAttemptViewAll, PermAttemptViewOwn))

	scoped := NewChecker(Policy{"auditor": {"attempt:*"}})
	assert.True(t, scoped.Has("auditor", PermAttemptViewAll))
	assert.False(t, scoped.Has("auditor", PermPractice))
}

func TestRequire(t *testing.T) {
	c := NewChecker(nil)
	h := c.Require(PermAttemptViewAll)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for role, want := range map[string]int{"admin": http.StatusNoContent, "learner": http.StatusForbidden, "": http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithRole(context.Background(), role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "role %q", role)
	}
}
