package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/annotatron-api/internal/models"
	appErrors "github.com/noah-isme/annotatron-api/pkg/errors"
)

func withUser(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			c.Set(ContextUserKey, user)
		}
		c.Next()
	}
}

func serve(t *testing.T, handlers ...gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.GET("/", handlers...)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	return recorder
}

func TestRequireUser(t *testing.T) {
	if rec := serve(t, withUser(nil), RequireUser()); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := serve(t, withUser(&models.User{Role: models.RoleAnnotator}), RequireUser()); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestRequireRoles(t *testing.T) {
	gate := RequireRoles(models.RoleAdministrator, models.RoleStaff)

	cases := []struct {
		user *models.User
		want int
	}{
		{nil, http.StatusUnauthorized},
		{&models.User{Role: models.RoleAnnotator}, http.StatusForbidden},
		{&models.User{Role: models.RoleReviewer}, http.StatusForbidden},
		{&models.User{Role: models.RoleStaff}, http.StatusNoContent},
		{&models.User{Role: models.RoleAdministrator}, http.StatusNoContent},
	}
	for _, tc := range cases {
		if rec := serve(t, withUser(tc.user), gate); rec.Code != tc.want {
			t.Fatalf("user %+v: expected %d, got %d", tc.user, tc.want, rec.Code)
		}
	}
}

func TestRequirePasswordCurrent(t *testing.T) {
	flagged := &models.User{Role: models.RoleAnnotator, PasswordResetNeeded: true}
	rec := serve(t, withUser(flagged), RequirePasswordCurrent())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if code := errorCode(t, rec.Body.Bytes()); code != appErrors.ErrPasswordResetRequired.Code {
		t.Fatalf("unexpected code %s", code)
	}

	if rec := serve(t, withUser(&models.User{Role: models.RoleAnnotator}), RequirePasswordCurrent()); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

type stubSetupChecker struct {
	required bool
	err      error
}

func (s stubSetupChecker) RequiresSetup(ctx context.Context) (bool, error) {
	return s.required, s.err
}

func TestSetupGate(t *testing.T) {
	rec := serve(t, SetupGate(stubSetupChecker{required: true}))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if code := errorCode(t, rec.Body.Bytes()); code != appErrors.ErrSetupRequired.Code {
		t.Fatalf("unexpected code %s", code)
	}

	if rec := serve(t, SetupGate(stubSetupChecker{})); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	if rec := serve(t, SetupGate(stubSetupChecker{err: errors.New("db down")})); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestDeadline(t *testing.T) {
	var deadline time.Time
	var ok bool
	rec := serve(t, Deadline(time.Second), func(c *gin.Context) {
		deadline, ok = c.Request.Context().Deadline()
		c.Next()
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !ok || time.Until(deadline) > time.Second {
		t.Fatalf("expected a deadline within one second, got %v %v", deadline, ok)
	}

	serve(t, Deadline(0), func(c *gin.Context) {
		_, ok = c.Request.Context().Deadline()
	})
	if ok {
		t.Fatalf("zero duration must not set a deadline")
	}
}

func TestResponseMeta(t *testing.T) {
	var meta map[string]interface{}
	serve(t, WithResponseMeta(), func(c *gin.Context) {
		SetMeta(c, "warnings", []string{"w"})
		meta = ExtractMeta(c)
	})
	if meta["warnings"] == nil {
		t.Fatalf("expected warnings in meta, got %v", meta)
	}
	if _, ok := meta["processingTimeMs"]; !ok {
		t.Fatalf("expected processing time in meta")
	}

	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if ExtractMeta(c) != nil {
		t.Fatalf("expected nil meta without middleware")
	}
}
