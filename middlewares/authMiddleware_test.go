package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/gin-gonic/gin"
)

func newGuardedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware())
	api := r.Group("/api", RequireUser())
	api.GET("/read", func(c *gin.Context) {
		name, _ := utils.GetUserNameFromContext(c.Request.Context())
		c.String(http.StatusOK, name)
	})
	api.POST("/write", RequireStaff(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func doRequest(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoleGuards(t *testing.T) {
	r := newGuardedRouter()

	staffToken, err := utils.JwtGenerate(1, "Dilshod", true)
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	workerToken, err := utils.JwtGenerate(2, "Aziz", false)
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	cases := []struct {
		method string
		path   string
		token  string
		status int
	}{
		{http.MethodGet, "/api/read", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/read", "not-a-jwt", http.StatusUnauthorized},
		{http.MethodGet, "/api/read", workerToken, http.StatusOK},
		{http.MethodPost, "/api/write", workerToken, http.StatusForbidden},
		{http.MethodPost, "/api/write", staffToken, http.StatusNoContent},
	}
	for _, tc := range cases {
		w := doRequest(r, tc.method, tc.path, tc.token)
		if w.Code != tc.status {
			t.Fatalf("%s %s: expected %d, got %d (%s)", tc.method, tc.path, tc.status, w.Code, w.Body.String())
		}
	}

	if w := doRequest(r, http.MethodGet, "/api/read", workerToken); w.Body.String() != "Aziz" {
		t.Fatalf("expected user name from token, got %q", w.Body.String())
	}
}

func TestMalformedAuthorizationHeader(t *testing.T) {
	r := newGuardedRouter()
	req := httptest.NewRequest(http.MethodGet, "/api/read", nil)
	req.Header.Set("Authorization", "Basic abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
