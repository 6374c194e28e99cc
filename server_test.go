package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{utils.NewNotFound("material", 1), http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", utils.ErrorRecordNotFound), http.StatusNotFound},
		{&utils.InsufficientStockError{Pool: "material #1"}, http.StatusConflict},
		{utils.NewInvalidInput("quantity", "must be at least 1"), http.StatusBadRequest},
		{utils.NewConsistencyViolation("variant %d is not of material %d", 2, 1), http.StatusUnprocessableEntity},
		{utils.ErrLockBusy, http.StatusLocked},
		{validator.ValidationErrors{}, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.status {
			t.Fatalf("statusFor(%v) expected %d, got %d", tc.err, tc.status, got)
		}
	}
}

func TestRespondErrorReportsShortfall(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/production/cut", nil)

	respondError(c, &utils.InsufficientStockError{
		Pool:      "material #1 variant #4",
		Requested: decimal.NewFromInt(12),
		Available: decimal.NewFromInt(5),
	})

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["shortfall"] != "7" || body["pool"] != "material #1 variant #4" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestRespondErrorHidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/sales/1", nil)

	respondError(c, errors.New("dial tcp 10.0.0.5:3306: connection refused"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if w.Body.String() != `{"error":"internal error"}` {
		t.Fatalf("internal error detail leaked: %s", w.Body.String())
	}
}

func TestRouterWithoutDatabase(t *testing.T) {
	if config.GetDB() != nil {
		t.Skip("database already connected")
	}
	gin.SetMode(gin.TestMode)
	r := newRouter(config.GetLogger())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("healthz: expected 204, got %d", w.Code)
	}
	if w.Header().Get("x-correlation-id") == "" {
		t.Fatalf("expected a correlation id header")
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/reports/low-stock", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before the database is ready, got %d", w.Code)
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" https://a.example , ,https://b.example")
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %#v", got)
	}
}
