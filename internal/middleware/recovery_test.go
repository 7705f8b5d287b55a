package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/portalo/portalo/internal/handler/dto"
)

func TestRecoverer(t *testing.T) {
	handler := Recoverer(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/overview", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if code := errorCode(t, rec); code != dto.CodeInternal {
		t.Errorf("code = %q, want %q", code, dto.CodeInternal)
	}
}
