package httpx

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDataEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Data(rec, 200, []string{"a"})

	if rec.Code != 200 {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected content type: %q", got)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"data":["a"]}` {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, 404, "not found")

	if body := strings.TrimSpace(rec.Body.String()); body != `{"error":"not found"}` {
		t.Fatalf("unexpected body: %s", body)
	}
}
