package capture

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestHandler_WritesCodeFromCallback(t *testing.T) {
	out := filepath.Join(t.TempDir(), "code.txt")
	var got []string
	h := NewHandler(out, func(code string) { got = append(got, code) })

	req := httptest.NewRequest(http.MethodGet, "/callback?code=AQBx-42", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain" {
		t.Fatalf("Content-Type = %q, want text/plain", ct)
	}
	if body := rec.Body.String(); body != reply {
		t.Fatalf("body = %q, want %q", body, reply)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "AQBx-42" {
		t.Fatalf("code file = %q, want AQBx-42", data)
	}
	if len(got) != 1 || got[0] != "AQBx-42" {
		t.Fatalf("onCode calls = %q, want [AQBx-42]", got)
	}
}

func TestHandler_IgnoresOtherRequests(t *testing.T) {
	out := filepath.Join(t.TempDir(), "code.txt")
	calls := 0
	h := NewHandler(out, func(string) { calls++ })

	requests := []*http.Request{
		httptest.NewRequest(http.MethodGet, "/", nil),
		httptest.NewRequest(http.MethodGet, "/favicon.ico", nil),
		httptest.NewRequest(http.MethodPost, "/callback?code=nope", nil),
	}
	for _, req := range requests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || rec.Body.String() != reply {
			t.Fatalf("%s %s = %d %q, want 200 %q", req.Method, req.RequestURI, rec.Code, rec.Body.String(), reply)
		}
	}

	if calls != 0 {
		t.Fatalf("onCode called %d times, want 0", calls)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("code file exists after non-callback requests")
	}
}

func TestHandler_CallbackWithoutValue(t *testing.T) {
	out := filepath.Join(t.TempDir(), "code.txt")
	h := NewHandler(out, nil)

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/callback?code")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != reply {
		t.Fatalf("body = %q, want %q", body, reply)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("code file = %q, want empty", data)
	}
}
