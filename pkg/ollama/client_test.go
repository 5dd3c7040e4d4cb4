package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model":   req["model"],
			"message": map[string]any{"role": "assistant", "content": answer},
			"done":    true,
		})
	}))
}

func TestAnalyzeImage(t *testing.T) {
	srv := newTestServer(t, `{"primary":{"label":"dog","confidence":0.8,"box":{"x":0.1,"y":0.2,"w":0.5,"h":0.6},"cx":0.35,"cy":0.5},"description":"a dog","tags":["dog"]}`)
	defer srv.Close()

	c, err := NewClient(srv.URL+"/api/chat", nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	img := base64.StdEncoding.EncodeToString([]byte("jpeg bytes"))
	result, err := c.AnalyzeImage(context.Background(), "llava", "locate", img)
	if err != nil {
		t.Fatalf("AnalyzeImage failed: %v", err)
	}
	if result.Primary.Label != "dog" || result.Primary.Box.W != 0.5 {
		t.Errorf("Unexpected result %+v", result.Primary)
	}
}

func TestAnalyzeImageNonJSON(t *testing.T) {
	srv := newTestServer(t, "There is a dog.")
	defer srv.Close()

	c, _ := NewClient(srv.URL, nil)
	result, err := c.AnalyzeImage(context.Background(), "llava", "locate", base64.StdEncoding.EncodeToString([]byte("x")))
	if err != nil {
		t.Fatalf("AnalyzeImage failed: %v", err)
	}
	if result.Primary.Label != "unclear image" {
		t.Errorf("Expected fallback label, got %q", result.Primary.Label)
	}
}

func TestSimpleQuery(t *testing.T) {
	srv := newTestServer(t, "A dog on grass.")
	defer srv.Close()

	c, _ := NewClient(srv.URL, nil)
	answer, err := c.SimpleQuery(context.Background(), "llava", "what?", base64.StdEncoding.EncodeToString([]byte("x")))
	if err != nil {
		t.Fatalf("SimpleQuery failed: %v", err)
	}
	if answer != "A dog on grass." {
		t.Errorf("Unexpected answer %q", answer)
	}
}

func TestInvalidInput(t *testing.T) {
	if _, err := NewClient("not a url", nil); err == nil {
		t.Error("Expected error for URL without scheme")
	}

	c, _ := NewClient("http://127.0.0.1:1", nil)
	if _, err := c.SimpleQuery(context.Background(), "m", "p", "%%%"); err == nil {
		t.Error("Expected error for invalid base64")
	}
}

func TestModelOptions(t *testing.T) {
	if opts := modelOptions("openbmb/MiniCPM-V4.5"); opts["num_ctx"] != 4096 {
		t.Errorf("Expected tuned context for MiniCPM-V4.5, got %v", opts)
	}
	if opts := modelOptions("minicpm-v4"); opts["temperature"] != 0.7 {
		t.Errorf("Expected tuned temperature, got %v", opts)
	}
	if opts := modelOptions("llava"); len(opts) != 0 {
		t.Errorf("Expected no options for llava, got %v", opts)
	}
}

func TestDefaultURL(t *testing.T) {
	if _, err := NewClient("", nil); err != nil {
		t.Errorf("empty URL should use %s, got %v", DefaultURL, err)
	}
}
