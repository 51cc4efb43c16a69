package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"signsense-server-go/src/core/providers/llm"
)

func TestChatQwen3DisablesThinking(t *testing.T) {
	var lastUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Messages []llm.Message `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		lastUser = body.Messages[len(body.Messages)-1].Content
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"<think></think>Hi"}}]}`))
	}))
	defer srv.Close()

	provider, err := NewProvider(&llm.Config{ModelName: "qwen3:8b", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if err := provider.Initialize(); err != nil {
		t.Fatal(err)
	}

	reply, err := provider.Chat(context.Background(), []llm.Message{{Role: "user", Content: "hello"}})
	if err != nil {
		t.Fatal(err)
	}
	if reply != "Hi" {
		t.Errorf("reply = %q, want %q", reply, "Hi")
	}
	if !strings.HasSuffix(lastUser, "/no_think") {
		t.Errorf("last user message = %q, want /no_think suffix", lastUser)
	}
}

func TestInitializeRequiresURL(t *testing.T) {
	provider, _ := NewProvider(&llm.Config{ModelName: "llama3"})
	if err := provider.Initialize(); err == nil {
		t.Fatal("Initialize without url should fail")
	}
}
