package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"ordersync/internal/channel"
	"ordersync/internal/config"
	"ordersync/internal/pipeline"
)

func newTestServer(t *testing.T, apiKey string, syncFn SyncFunc) (*Server, *channel.Queue) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.APIKey = apiKey
	if syncFn == nil {
		syncFn = func(ctx context.Context) (*pipeline.Result, error) {
			return &pipeline.Result{RunID: "test"}, nil
		}
	}
	q := channel.NewQueue()
	return New(cfg, q, nil, syncFn, zap.NewNop()), q
}

func doRequest(t *testing.T, s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealthSkipsAuth(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, "secret", nil)
	if w := doRequest(t, s, http.MethodGet, "/health", "", ""); w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
}

func TestAuthRejectsBadToken(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, "secret", nil)
	if w := doRequest(t, s, http.MethodGet, "/status", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d", w.Code)
	}
	if w := doRequest(t, s, http.MethodGet, "/status", "wrong", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d", w.Code)
	}
	if w := doRequest(t, s, http.MethodGet, "/status", "secret", ""); w.Code != http.StatusOK {
		t.Fatalf("good token status = %d", w.Code)
	}
}

func TestTriggerRejectsConcurrentRun(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(1)
	s, _ := newTestServer(t, "", func(ctx context.Context) (*pipeline.Result, error) {
		started.Done()
		<-release
		return &pipeline.Result{RunID: "long"}, nil
	})

	if w := doRequest(t, s, http.MethodPost, "/trigger", "", ""); w.Code != http.StatusAccepted {
		t.Fatalf("first trigger status = %d", w.Code)
	}
	started.Wait()
	if w := doRequest(t, s, http.MethodPost, "/trigger", "", ""); w.Code != http.StatusConflict {
		t.Fatalf("second trigger status = %d", w.Code)
	}
	close(release)
}

func TestPromptRoundTrip(t *testing.T) {
	t.Parallel()
	s, q := newTestServer(t, "", nil)

	type promptResult struct {
		reply string
		ok    bool
	}
	done := make(chan promptResult, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		reply, ok, _ := q.Prompt(ctx, "候选：1. Картридж")
		done <- promptResult{reply, ok}
	}()

	// 轮询直到提问出现在待答列表
	var id string
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		w := doRequest(t, s, http.MethodGet, "/prompts", "", "")
		var resp struct {
			Prompts []channel.PendingPrompt `json:"prompts"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal prompts: %v", err)
		}
		if len(resp.Prompts) == 1 {
			id = resp.Prompts[0].ID
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if id == "" {
		t.Fatal("prompt never appeared in pending list")
	}

	if w := doRequest(t, s, http.MethodPost, "/prompts/"+id+"/reply", "", `{"reply":"1"}`); w.Code != http.StatusOK {
		t.Fatalf("reply status = %d: %s", w.Code, w.Body.String())
	}
	got := <-done
	if !got.ok || got.reply != "1" {
		t.Fatalf("prompt result = %+v", got)
	}

	// 已回答的提问再次回答返回 404
	if w := doRequest(t, s, http.MethodPost, "/prompts/"+id+"/reply", "", `{"reply":"2"}`); w.Code != http.StatusNotFound {
		t.Fatalf("second reply status = %d", w.Code)
	}
}
