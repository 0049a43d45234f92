package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/local/cardforge/internal/config"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestCheckOpenAI(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Options{
		Provider:   config.ProviderConfig{Engine: config.ProviderOpenAI, OpenAIKey: "sk-test"},
		OpenAIBase: srv.URL,
	})
	if err := c.Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth header = %q", gotAuth)
	}
}

func TestCheckOpenAIRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(Options{
		Provider:   config.ProviderConfig{Engine: config.ProviderOpenAI, OpenAIKey: "sk-bad"},
		OpenAIBase: srv.URL,
	})
	err := c.Check(context.Background())
	if err == nil || !strings.Contains(err.Error(), "HTTP 401") {
		t.Fatalf("want 401 failure, got %v", err)
	}
}

func TestCheckLocalModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Options{
		Provider: config.ProviderConfig{Engine: config.ProviderTransformers, LocalModelURL: srv.URL},
	})
	if err := c.Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestCheckHeuristicAlwaysPasses(t *testing.T) {
	c := New(Options{Provider: config.ProviderConfig{Engine: config.ProviderNone}})
	if err := c.Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestSummaryRedis(t *testing.T) {
	c := New(Options{Redis: fakePinger{}})
	if st := c.checkRedis(context.Background()); !st.OK {
		t.Errorf("redis status = %+v", st)
	}

	c = New(Options{Redis: fakePinger{err: errors.New("connection refused")}})
	if st := c.checkRedis(context.Background()); st.OK || st.Message != "connection refused" {
		t.Errorf("redis status = %+v", st)
	}

	c = New(Options{})
	if st := c.checkRedis(context.Background()); st.OK {
		t.Errorf("nil pinger should not be ok: %+v", st)
	}
}
