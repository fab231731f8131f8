package infra

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewHTTPServerAppliesConfig(t *testing.T) {
	cfg := &Config{
		Port:             "9090",
		HTTPReadTimeout:  time.Second,
		HTTPWriteTimeout: 2 * time.Second,
		HTTPIdleTimeout:  3 * time.Second,
	}
	s := NewHTTPServer(cfg, http.NotFoundHandler(), zerolog.Nop())
	if s.Addr() != ":9090" {
		t.Fatalf("Addr = %q", s.Addr())
	}
	if s.server.ReadTimeout != time.Second || s.server.WriteTimeout != 2*time.Second || s.server.IdleTimeout != 3*time.Second {
		t.Fatalf("timeouts not applied: %+v", s.server)
	}
	if s.server.ErrorLog == nil {
		t.Fatalf("ErrorLog not set")
	}
}

func TestHTTPServerErrorLogUsesZerolog(t *testing.T) {
	var buf bytes.Buffer
	s := NewHTTPServer(&Config{Port: "0"}, http.NotFoundHandler(), zerolog.New(&buf))
	s.server.ErrorLog.Print("http: TLS handshake error")
	out := buf.String()
	if !strings.Contains(out, `"component":"http"`) || !strings.Contains(out, "TLS handshake error") {
		t.Fatalf("error log output = %q", out)
	}
}

func TestHTTPServerRequestContextCarriesLogger(t *testing.T) {
	var buf bytes.Buffer
	s := NewHTTPServer(&Config{Port: "0"}, nil, zerolog.New(&buf))
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside handler")
	})

	ts := httptest.NewUnstartedServer(handler)
	ts.Config.BaseContext = s.server.BaseContext
	ts.Start()
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if !strings.Contains(buf.String(), "inside handler") {
		t.Fatalf("handler log missing: %q", buf.String())
	}
}

func TestHTTPServerZeroValue(t *testing.T) {
	var s HTTPServer
	if err := s.Start(); err != nil {
		t.Fatalf("Start on zero value: %v", err)
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown on zero value: %v", err)
	}
	if s.Addr() != "" {
		t.Fatalf("Addr on zero value = %q", s.Addr())
	}
}
