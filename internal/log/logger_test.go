package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNew_Component(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Component: ComponentWishes, Handler: slog.NewTextHandler(&buf, nil)})
	l.With(FieldUser, "Pia").Info("Item changed")

	out := buf.String()
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=wishes") {
		t.Errorf("want one component field, got %q", out)
	}
	if !strings.Contains(out, "user=Pia") {
		t.Errorf("derived logger lost its attributes: %q", out)
	}

	buf.Reset()
	New(Config{Handler: slog.NewTextHandler(&buf, nil)}).Info("plain")
	if strings.Contains(buf.String(), "component=") {
		t.Errorf("empty component should be left off: %q", buf.String())
	}
}

func TestMiddleware_RequestScopedLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Component: ComponentHTTP, Handler: slog.NewTextHandler(&buf, nil)})
	requestID := func(context.Context) string { return "req_42" }

	h := Middleware(base, requestID)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NewStructuredLogger(FromContext(r.Context())).LogError(r.Context(), "Request failed",
			errors.New("disk full"), "POST /wishes", NewFields().WithUser("Lukas"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/wishes", nil))

	out := buf.String()
	for _, want := range []string{"request_id=req_42", "component=http", "user=Lukas", `error="disk full"`, "level=ERROR"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

func TestFromContext_Default(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Logger == nil {
		t.Fatal("FromContext returned no logger")
	}
}
