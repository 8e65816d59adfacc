package ledger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kailas-cloud/metergate/internal/domain"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(Config{BaseURL: srv.URL, APIKey: "test-key"}), srv
}

func TestBalance_Success(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/subscriptions/sub-1/balance" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("account"); got != "0xabc" {
			t.Errorf("unexpected account %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		_, _ = w.Write([]byte(`{"balance": 42}`))
	}))
	defer srv.Close()

	bal, err := c.Balance(context.Background(), "sub-1", "0xabc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bal != 42 {
		t.Errorf("expected balance 42, got %d", bal)
	}
}

func TestBalance_NonOK(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := c.Balance(context.Background(), "sub-1", "0xabc")
	if !errors.Is(err, domain.ErrLedgerUnreachable) {
		t.Fatalf("expected ErrLedgerUnreachable, got %v", err)
	}
}

func TestBalance_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // refuse connections

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Balance(context.Background(), "sub-1", "0xabc")
	if !errors.Is(err, domain.ErrLedgerUnreachable) {
		t.Fatalf("expected ErrLedgerUnreachable, got %v", err)
	}
}

func TestBalance_MissingField(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"credits": 42}`))
	}))
	defer srv.Close()

	_, err := c.Balance(context.Background(), "sub-1", "0xabc")
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestBalance_NonInteger(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"balance": "lots"}`))
	}))
	defer srv.Close()

	_, err := c.Balance(context.Background(), "sub-1", "0xabc")
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestBalance_Negative(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"balance": -3}`))
	}))
	defer srv.Close()

	_, err := c.Balance(context.Background(), "sub-1", "0xabc")
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestOrderTopUp_Success(t *testing.T) {
	var gotMethod, gotPath string
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	if err := c.OrderTopUp(context.Background(), "sub-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("expected POST, got %s", gotMethod)
	}
	if gotPath != "/subscriptions/sub-1/orders" {
		t.Errorf("unexpected path %s", gotPath)
	}
}

func TestOrderTopUp_NonOK(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := c.OrderTopUp(context.Background(), "sub-1")
	if !errors.Is(err, domain.ErrLedgerUnreachable) {
		t.Fatalf("expected ErrLedgerUnreachable, got %v", err)
	}
}

func TestResolveService_Single(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`["svc-1"]`))
	}))
	defer srv.Close()

	svc, err := c.ResolveService(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc != "svc-1" {
		t.Errorf("expected svc-1, got %s", svc)
	}
}

func TestResolveService_Ambiguous(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero services", `[]`},
		{"two services", `["svc-1", "svc-2"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := c.ResolveService(context.Background(), "sub-1")
			if !errors.Is(err, domain.ErrAmbiguousBinding) {
				t.Fatalf("expected ErrAmbiguousBinding, got %v", err)
			}
		})
	}
}

func TestResolveService_MalformedBody(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"services": []}`))
	}))
	defer srv.Close()

	_, err := c.ResolveService(context.Background(), "sub-1")
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}
