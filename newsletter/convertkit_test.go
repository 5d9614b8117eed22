package newsletter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscriberCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/subscribers" {
			t.Errorf("path = %q, want /v3/subscribers", r.URL.Path)
		}
		if got := r.URL.Query().Get("api_secret"); got != "s3cret" {
			t.Errorf("api_secret = %q, want s3cret", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"total_subscribers": 42, "page": 1, "subscribers": []}`))
	}))
	defer srv.Close()

	c := NewClient("s3cret", time.Second, WithBaseURL(srv.URL+"/"))
	n, err := c.SubscriberCount(context.Background())
	if err != nil {
		t.Fatalf("SubscriberCount failed: %v", err)
	}
	if n != 42 {
		t.Fatalf("SubscriberCount = %d, want 42", n)
	}
}

func TestSubscriberCountNotConfigured(t *testing.T) {
	c := NewClient("", time.Second)
	if _, err := c.SubscriberCount(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestSubscriberCountUpstreamFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{"server error", http.StatusInternalServerError, `oops`, http.StatusInternalServerError},
		{"unauthorized", http.StatusUnauthorized, `{"error":"Authorization Failed"}`, http.StatusUnauthorized},
		{"malformed json", http.StatusOK, `<html>`, http.StatusOK},
		{"missing field", http.StatusOK, `{"subscribers": []}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient("s3cret", time.Second, WithBaseURL(srv.URL))
			_, err := c.SubscriberCount(context.Background())
			var ue *UpstreamError
			if !errors.As(err, &ue) {
				t.Fatalf("err = %v, want *UpstreamError", err)
			}
			if ue.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", ue.Status, tt.wantStatus)
			}
			if ue.Timeout {
				t.Error("Timeout should be false")
			}
			if strings.Contains(err.Error(), "s3cret") {
				t.Errorf("error leaks the secret: %v", err)
			}
		})
	}
}

func TestSubscriberCountTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient("s3cret", 50*time.Millisecond, WithBaseURL(srv.URL))
	_, err := c.SubscriberCount(context.Background())
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
	if !ue.Timeout {
		t.Errorf("Timeout = false, want true (err: %v)", err)
	}
	if strings.Contains(err.Error(), "s3cret") {
		t.Errorf("error leaks the secret: %v", err)
	}
}

func TestSubscriberCountConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := NewClient("s3cret", time.Second, WithBaseURL(addr))
	_, err := c.SubscriberCount(context.Background())
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
	if ue.Status != 0 || ue.Timeout {
		t.Errorf("UpstreamError = %+v, want network failure", ue)
	}
	if strings.Contains(err.Error(), "s3cret") {
		t.Errorf("error leaks the secret: %v", err)
	}
}
