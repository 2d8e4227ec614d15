package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/systemstart/envsecrets/pkg/api"
)

func checkHeaders(t *testing.T, r *http.Request) {
	t.Helper()
	if got := r.Header.Get("Authorization"); got != "token test-token" {
		t.Errorf("Authorization = %q, want %q", got, "token test-token")
	}
	if got := r.Header.Get("Accept"); got != "application/vnd.github.v3+json" {
		t.Errorf("Accept = %q", got)
	}
}

func TestClient_PublicKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/repos/owner/repo/actions/secrets/public-key" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		checkHeaders(t, r)
		_, _ = w.Write([]byte(`{"key_id": "012345", "key": "2Sg8iYjAxxmI2LvUXpJjkYrMxURPc8r+dB7TJyvv1234"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "test-token", time.Second)
	key, err := client.PublicKey(context.Background(), "owner/repo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.KeyID != "012345" {
		t.Errorf("KeyID = %s, want 012345", key.KeyID)
	}
	if key.Key != "2Sg8iYjAxxmI2LvUXpJjkYrMxURPc8r+dB7TJyvv1234" {
		t.Errorf("unexpected Key %s", key.Key)
	}
}

func TestClient_PublicKey_MissingFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"key": "abc"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "test-token", time.Second).PublicKey(context.Background(), "owner/repo")
	if !errors.Is(err, api.ErrInvalidPublicKey) {
		t.Fatalf("expected ErrInvalidPublicKey, got %v", err)
	}
}

func TestClient_PublicKey_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "test-token", time.Second).PublicKey(context.Background(), "owner/repo")
	if err == nil || !strings.Contains(err.Error(), "decoding response") {
		t.Fatalf("expected decoding error, got %v", err)
	}
}

func TestClient_PutSecret(t *testing.T) {
	var got api.SealedSecret
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("Method = %s, want PUT", r.Method)
		}
		if r.URL.Path != "/repos/owner/repo/actions/secrets/DB_URL" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		checkHeaders(t, r)
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", time.Second)
	err := client.PutSecret(context.Background(), "owner/repo", "DB_URL", api.SealedSecret{EncryptedValue: "c2VhbGVk", KeyID: "012345"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.EncryptedValue != "c2VhbGVk" || got.KeyID != "012345" {
		t.Errorf("unexpected body %+v", got)
	}
}

func TestClient_RemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "Not Found"}` + "\n"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", time.Second)
	err := client.PutSecret(context.Background(), "owner/repo", "A", api.SealedSecret{})
	if !errors.Is(err, ErrRemote) {
		t.Fatalf("expected ErrRemote, got %v", err)
	}

	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected *RemoteError, got %T", err)
	}
	if remoteErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", remoteErr.StatusCode)
	}
	if remoteErr.Method != http.MethodPut {
		t.Errorf("Method = %s, want PUT", remoteErr.Method)
	}
	if remoteErr.Body != `{"message": "Not Found"}` {
		t.Errorf("unexpected Body %q", remoteErr.Body)
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, "test-token", 50*time.Millisecond)
	_, err := client.PublicKey(context.Background(), "owner/repo")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
