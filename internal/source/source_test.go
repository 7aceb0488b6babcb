package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"notesbot/internal/model"
)

// mockClient serves a canned response, recording the requested URLs.
type mockClient struct {
	status int
	body   string
	err    error
	urls   []string
}

func (m *mockClient) Do(req *http.Request) (*http.Response, error) {
	m.urls = append(m.urls, req.URL.String())
	if m.err != nil {
		return nil, m.err
	}
	status := m.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile("../../testdata/" + name)
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return string(data)
}

func TestFetchBodyErrorClassification(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		client        *mockClient
		wantErr       bool
		wantPermanent bool
	}{
		{"ok", &mockClient{body: "hello"}, false, false},
		{"not found is permanent", &mockClient{status: 404}, true, true},
		{"gone is permanent", &mockClient{status: 410}, true, true},
		{"server error is transient", &mockClient{status: 500}, true, false},
		{"rate limit is transient", &mockClient{status: 429}, true, false},
		{"network error is transient", &mockClient{err: errors.New("dial timeout")}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fetchBody(ctx, tt.client, "https://example.com")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && IsPermanent(err) != tt.wantPermanent {
				t.Errorf("IsPermanent = %v, want %v (err: %v)", IsPermanent(err), tt.wantPermanent, err)
			}
		})
	}
}

func TestIsPermanent(t *testing.T) {
	if IsPermanent(errors.New("plain")) {
		t.Error("unclassified errors must be treated as transient")
	}
	if !IsPermanent(Permanentf("no adapter")) {
		t.Error("Permanentf must be permanent")
	}
	wrapped := fmt.Errorf("fetch: %w", permanentErr(errors.New("gone")))
	if !IsPermanent(wrapped) {
		t.Error("wrapped permanent errors must stay permanent")
	}
}

// flakyAdapter fails transiently a fixed number of times, then succeeds.
type flakyAdapter struct {
	failures  int32
	permanent bool
	calls     int32
}

func (f *flakyAdapter) Platform() model.Platform { return model.PlatformRSS }

func (f *flakyAdapter) Fetch(_ context.Context, _ string, _ time.Time) ([]model.Note, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if f.permanent {
		return nil, permanentErr(errors.New("does not exist"))
	}
	if n <= f.failures {
		return nil, transientErr(errors.New("temporarily down"))
	}
	return []model.Note{{SourceID: "rss:1"}}, nil
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("transient failure retried", func(t *testing.T) {
		inner := &flakyAdapter{failures: 2}
		a := WithRetry(inner, 3)

		notes, err := a.Fetch(ctx, "x", time.Time{})
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if len(notes) != 1 {
			t.Errorf("notes = %d, want 1", len(notes))
		}
		if got := atomic.LoadInt32(&inner.calls); got != 3 {
			t.Errorf("calls = %d, want 3", got)
		}
	})

	t.Run("retries exhausted", func(t *testing.T) {
		inner := &flakyAdapter{failures: 10}
		a := WithRetry(inner, 2)

		_, err := a.Fetch(ctx, "x", time.Time{})
		if err == nil {
			t.Fatal("expected error after exhausted retries")
		}
		if IsPermanent(err) {
			t.Error("exhausted transient failure must stay transient")
		}
	})

	t.Run("permanent failure not retried", func(t *testing.T) {
		inner := &flakyAdapter{permanent: true}
		a := WithRetry(inner, 5)

		_, err := a.Fetch(ctx, "x", time.Time{})
		if !IsPermanent(err) {
			t.Fatalf("want permanent error, got %v", err)
		}
		if got := atomic.LoadInt32(&inner.calls); got != 1 {
			t.Errorf("calls = %d, want 1", got)
		}
	})
}

func TestRegistryLookup(t *testing.T) {
	client := &mockClient{}
	reg := NewRegistry(NewRSS(client), NewReddit(client))

	if _, ok := reg.Lookup(model.PlatformRSS); !ok {
		t.Error("rss adapter should be registered")
	}
	if _, ok := reg.Lookup(model.PlatformVK); ok {
		t.Error("vk adapter should not be registered")
	}
}
