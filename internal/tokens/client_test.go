package tokens

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/nezunotify/notifyctl/internal/auth/line"
)

func newTokenClient(srv *httptest.Server) *Client {
	return NewClient("csrf-1", "ses=abc", Options{
		NotifyBotURL: srv.URL,
		NotifyAPIURL: srv.URL,
		HTTPClient:   srv.Client(),
	})
}

// statusByToken answers /api/status and /api/revoke with the code mapped to the bearer token.
func statusByToken(codes map[string]int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		code, ok := codes[token[len("Bearer "):]]
		if !ok {
			code = http.StatusOK
		}
		w.WriteHeader(code)
		_, _ = fmt.Fprintf(w, `{"status":%d}`, code)
	}
}

func TestCheckStatusScenarios(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(statusByToken(map[string]int{
		"blocked": http.StatusUnauthorized,
		"ok":      http.StatusOK,
		"broken":  http.StatusInternalServerError,
	}))
	defer srv.Close()
	c := newTokenClient(srv)
	ctx := context.Background()

	tests := map[string]Status{
		"blocked": StatusBlocked,
		"ok":      StatusOK,
		"broken":  StatusWaiting,
	}
	for token, want := range tests {
		if got := c.CheckStatus(ctx, token); got != want {
			t.Errorf("CheckStatus(%s) = %s, want %s", token, got, want)
		}
	}

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()
	refused := NewClient("c", "k", Options{NotifyAPIURL: deadURL, HTTPClient: &http.Client{}})
	if got := refused.CheckStatus(ctx, "T1"); got != StatusError {
		t.Fatalf("CheckStatus() on refused connection = %s, want Error", got)
	}
}

func TestCheckStatusesKeySetMatchesInput(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		statusByToken(map[string]int{"b": http.StatusUnauthorized})(w, r)
	}))
	defer srv.Close()
	c := newTokenClient(srv)

	input := []string{"a", "b", "c", "a"}
	got := c.CheckStatuses(context.Background(), input)
	keys := make([]string, 0, len(got))
	for key := range got {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if !reflect.DeepEqual(keys, []string{"a", "b", "c"}) {
		t.Fatalf("keys = %v", keys)
	}
	if got["b"] != StatusBlocked || got["a"] != StatusOK {
		t.Fatalf("statuses = %v", got)
	}
	if hits.Load() != 3 {
		t.Fatalf("status calls = %d, want 3", hits.Load())
	}

	empty := c.CheckStatuses(context.Background(), nil)
	if empty == nil || len(empty) != 0 {
		t.Fatalf("CheckStatuses(nil) = %v", empty)
	}
}

func TestRevokeAllAggregate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(statusByToken(map[string]int{
		"gone":  http.StatusUnauthorized,
		"weird": http.StatusBadRequest,
	}))
	defer srv.Close()
	c := newTokenClient(srv)
	ctx := context.Background()

	outcomes, ok := c.RevokeAll(ctx, []string{"t1", "t2"})
	if !ok || outcomes["t1"] != Revoked || outcomes["t2"] != Revoked {
		t.Fatalf("RevokeAll(all good) = %v, %v", outcomes, ok)
	}

	outcomes, ok = c.RevokeAll(ctx, []string{"t1", "gone", "weird"})
	if ok {
		t.Fatal("RevokeAll reported success with failures")
	}
	want := map[string]RevokeOutcome{"t1": Revoked, "gone": AlreadyRevoked, "weird": Unexpected}
	if !reflect.DeepEqual(outcomes, want) {
		t.Fatalf("outcomes = %v, want %v", outcomes, want)
	}
}

func TestRevokeTransportError(t *testing.T) {
	t.Parallel()

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()
	c := NewClient("c", "k", Options{NotifyAPIURL: deadURL, HTTPClient: &http.Client{}})

	if got := c.Revoke(context.Background(), "T1"); got != TransportError {
		t.Fatalf("Revoke() = %s", got)
	}
	if _, ok := c.RevokeAll(context.Background(), []string{"T1"}); ok {
		t.Fatal("RevokeAll reported success on transport failure")
	}
}

func TestCreateMultipleClampsAndFilters(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		_ = r.ParseForm()
		if r.PostForm.Get("_csrf") != "csrf-1" || r.Header.Get("Cookie") != "ses=abc" || r.PostForm.Get("targetMid") != "Cgroup" {
			http.Error(w, "bad session", http.StatusForbidden)
			return
		}
		switch {
		case n%10 == 0:
			http.Error(w, "flaky", http.StatusInternalServerError)
		case n%10 == 5:
			_, _ = io.WriteString(w, `{"token":"not-a-token"}`)
		default:
			_, _ = fmt.Fprintf(w, `{"token":"token_%d"}`, n)
		}
	}))
	defer srv.Close()

	created := newTokenClient(srv).CreateMultiple(context.Background(), "Cgroup", 250, "batch")
	if calls.Load() != MaxBatch {
		t.Fatalf("create attempts = %d, want %d", calls.Load(), MaxBatch)
	}
	if len(created) != 80 {
		t.Fatalf("created %d tokens, want 80", len(created))
	}
	for _, token := range created {
		if token[:len(tokenPrefix)] != tokenPrefix {
			t.Fatalf("unexpected token %q", token)
		}
	}
}

func TestCreateMultipleAllFailedIsEmpty(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	created := newTokenClient(srv).CreateMultiple(context.Background(), "Cgroup", 3, "")
	if created == nil || len(created) != 0 {
		t.Fatalf("CreateMultiple() = %v, want empty list", created)
	}
}

func TestCreateEmptyTokenReturnsEmptyString(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":200}`)
	}))
	defer srv.Close()

	token, err := newTokenClient(srv).Create(context.Background(), "USER", "")
	if err != nil || token != "" {
		t.Fatalf("Create() = %q, %v", token, err)
	}
}

func TestGroupsFirstPage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" || r.Header.Get("X-CSRF-Token") != "csrf-1" {
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, `{"status":200,"results":[{"mid":"C1","name":"ops","pictureUrl":"p"}]}`)
	}))
	defer srv.Close()

	groups, err := newTokenClient(srv).Groups(context.Background())
	if err != nil {
		t.Fatalf("Groups() error = %v", err)
	}
	if len(groups) != 1 || groups[0] != (line.Group{Mid: "C1", Name: "ops", PictureURL: "p"}) {
		t.Fatalf("Groups() = %+v", groups)
	}
}

func TestCreateMultipleNonPositiveCountIssuesNothing(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"token":"token_x"}`)
	}))
	defer srv.Close()

	client := newTokenClient(srv)
	for _, count := range []int{0, -3} {
		created := client.CreateMultiple(context.Background(), "Cgroup", count, "")
		if created == nil || len(created) != 0 {
			t.Fatalf("CreateMultiple(%d) = %v, want empty list", count, created)
		}
	}
	if calls.Load() != 0 {
		t.Fatalf("issue endpoint called %d times, want 0", calls.Load())
	}
}
