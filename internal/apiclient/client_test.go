package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matchmate/matchmate-go/internal/model"
	"github.com/matchmate/matchmate-go/internal/tokenstore"
)

type profileData struct {
	Bio string `json:"bio"`
}

// fakeAPI accepts validToken on /profile and rotates tokens on /auth/refresh.
type fakeAPI struct {
	mu            sync.Mutex
	validToken    string
	refreshToken  string
	rejectRefresh bool
	refreshStatus int
	dropRefresh   bool
	alwaysDeny    bool
	refreshCalls  atomic.Int32
	profileCalls  atomic.Int32
	authHeaders   []string
	beforeRefresh func()
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/profile", func(w http.ResponseWriter, r *http.Request) {
		f.profileCalls.Add(1)
		auth := r.Header.Get("Authorization")

		f.mu.Lock()
		f.authHeaders = append(f.authHeaders, auth)
		ok := !f.alwaysDeny && auth == "Bearer "+f.validToken
		f.mu.Unlock()

		if !ok {
			writeEnvelope(w, http.StatusUnauthorized, model.Fail[any]("invalid or expired token"))
			return
		}
		writeEnvelope(w, http.StatusOK, model.OK(profileData{Bio: "hello"}, "profile updated"))
	})
	mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)
		if f.beforeRefresh != nil {
			f.beforeRefresh()
		}
		if f.dropRefresh {
			panic(http.ErrAbortHandler)
		}

		var req model.RefreshRequest
		json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		defer f.mu.Unlock()

		if f.refreshStatus != 0 {
			writeEnvelope(w, f.refreshStatus, model.Fail[any]("internal server error"))
			return
		}
		if f.rejectRefresh || req.RefreshToken != f.refreshToken {
			writeEnvelope(w, http.StatusUnauthorized, model.Fail[any]("invalid or expired refresh token"))
			return
		}
		f.validToken = "access-2"
		f.refreshToken = "refresh-2"
		writeEnvelope(w, http.StatusOK, model.OK(model.TokenPair{
			AccessToken:  f.validToken,
			RefreshToken: f.refreshToken,
			ExpiresAt:    time.Now().Add(time.Minute),
		}, ""))
	})
	return mux
}

func writeEnvelope(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, h http.Handler, creds tokenstore.Credentials) (*Client, *tokenstore.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	store := tokenstore.NewMemoryStore(creds)
	c := New(Options{
		BaseURL: srv.URL + "/api/v1",
		Store:   store,
		Timeout: 5 * time.Second,
		Logger:  quietLogger(),
	})
	return c, store
}

func putProfile() Request {
	return Request{Method: http.MethodPut, Path: "/profile", Body: RawJSON(`{"bio":"hello"}`)}
}

func TestDo_SuccessEnvelopePassedThrough(t *testing.T) {
	api := &fakeAPI{validToken: "access-1"}
	c, _ := newTestClient(t, api.handler(), tokenstore.Credentials{AccessToken: "access-1", RefreshToken: "refresh-1"})

	resp := Do[profileData](context.Background(), c, putProfile())

	if !resp.Success {
		t.Fatalf("expected success, got error %q", resp.Error)
	}
	if resp.Data.Bio != "hello" {
		t.Errorf("expected bio 'hello', got %q", resp.Data.Bio)
	}
	if resp.Message != "profile updated" {
		t.Errorf("expected message 'profile updated', got %q", resp.Message)
	}
	if api.refreshCalls.Load() != 0 {
		t.Errorf("expected no refresh, got %d", api.refreshCalls.Load())
	}
}

func TestDo_BackendFailurePassedThrough(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusBadRequest, model.APIResponse[any]{Error: "bio too long", Message: "fix the form"})
	})
	c, _ := newTestClient(t, h, tokenstore.Credentials{AccessToken: "a"})

	resp := Do[profileData](context.Background(), c, putProfile())

	if resp.Success {
		t.Fatal("expected failure")
	}
	if resp.Error != "bio too long" || resp.Message != "fix the form" {
		t.Errorf("expected backend envelope unchanged, got %+v", resp)
	}
	if resp.Err != nil {
		t.Errorf("expected nil Err for backend-reported failure, got %v", resp.Err)
	}
}

func TestDo_NoTokenSendsNoAuthorization(t *testing.T) {
	var gotAuth []string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Values("Authorization")
		writeEnvelope(w, http.StatusOK, model.OK(profileData{}, ""))
	})
	c, _ := newTestClient(t, h, tokenstore.Credentials{})

	resp := Do[profileData](context.Background(), c, Request{Method: http.MethodPost, Path: "/auth/login"})

	if !resp.Success {
		t.Fatalf("expected success, got %q", resp.Error)
	}
	if len(gotAuth) != 0 {
		t.Errorf("expected no Authorization header, got %v", gotAuth)
	}
}

func TestDo_UnauthenticatedCallDoesNotRefresh(t *testing.T) {
	api := &fakeAPI{}
	c, _ := newTestClient(t, api.handler(), tokenstore.Credentials{})

	resp := Do[profileData](context.Background(), c, putProfile())

	if resp.Success {
		t.Fatal("expected failure")
	}
	if resp.Error != "invalid or expired token" {
		t.Errorf("expected backend error, got %q", resp.Error)
	}
	if api.refreshCalls.Load() != 0 {
		t.Errorf("expected no refresh for anonymous call, got %d", api.refreshCalls.Load())
	}
}

func TestDo_RefreshAndRetry(t *testing.T) {
	api := &fakeAPI{validToken: "access-new-pending", refreshToken: "refresh-1"}
	c, store := newTestClient(t, api.handler(), tokenstore.Credentials{AccessToken: "access-1", RefreshToken: "refresh-1"})

	resp := Do[profileData](context.Background(), c, putProfile())

	if !resp.Success {
		t.Fatalf("expected success after refresh, got %q", resp.Error)
	}
	if got := api.refreshCalls.Load(); got != 1 {
		t.Errorf("expected 1 refresh, got %d", got)
	}
	if got := api.profileCalls.Load(); got != 2 {
		t.Errorf("expected 2 profile calls, got %d", got)
	}
	if api.authHeaders[1] != "Bearer access-2" {
		t.Errorf("expected retry with new token, got %q", api.authHeaders[1])
	}

	creds, _ := store.Load(context.Background())
	if creds.AccessToken != "access-2" || creds.RefreshToken != "refresh-2" {
		t.Errorf("expected rotated credentials in store, got %+v", creds)
	}
}

func TestDo_RefreshRejectedClearsCredentials(t *testing.T) {
	api := &fakeAPI{validToken: "other", refreshToken: "refresh-1", rejectRefresh: true}
	c, store := newTestClient(t, api.handler(), tokenstore.Credentials{AccessToken: "access-1", RefreshToken: "refresh-1"})

	resp := Do[profileData](context.Background(), c, putProfile())

	if resp.Success {
		t.Fatal("expected failure")
	}
	if resp.Error != AuthExpiredMessage {
		t.Errorf("expected %q, got %q", AuthExpiredMessage, resp.Error)
	}
	if !errors.Is(resp.Err, ErrAuthExpired) {
		t.Errorf("expected ErrAuthExpired, got %v", resp.Err)
	}

	creds, _ := store.Load(context.Background())
	if !creds.Empty() {
		t.Errorf("expected credentials cleared, got %+v", creds)
	}

	Do[profileData](context.Background(), c, putProfile())
	if last := api.authHeaders[len(api.authHeaders)-1]; last != "" {
		t.Errorf("expected no Authorization after clear, got %q", last)
	}
	if got := api.refreshCalls.Load(); got != 1 {
		t.Errorf("expected no further refresh once cleared, got %d", got)
	}
}

func TestDo_MissingRefreshTokenClearsCredentials(t *testing.T) {
	api := &fakeAPI{validToken: "other"}
	c, store := newTestClient(t, api.handler(), tokenstore.Credentials{AccessToken: "access-1"})

	resp := Do[profileData](context.Background(), c, putProfile())

	if resp.Error != AuthExpiredMessage {
		t.Errorf("expected %q, got %q", AuthExpiredMessage, resp.Error)
	}
	if api.refreshCalls.Load() != 0 {
		t.Errorf("expected refresh endpoint not called, got %d", api.refreshCalls.Load())
	}
	creds, _ := store.Load(context.Background())
	if !creds.Empty() {
		t.Errorf("expected credentials cleared, got %+v", creds)
	}
}

func TestDo_RefreshFailureClearsCredentials(t *testing.T) {
	tests := []struct {
		name string
		api  *fakeAPI
	}{
		{"server error", &fakeAPI{validToken: "other", refreshToken: "refresh-1", refreshStatus: http.StatusBadGateway}},
		{"connection dropped", &fakeAPI{validToken: "other", refreshToken: "refresh-1", dropRefresh: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store := newTestClient(t, tt.api.handler(), tokenstore.Credentials{AccessToken: "access-1", RefreshToken: "refresh-1"})

			resp := Do[profileData](context.Background(), c, putProfile())

			if resp.Error != AuthExpiredMessage {
				t.Errorf("expected %q, got %q", AuthExpiredMessage, resp.Error)
			}
			if !errors.Is(resp.Err, ErrAuthExpired) {
				t.Errorf("expected ErrAuthExpired, got %v", resp.Err)
			}
			creds, _ := store.Load(context.Background())
			if !creds.Empty() {
				t.Fatalf("expected credentials cleared, got %+v", creds)
			}

			Do[profileData](context.Background(), c, putProfile())

			tt.api.mu.Lock()
			last := tt.api.authHeaders[len(tt.api.authHeaders)-1]
			tt.api.mu.Unlock()
			if last != "" {
				t.Errorf("expected no Authorization after failed refresh, got %q", last)
			}
		})
	}
}

func TestDo_RefreshFailureKeepsNewerCredentials(t *testing.T) {
	api := &fakeAPI{validToken: "other", refreshToken: "refresh-1", refreshStatus: http.StatusBadGateway}
	var store *tokenstore.MemoryStore
	api.beforeRefresh = func() {
		store.Save(context.Background(), tokenstore.Credentials{AccessToken: "access-9", RefreshToken: "refresh-9"})
	}
	c, s := newTestClient(t, api.handler(), tokenstore.Credentials{AccessToken: "access-1", RefreshToken: "refresh-1"})
	store = s

	resp := Do[profileData](context.Background(), c, putProfile())

	if resp.Error != AuthExpiredMessage {
		t.Errorf("expected %q, got %q", AuthExpiredMessage, resp.Error)
	}
	creds, _ := store.Load(context.Background())
	if creds.RefreshToken != "refresh-9" {
		t.Errorf("expected pair saved during refresh to survive, got %+v", creds)
	}
}

func TestDo_SecondUnauthorizedNotRetried(t *testing.T) {
	api := &fakeAPI{refreshToken: "refresh-1", alwaysDeny: true}
	c, store := newTestClient(t, api.handler(), tokenstore.Credentials{AccessToken: "access-1", RefreshToken: "refresh-1"})

	resp := Do[profileData](context.Background(), c, putProfile())

	if resp.Success {
		t.Fatal("expected failure")
	}
	if got := api.refreshCalls.Load(); got != 1 {
		t.Errorf("expected exactly 1 refresh, got %d", got)
	}
	if got := api.profileCalls.Load(); got != 2 {
		t.Errorf("expected exactly 2 profile calls, got %d", got)
	}
	if resp.Error != "invalid or expired token" {
		t.Errorf("expected retried envelope as-is, got %q", resp.Error)
	}

	creds, _ := store.Load(context.Background())
	if creds.AccessToken != "access-2" {
		t.Errorf("expected refreshed credentials kept, got %+v", creds)
	}
}

func TestDo_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := New(Options{BaseURL: base + "/api/v1", Timeout: time.Second, Logger: quietLogger()})

	resp := Do[profileData](context.Background(), c, putProfile())

	if resp.Success {
		t.Fatal("expected failure")
	}
	if resp.Error == "" {
		t.Error("expected error message")
	}
	if !errors.Is(resp.Err, ErrNetwork) {
		t.Errorf("expected ErrNetwork, got %v", resp.Err)
	}
}

func TestDo_MalformedResponse(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "<html>bad gateway</html>")
	})
	c, _ := newTestClient(t, h, tokenstore.Credentials{})

	resp := Do[profileData](context.Background(), c, putProfile())

	if resp.Success {
		t.Fatal("expected failure")
	}
	if !errors.Is(resp.Err, ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse, got %v", resp.Err)
	}
}

func TestDo_Canceled(t *testing.T) {
	release := make(chan struct{})
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	c, _ := newTestClient(t, h, tokenstore.Credentials{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	resp := Do[profileData](ctx, c, putProfile())

	if !errors.Is(resp.Err, ErrCanceled) {
		t.Errorf("expected ErrCanceled, got %v", resp.Err)
	}
	if resp.Error != "request canceled" {
		t.Errorf("expected 'request canceled', got %q", resp.Error)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("expected cancellation to return promptly")
	}
}

func TestDo_HeaderDefaultsAndOverrides(t *testing.T) {
	var got http.Header
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		writeEnvelope(w, http.StatusOK, model.OK(profileData{}, ""))
	})
	c, _ := newTestClient(t, h, tokenstore.Credentials{AccessToken: "access-1"})

	Do[profileData](context.Background(), c, Request{Method: http.MethodGet, Path: "/profile"})
	if ct := got.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected default content type, got %q", ct)
	}
	if a := got.Get("Authorization"); a != "Bearer access-1" {
		t.Errorf("expected bearer token, got %q", a)
	}

	Do[profileData](context.Background(), c, Request{
		Method: http.MethodPost,
		Path:   "/profile",
		Header: http.Header{
			"Content-Type":  {"text/plain"},
			"Authorization": {"Bearer custom"},
			"X-Request-Id":  {"abc"},
		},
		Body: RawJSON("hi"),
	})
	if ct := got.Get("Content-Type"); ct != "text/plain" {
		t.Errorf("expected caller content type, got %q", ct)
	}
	if a := got.Get("Authorization"); a != "Bearer custom" {
		t.Errorf("expected caller authorization, got %q", a)
	}
	if id := got.Get("X-Request-Id"); id != "abc" {
		t.Errorf("expected caller header, got %q", id)
	}
}

func TestDo_MultipartKeepsFormContentType(t *testing.T) {
	var (
		contentType string
		filenames   []string
	)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeEnvelope(w, http.StatusBadRequest, model.Fail[any](err.Error()))
			return
		}
		for _, fh := range r.MultipartForm.File["photos"] {
			filenames = append(filenames, fh.Filename)
		}
		writeEnvelope(w, http.StatusOK, model.OK([]model.Photo{}, ""))
	})
	c, _ := newTestClient(t, h, tokenstore.Credentials{AccessToken: "access-1"})

	resp := c.UploadPhotos(context.Background(),
		FormFile{Filename: "a.png", Data: []byte("\x89PNG\r\n\x1a\nrest")},
		FormFile{Filename: "b.jpg", Data: []byte("\xff\xd8\xff\xe0rest")},
	)

	if !resp.Success {
		t.Fatalf("expected success, got %q", resp.Error)
	}
	if !strings.HasPrefix(contentType, "multipart/form-data; boundary=") {
		t.Errorf("expected multipart content type, got %q", contentType)
	}
	if len(filenames) != 2 || filenames[0] != "a.png" || filenames[1] != "b.jpg" {
		t.Errorf("expected both files uploaded, got %v", filenames)
	}
}

func TestDo_MultipartReplayedOnRetry(t *testing.T) {
	var sizes []int
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/profile/photos", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		sizes = append(sizes, len(b))
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer access-2" {
			writeEnvelope(w, http.StatusUnauthorized, model.Fail[any]("invalid or expired token"))
			return
		}
		writeEnvelope(w, http.StatusOK, model.OK([]model.Photo{{ID: "p1"}}, ""))
	})
	api := &fakeAPI{refreshToken: "refresh-1"}
	mux.Handle("/api/v1/auth/refresh", api.handler())

	c, _ := newTestClient(t, mux, tokenstore.Credentials{AccessToken: "access-1", RefreshToken: "refresh-1"})

	resp := c.UploadPhoto(context.Background(), "me.png", []byte("\x89PNG\r\n\x1a\nbody"))

	if !resp.Success {
		t.Fatalf("expected success, got %q", resp.Error)
	}
	if len(sizes) != 2 || sizes[0] == 0 || sizes[0] != sizes[1] {
		t.Errorf("expected identical non-empty bodies on both attempts, got %v", sizes)
	}
}

func TestDo_ConcurrentRefreshIsSingleFlight(t *testing.T) {
	const n = 10

	api := &fakeAPI{validToken: "pending", refreshToken: "refresh-1"}
	var denied atomic.Int32
	allDenied := make(chan struct{})
	api.beforeRefresh = func() {
		select {
		case <-allDenied:
		case <-time.After(2 * time.Second):
		}
	}

	base := api.handler()
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/profile" && r.Header.Get("Authorization") == "Bearer access-1" {
			if denied.Add(1) == n {
				close(allDenied)
			}
		}
		base.ServeHTTP(w, r)
	})
	c, store := newTestClient(t, h, tokenstore.Credentials{AccessToken: "access-1", RefreshToken: "refresh-1"})

	var wg sync.WaitGroup
	results := make([]model.APIResponse[profileData], n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Do[profileData](context.Background(), c, putProfile())
		}(i)
	}
	wg.Wait()

	if got := api.refreshCalls.Load(); got != 1 {
		t.Errorf("expected exactly 1 refresh, got %d", got)
	}
	for i, r := range results {
		if !r.Success {
			t.Errorf("call %d: expected success, got %q", i, r.Error)
		}
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	for _, h := range api.authHeaders {
		if h != "Bearer access-1" && h != "Bearer access-2" {
			t.Errorf("unexpected token %q", h)
		}
	}
	creds, _ := store.Load(context.Background())
	if creds.AccessToken != "access-2" {
		t.Errorf("expected refreshed token in store, got %+v", creds)
	}
}

func TestBaseURL(t *testing.T) {
	got := BaseURL("https", "api.example.com", 8443, "v1")
	if got != "https://api.example.com:8443/api/v1" {
		t.Errorf("unexpected base url %q", got)
	}
}
