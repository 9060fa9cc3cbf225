package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetan/budgetan-cli/budgetan"
	apperrors "github.com/budgetan/budgetan-cli/internal/errors"
	"github.com/budgetan/budgetan-cli/internal/keychain"
)

// accessToken builds an unsigned three-segment token expiring at now+d.
func accessToken(d time.Duration) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString(
		[]byte(fmt.Sprintf(`{"exp":%d}`, time.Now().Add(d).Unix())))

	return header + "." + payload + ".c2ln"
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestSession wires a session to a real API client pointed at srv,
// backed by an in-memory credential store.
func newTestSession(srv *httptest.Server, store keychain.Store) *Session {
	client := budgetan.NewClient(srv.Client(), srv.URL)

	return New(client, store, srv.URL, discardLogger())
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	at := accessToken(time.Hour)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/login", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a@b.com", req["email"])
		assert.Equal(t, "x", req["password"])

		json.NewEncoder(w).Encode(map[string]string{
			"access_token":  at,
			"refresh_token": "r1",
		})
	}))
	defer srv.Close()

	store := keychain.NewMemory()
	s := newTestSession(srv, store)

	err := s.Login(context.Background(), "a@b.com", "x")
	require.NoError(t, err)
	assert.True(t, s.Authenticated())

	got, ok := store.Get(keychain.AccessToken)
	require.True(t, ok)
	assert.Equal(t, at, got)

	got, ok = store.Get(keychain.RefreshToken)
	require.True(t, ok)
	assert.Equal(t, "r1", got)
}

func TestLogin_RejectedSurfacesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"wrong email or password"}`))
	}))
	defer srv.Close()

	store := keychain.NewMemory()
	s := newTestSession(srv, store)

	err := s.Login(context.Background(), "a@b.com", "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong email or password")
	assert.False(t, s.Authenticated())

	_, ok := store.Get(keychain.AccessToken)
	assert.False(t, ok, "failed login must not persist credentials")
}

func TestLogin_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	s := newTestSession(srv, keychain.NewMemory())

	err := s.Login(context.Background(), "a@b.com", "x")
	require.Error(t, err)
	assert.True(t, budgetan.IsTransport(err))
	assert.False(t, s.Authenticated())
}

// --- Logout ---

func TestLogout_ClearsStoreAndIsIdempotent(t *testing.T) {
	store := keychain.NewMemory()
	require.NoError(t, store.Save(keychain.AccessToken, accessToken(time.Hour)))
	require.NoError(t, store.Save(keychain.RefreshToken, "r1"))

	s := New(nil, store, "http://unused", discardLogger())
	s.Init(context.Background())
	require.True(t, s.Authenticated())

	s.Logout()
	assert.False(t, s.Authenticated())

	_, ok := store.Get(keychain.AccessToken)
	assert.False(t, ok)
	_, ok = store.Get(keychain.RefreshToken)
	assert.False(t, ok)

	s.Logout() // never fails, regardless of prior state
	assert.False(t, s.Authenticated())
}

// --- Refresh ---

func TestRefresh_Success(t *testing.T) {
	newAT := accessToken(time.Hour)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/refresh", r.URL.Path)
		assert.Equal(t, "Bearer r1", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]string{"access_token": newAT})
	}))
	defer srv.Close()

	store := keychain.NewMemory()
	require.NoError(t, store.Save(keychain.AccessToken, accessToken(-time.Minute)))
	require.NoError(t, store.Save(keychain.RefreshToken, "r1"))

	s := newTestSession(srv, store)

	require.NoError(t, s.Refresh(context.Background()))
	assert.True(t, s.Authenticated())

	got, ok := store.Get(keychain.AccessToken)
	require.True(t, ok)
	assert.Equal(t, newAT, got, "access token should be replaced")

	got, ok = store.Get(keychain.RefreshToken)
	require.True(t, ok)
	assert.Equal(t, "r1", got, "refresh token must be unchanged")
}

func TestRefresh_ServerErrorForcesLogout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := keychain.NewMemory()
	require.NoError(t, store.Save(keychain.AccessToken, accessToken(time.Hour)))
	require.NoError(t, store.Save(keychain.RefreshToken, "r1"))

	s := newTestSession(srv, store)
	s.Init(context.Background())
	require.True(t, s.Authenticated())

	err := s.Refresh(context.Background())
	require.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
	assert.False(t, s.Authenticated())

	// Both credentials go, even though only the access token was at issue.
	_, ok := store.Get(keychain.AccessToken)
	assert.False(t, ok)
	_, ok = store.Get(keychain.RefreshToken)
	assert.False(t, ok)
}

func TestRefresh_MissingRefreshToken(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	s := newTestSession(srv, keychain.NewMemory())

	err := s.Refresh(context.Background())
	require.ErrorIs(t, err, apperrors.ErrRefreshTokenMissing)
	assert.False(t, s.Authenticated())
	assert.Zero(t, calls.Load(), "no HTTP request without a refresh token")
}

// --- Init / EnsureFresh ---

func TestInit_FreshTokenAuthenticatesWithoutNetwork(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	store := keychain.NewMemory()
	require.NoError(t, store.Save(keychain.AccessToken, accessToken(time.Hour)))
	require.NoError(t, store.Save(keychain.RefreshToken, "r1"))

	s := newTestSession(srv, store)
	s.Init(context.Background())

	assert.True(t, s.Authenticated())
	assert.Zero(t, calls.Load())
}

func TestInit_EmptyStoreStaysUnauthenticated(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	s := newTestSession(srv, keychain.NewMemory())
	s.Init(context.Background())

	assert.False(t, s.Authenticated())
	assert.Zero(t, calls.Load())
}

func TestInit_ExpiredTokenRefreshFailure(t *testing.T) {
	// Scenario: access token with exp in the past, refresh endpoint
	// answers 500. The session must end up unauthenticated with an
	// empty store.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := keychain.NewMemory()
	require.NoError(t, store.Save(keychain.AccessToken, accessToken(-10*time.Second)))
	require.NoError(t, store.Save(keychain.RefreshToken, "r1"))

	s := newTestSession(srv, store)
	s.Init(context.Background())

	assert.False(t, s.Authenticated())

	_, ok := store.Get(keychain.AccessToken)
	assert.False(t, ok)
	_, ok = store.Get(keychain.RefreshToken)
	assert.False(t, ok)
}

func TestInit_ExpiredTokenRefreshSuccess(t *testing.T) {
	newAT := accessToken(time.Hour)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": newAT})
	}))
	defer srv.Close()

	store := keychain.NewMemory()
	require.NoError(t, store.Save(keychain.AccessToken, accessToken(-time.Hour)))
	require.NoError(t, store.Save(keychain.RefreshToken, "r1"))

	s := newTestSession(srv, store)
	s.Init(context.Background())

	assert.True(t, s.Authenticated())
}

func TestEnsureFresh_UnauthenticatedNoOp(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	s := newTestSession(srv, keychain.NewMemory())

	require.NoError(t, s.EnsureFresh(context.Background()))
	assert.Zero(t, calls.Load())
}

func TestEnsureFresh_FreshTokenNoRefresh(t *testing.T) {
	var refreshes atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/refresh" {
			refreshes.Add(1)
		}
	}))
	defer srv.Close()

	store := keychain.NewMemory()
	require.NoError(t, store.Save(keychain.AccessToken, accessToken(time.Hour)))
	require.NoError(t, store.Save(keychain.RefreshToken, "r1"))

	s := newTestSession(srv, store)
	s.Init(context.Background())

	require.NoError(t, s.EnsureFresh(context.Background()))
	assert.Zero(t, refreshes.Load())
}

func TestEnsureFresh_ExpiringSoonRefreshesOnce(t *testing.T) {
	var refreshes atomic.Int32

	newAT := accessToken(time.Hour)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/refresh" {
			refreshes.Add(1)
			json.NewEncoder(w).Encode(map[string]string{"access_token": newAT})
		}
	}))
	defer srv.Close()

	store := keychain.NewMemory()
	require.NoError(t, store.Save(keychain.AccessToken, accessToken(time.Hour)))
	require.NoError(t, store.Save(keychain.RefreshToken, "r1"))

	s := newTestSession(srv, store)
	s.Init(context.Background())
	require.True(t, s.Authenticated())

	// Within the five-minute margin counts as already unusable.
	require.NoError(t, store.Save(keychain.AccessToken, accessToken(2*time.Minute)))

	require.NoError(t, s.EnsureFresh(context.Background()))
	assert.Equal(t, int32(1), refreshes.Load())

	got, _ := store.Get(keychain.AccessToken)
	assert.Equal(t, newAT, got)
}

func TestEnsureFresh_UndecodableTokenTreatedAsStale(t *testing.T) {
	var refreshes atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/refresh" {
			refreshes.Add(1)
			json.NewEncoder(w).Encode(map[string]string{"access_token": accessToken(time.Hour)})
		}
	}))
	defer srv.Close()

	store := keychain.NewMemory()
	require.NoError(t, store.Save(keychain.AccessToken, accessToken(time.Hour)))
	require.NoError(t, store.Save(keychain.RefreshToken, "r1"))

	s := newTestSession(srv, store)
	s.Init(context.Background())

	require.NoError(t, store.Save(keychain.AccessToken, "two.segments"))

	require.NoError(t, s.EnsureFresh(context.Background()))
	assert.Equal(t, int32(1), refreshes.Load())
}

// --- Do (authenticated-call wrapper) ---

func TestDo_NoStoredToken(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	s := newTestSession(srv, keychain.NewMemory())

	_, err := s.Do(context.Background(), http.MethodGet, srv.URL+"/data", nil)
	require.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
	assert.Zero(t, calls.Load(), "no HTTP request without a stored token")
	assert.False(t, s.Authenticated())
}

func TestDo_FreshTokenSingleRequest(t *testing.T) {
	at := accessToken(time.Hour)

	var dataCalls, refreshCalls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/refresh":
			refreshCalls.Add(1)
		case "/data":
			dataCalls.Add(1)
			assert.Equal(t, "Bearer "+at, r.Header.Get("Authorization"))
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	store := keychain.NewMemory()
	require.NoError(t, store.Save(keychain.AccessToken, at))
	require.NoError(t, store.Save(keychain.RefreshToken, "r1"))

	s := newTestSession(srv, store)
	s.Init(context.Background())

	resp, err := s.Do(context.Background(), http.MethodGet, srv.URL+"/data", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), dataCalls.Load())
	assert.Zero(t, refreshCalls.Load())
}

func TestDo_StaleTokenRefreshThenRetry(t *testing.T) {
	newAT := accessToken(time.Hour)

	var dataCalls, refreshCalls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/refresh":
			refreshCalls.Add(1)
			json.NewEncoder(w).Encode(map[string]string{"access_token": newAT})
		case "/data":
			dataCalls.Add(1)
			assert.Equal(t, "Bearer "+newAT, r.Header.Get("Authorization"),
				"retried call must carry the refreshed token")
			w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	store := keychain.NewMemory()
	require.NoError(t, store.Save(keychain.AccessToken, accessToken(-time.Minute)))
	require.NoError(t, store.Save(keychain.RefreshToken, "r1"))

	s := newTestSession(srv, store)

	resp, err := s.Do(context.Background(), http.MethodGet, srv.URL+"/data", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Equal(t, int32(1), dataCalls.Load())
	assert.True(t, s.Authenticated())
}

func TestDo_StaleTokenRefreshFailure(t *testing.T) {
	var dataCalls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/refresh":
			w.WriteHeader(http.StatusInternalServerError)
		case "/data":
			dataCalls.Add(1)
		}
	}))
	defer srv.Close()

	store := keychain.NewMemory()
	require.NoError(t, store.Save(keychain.AccessToken, accessToken(-time.Minute)))
	require.NoError(t, store.Save(keychain.RefreshToken, "r1"))

	s := newTestSession(srv, store)

	_, err := s.Do(context.Background(), http.MethodGet, srv.URL+"/data", nil)
	require.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
	assert.Zero(t, dataCalls.Load(), "no retried request after a failed refresh")
	assert.False(t, s.Authenticated())

	_, ok := store.Get(keychain.RefreshToken)
	assert.False(t, ok)
}

func TestDo_ConcurrentStaleCallsShareOneRefresh(t *testing.T) {
	const callers = 8

	newAT := accessToken(time.Hour)

	var dataCalls, refreshCalls atomic.Int32

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/refresh":
			refreshCalls.Add(1)
			<-release
			json.NewEncoder(w).Encode(map[string]string{"access_token": newAT})
		case "/data":
			dataCalls.Add(1)
			w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	store := keychain.NewMemory()
	require.NoError(t, store.Save(keychain.AccessToken, accessToken(-time.Minute)))
	require.NoError(t, store.Save(keychain.RefreshToken, "r1"))

	s := newTestSession(srv, store)

	var wg sync.WaitGroup

	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			_, errs[i] = s.Do(context.Background(), http.MethodGet, srv.URL+"/data", nil)
		}(i)
	}

	// Give every caller time to observe the stale token and join the
	// in-flight refresh before it completes.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}

	assert.Equal(t, int32(1), refreshCalls.Load(), "concurrent callers must share one refresh")
	assert.Equal(t, int32(callers), dataCalls.Load())
}

func TestLogout_DuringRefreshLogoutWins(t *testing.T) {
	inFlight := make(chan struct{})
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(inFlight)
		<-release
		json.NewEncoder(w).Encode(map[string]string{"access_token": accessToken(time.Hour)})
	}))
	defer srv.Close()

	store := keychain.NewMemory()
	require.NoError(t, store.Save(keychain.AccessToken, accessToken(-time.Minute)))
	require.NoError(t, store.Save(keychain.RefreshToken, "r1"))

	s := newTestSession(srv, store)

	done := make(chan error, 1)

	go func() {
		done <- s.Refresh(context.Background())
	}()

	<-inFlight
	s.Logout()
	close(release)

	err := <-done
	require.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
	assert.False(t, s.Authenticated(), "a refresh completing after logout must not resurrect the session")

	_, ok := store.Get(keychain.AccessToken)
	assert.False(t, ok, "the late refresh result must not be persisted")
	_, ok = store.Get(keychain.RefreshToken)
	assert.False(t, ok)
}

// --- ChangePassword ---

func TestChangePassword_Success(t *testing.T) {
	at := accessToken(time.Hour)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/change_password", r.URL.Path)
		assert.Equal(t, "Bearer "+at, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "old", req["current_password"])
		assert.Equal(t, "new", req["new_password"])
		assert.Equal(t, "new", req["new_password_repeat"])
	}))
	defer srv.Close()

	store := keychain.NewMemory()
	require.NoError(t, store.Save(keychain.AccessToken, at))
	require.NoError(t, store.Save(keychain.RefreshToken, "r1"))

	s := newTestSession(srv, store)
	s.Init(context.Background())

	require.NoError(t, s.ChangePassword(context.Background(), "old", "new", "new"))
	assert.True(t, s.Authenticated())
}

func TestChangePassword_FailureKeepsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"current password is incorrect"}`))
	}))
	defer srv.Close()

	store := keychain.NewMemory()
	require.NoError(t, store.Save(keychain.AccessToken, accessToken(time.Hour)))
	require.NoError(t, store.Save(keychain.RefreshToken, "r1"))

	s := newTestSession(srv, store)
	s.Init(context.Background())

	err := s.ChangePassword(context.Background(), "bad", "new", "new")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "current password is incorrect")
	assert.True(t, s.Authenticated(), "a failed password change must not end the session")
}

// --- Subscribe ---

func TestSubscribe_NotifiedOnTransitions(t *testing.T) {
	at := accessToken(time.Hour)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": at, "refresh_token": "r1"})
	}))
	defer srv.Close()

	s := newTestSession(srv, keychain.NewMemory())

	ch, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.Login(context.Background(), "a@b.com", "x"))

	select {
	case st := <-ch:
		assert.Equal(t, Authenticated, st)
	case <-time.After(time.Second):
		t.Fatal("no notification after login")
	}

	s.Logout()

	select {
	case st := <-ch:
		assert.Equal(t, Unauthenticated, st)
	case <-time.After(time.Second):
		t.Fatal("no notification after logout")
	}
}

func TestSubscribe_CoalescesToLatest(t *testing.T) {
	at := accessToken(time.Hour)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": at, "refresh_token": "r1"})
	}))
	defer srv.Close()

	s := newTestSession(srv, keychain.NewMemory())

	ch, cancel := s.Subscribe()
	defer cancel()

	// Two transitions without draining: only the latest survives.
	require.NoError(t, s.Login(context.Background(), "a@b.com", "x"))
	s.Logout()

	assert.Equal(t, Unauthenticated, <-ch)

	select {
	case st := <-ch:
		t.Fatalf("unexpected second notification: %v", st)
	default:
	}
}

func TestSubscribe_CancelTwiceIsSafe(t *testing.T) {
	s := New(nil, keychain.NewMemory(), "http://unused", discardLogger())

	_, cancel := s.Subscribe()
	cancel()
	cancel()
}
