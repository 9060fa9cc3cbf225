// Package session owns the authentication state machine: acquiring,
// caching, transparently refreshing, and invalidating the credential
// pair, and mediating every authenticated API call through that
// lifecycle.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/budgetan/budgetan-cli/budgetan"
	apperrors "github.com/budgetan/budgetan-cli/internal/errors"
	"github.com/budgetan/budgetan-cli/internal/keychain"
	"github.com/budgetan/budgetan-cli/internal/token"
)

// ExpiryMargin is the look-ahead window for treating a soon-to-expire
// access token as already unusable. A token expiring within this margin
// triggers a refresh before use.
const ExpiryMargin = 5 * time.Minute

// State is the session's authentication state.
type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}

	return "unauthenticated"
}

// Gateway is the slice of the API client the session depends on.
// *budgetan.Client implements it.
type Gateway interface {
	Login(ctx context.Context, email, password string) (*budgetan.TokenPair, error)
	Register(ctx context.Context, req budgetan.RegisterRequest) error
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Do(ctx context.Context, method, url, accessToken string, payload any) (*budgetan.Response, error)
}

// Session is the process-wide authenticated-session manager. All state
// transitions and credential-store writes are serialized under one mutex;
// concurrent refreshes coalesce into a single in-flight attempt.
type Session struct {
	gw          Gateway
	store       keychain.Store
	logger      *slog.Logger
	authBaseURL string

	mu      sync.Mutex
	state   State
	epoch   uint64
	subs    map[int]chan State
	nextSub int

	refreshGroup singleflight.Group
}

// New creates an unauthenticated session. Call Init to compute the real
// initial state from stored credentials.
func New(gw Gateway, store keychain.Store, authBaseURL string, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		gw:          gw,
		store:       store,
		logger:      logger,
		authBaseURL: authBaseURL,
		state:       Unauthenticated,
		subs:        make(map[int]chan State),
	}
}

// Authenticated reports whether the session currently holds a usable
// credential pair.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state == Authenticated
}

// Subscribe registers an observer of session-state transitions. The
// returned channel is buffered and coalescing: a subscriber that has not
// drained sees only the latest state. The cancel func unsubscribes and
// closes the channel; calling it more than once is safe.
func (s *Session) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}

	return ch, cancel
}

// setState transitions the state machine and notifies subscribers.
// Callers must hold s.mu.
func (s *Session) setState(st State) {
	if s.state == st {
		return
	}

	s.state = st

	for _, ch := range s.subs {
		select {
		case ch <- st:
		default:
			// Subscriber has not drained; replace the stale value.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- st:
			default:
			}
		}
	}
}

// Init computes the initial session state from stored credentials: an
// access token valid beyond the expiry margin authenticates immediately,
// anything else gets one eager refresh attempt. Intended to run once at
// process start.
func (s *Session) Init(ctx context.Context) {
	s.mu.Lock()
	access, ok := s.store.Get(keychain.AccessToken)

	if ok && !stale(access) {
		s.setState(Authenticated)
		s.mu.Unlock()
		s.logger.Debug("session restored from stored access token")

		return
	}

	_, hasRefresh := s.store.Get(keychain.RefreshToken)
	s.mu.Unlock()

	if !hasRefresh {
		// Nothing to refresh with; stay unauthenticated without the
		// noise of a doomed refresh attempt.
		return
	}

	if err := s.Refresh(ctx); err != nil {
		s.logger.Debug("startup refresh failed", slog.String("error", err.Error()))
	}
}

// Login authenticates with the identity service and, on success, persists
// the credential pair and moves to the authenticated state. Server
// rejections surface the server's message; nothing is retried.
func (s *Session) Login(ctx context.Context, email, password string) error {
	pair, err := s.gw.Login(ctx, email, password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Save(keychain.AccessToken, pair.AccessToken); err != nil {
		return fmt.Errorf("persisting access token: %w", err)
	}

	if err := s.store.Save(keychain.RefreshToken, pair.RefreshToken); err != nil {
		return fmt.Errorf("persisting refresh token: %w", err)
	}

	s.setState(Authenticated)
	s.logger.Info("logged in", slog.String("email", email))

	return nil
}

// Register creates an account. It does not authenticate the session and
// does not validate locally that the two passwords match; the server
// decides.
func (s *Session) Register(ctx context.Context, email, profileName, password, passwordRepeat string) error {
	return s.gw.Register(ctx, budgetan.RegisterRequest{
		Email:          email,
		ProfileName:    profileName,
		Password:       password,
		PasswordRepeat: passwordRepeat,
	})
}

// Logout clears the credential store unconditionally and moves to the
// unauthenticated state. Idempotent; never fails. A refresh in flight
// when Logout is called cannot write its result back afterwards.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.forceLogoutLocked()
	s.logger.Info("logged out")
}

// forceLogoutLocked clears credentials, bumps the epoch so in-flight
// refreshes discard their results, and transitions to unauthenticated.
// Callers must hold s.mu.
func (s *Session) forceLogoutLocked() {
	s.epoch++

	if err := s.store.Clear(); err != nil {
		s.logger.Warn("clearing credential store", slog.String("error", err.Error()))
	}

	s.setState(Unauthenticated)
}

// Refresh mints a new access token from the stored refresh token.
// Concurrent callers share a single in-flight attempt. Any failure
// (missing refresh token, transport error, non-200) clears both
// credentials and forces the session unauthenticated.
func (s *Session) Refresh(ctx context.Context) error {
	_, err, _ := s.refreshGroup.Do("refresh", func() (any, error) {
		return nil, s.refreshOnce(ctx)
	})

	return err
}

func (s *Session) refreshOnce(ctx context.Context) error {
	s.mu.Lock()
	epoch := s.epoch
	refreshToken, ok := s.store.Get(keychain.RefreshToken)

	if !ok {
		s.forceLogoutLocked()
		s.mu.Unlock()

		return apperrors.ErrRefreshTokenMissing
	}
	s.mu.Unlock()

	accessToken, err := s.gw.Refresh(ctx, refreshToken)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		// The session ended while the refresh was in flight. Logout wins;
		// discard the result without touching the store.
		return apperrors.ErrAuthenticationFailed
	}

	if err != nil {
		s.logger.Warn("token refresh failed", slog.String("error", err.Error()))
		s.forceLogoutLocked()

		return apperrors.ErrAuthenticationFailed
	}

	if err := s.store.Save(keychain.AccessToken, accessToken); err != nil {
		s.forceLogoutLocked()

		return fmt.Errorf("persisting refreshed access token: %w", err)
	}

	s.setState(Authenticated)
	s.logger.Debug("access token refreshed")

	return nil
}

// EnsureFresh refreshes the access token when it is missing, undecodable,
// or expiring within ExpiryMargin. A no-op for unauthenticated sessions.
// Intended to run on startup and on every foreground/resume transition.
func (s *Session) EnsureFresh(ctx context.Context) error {
	s.mu.Lock()

	if s.state != Authenticated {
		s.mu.Unlock()

		return nil
	}

	access, ok := s.store.Get(keychain.AccessToken)
	s.mu.Unlock()

	if ok && !stale(access) {
		return nil
	}

	return s.Refresh(ctx)
}

// Do is the authenticated-call wrapper every record request routes
// through. It attaches the stored access token, transparently refreshing
// a stale or undecodable one first, and returns the raw response for
// endpoint-specific interpretation. A missing token or a failed refresh
// forces logout and fails the call without touching the network (beyond
// the refresh itself).
func (s *Session) Do(ctx context.Context, method, url string, payload any) (*budgetan.Response, error) {
	s.mu.Lock()
	access, ok := s.store.Get(keychain.AccessToken)

	if !ok {
		s.forceLogoutLocked()
		s.mu.Unlock()

		return nil, apperrors.ErrNotAuthenticated
	}
	s.mu.Unlock()

	if stale(access) {
		if err := s.Refresh(ctx); err != nil {
			return nil, apperrors.ErrAuthenticationFailed
		}

		s.mu.Lock()
		access, ok = s.store.Get(keychain.AccessToken)
		if !ok {
			s.forceLogoutLocked()
			s.mu.Unlock()

			return nil, apperrors.ErrAuthenticationFailed
		}
		s.mu.Unlock()
	}

	return s.gw.Do(ctx, method, url, access, payload)
}

// ChangePassword changes the account password through the authenticated
// wrapper. Failure leaves the session state untouched: the user stays
// logged in, only the password change itself failed.
func (s *Session) ChangePassword(ctx context.Context, current, newPassword, newPasswordRepeat string) error {
	resp, err := s.Do(ctx, http.MethodPost, s.authBaseURL+"/change_password", budgetan.ChangePasswordRequest{
		CurrentPassword:   current,
		NewPassword:       newPassword,
		NewPasswordRepeat: newPasswordRepeat,
	})
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return resp.Err("password change failed")
	}

	return nil
}

// stale reports whether an access token is expiring within ExpiryMargin
// or cannot be decoded at all.
func stale(access string) bool {
	exp, ok := token.ExpirationOf(access)
	if !ok {
		return true
	}

	return time.Until(exp) < ExpiryMargin
}
