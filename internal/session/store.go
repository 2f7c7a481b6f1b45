package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lshigami/iqtester/internal/dto"
	"github.com/lshigami/iqtester/internal/model"
	"github.com/lshigami/iqtester/internal/repository"
	"github.com/rs/zerolog/log"
)

// Storage keys of the two persisted tokens.
const (
	AccessTokenKey  = "accessToken"
	RefreshTokenKey = "refreshToken"
)

var ErrInvalidToken = errors.New("invalid access token")

// Claims is the payload of an access token. The signature is checked by the
// server only.
type Claims struct {
	UserID   dto.FlexID `json:"user_id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	jwt.RegisteredClaims
}

// Store owns the current session: the persisted token pair and the identity
// decoded from the access token. It is the only writer of the token storage.
type Store struct {
	repo repository.TokenRepository
	now  func() time.Time

	mu        sync.RWMutex
	identity  *model.Identity
	access    string
	expiresAt time.Time
	loading   bool

	restoreOnce sync.Once
	loaded      chan struct{}
}

type Option func(*Store)

// WithClock replaces time.Now, for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(repo repository.TokenRepository, opts ...Option) *Store {
	s := &Store{
		repo:    repo,
		now:     time.Now,
		loading: true,
		loaded:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads the persisted session once. An expired or unreadable token is
// purged and leaves no identity; nothing is reported to the caller.
func (s *Store) Restore(ctx context.Context) {
	s.restoreOnce.Do(func() {
		defer s.finishLoading()

		access, ok, err := s.repo.Get(ctx, AccessTokenKey)
		if err != nil {
			log.Warn().Err(err).Msg("Session restore: failed to read stored token")
			return
		}
		if !ok {
			log.Debug().Msg("Session restore: no stored token")
			return
		}

		identity, exp, err := decode(access)
		if err != nil {
			log.Info().Err(err).Msg("Session restore: discarding unreadable token")
			s.purge(ctx)
			return
		}
		if !exp.After(s.now()) {
			log.Info().Time("expired_at", exp).Msg("Session restore: discarding expired token")
			s.purge(ctx)
			return
		}

		s.mu.Lock()
		s.set(identity, access, exp)
		s.mu.Unlock()
		log.Info().Str("username", identity.Username).Msg("Session restored")
	})
}

func (s *Store) finishLoading() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	close(s.loaded)
}

// Login persists the token pair and makes the identity in the access token
// current. When the pair cannot be saved or the token cannot be decoded the
// store ends with no session and nothing stored.
func (s *Store) Login(ctx context.Context, pair model.TokenPair) error {
	if err := s.repo.Save(ctx, AccessTokenKey, pair.Access); err != nil {
		s.drop(ctx)
		return fmt.Errorf("persist access token: %w", err)
	}
	if err := s.repo.Save(ctx, RefreshTokenKey, pair.Refresh); err != nil {
		s.drop(ctx)
		return fmt.Errorf("persist refresh token: %w", err)
	}

	identity, exp, err := decode(pair.Access)
	if err != nil {
		s.drop(ctx)
		return err
	}

	s.mu.Lock()
	s.set(identity, pair.Access, exp)
	s.mu.Unlock()
	log.Info().Str("username", identity.Username).Time("expires_at", exp).Msg("Logged in")
	return nil
}

// Logout drops the session and its persisted tokens. Safe to call repeatedly.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.clear()
	s.mu.Unlock()

	if err := s.repo.Delete(ctx, AccessTokenKey, RefreshTokenKey); err != nil {
		return fmt.Errorf("delete stored tokens: %w", err)
	}
	return nil
}

// CurrentIdentity returns the identity of a non-expired session. A session
// that expired since it was loaded is purged.
func (s *Store) CurrentIdentity() (model.Identity, bool) {
	s.mu.Lock()
	if s.identity == nil {
		s.mu.Unlock()
		return model.Identity{}, false
	}
	if s.expiresAt.After(s.now()) {
		identity := *s.identity
		s.mu.Unlock()
		return identity, true
	}
	s.clear()
	s.mu.Unlock()

	log.Info().Msg("Session expired")
	s.purge(context.Background())
	return model.Identity{}, false
}

// AccessToken returns the bearer credential of the current session, or "".
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

// Loading is true until Restore has finished.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Loaded is closed once Restore has finished.
func (s *Store) Loaded() <-chan struct{} {
	return s.loaded
}

// set and clear require s.mu.
func (s *Store) set(identity model.Identity, access string, exp time.Time) {
	s.identity = &identity
	s.access = access
	s.expiresAt = exp
}

func (s *Store) clear() {
	s.identity = nil
	s.access = ""
	s.expiresAt = time.Time{}
}

// drop ends the session in memory and in storage so the two never disagree.
func (s *Store) drop(ctx context.Context) {
	s.mu.Lock()
	s.clear()
	s.mu.Unlock()
	s.purge(ctx)
}

func (s *Store) purge(ctx context.Context) {
	if err := s.repo.Delete(ctx, AccessTokenKey, RefreshTokenKey); err != nil {
		log.Error().Err(err).Msg("Failed to purge stored tokens")
	}
}

func decode(token string) (model.Identity, time.Time, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return model.Identity{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ExpiresAt == nil {
		return model.Identity{}, time.Time{}, fmt.Errorf("%w: missing exp claim", ErrInvalidToken)
	}

	identity := model.Identity{
		ID:       model.ID(claims.UserID),
		Username: claims.Username,
		Email:    claims.Email,
	}
	return identity, claims.ExpiresAt.Time, nil
}
