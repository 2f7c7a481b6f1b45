package session_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/lshigami/iqtester/database"
	"github.com/lshigami/iqtester/internal/apitest"
	"github.com/lshigami/iqtester/internal/model"
	"github.com/lshigami/iqtester/internal/repository"
	"github.com/lshigami/iqtester/internal/session"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newRepo(t *testing.T) repository.TokenRepository {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return repository.NewTokenRepository(db)
}

func stored(t *testing.T, repo repository.TokenRepository, key string) bool {
	t.Helper()
	_, ok, err := repo.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	return ok
}

func TestLogin_DecodesIdentity(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	repo := newRepo(t)
	store := session.NewStore(repo)

	access := apitest.NewAccessToken(42, "alice", "alice@example.com", time.Now().Add(time.Hour))
	g.Expect(store.Login(ctx, model.TokenPair{Access: access, Refresh: "refresh"})).To(Succeed())

	identity, ok := store.CurrentIdentity()
	g.Expect(ok).To(BeTrue())
	g.Expect(identity).To(Equal(model.Identity{ID: "42", Username: "alice", Email: "alice@example.com"}))
	g.Expect(store.AccessToken()).To(Equal(access))
	g.Expect(stored(t, repo, session.AccessTokenKey)).To(BeTrue())
	g.Expect(stored(t, repo, session.RefreshTokenKey)).To(BeTrue())
}

func TestLogin_StringUserID(t *testing.T) {
	g := NewWithT(t)
	store := session.NewStore(newRepo(t))

	access := apitest.NewAccessToken("64f1c0ffee", "bob", "bob@example.com", time.Now().Add(time.Hour))
	g.Expect(store.Login(context.Background(), model.TokenPair{Access: access})).To(Succeed())

	identity, ok := store.CurrentIdentity()
	g.Expect(ok).To(BeTrue())
	g.Expect(identity.ID).To(Equal(model.ID("64f1c0ffee")))
}

func TestLogin_MalformedTokenLeavesNoSession(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	repo := newRepo(t)
	store := session.NewStore(repo)

	for _, access := range []string{
		"not-a-jwt",
		apitest.NewTokenWithoutExpiry(1, "alice", "alice@example.com"),
	} {
		err := store.Login(ctx, model.TokenPair{Access: access, Refresh: "r"})
		g.Expect(err).To(MatchError(session.ErrInvalidToken))

		_, ok := store.CurrentIdentity()
		g.Expect(ok).To(BeFalse())
		g.Expect(store.AccessToken()).To(BeEmpty())
		g.Expect(stored(t, repo, session.AccessTokenKey)).To(BeFalse())
		g.Expect(stored(t, repo, session.RefreshTokenKey)).To(BeFalse())
	}
}

func TestLogout_Idempotent(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	repo := newRepo(t)
	store := session.NewStore(repo)

	access := apitest.NewAccessToken(1, "alice", "alice@example.com", time.Now().Add(time.Hour))
	g.Expect(store.Login(ctx, model.TokenPair{Access: access, Refresh: "r"})).To(Succeed())

	g.Expect(store.Logout(ctx)).To(Succeed())
	g.Expect(store.Logout(ctx)).To(Succeed())

	_, ok := store.CurrentIdentity()
	g.Expect(ok).To(BeFalse())
	g.Expect(stored(t, repo, session.AccessTokenKey)).To(BeFalse())
	g.Expect(stored(t, repo, session.RefreshTokenKey)).To(BeFalse())
}

func TestCurrentIdentity_ExpiresAndPurges(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	repo := newRepo(t)
	c := &clock{t: time.Now()}
	store := session.NewStore(repo, session.WithClock(c.now))

	access := apitest.NewAccessToken(1, "alice", "alice@example.com", c.t.Add(time.Minute))
	g.Expect(store.Login(ctx, model.TokenPair{Access: access, Refresh: "r"})).To(Succeed())
	_, ok := store.CurrentIdentity()
	g.Expect(ok).To(BeTrue())

	c.t = c.t.Add(2 * time.Minute)
	_, ok = store.CurrentIdentity()
	g.Expect(ok).To(BeFalse())
	g.Expect(store.AccessToken()).To(BeEmpty())
	g.Expect(stored(t, repo, session.AccessTokenKey)).To(BeFalse())
}

func TestRestore_ValidToken(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	repo := newRepo(t)

	access := apitest.NewAccessToken(7, "carol", "carol@example.com", time.Now().Add(time.Hour))
	g.Expect(repo.Save(ctx, session.AccessTokenKey, access)).To(Succeed())

	store := session.NewStore(repo)
	g.Expect(store.Loading()).To(BeTrue())
	g.Expect(store.Loaded()).NotTo(BeClosed())

	store.Restore(ctx)
	g.Expect(store.Loading()).To(BeFalse())
	g.Expect(store.Loaded()).To(BeClosed())

	identity, ok := store.CurrentIdentity()
	g.Expect(ok).To(BeTrue())
	g.Expect(identity.Username).To(Equal("carol"))
}

func TestRestore_PurgesExpiredAndMalformed(t *testing.T) {
	for name, access := range map[string]string{
		"expired":   apitest.NewAccessToken(7, "carol", "carol@example.com", time.Now().Add(-time.Minute)),
		"malformed": "garbage",
	} {
		t.Run(name, func(t *testing.T) {
			g := NewWithT(t)
			ctx := context.Background()
			repo := newRepo(t)
			g.Expect(repo.Save(ctx, session.AccessTokenKey, access)).To(Succeed())
			g.Expect(repo.Save(ctx, session.RefreshTokenKey, "r")).To(Succeed())

			store := session.NewStore(repo)
			store.Restore(ctx)

			g.Expect(store.Loading()).To(BeFalse())
			_, ok := store.CurrentIdentity()
			g.Expect(ok).To(BeFalse())
			g.Expect(stored(t, repo, session.AccessTokenKey)).To(BeFalse())
			g.Expect(stored(t, repo, session.RefreshTokenKey)).To(BeFalse())
		})
	}
}

func TestRestore_RunsOnce(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	repo := newRepo(t)
	store := session.NewStore(repo)

	store.Restore(ctx)
	_, ok := store.CurrentIdentity()
	g.Expect(ok).To(BeFalse())

	access := apitest.NewAccessToken(7, "carol", "carol@example.com", time.Now().Add(time.Hour))
	g.Expect(repo.Save(ctx, session.AccessTokenKey, access)).To(Succeed())

	g.Expect(func() { store.Restore(ctx) }).NotTo(Panic())
	_, ok = store.CurrentIdentity()
	g.Expect(ok).To(BeFalse())
}

// failingSave rejects saves of key once set and passes everything else
// through.
type failingSave struct {
	repository.TokenRepository
	key string
}

func (f *failingSave) Save(ctx context.Context, key, value string) error {
	if key == f.key {
		return errors.New("disk full")
	}
	return f.TokenRepository.Save(ctx, key, value)
}

func TestLogin_SaveFailureLeavesNoSession(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	repo := newRepo(t)
	failing := &failingSave{TokenRepository: repo}
	store := session.NewStore(failing)

	old := apitest.NewAccessToken(1, "alice", "alice@example.com", time.Now().Add(time.Hour))
	g.Expect(store.Login(ctx, model.TokenPair{Access: old, Refresh: "r"})).To(Succeed())

	failing.key = session.RefreshTokenKey
	access := apitest.NewAccessToken(2, "bob", "bob@example.com", time.Now().Add(time.Hour))
	err := store.Login(ctx, model.TokenPair{Access: access, Refresh: "refresh"})
	g.Expect(err).To(MatchError(ContainSubstring("persist refresh token")))

	_, ok := store.CurrentIdentity()
	g.Expect(ok).To(BeFalse())
	g.Expect(store.AccessToken()).To(BeEmpty())
	g.Expect(stored(t, repo, session.AccessTokenKey)).To(BeFalse())
	g.Expect(stored(t, repo, session.RefreshTokenKey)).To(BeFalse())
}
