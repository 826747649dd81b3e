package app

import (
	"context"
	"strings"

	"github.com/harshsingh9817/datacollection/internal/state"
	"github.com/harshsingh9817/datacollection/internal/util"
	"github.com/harshsingh9817/datacollection/pkg/domain"
)

// Session is one signed-in identity's view of the system: its resolved admin
// flag and the cache mirroring its own records. Created on sign-in, cleared
// on sign-out.
type Session struct {
	Identity domain.Identity
	Admin    bool
	Cache    *state.Cache
}

// IsAdmin reports whether the identity's email matches the configured
// administrator email. Case-insensitive; no further verification is applied.
func (a *App) IsAdmin(id domain.Identity) bool {
	return a.adminEmail != "" && strings.EqualFold(id.Email, a.adminEmail)
}

// NewSession resolves the identity into a session: computes the admin flag,
// ensures the user profile exists, and loads the session cache. A partial
// cache load does not fail sign-in; the error is logged and the session
// proceeds with whatever loaded.
func (a *App) NewSession(ctx context.Context, id domain.Identity) (*Session, error) {
	if strings.TrimSpace(id.ID) == "" {
		return nil, ErrUnauthenticated
	}
	admin := a.IsAdmin(id)
	logger := util.LoggerFromContext(ctx)
	if err := a.EnsureUserProfile(ctx, id); err != nil {
		// Profile upsert failure is not fatal to the session; the next
		// sign-in retries it.
		logger.Warn("ensure user profile failed", "userID", id.ID, "error", err)
	}
	sess := &Session{
		Identity: id,
		Admin:    admin,
		Cache:    state.NewCache(a.store, id.ID, admin),
	}
	if err := sess.Cache.Load(ctx); err != nil {
		logger.Warn("session data load incomplete", "userID", id.ID, "error", err)
	}
	return sess, nil
}

// EndSession clears the session cache. Late mutation results arriving after
// this point are discarded by the cache itself.
func (a *App) EndSession(sess *Session) {
	if sess == nil {
		return
	}
	sess.Cache.Clear()
}

// EnsureUserProfile lazily creates the identity's profile on first sign-in
// and patches name/email only when they drifted from the provider's values.
// Calling it again with unchanged values performs no write. The stored name
// is never overwritten with the generic fallback.
func (a *App) EnsureUserProfile(ctx context.Context, id domain.Identity) error {
	existing, found, err := a.store.GetUserProfile(id.ID)
	if err != nil {
		return err
	}
	name := effectiveName(id)
	if !found {
		return a.store.SaveUserProfile(domain.UserProfile{ID: id.ID, Email: id.Email, Name: name})
	}
	var patchName, patchEmail string
	if name != existing.Name && name != fallbackName {
		patchName = name
	}
	if id.Email != "" && id.Email != existing.Email {
		patchEmail = id.Email
	}
	if patchName == "" && patchEmail == "" {
		return nil
	}
	return a.store.UpdateUserProfile(id.ID, patchName, patchEmail)
}

const fallbackName = "New User"

// effectiveName picks the display name, else the email local part, else a
// generic fallback.
func effectiveName(id domain.Identity) string {
	if n := strings.TrimSpace(id.DisplayName); n != "" {
		return n
	}
	if at := strings.IndexByte(id.Email, '@'); at > 0 {
		return id.Email[:at]
	}
	return fallbackName
}
