// Package session owns the durable identity of the current user: the
// bearer token in the secure store, the cached profile, and the merged
// preferences.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"

	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/models"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/storage"
)

// ErrNotAuthenticated is returned by Init when no token is persisted.
// Callers treat it as "logged out", not as a failure to retry.
var ErrNotAuthenticated = errors.New("not authenticated")

// ProfileFetcher loads the profile for the currently stored token.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context) (models.Profile, error)
}

// Manager is the single source of truth for the logged-in session.
type Manager struct {
	secure  storage.KV
	plain   storage.KV
	fetcher ProfileFetcher
	onClear func()
}

// NewManager wires the manager. onClear may be nil; when set it is
// invoked on Clear so the app can drop back to its unauthenticated
// entry point.
func NewManager(secure, plain storage.KV, fetcher ProfileFetcher, onClear func()) *Manager {
	return &Manager{secure: secure, plain: plain, fetcher: fetcher, onClear: onClear}
}

// Token returns the persisted token, or "" when logged out. Storage
// errors read as absence; this never fails.
func (m *Manager) Token() string {
	val, ok, err := m.secure.Get(storage.KeyToken)
	if err != nil || !ok {
		return ""
	}
	return string(val)
}

// Init resolves the session. A non-empty token argument is persisted
// first, overwriting any prior value. The persisted token is then read
// back; absence yields ErrNotAuthenticated. Otherwise exactly one
// profile fetch and one preferences merge happen, and the populated
// profile is returned. Fetch failures keep their api taxonomy so
// callers can tell transport trouble from a bad session.
func (m *Manager) Init(ctx context.Context, token string) (*models.Profile, error) {
	if token != "" {
		if err := m.secure.Set(storage.KeyToken, []byte(token)); err != nil {
			return nil, err
		}
	}

	if m.Token() == "" {
		return nil, ErrNotAuthenticated
	}

	profile, err := m.fetcher.FetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	normalizeImage(&profile)
	profile.Preferences = m.Preferences()
	return &profile, nil
}

// InitSession preserves the boolean caller contract: any negative
// outcome reads as "not logged in".
func (m *Manager) InitSession(ctx context.Context, token string) (*models.Profile, bool) {
	profile, err := m.Init(ctx, token)
	if err != nil {
		if !errors.Is(err, ErrNotAuthenticated) {
			log.Printf("session init failed: %v", err)
		}
		return nil, false
	}
	return profile, true
}

// Clear deletes the persisted token and fires the clear signal. It is
// idempotent; clearing with no session present only signals.
func (m *Manager) Clear() {
	if err := m.secure.Delete(storage.KeyToken); err != nil {
		log.Printf("session clear: delete token: %v", err)
	}
	if m.onClear != nil {
		m.onClear()
	}
}

// Preferences reads stored preferences merged onto the defaults, so
// default keys added by an app update backfill existing installs. The
// first read persists the merged defaults once; after that reads do
// not mutate storage.
func (m *Manager) Preferences() models.Preferences {
	stored, ok := m.readStoredPreferences()
	merged := models.DefaultPreferences().Merge(stored)
	if !ok {
		if err := m.writePreferences(merged); err != nil {
			log.Printf("session: persist default preferences: %v", err)
		}
	}
	return merged
}

// SetPreferences merges the partial update onto defaults and stored
// values, then persists the full merged object, never a sparse patch.
func (m *Manager) SetPreferences(partial models.Preferences) (models.Preferences, error) {
	stored, _ := m.readStoredPreferences()
	merged := models.DefaultPreferences().Merge(stored, partial)
	if err := m.writePreferences(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

func (m *Manager) readStoredPreferences() (models.Preferences, bool) {
	raw, ok, err := m.plain.Get(storage.KeyPreferences)
	if err != nil || !ok {
		return nil, false
	}
	var prefs models.Preferences
	if err := json.Unmarshal(raw, &prefs); err != nil {
		// Corrupt blobs read as absent and get rebuilt from defaults.
		log.Printf("session: stored preferences unreadable: %v", err)
		return nil, false
	}
	return prefs, true
}

func (m *Manager) writePreferences(prefs models.Preferences) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	return m.plain.Set(storage.KeyPreferences, raw)
}

// normalizeImage converts an embedded base64 image payload into a
// displayable data URI and drops the raw base64 from the in-memory
// object.
func normalizeImage(profile *models.Profile) {
	if profile.ImageBase64 == "" {
		return
	}
	if _, err := base64.StdEncoding.DecodeString(profile.ImageBase64); err == nil {
		profile.ImageURL = "data:image/png;base64," + profile.ImageBase64
	}
	profile.ImageBase64 = ""
}
