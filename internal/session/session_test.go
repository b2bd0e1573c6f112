package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/models"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/storage"
)

type fakeFetcher struct {
	profile models.Profile
	err     error
	calls   int
}

func (f *fakeFetcher) FetchProfile(ctx context.Context) (models.Profile, error) {
	f.calls++
	return f.profile, f.err
}

func newManager(fetcher ProfileFetcher) (*Manager, *storage.MemoryStore, *storage.MemoryStore) {
	secure := storage.NewMemoryStore()
	plain := storage.NewMemoryStore()
	return NewManager(secure, plain, fetcher, nil), secure, plain
}

func TestPreferencesAlwaysFullyPopulated(t *testing.T) {
	mgr, _, _ := newManager(nil)

	prefs := mgr.Preferences()
	for key := range models.DefaultPreferences() {
		assert.Contains(t, prefs, key)
	}
}

func TestPreferencesFirstReadPersistsDefaultsOnce(t *testing.T) {
	mgr, _, plain := newManager(nil)

	_, ok, err := plain.Get(storage.KeyPreferences)
	require.NoError(t, err)
	require.False(t, ok)

	mgr.Preferences()

	_, ok, err = plain.Get(storage.KeyPreferences)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSetPreferencesMergePrecedence(t *testing.T) {
	mgr, _, _ := newManager(nil)

	_, err := mgr.SetPreferences(models.Preferences{"weightUnit": "lbs"})
	require.NoError(t, err)

	merged, err := mgr.SetPreferences(models.Preferences{"timeFormat": "12h"})
	require.NoError(t, err)

	// partial wins over stored, stored wins over defaults, untouched
	// defaults stay present.
	assert.Equal(t, "12h", merged["timeFormat"])
	assert.Equal(t, "lbs", merged["weightUnit"])
	assert.Equal(t, "cm", merged["heightUnit"])

	again := mgr.Preferences()
	assert.Equal(t, merged, again)
}

func TestInitWithoutTokenMakesNoNetworkCall(t *testing.T) {
	fetcher := &fakeFetcher{}
	mgr, _, _ := newManager(fetcher)

	_, err := mgr.Init(context.Background(), "")
	require.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Zero(t, fetcher.calls)
}

func TestInitPersistsTokenIndependentOfFetchOutcome(t *testing.T) {
	fetcher := &fakeFetcher{err: assert.AnError}
	mgr, _, _ := newManager(fetcher)

	_, err := mgr.Init(context.Background(), "tok-123")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotAuthenticated)

	assert.Equal(t, "tok-123", mgr.Token())
	assert.Equal(t, 1, fetcher.calls)
}

func TestInitNormalizesImageAndMergesPreferences(t *testing.T) {
	fetcher := &fakeFetcher{profile: models.Profile{
		ID:          "u1",
		ImageBase64: "aGVsbG8=",
	}}
	mgr, _, _ := newManager(fetcher)

	profile, err := mgr.Init(context.Background(), "tok")
	require.NoError(t, err)

	assert.Empty(t, profile.ImageBase64)
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", profile.ImageURL)
	assert.Equal(t, "kg", profile.Preferences["weightUnit"])
}

func TestClearIsIdempotentAndSignals(t *testing.T) {
	signals := 0
	secure := storage.NewMemoryStore()
	mgr := NewManager(secure, storage.NewMemoryStore(), nil, func() { signals++ })

	require.NoError(t, secure.Set(storage.KeyToken, []byte("tok")))
	mgr.Clear()
	assert.Empty(t, mgr.Token())

	mgr.Clear()
	assert.Equal(t, 2, signals)
}
