// Package storage implements the device key-value persistence backing
// the session store: a plain file-backed store for preferences and
// cached state, and an encrypted store for the auth token.
package storage

// Well-known keys used by the session store.
const (
	KeyToken       = "token"
	KeyPreferences = "preferences"
	KeyAdminBlob   = "admin_session"
)

// KV is the minimal persistence surface the session store needs.
// Get reports absence through the boolean, not through an error.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}
