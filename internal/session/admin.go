package session

import (
	"encoding/json"
	"log"
	"time"

	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/storage"
)

// AdminSession is the separately persisted admin login record, kept on
// the device next to the user session so switching into the admin area
// does not disturb the user's token.
type AdminSession struct {
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName,omitempty"`
	SavedAt     time.Time `json:"savedAt"`
}

// AdminSession reads the stored admin blob. Absent or corrupt blobs
// read as not present.
func (m *Manager) AdminSession() (AdminSession, bool) {
	raw, ok, err := m.plain.Get(storage.KeyAdminBlob)
	if err != nil || !ok {
		return AdminSession{}, false
	}
	var admin AdminSession
	if err := json.Unmarshal(raw, &admin); err != nil {
		log.Printf("session: stored admin blob unreadable: %v", err)
		return AdminSession{}, false
	}
	return admin, true
}

// SetAdminSession persists the admin blob, overwriting any prior one.
func (m *Manager) SetAdminSession(admin AdminSession) error {
	raw, err := json.Marshal(admin)
	if err != nil {
		return err
	}
	return m.plain.Set(storage.KeyAdminBlob, raw)
}

// ClearAdminSession removes the admin blob. The user session is not
// touched.
func (m *Manager) ClearAdminSession() error {
	return m.plain.Delete(storage.KeyAdminBlob)
}
