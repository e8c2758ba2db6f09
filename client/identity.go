package client

import (
	"LanFM/localstore"
	"LanFM/logger"

	"github.com/google/uuid"
)

// EnsureDeviceID returns the device's stable identity, generating and
// persisting one on first run.
func EnsureDeviceID(local *localstore.Store) string {
	var id string
	if local.Get(localstore.KeyDeviceID, &id) && id != "" {
		return id
	}

	id = "dev-" + uuid.NewString()
	if err := local.Set(localstore.KeyDeviceID, id); err != nil {
		logger.Warn("device id persist failed", logger.ErrorField(err))
	}
	return id
}
