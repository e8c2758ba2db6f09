package model

// DeviceStatus is one device's last reported playback state, keyed by the
// client-generated device ID. UpdatedAt is Unix milliseconds; entries are
// considered stale once now-UpdatedAt exceeds the registry TTL and are
// filtered from listings without being deleted.
type DeviceStatus struct {
	DeviceID  string      `json:"deviceId"`
	IP        string      `json:"ip"`
	IsPlaying bool        `json:"isPlaying"`
	Song      *NowPlaying `json:"song"`
	UpdatedAt int64       `json:"updatedAt"`
	UserAgent string      `json:"ua"`
}

// StatusReport is the body of a status/heartbeat POST.
type StatusReport struct {
	DeviceID  string `json:"deviceId"`
	SongID    string `json:"songId,omitempty"`
	IsPlaying bool   `json:"isPlaying"`
	Title     string `json:"title,omitempty"`
	Artist    string `json:"artist,omitempty"`
}
