package model

// Song is an immutable catalog entry. Uniqueness is by ID.
type Song struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Album    string  `json:"album,omitempty"`
	Duration float64 `json:"duration"` // seconds
	URL      string  `json:"url"`
	Cover    string  `json:"cover,omitempty"`
}

// NowPlaying is the song fragment carried in a device status report.
type NowPlaying struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
}
