package models

// Stream represents a single playable stream in Stremio format.
type Stream struct {
	Name  string `json:"name,omitempty"`
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
}

// StreamResponse is the response format for stream endpoints.
// Error carries a caller-visible reason when no streams could be produced.
type StreamResponse struct {
	Streams []Stream `json:"streams"`
	Error   string   `json:"error,omitempty"`
}

// MediaInfo is what the metadata service knows about a title.
type MediaInfo struct {
	Name        string `json:"name"`
	ReleaseInfo string `json:"releaseInfo"`
}
