// Package constants defines application-wide constants and default values.
package constants

const (
	// Addon metadata
	AddonID          = "community.gostremiodebrid"
	AddonVersion     = "1.0.0"
	AddonName        = "GoStremioDebrid"
	AddonDescription = "Jackett search resolved through AllDebrid or Real-Debrid"
	AddonLogo        = "https://i.imgur.com/wEYQYN8.png"

	DefaultPort     = 7000
	DefaultLogLevel = "info"

	// Metadata cache settings
	DefaultCacheSize = 2000
	DefaultCacheTTL  = 24 // hours

	// Rate limiting, requests per second and burst
	AllDebridRateLimit  = 10
	AllDebridRateBurst  = 5
	RealDebridRateLimit = 4
	RealDebridRateBurst = 4

	// Stremio media types
	MediaTypeMovie  = "movie"
	MediaTypeSeries = "series"
)

// VideoExtensions lists file suffixes treated as playable.
var VideoExtensions = []string{
	".mkv", ".mp4", ".avi", ".mov", ".wmv", ".flv", ".webm", ".m4v", ".mpg", ".mpeg", ".ts",
}
