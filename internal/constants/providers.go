package constants

// Debrid provider names accepted in the streamService parameter
const (
	ProviderAllDebrid  = "alldebrid"
	ProviderRealDebrid = "realdebrid"
)
