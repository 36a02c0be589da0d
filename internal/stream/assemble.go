package stream

import "github.com/amaumene/gostremiodebrid/internal/models"

// Assemble builds one Stream per link that has a URL, keeping link order and
// stopping at limit. A limit <= 0 keeps every link.
func Assemble(title string, links []models.StreamLink, limit int) []models.Stream {
	streams := make([]models.Stream, 0, len(links))
	for _, link := range links {
		if limit > 0 && len(streams) >= limit {
			break
		}
		if link.URL == "" {
			continue
		}
		streams = append(streams, models.Stream{
			Name:  DisplayName(link),
			Title: title,
			URL:   link.URL,
		})
	}
	return streams
}

// DisplayName is the file name followed by its size on a second line.
func DisplayName(link models.StreamLink) string {
	return link.Name + "\n💾" + HumanBytes(link.Size)
}
