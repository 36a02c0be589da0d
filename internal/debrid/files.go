package debrid

import (
	"path"
	"strings"

	"github.com/amaumene/gostremiodebrid/internal/constants"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/internal/ranker"
)

// File is one entry of a resolved torrent, normalized across providers.
type File struct {
	ID   int
	Path string
	Size int64
	Link string
}

// IsVideo reports whether name has a playable extension and is not a sample.
func IsVideo(name string) bool {
	lower := strings.ToLower(name)
	if strings.Contains(path.Base(lower), "sample") {
		return false
	}
	for _, ext := range constants.VideoExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// SelectFile picks the file to stream. Without a filter it is the largest
// video. With one, the largest video whose name carries the wanted
// season/episode wins; failing that, a torrent already matched to the exact
// episode yields its largest video, and anything else yields nothing.
func SelectFile(files []File, filter *EpisodeFilter, source models.RankedTorrent) (File, bool) {
	var best, fallback *File
	for i := range files {
		f := &files[i]
		if !IsVideo(f.Path) {
			continue
		}
		if fallback == nil || f.Size > fallback.Size {
			fallback = f
		}
		if filter == nil {
			continue
		}
		s, e := ranker.ParseMarkers(path.Base(f.Path))
		if s == filter.Season && e == filter.Episode && (best == nil || f.Size > best.Size) {
			best = f
		}
	}

	switch {
	case filter == nil && fallback != nil:
		return *fallback, true
	case best != nil:
		return *best, true
	case filter != nil && fallback != nil && source.MatchedEpisode != nil:
		return *fallback, true
	}
	return File{}, false
}
