// Package query turns media metadata and Stremio ids into search queries.
package query

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/amaumene/gostremiodebrid/internal/constants"
	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
	"github.com/amaumene/gostremiodebrid/internal/models"
)

var (
	imdbIDPattern = regexp.MustCompile(`^tt\d+$`)
	nonDigit      = regexp.MustCompile(`\D`)
)

// ExtractYear returns the digits before the first non-digit character of a
// release string ("2014-05-01" -> "2014", "2011–2019" -> "2011", "" -> "").
func ExtractYear(releaseInfo string) string {
	return nonDigit.Split(releaseInfo, 2)[0]
}

// ParseID splits a Stremio id of the form "tt123" or "tt123:season:episode".
// Missing season/episode come back as zero.
func ParseID(id string) (imdbID string, season, episode int, err error) {
	parts := strings.Split(id, ":")
	imdbID = parts[0]
	if !imdbIDPattern.MatchString(imdbID) {
		return "", 0, 0, apperrors.NewInvalidIDError(id)
	}

	switch len(parts) {
	case 1:
		return imdbID, 0, 0, nil
	case 3:
		season, err = strconv.Atoi(parts[1])
		if err != nil || season < 0 {
			return "", 0, 0, apperrors.NewInvalidIDError(id)
		}
		episode, err = strconv.Atoi(parts[2])
		if err != nil || episode < 0 {
			return "", 0, 0, apperrors.NewInvalidIDError(id)
		}
		return imdbID, season, episode, nil
	default:
		return "", 0, 0, apperrors.NewInvalidIDError(id)
	}
}

// Build creates the search query for a media item.
func Build(info models.MediaInfo, mediaType string, season, episode int) models.SearchQuery {
	q := models.SearchQuery{
		Name: strings.TrimSpace(info.Name),
		Type: mediaType,
		Year: ExtractYear(info.ReleaseInfo),
	}
	if mediaType == constants.MediaTypeSeries {
		q.Season = strconv.Itoa(season)
		q.Episode = strconv.Itoa(episode)
	}
	return q
}
