// Package indexer searches Jackett torznab indexers and normalizes their results.
package indexer

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/amaumene/gostremiodebrid/internal/constants"
	"github.com/amaumene/gostremiodebrid/internal/models"
)

const userAgent = "gostremiodebrid/1.0"

// Request is one torznab search.
type Request struct {
	Query   models.SearchQuery
	IMDBID  string // "tt1234567"
	Limit   int
	BaseURL string // Jackett root, e.g. http://jackett:9117
	APIKey  string
}

// Client performs torznab calls against a Jackett instance.
type Client struct {
	http *http.Client
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{http: httpClient}
}

// Search queries a single indexer id ("all" for the aggregate endpoint).
func (c *Client) Search(ctx context.Context, indexerID string, req Request) ([]models.Torrent, error) {
	endpoint := torznabURL(req.BaseURL, indexerID)
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid indexer url: %w", err)
	}
	u.RawQuery = searchParams(req).Encode()

	payload, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	var rss torznabResponse
	if err := xml.Unmarshal(payload, &rss); err != nil {
		return nil, fmt.Errorf("invalid torznab XML: %w", err)
	}
	if rss.Error != nil {
		return nil, fmt.Errorf("torznab error %s: %s", rss.Error.Code, rss.Error.Description)
	}

	torrents := make([]models.Torrent, 0, len(rss.Channel.Items))
	for _, item := range rss.Channel.Items {
		if t, ok := itemToTorrent(item, indexerID); ok {
			torrents = append(torrents, t)
		}
	}
	return torrents, nil
}

// Indexers lists configured indexer ids via t=indexers on the aggregate endpoint.
func (c *Client) Indexers(ctx context.Context, baseURL, apiKey string) ([]string, error) {
	u, err := url.Parse(torznabURL(baseURL, "all"))
	if err != nil {
		return nil, fmt.Errorf("invalid indexer url: %w", err)
	}
	q := url.Values{}
	q.Set("t", "indexers")
	q.Set("configured", "true")
	q.Set("apikey", apiKey)
	u.RawQuery = q.Encode()

	payload, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	var list indexersResponse
	if err := xml.Unmarshal(payload, &list); err != nil {
		return nil, fmt.Errorf("invalid indexers XML: %w", err)
	}
	if list.Error != nil {
		return nil, fmt.Errorf("torznab error %s: %s", list.Error.Code, list.Error.Description)
	}

	ids := make([]string, 0, len(list.Indexers))
	for _, idx := range list.Indexers {
		if id := strings.TrimSpace(idx.ID); id != "" && idx.Configured != "false" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/xml,text/xml,application/rss+xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("indexer HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return io.ReadAll(io.LimitReader(resp.Body, constants.MaxTorznabBody))
}

func torznabURL(baseURL, indexerID string) string {
	return fmt.Sprintf("%s/api/v2.0/indexers/%s/results/torznab/api",
		strings.TrimRight(baseURL, "/"), url.PathEscape(indexerID))
}

// searchParams picks the torznab mode: tvsearch with season/ep for series,
// movie for films, with the imdb id when known.
func searchParams(req Request) url.Values {
	q := url.Values{}
	q.Set("apikey", req.APIKey)
	q.Set("extended", "1")
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}

	text := req.Query.Name
	if req.Query.IsSeries() {
		q.Set("t", "tvsearch")
		q.Set("season", req.Query.Season)
		q.Set("ep", req.Query.Episode)
	} else {
		q.Set("t", "movie")
		if req.Query.Year != "" {
			q.Set("year", req.Query.Year)
		}
	}
	if req.IMDBID != "" {
		q.Set("imdbid", req.IMDBID)
	}
	q.Set("q", text)
	return q
}

type torznabResponse struct {
	Channel struct {
		Items []torznabItem `xml:"item"`
	} `xml:"channel"`
	Error *torznabError `xml:"-"`
}

// UnmarshalXML accepts both an <rss> document and a bare <error> element.
func (r *torznabResponse) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	if start.Name.Local == "error" {
		var e torznabError
		if err := d.DecodeElement(&e, &start); err != nil {
			return err
		}
		r.Error = &e
		return nil
	}
	type plain torznabResponse
	return d.DecodeElement((*plain)(r), &start)
}

type torznabError struct {
	Code        string `xml:"code,attr"`
	Description string `xml:"description,attr"`
}

type torznabItem struct {
	Title     string `xml:"title"`
	GUID      string `xml:"guid"`
	Link      string `xml:"link"`
	Size      int64  `xml:"size"`
	Enclosure struct {
		URL    string `xml:"url,attr"`
		Length int64  `xml:"length,attr"`
	} `xml:"enclosure"`
	Indexer struct {
		ID   string `xml:"id,attr"`
		Name string `xml:",chardata"`
	} `xml:"jackettindexer"`
	Attrs []struct {
		Name  string `xml:"name,attr"`
		Value string `xml:"value,attr"`
	} `xml:"attr"`
}

type indexersResponse struct {
	Indexers []struct {
		ID         string `xml:"id,attr"`
		Configured string `xml:"configured,attr"`
		Title      string `xml:"title"`
	} `xml:"indexer"`
	Error *torznabError `xml:"-"`
}

func (r *indexersResponse) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	if start.Name.Local == "error" {
		var e torznabError
		if err := d.DecodeElement(&e, &start); err != nil {
			return err
		}
		r.Error = &e
		return nil
	}
	type plain indexersResponse
	return d.DecodeElement((*plain)(r), &start)
}
