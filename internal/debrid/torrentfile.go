package debrid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
)

const (
	maxTorrentFile   = 10 << 20
	maxLinkRedirects = 10
)

// torrentSource is what an indexer download link pointed at: Jackett either
// redirects to a magnet or serves the .torrent itself.
type torrentSource struct {
	Magnet   string
	Data     []byte
	Filename string
}

// fetchTorrent downloads link. A redirect to a magnet URI is not followed;
// its target is returned instead. The link carries the indexer API key and
// is never logged.
func fetchTorrent(ctx context.Context, client *http.Client, link string) (*torrentSource, error) {
	c := *client
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if req.URL.Scheme == "magnet" {
			return http.ErrUseLastResponse
		}
		if len(via) >= maxLinkRedirects {
			return errors.New("too many redirects")
		}
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("build torrent download request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, transient(fmt.Errorf("torrent download failed: %w", redactURL(err)))
	}
	defer resp.Body.Close()

	if loc := resp.Header.Get("Location"); resp.StatusCode >= 300 && resp.StatusCode < 400 {
		if strings.HasPrefix(strings.ToLower(loc), "magnet:?") {
			return &torrentSource{Magnet: loc}, nil
		}
		return nil, fmt.Errorf("torrent download redirected to %q", loc)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, transient(fmt.Errorf("torrent download HTTP %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("torrent download HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTorrentFile))
	if err != nil {
		return nil, transient(fmt.Errorf("read torrent file: %w", err))
	}
	if m := strings.TrimSpace(string(data)); strings.HasPrefix(m, "magnet:?") {
		return &torrentSource{Magnet: m}, nil
	}
	// a bencoded dictionary
	if len(data) < 10 || data[0] != 'd' {
		return nil, errors.New("download is not a torrent file")
	}
	return &torrentSource{Data: data, Filename: torrentFilename(resp, link)}, nil
}

func torrentFilename(resp *http.Response, link string) string {
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		if name := strings.TrimSpace(params["filename"]); name != "" {
			return path.Base(name)
		}
	}
	if u, err := url.Parse(link); err == nil {
		if name := path.Base(u.Path); name != "" && name != "." && name != "/" {
			if !strings.HasSuffix(strings.ToLower(name), ".torrent") {
				name += ".torrent"
			}
			return name
		}
	}
	return "upload.torrent"
}

// redactURL drops the request URL, and with it the indexer API key, from
// transport errors.
func redactURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
