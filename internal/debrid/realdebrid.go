package debrid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amaumene/gostremiodebrid/internal/constants"
	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
	"github.com/amaumene/gostremiodebrid/pkg/ratelimiter"
	"github.com/amaumene/gostremiodebrid/pkg/security"
)

const (
	realDebridBaseURL = "https://api.real-debrid.com/rest/1.0"

	realDebridDownloaded = "downloaded"
)

// error_code values meaning the token itself is unusable
var realDebridAuthCodes = map[int]bool{
	8:  true, // bad_token
	9:  true, // permission_denied
	14: true, // account_locked
	22: true, // ip_not_allowed
}

// RealDebrid is the instant-cache provider: a torrent is added and kept only
// if the backend already has it downloaded. Nothing is waited for.
type RealDebrid struct {
	baseURL   string
	http      *http.Client
	limiter   ratelimiter.RateLimiter
	validator *security.APIKeyValidator
	logger    logger.Logger
	engine    engine
}

func NewRealDebrid(opts Options) *RealDebrid {
	opts = opts.withDefaults()
	return &RealDebrid{
		baseURL:   strings.TrimRight(opts.RealDebridURL, "/"),
		http:      opts.HTTPClient,
		limiter:   ratelimiter.NewTokenBucket(constants.RealDebridRateBurst, constants.RealDebridRateLimit),
		validator: security.NewAPIKeyValidator(),
		logger:    opts.Logger,
		engine:    newEngine(constants.ProviderRealDebrid, opts),
	}
}

func (r *RealDebrid) Name() string { return constants.ProviderRealDebrid }

func (r *RealDebrid) Resolve(ctx context.Context, torrents []models.RankedTorrent, credential string, filter *EpisodeFilter, maxResults int) ([]models.StreamLink, error) {
	token := r.validator.SanitizeAPIKey(credential)
	if !r.validator.ValidateAPIKey(token) {
		return nil, apperrors.NewAuthError(r.Name(), fmt.Errorf("malformed API token %s", r.validator.MaskAPIKey(token)))
	}

	return r.engine.resolveAll(ctx, torrents, maxResults, func(ctx context.Context, t models.RankedTorrent) (*models.StreamLink, error) {
		return r.resolveOne(ctx, token, t, filter)
	})
}

func (r *RealDebrid) resolveOne(ctx context.Context, token string, t models.RankedTorrent, filter *EpisodeFilter) (*models.StreamLink, error) {
	id, err := r.add(ctx, token, t)
	if err != nil || id == "" {
		return nil, err
	}

	link, keep, err := r.resolveAdded(ctx, token, id, t, filter)
	if !keep && ctx.Err() == nil && !apperrors.IsAuth(err) {
		r.deleteDetached(ctx, token, id)
	}
	return link, err
}

// add puts the torrent on the account and returns its id. Torrents published
// only as a download link are fetched and uploaded as a file.
func (r *RealDebrid) add(ctx context.Context, token string, t models.RankedTorrent) (string, error) {
	magnet := t.Magnet
	if magnet == "" && t.InfoHash != "" {
		magnet = "magnet:?xt=urn:btih:" + t.InfoHash
	}

	var added struct {
		ID string `json:"id"`
	}
	switch {
	case magnet != "":
		if err := r.call(ctx, token, http.MethodPost, "/torrents/addMagnet", url.Values{"magnet": {magnet}}, &added); err != nil {
			return "", err
		}
	case t.Link != "":
		src, err := fetchTorrent(ctx, r.http, t.Link)
		if err != nil {
			return "", err
		}
		if src.Magnet != "" {
			err = r.call(ctx, token, http.MethodPost, "/torrents/addMagnet", url.Values{"magnet": {src.Magnet}}, &added)
		} else {
			err = r.do(ctx, token, http.MethodPut, "/torrents/addTorrent", "application/x-bittorrent", bytes.NewReader(src.Data), &added)
		}
		if err != nil {
			return "", err
		}
	}
	return added.ID, nil
}

// resolveAdded selects the wanted file and unrestricts it when the torrent is
// cached. keep is false when the torrent should be removed from the account.
func (r *RealDebrid) resolveAdded(ctx context.Context, token, id string, t models.RankedTorrent, filter *EpisodeFilter) (*models.StreamLink, bool, error) {
	info, err := r.info(ctx, token, id)
	if err != nil {
		return nil, false, err
	}

	files := make([]File, 0, len(info.Files))
	for _, f := range info.Files {
		files = append(files, File{ID: f.ID, Path: strings.TrimPrefix(f.Path, "/"), Size: f.Bytes})
	}
	file, ok := SelectFile(files, filter, t)
	if !ok {
		return nil, false, nil
	}

	form := url.Values{"files": {strconv.Itoa(file.ID)}}
	if err := r.call(ctx, token, http.MethodPost, "/torrents/selectFiles/"+url.PathEscape(id), form, nil); err != nil {
		return nil, false, err
	}

	info, err = r.info(ctx, token, id)
	if err != nil {
		return nil, false, err
	}
	if info.Status != realDebridDownloaded || len(info.Links) == 0 {
		r.logger.Debugf("[RealDebrid] %s not cached (status %s)", t.Title, info.Status)
		return nil, false, nil
	}

	var unrestricted struct {
		Download string `json:"download"`
		Filename string `json:"filename"`
		Filesize int64  `json:"filesize"`
	}
	if err := r.call(ctx, token, http.MethodPost, "/unrestrict/link", url.Values{"link": {info.Links[0]}}, &unrestricted); err != nil {
		return nil, true, err
	}
	if unrestricted.Download == "" {
		return nil, true, nil
	}

	name, size := unrestricted.Filename, unrestricted.Filesize
	if name == "" {
		name = file.Path
	}
	if size == 0 {
		size = file.Size
	}
	return &models.StreamLink{URL: unrestricted.Download, Name: name, Size: size, Source: &t, Provider: r.Name()}, true, nil
}

func (r *RealDebrid) info(ctx context.Context, token, id string) (*realDebridInfo, error) {
	var info realDebridInfo
	if err := r.call(ctx, token, http.MethodGet, "/torrents/info/"+url.PathEscape(id), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// DeleteMagnet removes a torrent from the account.
func (r *RealDebrid) DeleteMagnet(ctx context.Context, credential, remoteID string) error {
	return r.call(ctx, r.validator.SanitizeAPIKey(credential), http.MethodDelete, "/torrents/delete/"+url.PathEscape(remoteID), nil, nil)
}

func (r *RealDebrid) deleteDetached(ctx context.Context, token, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.DeleteMagnet(ctx, token, id); err != nil {
		r.logger.Warnf("[RealDebrid] failed to delete torrent %s: %v", id, err)
	}
}

// call sends one authenticated form request. out may be nil for empty responses.
func (r *RealDebrid) call(ctx context.Context, token, method, path string, form url.Values, out interface{}) error {
	if form == nil {
		return r.do(ctx, token, method, path, "", nil, out)
	}
	return r.do(ctx, token, method, path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), out)
}

func (r *RealDebrid) do(ctx context.Context, token, method, path, contentType string, body io.Reader, out interface{}) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build Real-Debrid request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	status, payload, err := send(r.http, r.Name(), req)
	if err != nil {
		return r.refine(err, payload)
	}
	if status >= 400 {
		return r.apiError(status, payload)
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode Real-Debrid response: %w", err)
	}
	return nil
}

// refine keeps auth errors but downgrades a 403 that is not about the token
// (e.g. infringing_file) to a plain per-torrent failure.
func (r *RealDebrid) refine(err error, payload []byte) error {
	if !apperrors.IsAuth(err) {
		return err
	}
	var e realDebridError
	if json.Unmarshal(payload, &e) == nil && e.Code != 0 && !realDebridAuthCodes[e.Code] {
		return fmt.Errorf("Real-Debrid error %d: %s", e.Code, e.Error)
	}
	return err
}

func (r *RealDebrid) apiError(status int, payload []byte) error {
	var e realDebridError
	if json.Unmarshal(payload, &e) != nil {
		return fmt.Errorf("Real-Debrid HTTP %d: %s", status, snippet(payload))
	}
	err := fmt.Errorf("Real-Debrid error %d: %s", e.Code, e.Error)
	if realDebridAuthCodes[e.Code] || e.Error == "bad_token" {
		return apperrors.NewAuthError(r.Name(), err)
	}
	return err
}

type realDebridError struct {
	Error string `json:"error"`
	Code  int    `json:"error_code"`
}

type realDebridInfo struct {
	ID     string   `json:"id"`
	Status string   `json:"status"`
	Links  []string `json:"links"`
	Files  []struct {
		ID       int    `json:"id"`
		Path     string `json:"path"`
		Bytes    int64  `json:"bytes"`
		Selected int    `json:"selected"`
	} `json:"files"`
}
