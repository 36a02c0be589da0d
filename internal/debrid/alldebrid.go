package debrid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amaumene/gostremiodebrid/internal/constants"
	"github.com/amaumene/gostremiodebrid/internal/database"
	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
	"github.com/amaumene/gostremiodebrid/internal/models"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
	"github.com/amaumene/gostremiodebrid/pkg/ratelimiter"
	"github.com/amaumene/gostremiodebrid/pkg/security"
)

const (
	allDebridBaseURL = "https://api.alldebrid.com"
	allDebridAgent   = "gostremiodebrid"

	allDebridStatusReady = 4
)

// AllDebrid is the queue-and-poll provider: a magnet is uploaded, polled
// until ready and the chosen file unlocked.
type AllDebrid struct {
	baseURL      string
	http         *http.Client
	store        MagnetStore
	limiter      ratelimiter.RateLimiter
	validator    *security.APIKeyValidator
	logger       logger.Logger
	engine       engine
	pollTimeout  time.Duration
	pollInterval time.Duration
}

func NewAllDebrid(opts Options) *AllDebrid {
	opts = opts.withDefaults()
	return &AllDebrid{
		baseURL:      strings.TrimRight(opts.AllDebridURL, "/"),
		http:         opts.HTTPClient,
		store:        opts.Store,
		limiter:      ratelimiter.NewTokenBucket(constants.AllDebridRateBurst, constants.AllDebridRateLimit),
		validator:    security.NewAPIKeyValidator(),
		logger:       opts.Logger,
		engine:       newEngine(constants.ProviderAllDebrid, opts),
		pollTimeout:  opts.PollTimeout,
		pollInterval: opts.PollInterval,
	}
}

func (a *AllDebrid) Name() string { return constants.ProviderAllDebrid }

func (a *AllDebrid) Resolve(ctx context.Context, torrents []models.RankedTorrent, credential string, filter *EpisodeFilter, maxResults int) ([]models.StreamLink, error) {
	apiKey := a.validator.SanitizeAPIKey(credential)
	if !a.validator.ValidateAPIKey(apiKey) {
		return nil, apperrors.NewAuthError(a.Name(), fmt.Errorf("malformed API key %s", a.validator.MaskAPIKey(apiKey)))
	}

	return a.engine.resolveAll(ctx, torrents, maxResults, func(ctx context.Context, t models.RankedTorrent) (*models.StreamLink, error) {
		return a.resolveOne(ctx, apiKey, t, filter)
	})
}

func (a *AllDebrid) resolveOne(ctx context.Context, apiKey string, t models.RankedTorrent, filter *EpisodeFilter) (*models.StreamLink, error) {
	uploaded, err := a.add(ctx, apiKey, t)
	if err != nil || uploaded == nil {
		return nil, err
	}
	a.remember(apiKey, t, uploaded)

	files, err := a.waitReady(ctx, apiKey, uploaded.ID)
	if err != nil || files == nil {
		if ctx.Err() == nil && !apperrors.IsAuth(err) {
			a.logger.Debugf("[AllDebrid] %s not ready, deleting magnet %d", t.Title, uploaded.ID)
			a.deleteDetached(ctx, apiKey, uploaded.ID)
		}
		return nil, err
	}

	file, ok := SelectFile(files, filter, t)
	if !ok {
		return nil, nil
	}

	unlocked, err := a.unlock(ctx, apiKey, file.Link)
	if err != nil || unlocked == nil {
		return nil, err
	}

	name, size := unlocked.Filename, unlocked.Filesize
	if name == "" {
		name = file.Path
	}
	if size == 0 {
		size = file.Size
	}
	return &models.StreamLink{URL: unlocked.Link, Name: name, Size: size, Source: &t, Provider: a.Name()}, nil
}

// waitReady polls until the magnet reaches the ready state. A nil file list
// means it did not get there within the poll timeout or failed remotely.
func (a *AllDebrid) waitReady(ctx context.Context, apiKey string, id int64) ([]File, error) {
	pollCtx, cancel := context.WithTimeout(ctx, a.pollTimeout)
	defer cancel()

	for {
		status, err := a.status(pollCtx, apiKey, id)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil && pollCtx.Err() != nil:
			return nil, nil
		case err != nil:
			return nil, err
		case status.StatusCode == allDebridStatusReady:
			return status.files(), nil
		case status.StatusCode > allDebridStatusReady:
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-pollCtx.Done():
			return nil, nil
		case <-time.After(a.pollInterval):
		}
	}
}

// DeleteMagnet removes an uploaded magnet. Used for abandoned uploads and by
// the cleanup service.
func (a *AllDebrid) DeleteMagnet(ctx context.Context, credential, remoteID string) error {
	form := url.Values{}
	form.Set("agent", allDebridAgent)
	form.Set("id", remoteID)
	var out json.RawMessage
	return a.call(ctx, credential, http.MethodPost, "/v4/magnet/delete", form, &out)
}

// deleteDetached deletes even when ctx was cancelled so abandoned uploads do
// not pile up on the account.
func (a *AllDebrid) deleteDetached(ctx context.Context, apiKey string, id int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.DeleteMagnet(ctx, apiKey, strconv.FormatInt(id, 10)); err != nil {
		a.logger.Warnf("[AllDebrid] failed to delete magnet %d: %v", id, err)
	}
}

func (a *AllDebrid) remember(apiKey string, t models.RankedTorrent, m *allDebridMagnet) {
	if a.store == nil {
		return
	}
	hash := t.InfoHash
	if hash == "" {
		hash = m.Hash
	}
	record := &database.Magnet{
		ID:       fmt.Sprintf("ad_%d", m.ID),
		Hash:     hash,
		Name:     t.Title,
		Provider: a.Name(),
		RemoteID: strconv.FormatInt(m.ID, 10),
		APIKey:   apiKey,
	}
	if err := a.store.StoreMagnet(record); err != nil {
		a.logger.Warnf("[AllDebrid] failed to record magnet %d: %v", m.ID, err)
	}
}

// add uploads the torrent by magnet, or by its download link when the indexer
// published neither a magnet nor a hash.
func (a *AllDebrid) add(ctx context.Context, apiKey string, t models.RankedTorrent) (*allDebridMagnet, error) {
	magnet := t.Magnet
	if magnet == "" && t.InfoHash != "" {
		magnet = "magnet:?xt=urn:btih:" + t.InfoHash + "&dn=" + url.QueryEscape(t.Title)
	}
	if magnet != "" {
		return a.upload(ctx, apiKey, magnet)
	}
	if t.Link == "" {
		return nil, nil
	}

	src, err := fetchTorrent(ctx, a.http, t.Link)
	if err != nil {
		return nil, err
	}
	if src.Magnet != "" {
		return a.upload(ctx, apiKey, src.Magnet)
	}
	return a.uploadFile(ctx, apiKey, src)
}

func (a *AllDebrid) upload(ctx context.Context, apiKey, magnet string) (*allDebridMagnet, error) {
	form := url.Values{}
	form.Set("agent", allDebridAgent)
	form.Add("magnets[]", magnet)

	var data struct {
		Magnets []allDebridMagnet `json:"magnets"`
	}
	if err := a.call(ctx, apiKey, http.MethodPost, "/v4/magnet/upload", form, &data); err != nil {
		return nil, err
	}
	return a.accepted(data.Magnets)
}

func (a *AllDebrid) uploadFile(ctx context.Context, apiKey string, src *torrentSource) (*allDebridMagnet, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("agent", allDebridAgent); err != nil {
		return nil, fmt.Errorf("write agent field: %w", err)
	}
	part, err := w.CreateFormFile("files[]", src.Filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(src.Data); err != nil {
		return nil, fmt.Errorf("write torrent data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	var data struct {
		Files []allDebridMagnet `json:"files"`
	}
	if err := a.do(ctx, apiKey, http.MethodPost, "/v4/magnet/upload/file", w.FormDataContentType(), &buf, &data); err != nil {
		return nil, err
	}
	return a.accepted(data.Files)
}

// accepted returns the first uploaded entry. Rejections other than auth
// failures just skip the torrent.
func (a *AllDebrid) accepted(uploads []allDebridMagnet) (*allDebridMagnet, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	m := uploads[0]
	if m.Error != nil {
		if err := a.apiError(m.Error); apperrors.IsAuth(err) {
			return nil, err
		}
		a.logger.Debugf("[AllDebrid] upload rejected: %s", m.Error.Message)
		return nil, nil
	}
	return &m, nil
}

func (a *AllDebrid) status(ctx context.Context, apiKey string, id int64) (*allDebridStatus, error) {
	q := url.Values{}
	q.Set("agent", allDebridAgent)
	q.Set("id", strconv.FormatInt(id, 10))

	var data struct {
		Magnets json.RawMessage `json:"magnets"`
	}
	if err := a.call(ctx, apiKey, http.MethodGet, "/v4.1/magnet/status?"+q.Encode(), nil, &data); err != nil {
		return nil, err
	}

	var st allDebridStatus
	raw := data.Magnets
	if len(raw) > 0 && raw[0] == '[' {
		var list []allDebridStatus
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode magnet status: %w", err)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("magnet %d not found", id)
		}
		return &list[0], nil
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode magnet status: %w", err)
	}
	return &st, nil
}

func (a *AllDebrid) unlock(ctx context.Context, apiKey, link string) (*allDebridUnlock, error) {
	q := url.Values{}
	q.Set("agent", allDebridAgent)
	q.Set("link", link)

	var data allDebridUnlock
	if err := a.call(ctx, apiKey, http.MethodGet, "/v4/link/unlock?"+q.Encode(), nil, &data); err != nil {
		return nil, err
	}
	if data.Link == "" {
		return nil, nil
	}
	return &data, nil
}

// call sends one authenticated form request and decodes the data envelope into out.
func (a *AllDebrid) call(ctx context.Context, apiKey, method, path string, form url.Values, out interface{}) error {
	if form == nil {
		return a.do(ctx, apiKey, method, path, "", nil, out)
	}
	return a.do(ctx, apiKey, method, path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), out)
}

func (a *AllDebrid) do(ctx context.Context, apiKey, method, path, contentType string, body io.Reader, out interface{}) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build AllDebrid request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	_, payload, err := send(a.http, a.Name(), req)
	if err != nil {
		return err
	}

	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *allDebridError `json:"error"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return fmt.Errorf("decode AllDebrid response: %w", err)
	}
	if envelope.Status != "success" {
		if envelope.Error == nil {
			return fmt.Errorf("AllDebrid API error: %s", envelope.Status)
		}
		return a.apiError(envelope.Error)
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode AllDebrid data: %w", err)
	}
	return nil
}

func (a *AllDebrid) apiError(e *allDebridError) error {
	err := fmt.Errorf("AllDebrid API error: %s - %s", e.Code, e.Message)
	if strings.HasPrefix(e.Code, "AUTH_") {
		return apperrors.NewAuthError(a.Name(), err)
	}
	return err
}

type allDebridError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type allDebridMagnet struct {
	ID    int64           `json:"id"`
	Hash  string          `json:"hash"`
	Name  string          `json:"name"`
	Ready bool            `json:"ready"`
	Error *allDebridError `json:"error,omitempty"`
}

type allDebridStatus struct {
	ID         int64               `json:"id"`
	Filename   string              `json:"filename"`
	Size       int64               `json:"size"`
	StatusCode int                 `json:"statusCode"`
	Links      []allDebridLink     `json:"links,omitempty"`
	Files      []allDebridFileNode `json:"files,omitempty"`
}

type allDebridLink struct {
	Link     string `json:"link"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// allDebridFileNode is the v4.1 file tree: directories carry entries, files a link.
type allDebridFileNode struct {
	N string              `json:"n"`
	S int64               `json:"s,omitempty"`
	L string              `json:"l,omitempty"`
	E []allDebridFileNode `json:"e,omitempty"`
}

type allDebridUnlock struct {
	Link     string `json:"link"`
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
}

func (s *allDebridStatus) files() []File {
	files := []File{}
	if len(s.Files) > 0 {
		flattenTree(s.Files, "", &files)
		return files
	}
	for _, l := range s.Links {
		files = append(files, File{ID: len(files) + 1, Path: l.Filename, Size: l.Size, Link: l.Link})
	}
	return files
}

func flattenTree(nodes []allDebridFileNode, dir string, out *[]File) {
	for _, n := range nodes {
		p := n.N
		if dir != "" {
			p = dir + "/" + n.N
		}
		switch {
		case len(n.E) > 0:
			flattenTree(n.E, p, out)
		case n.L != "":
			*out = append(*out, File{ID: len(*out) + 1, Path: p, Size: n.S, Link: n.L})
		}
	}
}
