// Package ssl provisions the local-ip.sh wildcard certificate so the addon can
// be served over HTTPS on a LAN address, which Stremio requires for remote addons.
package ssl

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/amaumene/gostremiodebrid/pkg/httputil"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
)

const (
	defaultBaseURL = "https://local-ip.sh"

	keyFileMode = 0600
	dirMode     = 0755

	// certificates are refreshed when they expire within this window
	renewBefore = 72 * time.Hour

	maxPEMSize = 1 << 20

	probeAddress = "8.8.8.8:80"
)

// LocalIPCertificate fetches and caches the local-ip.sh certificate pair.
type LocalIPCertificate struct {
	baseURL  string
	cacheDir string
	client   *http.Client
	logger   logger.Logger
	now      func() time.Time

	hostname string
}

// NewLocalIPCertificate caches certificates under cacheDir, or the system temp
// directory when empty.
func NewLocalIPCertificate(cacheDir string, log logger.Logger) *LocalIPCertificate {
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "gostremiodebrid-ssl")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &LocalIPCertificate{
		baseURL:  defaultBaseURL,
		cacheDir: cacheDir,
		client:   httputil.NewHTTPClient(30 * time.Second),
		logger:   log,
		now:      time.Now,
	}
}

func (l *LocalIPCertificate) certPath() string { return filepath.Join(l.cacheDir, "server.pem") }
func (l *LocalIPCertificate) keyPath() string  { return filepath.Join(l.cacheDir, "server.key") }

// Setup makes sure a usable certificate is cached and returns a TLS config
// serving it. ip may be empty to detect the outbound LAN address.
func (l *LocalIPCertificate) Setup(ctx context.Context, ip string) (*tls.Config, error) {
	if ip == "" {
		detected, err := localIP()
		if err != nil {
			return nil, fmt.Errorf("failed to detect local IP: %w", err)
		}
		ip = detected
	}
	l.hostname = Hostname(ip)
	l.logger.Infof("[SSL] using hostname %s", l.hostname)

	if !l.cachedValid() {
		if err := os.MkdirAll(l.cacheDir, dirMode); err != nil {
			return nil, fmt.Errorf("failed to create certificate directory: %w", err)
		}
		if err := l.download(ctx, "/server.pem", l.certPath(), 0644); err != nil {
			return nil, fmt.Errorf("failed to download certificate: %w", err)
		}
		if err := l.download(ctx, "/server.key", l.keyPath(), keyFileMode); err != nil {
			return nil, fmt.Errorf("failed to download private key: %w", err)
		}
		l.logger.Infof("[SSL] certificate downloaded")
	}

	cert, err := tls.LoadX509KeyPair(l.certPath(), l.keyPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}, nil
}

// Hostname is the local-ip.sh name resolving to ip ("192.168.1.10" -> "192-168-1-10.local-ip.sh").
func Hostname(ip string) string {
	return strings.ReplaceAll(ip, ".", "-") + ".local-ip.sh"
}

// Hostname returns the name chosen by the last Setup.
func (l *LocalIPCertificate) Hostname() string {
	return l.hostname
}

// cachedValid reports whether the cached certificate exists and is not close to expiry.
func (l *LocalIPCertificate) cachedValid() bool {
	if _, err := os.Stat(l.keyPath()); err != nil {
		return false
	}
	raw, err := os.ReadFile(l.certPath())
	if err != nil {
		return false
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return false
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return false
	}
	return l.now().Add(renewBefore).Before(cert.NotAfter)
}

func (l *LocalIPCertificate) download(ctx context.Context, path, dest string, mode os.FileMode) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPEMSize))
	if err != nil {
		return err
	}
	if block, _ := pem.Decode(data); block == nil {
		return fmt.Errorf("%s is not PEM encoded", path)
	}
	return os.WriteFile(dest, data, mode)
}

// Cleanup removes the cached certificates.
func (l *LocalIPCertificate) Cleanup() error {
	return os.RemoveAll(l.cacheDir)
}

// localIP returns the address of the interface used for outbound traffic. No
// packet is sent: dialing UDP only selects a route.
func localIP() (string, error) {
	conn, err := net.Dial("udp", probeAddress)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local address %v", conn.LocalAddr())
	}
	return addr.IP.String(), nil
}
