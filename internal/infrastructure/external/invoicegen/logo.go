package invoicegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const logoFetchTimeout = 15 * time.Second

// LogoResolver turns a configured logo reference into a data URL
type LogoResolver struct {
	publicDir  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewLogoResolver creates a resolver reading local logos relative to publicDir
func NewLogoResolver(publicDir string, logger *zap.Logger) *LogoResolver {
	return &LogoResolver{
		publicDir:  publicDir,
		httpClient: &http.Client{Timeout: logoFetchTimeout},
		logger:     logger,
	}
}

// Resolve returns a data URL for ref, or "" when the logo cannot be loaded.
// data: URLs pass through, http(s) URLs are fetched, anything else is read
// from the public directory.
func (r *LogoResolver) Resolve(ctx context.Context, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "data:") {
		return ref
	}

	var (
		data []byte
		mime string
		err  error
	)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		data, mime, err = r.fetch(ctx, ref)
	} else {
		data, mime, err = r.readLocal(ref)
	}
	if err != nil {
		r.logger.Warn("Logo could not be loaded, rendering without it", zap.String("logo", ref), zap.Error(err))
		return ""
	}

	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func (r *LogoResolver) fetch(ctx context.Context, url string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, logoFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("logo fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	if mime := sniffImage(data); mime != "" {
		return data, mime, nil
	}
	contentType := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	if strings.HasPrefix(contentType, "image/") {
		return data, contentType, nil
	}
	return nil, "", fmt.Errorf("logo is not an image (content type %q)", contentType)
}

func (r *LogoResolver) readLocal(ref string) ([]byte, string, error) {
	p := ref
	if r.publicDir != "" {
		p = filepath.Join(r.publicDir, filepath.Clean("/"+ref))
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, "", err
	}
	return data, mimeFromExt(p), nil
}

func sniffImage(b []byte) string {
	switch {
	case bytes.HasPrefix(b, []byte{0x89, 'P', 'N', 'G'}):
		return "image/png"
	case bytes.HasPrefix(b, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg"
	case bytes.HasPrefix(b, []byte("GIF8")):
		return "image/gif"
	case len(b) >= 12 && bytes.HasPrefix(b, []byte("RIFF")) && string(b[8:12]) == "WEBP":
		return "image/webp"
	}
	head := b
	if len(head) > 512 {
		head = head[:512]
	}
	if bytes.Contains(bytes.ToLower(head), []byte("<svg")) {
		return "image/svg+xml"
	}
	return ""
}

func mimeFromExt(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	}
	return "image/png"
}
