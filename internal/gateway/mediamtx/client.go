// Package mediamtx talks to the MediaMTX control API to manage ingest paths.
package mediamtx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/core/port"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/config"
)

const defaultTimeout = 10 * time.Second

// Client implements port.MediaServer against the MediaMTX v3 API.
type Client struct {
	baseURL  string
	host     string
	token    string
	rtmpPort int
	hlsPort  int
	http     *http.Client
	logger   *zap.Logger
}

var _ port.MediaServer = (*Client)(nil)

func NewClient(cfg config.MediaServerSettings, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.APIURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("mediamtx: invalid api url %q", cfg.APIURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:  base.String(),
		host:     base.Hostname(),
		token:    cfg.APIToken,
		rtmpPort: cfg.RTMPPort,
		hlsPort:  cfg.HLSPort,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

type pathConfig struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Record bool   `json:"record"`
}

type pathStatus struct {
	Ready         bool              `json:"ready"`
	SourceReady   bool              `json:"sourceReady"`
	Readers       []json.RawMessage `json:"readers"`
	BytesSent     int64             `json:"bytesSent"`
	BytesReceived int64             `json:"bytesReceived"`
}

// CreateStream registers a publisher path. A path that already exists is reused.
func (c *Client) CreateStream(ctx context.Context, streamKey string) (domain.StreamEndpoints, error) {
	if strings.TrimSpace(streamKey) == "" {
		return domain.StreamEndpoints{}, domain.NewValidationError("Stream key is required")
	}

	body, err := json.Marshal(pathConfig{Name: streamKey, Source: "publisher"})
	if err != nil {
		return domain.StreamEndpoints{}, err
	}

	status, _, err := c.do(ctx, http.MethodPost, "/v3/config/paths/add/"+url.PathEscape(streamKey), body)
	if err != nil {
		return domain.StreamEndpoints{}, err
	}
	switch {
	case status == http.StatusConflict:
		c.logger.Debug("mediamtx path already exists", zap.String("stream_key", streamKey))
	case status >= 300:
		return domain.StreamEndpoints{}, c.statusError("create stream", status)
	}

	return c.Endpoints(streamKey), nil
}

// DeleteStream removes a path. Missing paths count as deleted.
func (c *Client) DeleteStream(ctx context.Context, streamKey string) error {
	status, _, err := c.do(ctx, http.MethodDelete, "/v3/config/paths/delete/"+url.PathEscape(streamKey), nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound || status < 300 {
		return nil
	}
	return c.statusError("delete stream", status)
}

// GetStats reports live state for a path. Unknown paths report as offline.
func (c *Client) GetStats(ctx context.Context, streamKey string) (domain.StreamStats, error) {
	status, payload, err := c.do(ctx, http.MethodGet, "/v3/paths/get/"+url.PathEscape(streamKey), nil)
	if err != nil {
		return domain.StreamStats{}, err
	}
	if status == http.StatusNotFound {
		return domain.StreamStats{}, nil
	}
	if status >= 300 {
		return domain.StreamStats{}, c.statusError("get stats", status)
	}

	var ps pathStatus
	if err := json.Unmarshal(payload, &ps); err != nil {
		return domain.StreamStats{}, domain.NewExternalServiceError("Media server unavailable", fmt.Errorf("decode path status: %w", err))
	}

	return domain.StreamStats{
		Live:          ps.Ready || ps.SourceReady,
		Viewers:       len(ps.Readers),
		BytesSent:     ps.BytesSent,
		BytesReceived: ps.BytesReceived,
	}, nil
}

// Endpoints renders the ingest and playback URLs for streamKey.
func (c *Client) Endpoints(streamKey string) domain.StreamEndpoints {
	return domain.StreamEndpoints{
		StreamKey: streamKey,
		RTMPURL:   fmt.Sprintf("rtmp://%s/%s", net.JoinHostPort(c.host, fmt.Sprint(c.rtmpPort)), streamKey),
		HLSURL:    fmt.Sprintf("http://%s/%s/index.m3u8", net.JoinHostPort(c.host, fmt.Sprint(c.hlsPort)), streamKey),
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("mediamtx request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return 0, nil, domain.NewExternalServiceError("Media server unavailable", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, domain.NewExternalServiceError("Media server unavailable", err)
	}
	return resp.StatusCode, payload, nil
}

func (c *Client) statusError(op string, status int) error {
	c.logger.Warn("mediamtx returned error status", zap.String("op", op), zap.Int("status", status))
	return domain.NewExternalServiceError("Media server unavailable", fmt.Errorf("%s: unexpected status %d", op, status))
}
