package adapters

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/yandex-foundation-kit/pkg/domain"
)

const (
	// DefaultTimeout は 1 回の HTTP 呼び出しのタイムアウトです。
	DefaultTimeout = 60 * time.Second

	// maxBodySize は読み込むレスポンスボディの上限です。生成画像の base64 を十分に収められる大きさです。
	maxBodySize = 64 << 20

	requestIDHeader = "x-client-request-id"
)

// HTTPTransport は httpkit のクライアントで 1 回の呼び出しを実行するアダプターです。
// httpkit のリトライは使わず、非 2xx もボディごとそのまま返して判定は呼び出し側に任せます。
type HTTPTransport struct {
	client httpkit.Doer
	logger *slog.Logger
}

type transportConfig struct {
	timeout               time.Duration
	doer                  httpkit.Doer
	skipNetworkValidation bool
	logger                *slog.Logger
}

// TransportOption は HTTPTransport の設定を変更します。
type TransportOption func(*transportConfig)

// WithTimeout はクライアントのタイムアウトを変更します。0 以下の値は無視します。
func WithTimeout(d time.Duration) TransportOption {
	return func(c *transportConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient は実際に送信する Doer を差し替えます。*http.Client もそのまま渡せます。
func WithHTTPClient(d httpkit.Doer) TransportOption {
	return func(c *transportConfig) {
		if d != nil {
			c.doer = d
		}
	}
}

// WithSkipNetworkValidation は SSRF 対策の接続先検証を無効にします。
// ループバックのテストサーバーやローカルのゲートウェイへ接続するときに使います。
func WithSkipNetworkValidation(skip bool) TransportOption {
	return func(c *transportConfig) {
		c.skipNetworkValidation = skip
	}
}

// WithLogger はロガーを差し替えます。
func WithLogger(l *slog.Logger) TransportOption {
	return func(c *transportConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewHTTPTransport は HTTPTransport を初期化します。
func NewHTTPTransport(opts ...TransportOption) *HTTPTransport {
	cfg := transportConfig{
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	kitOpts := []httpkit.ClientOption{httpkit.WithSkipNetworkValidation(cfg.skipNetworkValidation)}
	if cfg.doer != nil {
		kitOpts = append(kitOpts, httpkit.WithHTTPClient(cfg.doer))
	}
	return &HTTPTransport{
		client: httpkit.New(cfg.timeout, kitOpts...),
		logger: cfg.logger,
	}
}

// Post は JSON ボディを送信します。
func (t *HTTPTransport) Post(ctx context.Context, url, authHeader string, body []byte) (*domain.RawResponse, error) {
	return t.do(ctx, http.MethodPost, url, authHeader, body)
}

// Get はボディなしで照会します。
func (t *HTTPTransport) Get(ctx context.Context, url, authHeader string) (*domain.RawResponse, error) {
	return t.do(ctx, http.MethodGet, url, authHeader, nil)
}

func (t *HTTPTransport) do(ctx context.Context, method, rawURL, authHeader string, body []byte) (*domain.RawResponse, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, &domain.TransportError{Method: method, URL: rawURL, Err: err}
	}

	requestID := uuid.NewString()
	req.Header.Set("Authorization", authHeader)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.DebugContext(ctx, "HTTP リクエストに失敗しました",
			"method", method, "url", rawURL, "request_id", requestID, "error", err)
		return nil, &domain.TransportError{Method: method, URL: rawURL, Err: err}
	}
	serverRequestID := resp.Header.Get("x-request-id")

	// HandleLimitedResponse はステータスに関わらずボディを返し、ボディを閉じます。
	data, err := httpkit.HandleLimitedResponse(resp, maxBodySize)
	if err != nil {
		return nil, &domain.TransportError{Method: method, URL: rawURL, Err: err}
	}

	t.logger.DebugContext(ctx, "HTTP レスポンスを受信しました",
		"method", method,
		"url", rawURL,
		"status", resp.StatusCode,
		"request_id", requestID,
		"server_request_id", serverRequestID,
		"bytes", len(data),
		"elapsed", time.Since(start))

	return &domain.RawResponse{StatusCode: resp.StatusCode, Body: data}, nil
}

// urlChecker はエンドポイント検証に使う httpkit のクライアントです。送信には使いません。
var urlChecker = httpkit.New(DefaultTimeout, httpkit.WithSkipNetworkValidation(true))

// ValidateEndpoint はエンドポイント URL を検証します。
// API キーを平文で送らないよう、https 以外はループバック宛ての http だけを許可します。
func ValidateEndpoint(rawURL string) error {
	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return fmt.Errorf("URLパース失敗: %w", err)
	}
	if parsedURL.Hostname() == "" {
		return fmt.Errorf("ホストが指定されていません: %s", rawURL)
	}
	if !urlChecker.IsSecureServiceURL(rawURL) {
		return fmt.Errorf("安全でないエンドポイントです (https かループバック宛ての http のみ): %s", rawURL)
	}
	return nil
}
