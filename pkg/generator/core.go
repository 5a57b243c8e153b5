package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shouni/yandex-foundation-kit/pkg/domain"
)

// Core は ArtGenerator と TextGenerator が共有する通信基盤です。
// Transport と CredentialStore は複数の呼び出しから同時に読まれます。
type Core struct {
	transport Transport
	creds     *CredentialStore
	endpoints Endpoints
	logger    *slog.Logger
}

// Option は Core の設定を変更します。
type Option func(*Core)

// WithEndpoints はエンドポイントを差し替えます。空のフィールドは既定値のままです。
func WithEndpoints(e Endpoints) Option {
	return func(c *Core) {
		if e.Completion != "" {
			c.endpoints.Completion = e.Completion
		}
		if e.ImageGeneration != "" {
			c.endpoints.ImageGeneration = e.ImageGeneration
		}
		if e.Operation != "" {
			c.endpoints.Operation = e.Operation
		}
	}
}

// WithLogger はロガーを差し替えます。
func WithLogger(l *slog.Logger) Option {
	return func(c *Core) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCore は依存関係を注入して Core を初期化します。
func NewCore(transport Transport, creds *CredentialStore, opts ...Option) (*Core, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if creds == nil {
		return nil, fmt.Errorf("credential store is required")
	}

	c := &Core{
		transport: transport,
		creds:     creds,
		endpoints: DefaultEndpoints(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ChangeCredentials は以後の呼び出しで使う認証情報を差し替えます。進行中の呼び出しには影響しません。
func (c *Core) ChangeCredentials(apiKey, folderID string) error {
	if err := c.creds.Change(apiKey, folderID); err != nil {
		return err
	}
	c.logger.Info("認証情報を更新しました", "credentials", c.creds.Load())
	return nil
}

// Endpoints は現在のエンドポイントを返します。
func (c *Core) Endpoints() Endpoints { return c.endpoints }

// ArtModelURI は画像生成のモデル URI を組み立てます。
func ArtModelURI(folderID string) string {
	return fmt.Sprintf("art://%s/%s/%s", folderID, artModel, artModelVersion)
}

// GPTModelURI はテキスト生成のモデル URI を組み立てます。
func GPTModelURI(folderID string, model domain.ModelType, version domain.ModelVersion) string {
	return fmt.Sprintf("gpt://%s/%s/%s", folderID, model, version)
}

func (c *Core) postJSON(ctx context.Context, url string, creds Credentials, payload any) (*domain.RawResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
	}

	resp, err := c.transport.Post(ctx, url, creds.AuthHeader(), body)
	if err != nil {
		return nil, asTransportError(http.MethodPost, url, err)
	}
	return resp, nil
}

func (c *Core) get(ctx context.Context, url string, creds Credentials) (*domain.RawResponse, error) {
	resp, err := c.transport.Get(ctx, url, creds.AuthHeader())
	if err != nil {
		return nil, asTransportError(http.MethodGet, url, err)
	}
	return resp, nil
}

// asTransportError はアダプターが返した素のエラーを TransportError に揃えます。
func asTransportError(method, url string, err error) error {
	if errors.Is(err, domain.ErrTransport) {
		return err
	}
	return &domain.TransportError{Method: method, URL: url, Err: err}
}
