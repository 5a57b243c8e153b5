package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shouni/yandex-foundation-kit/pkg/adapters"
	"github.com/shouni/yandex-foundation-kit/pkg/generator"
	"github.com/shouni/yandex-foundation-kit/pkg/utils"
)

// 環境変数名です。
const (
	EnvAPIKey        = "YANDEX_API_KEY"
	EnvFolderID      = "YANDEX_FOLDER_ID"
	EnvCompletionURL = "YANDEX_COMPLETION_URL"
	EnvImageURL      = "YANDEX_IMAGE_URL"
	EnvOperationURL  = "YANDEX_OPERATION_URL"
	EnvPollInterval  = "YANDEX_POLL_INTERVAL"
	EnvHTTPTimeout   = "YANDEX_HTTP_TIMEOUT"
	EnvLogLevel      = "YANDEX_LOG_LEVEL"
)

// Config はクライアントの実行設定です。
type Config struct {
	APIKey       string
	FolderID     string
	Endpoints    generator.Endpoints
	PollInterval time.Duration
	HTTPTimeout  time.Duration
	LogLevel     slog.Level

	// SkipNetworkValidation はループバック宛ての http エンドポイントが指定されたときに true になります。
	SkipNetworkValidation bool
}

// Load は環境変数から設定を読み込みます。
// envFiles を省略するとカレントディレクトリの .env を読みます。ファイルがなくてもエラーにはしません。
// すでに設定されている環境変数は .env で上書きされません。
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".env の読み込みに失敗しました: %w", err)
	}

	cfg := &Config{
		APIKey:       strings.TrimSpace(getEnv(EnvAPIKey, "")),
		FolderID:     strings.TrimSpace(getEnv(EnvFolderID, "")),
		Endpoints:    generator.DefaultEndpoints(),
		PollInterval: generator.DefaultPollInterval,
		HTTPTimeout:  adapters.DefaultTimeout,
		LogLevel:     slog.LevelInfo,
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("環境変数 %s が設定されていません", EnvAPIKey)
	}
	if cfg.FolderID == "" {
		return nil, fmt.Errorf("環境変数 %s が設定されていません", EnvFolderID)
	}

	endpoints := []struct {
		key string
		dst *string
	}{
		{EnvCompletionURL, &cfg.Endpoints.Completion},
		{EnvImageURL, &cfg.Endpoints.ImageGeneration},
		{EnvOperationURL, &cfg.Endpoints.Operation},
	}
	for _, e := range endpoints {
		if v := getEnv(e.key, ""); v != "" {
			if err := adapters.ValidateEndpoint(v); err != nil {
				return nil, fmt.Errorf("%s が不正です: %w", e.key, err)
			}
			*e.dst = v
			// ValidateEndpoint を通った http はループバック宛てなので、SSRF 対策の接続先検証を外します。
			if strings.HasPrefix(v, "http://") {
				cfg.SkipNetworkValidation = true
			}
		}
	}

	var err error
	if cfg.PollInterval, err = getDuration(EnvPollInterval, cfg.PollInterval); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getDuration(EnvHTTPTimeout, cfg.HTTPTimeout); err != nil {
		return nil, err
	}
	if l := getEnv(EnvLogLevel, ""); l != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(l)); err != nil {
			return nil, fmt.Errorf("%s が不正です: %w", EnvLogLevel, err)
		}
	}

	return cfg, nil
}

// LogValue は slog.LogValuer を実装し、認証情報を伏せます。
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("api_key", utils.MaskSecret(c.APIKey)),
		slog.String("folder_id", utils.MaskSecret(c.FolderID)),
		slog.String("completion_url", c.Endpoints.Completion),
		slog.String("image_url", c.Endpoints.ImageGeneration),
		slog.String("operation_url", c.Endpoints.Operation),
		slog.Duration("poll_interval", c.PollInterval),
		slog.Duration("http_timeout", c.HTTPTimeout),
		slog.String("log_level", c.LogLevel.String()),
		slog.Bool("skip_network_validation", c.SkipNetworkValidation),
	)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

// getDuration は Go の期間表記 (例: 1500ms, 2s) を読みます。0 以下は受け付けません。
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s が不正です: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s は正の値である必要があります: %s", key, v)
	}
	return d, nil
}
