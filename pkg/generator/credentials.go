package generator

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/shouni/yandex-foundation-kit/pkg/utils"
)

// Credentials は API キーとフォルダ（バケット）ID の組です。
// ログには伏せ字でしか出力されません。
type Credentials struct {
	APIKey   string
	FolderID string
}

// AuthHeader は Authorization ヘッダの値を返します。
func (c Credentials) AuthHeader() string {
	return "Api-Key " + c.APIKey
}

// LogValue は slog.LogValuer を実装し、秘密値を伏せます。
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("api_key", utils.MaskSecret(c.APIKey)),
		slog.String("folder_id", utils.MaskSecret(c.FolderID)),
	)
}

func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{APIKey:%s FolderID:%s}", utils.MaskSecret(c.APIKey), utils.MaskSecret(c.FolderID))
}

func (c Credentials) validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("api key is required")
	}
	if strings.TrimSpace(c.FolderID) == "" {
		return fmt.Errorf("folder id is required")
	}
	return nil
}

// CredentialStore は並行する読み取り中でも安全に差し替えられる認証情報の保管庫です。
type CredentialStore struct {
	current atomic.Pointer[Credentials]
}

// NewCredentialStore は初期値を検証して CredentialStore を作ります。
func NewCredentialStore(apiKey, folderID string) (*CredentialStore, error) {
	s := &CredentialStore{}
	if err := s.Change(apiKey, folderID); err != nil {
		return nil, err
	}
	return s, nil
}

// Load は現在の認証情報のスナップショットを返します。
func (s *CredentialStore) Load() Credentials {
	if c := s.current.Load(); c != nil {
		return *c
	}
	return Credentials{}
}

// Change は認証情報をまとめて差し替えます。空の値は受け付けません。
func (s *CredentialStore) Change(apiKey, folderID string) error {
	c := Credentials{APIKey: strings.TrimSpace(apiKey), FolderID: strings.TrimSpace(folderID)}
	if err := c.validate(); err != nil {
		return err
	}
	s.current.Store(&c)
	return nil
}
