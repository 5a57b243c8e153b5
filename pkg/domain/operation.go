package domain

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Operation はサーバー側の生成ジョブのスナップショットです。
// ポーリングのたびに新しく作られ、書き換えられることはありません。
type Operation struct {
	ID          string          `json:"id"`
	Description string          `json:"description,omitempty"`
	CreatedAt   *time.Time      `json:"createdAt,omitempty"`
	CreatedBy   string          `json:"createdBy,omitempty"`
	ModifiedAt  *time.Time      `json:"modifiedAt,omitempty"`
	Done        bool            `json:"done"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	Error       *OperationError `json:"error,omitempty"`
	Response    *ImagePayload   `json:"response,omitempty"`
}

// OperationError はオペレーションに埋め込まれた google.rpc.Status 形式のエラーです。
type OperationError struct {
	Code    StatusCode        `json:"code"`
	Message string            `json:"message"`
	Details []json.RawMessage `json:"details,omitempty"`
}

// ImagePayload は成功したオペレーションの response フィールドです。
type ImagePayload struct {
	Image        string `json:"image"` // base64
	ModelVersion string `json:"modelVersion,omitempty"`
}

// Decode は base64 の画像をバイト列に戻します。
func (p *ImagePayload) Decode() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(p.Image)
	if err != nil {
		return nil, fmt.Errorf("decode base64 image: %w", err)
	}
	return data, nil
}

// StatusCode は数値でも文字列でも届くエラーコードを文字列として保持します。
type StatusCode string

func (c *StatusCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = StatusCode(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("status code must be a number or string: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("status code must be an integer: %w", err)
	}
	*c = StatusCode(n.String())
	return nil
}

func (c StatusCode) String() string { return string(c) }

// RawResponse はトランスポート境界で受け渡す HTTP ステータスとボディです。
type RawResponse struct {
	StatusCode int
	Body       []byte
}

// IsSuccess は 2xx かどうかを返します。
func (r *RawResponse) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
