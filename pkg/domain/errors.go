package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// エラー種別ごとのセンチネルです。errors.Is で判定できます。
var (
	ErrValidation        = errors.New("validation error")
	ErrTransport         = errors.New("transport error")
	ErrDecode            = errors.New("decode failure")
	ErrService           = errors.New("service error")
	ErrProtocolViolation = errors.New("protocol violation")
)

// ValidationError は通信前にリクエストの組み立てで検出された必須項目の欠落です。
type ValidationError struct {
	Field string
}

// MissingField は指定フィールドが欠けていることを表す ValidationError を返します。
func MissingField(field string) *ValidationError {
	return &ValidationError{Field: field}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// TransportError はネットワーク、DNS、TLS、コンテキスト起因で HTTP 呼び出しが完了しなかったことを表します。
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// DecodeError はレスポンスボディが期待した形に一致しなかったことを表します。
// 診断用に生のボディを保持します。
type DecodeError struct {
	StatusCode int
	Raw        string
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response (status %d): %v; body: %s", e.StatusCode, e.Err, truncate(e.Raw, 512))
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// ServiceError はサービスが返した構造化エラーです。終端状態として扱います。
type ServiceError struct {
	StatusCode  int
	OperationID string
	Code        string
	Message     string
	Details     []json.RawMessage
}

func (e *ServiceError) Error() string {
	if e.OperationID != "" {
		return fmt.Sprintf("operation %s failed: code=%s message=%s", e.OperationID, e.Code, e.Message)
	}
	return fmt.Sprintf("service error (status %d): code=%s message=%s", e.StatusCode, e.Code, e.Message)
}

func (e *ServiceError) Is(target error) bool { return target == ErrService }

// ProtocolViolationError は終端エンベロープが done/error/response の不変条件を破っていることを表します。
type ProtocolViolationError struct {
	OperationID string
	Reason      string
	Err         error
}

func (e *ProtocolViolationError) Error() string {
	msg := fmt.Sprintf("protocol violation in operation %q: %s", e.OperationID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolViolationError) Unwrap() error { return e.Err }

func (e *ProtocolViolationError) Is(target error) bool { return target == ErrProtocolViolation }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
