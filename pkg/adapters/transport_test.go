package adapters

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shouni/yandex-foundation-kit/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransport_Post(t *testing.T) {
	var gotHeader http.Header
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"abc","done":false}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(WithSkipNetworkValidation(true))
	resp, err := tr.Post(context.Background(), srv.URL+"/imageGenerationAsync", "Api-Key secret", []byte(`{"modelUri":"art://f/yandex-art/latest"}`))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"id":"abc","done":false}`, string(resp.Body))
	assert.Equal(t, `{"modelUri":"art://f/yandex-art/latest"}`, string(gotBody))
	assert.Equal(t, "Api-Key secret", gotHeader.Get("Authorization"))
	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	_, err = uuid.Parse(gotHeader.Get(requestIDHeader))
	assert.NoError(t, err, "リクエスト ID は UUID であること")
}

func TestHTTPTransport_Get(t *testing.T) {
	t.Run("非 2xx もボディごと返す", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Empty(t, r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":5,"message":"Operation not found"}`))
		}))
		defer srv.Close()

		resp, err := NewHTTPTransport(WithSkipNetworkValidation(true)).Get(context.Background(), srv.URL+"/operations/abc", "Api-Key k")

		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.False(t, resp.IsSuccess())
	})

	t.Run("タイムアウトは TransportError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}))
		defer srv.Close()

		tr := NewHTTPTransport(WithTimeout(20*time.Millisecond), WithSkipNetworkValidation(true))
		resp, err := tr.Get(context.Background(), srv.URL, "Api-Key k")

		assert.Nil(t, resp)
		assert.ErrorIs(t, err, domain.ErrTransport)
		var tErr *domain.TransportError
		require.True(t, errors.As(err, &tErr))
		assert.Equal(t, http.MethodGet, tErr.Method)
	})

	t.Run("キャンセル済みのコンテキストは TransportError", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewHTTPTransport(WithSkipNetworkValidation(true)).Get(ctx, "http://127.0.0.1:1/operations/abc", "Api-Key k")

		assert.ErrorIs(t, err, domain.ErrTransport)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("不正な URL は TransportError", func(t *testing.T) {
		_, err := NewHTTPTransport().Get(context.Background(), "://bad", "Api-Key k")
		assert.ErrorIs(t, err, domain.ErrTransport)
	})
}

// doerFunc は httpkit.Doer を関数で満たすテスト用の型です。
type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func TestNewHTTPTransport_Options(t *testing.T) {
	t.Run("WithHTTPClient の Doer で送信する", func(t *testing.T) {
		var gotURL string
		custom := doerFunc(func(req *http.Request) (*http.Response, error) {
			gotURL = req.URL.String()
			return &http.Response{
				StatusCode: http.StatusTooManyRequests,
				Header:     http.Header{"X-Request-Id": []string{"srv-1"}},
				Body:       io.NopCloser(strings.NewReader(`{"code":8,"message":"quota"}`)),
			}, nil
		})

		resp, err := NewHTTPTransport(WithHTTPClient(custom)).Get(context.Background(), "https://operation.api.cloud.yandex.net/operations/abc", "Api-Key k")

		require.NoError(t, err)
		assert.Equal(t, "https://operation.api.cloud.yandex.net/operations/abc", gotURL)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode, "ステータスはリトライせずそのまま返す")
		assert.JSONEq(t, `{"code":8,"message":"quota"}`, string(resp.Body))
	})

	t.Run("Doer のエラーは 1 回で TransportError", func(t *testing.T) {
		var calls int
		failing := doerFunc(func(*http.Request) (*http.Response, error) {
			calls++
			return nil, errors.New("connection reset")
		})

		_, err := NewHTTPTransport(WithHTTPClient(failing)).Post(context.Background(), "https://llm.api.cloud.yandex.net/foundationModels/v1/completion", "Api-Key k", []byte(`{}`))

		assert.ErrorIs(t, err, domain.ErrTransport)
		assert.Equal(t, 1, calls)
	})

	t.Run("nil の指定は無視する", func(t *testing.T) {
		tr := NewHTTPTransport(WithHTTPClient(nil), WithLogger(nil), WithTimeout(0))
		assert.NotNil(t, tr.client)
		assert.NotNil(t, tr.logger)
	})
}

func TestValidateEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https の本番エンドポイント", "https://llm.api.cloud.yandex.net/foundationModels/v1/completion", false},
		{"http のループバック", "http://127.0.0.1:8080/operations", false},
		{"http の localhost", "http://localhost/operations", false},

		{"http のリモートホスト", "http://llm.api.cloud.yandex.net/foundationModels/v1/completion", true},
		{"不正なスキーム", "gopher://example.com", true},
		{"ホストなし", "https:///path", true},
		{"相対パス", "operations/abc", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEndpoint(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
