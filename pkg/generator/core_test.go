package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/shouni/yandex-foundation-kit/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCore(t *testing.T) {
	store, err := NewCredentialStore(testAPIKey, testFolderID)
	require.NoError(t, err)

	t.Run("transport が nil ならエラー", func(t *testing.T) {
		core, err := NewCore(nil, store)
		assert.Nil(t, core)
		assert.Error(t, err)
	})

	t.Run("認証情報が nil ならエラー", func(t *testing.T) {
		core, err := NewCore(newMockTransport(), nil)
		assert.Nil(t, core)
		assert.Error(t, err)
	})

	t.Run("WithEndpoints は空でないフィールドだけ差し替える", func(t *testing.T) {
		core, err := NewCore(newMockTransport(), store, WithEndpoints(Endpoints{Operation: "http://localhost:8080/operations"}))
		require.NoError(t, err)

		e := core.Endpoints()
		assert.Equal(t, DefaultCompletionURL, e.Completion)
		assert.Equal(t, DefaultImageGenerationURL, e.ImageGeneration)
		assert.Equal(t, "http://localhost:8080/operations", e.Operation)
	})

	t.Run("WithLogger に nil を渡しても既定のロガーを使う", func(t *testing.T) {
		core, err := NewCore(newMockTransport(), store, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, core.logger)
	})
}

func TestCore_ChangeCredentials(t *testing.T) {
	core := newTestCore(t, newMockTransport())

	t.Run("空の値は拒否して元の認証情報を保つ", func(t *testing.T) {
		err := core.ChangeCredentials("", "folder")

		assert.Error(t, err)
		assert.Equal(t, testAPIKey, core.creds.Load().APIKey)
	})

	t.Run("差し替え後のスナップショットに反映される", func(t *testing.T) {
		require.NoError(t, core.ChangeCredentials("key-2", "folder-2"))

		c := core.creds.Load()
		assert.Equal(t, "key-2", c.APIKey)
		assert.Equal(t, "folder-2", c.FolderID)
	})
}

func TestModelURIs(t *testing.T) {
	assert.Equal(t, "art://b1g/yandex-art/latest", ArtModelURI("b1g"))
	assert.Equal(t, "gpt://b1g/yandexgpt-lite/rc", GPTModelURI("b1g", domain.ModelGPTLite, domain.VersionRC))
}

func TestCore_TransportErrorWrapping(t *testing.T) {
	ctx := context.Background()
	creds := Credentials{APIKey: testAPIKey, FolderID: testFolderID}

	t.Run("素のエラーは TransportError に包む", func(t *testing.T) {
		core := newTestCore(t, newMockTransport(replyErr(errors.New("dial tcp: refused"))))

		_, err := core.get(ctx, "http://example.invalid/operations/abc", creds)

		var tErr *domain.TransportError
		require.ErrorAs(t, err, &tErr)
		assert.Equal(t, "GET", tErr.Method)
		assert.Equal(t, "http://example.invalid/operations/abc", tErr.URL)
	})

	t.Run("すでに TransportError なら二重に包まない", func(t *testing.T) {
		orig := &domain.TransportError{Method: "POST", URL: "u", Err: errors.New("tls")}
		core := newTestCore(t, newMockTransport(replyErr(orig)))

		_, err := core.postJSON(ctx, "u", creds, map[string]string{"a": "b"})

		assert.Same(t, orig, err)
	})

	t.Run("エンコードできないペイロードは送信しない", func(t *testing.T) {
		tr := newMockTransport(replyOK(`{}`))
		core := newTestCore(t, tr)

		_, err := core.postJSON(ctx, "u", creds, map[string]any{"ch": make(chan int)})

		assert.Error(t, err)
		assert.Empty(t, tr.Calls())
	})
}
