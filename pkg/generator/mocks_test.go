package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shouni/yandex-foundation-kit/pkg/domain"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

// recordedCall は mockTransport が受け取った 1 回の呼び出しです。
type recordedCall struct {
	Method     string
	URL        string
	AuthHeader string
	Body       []byte
}

// reply は台本の 1 ステップです。err が nil でなければ通信失敗として返します。
type reply struct {
	status int
	body   string
	err    error
}

func replyOK(body string) reply { return reply{status: 200, body: body} }

func replyStatus(code int, body string) reply { return reply{status: code, body: body} }

func replyErr(err error) reply { return reply{err: err} }

// mockTransport は台本どおりに応答し、呼び出しを記録する Transport です。
// 台本が尽きた後は最後の応答を繰り返します。
type mockTransport struct {
	mu     sync.Mutex
	script []reply
	calls  []recordedCall
	// onCall は各呼び出しの直後に呼ばれます。キャンセルのテストに使います。
	onCall func(n int)
}

func newMockTransport(script ...reply) *mockTransport {
	return &mockTransport{script: script}
}

func (m *mockTransport) Post(ctx context.Context, url, authHeader string, body []byte) (*domain.RawResponse, error) {
	return m.do(ctx, "POST", url, authHeader, body)
}

func (m *mockTransport) Get(ctx context.Context, url, authHeader string) (*domain.RawResponse, error) {
	return m.do(ctx, "GET", url, authHeader, nil)
}

func (m *mockTransport) do(ctx context.Context, method, url, authHeader string, body []byte) (*domain.RawResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, recordedCall{Method: method, URL: url, AuthHeader: authHeader, Body: body})
	n := len(m.calls)
	var r reply
	switch {
	case len(m.script) == 0:
		r = reply{err: errors.New("no scripted reply")}
	case n <= len(m.script):
		r = m.script[n-1]
	default:
		r = m.script[len(m.script)-1]
	}
	onCall := m.onCall
	m.mu.Unlock()

	if onCall != nil {
		onCall(n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.err != nil {
		return nil, r.err
	}
	return &domain.RawResponse{StatusCode: r.status, Body: []byte(r.body)}, nil
}

func (m *mockTransport) Calls() []recordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recordedCall(nil), m.calls...)
}

// --- Helpers ---

const (
	testAPIKey   = "AQVN-test-secret-key"
	testFolderID = "b1gfolder0001"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCore(t *testing.T, tr Transport, opts ...Option) *Core {
	t.Helper()
	store, err := NewCredentialStore(testAPIKey, testFolderID)
	require.NoError(t, err)
	core, err := NewCore(tr, store, append([]Option{WithLogger(discardLogger())}, opts...)...)
	require.NoError(t, err)
	return core
}

// newTestArt は照会間隔を短くした ArtGenerator を返します。
func newTestArt(t *testing.T, tr Transport, opts ...ArtOption) *ArtGenerator {
	t.Helper()
	g, err := NewArtGenerator(newTestCore(t, tr), append([]ArtOption{WithPollInterval(1)}, opts...)...)
	require.NoError(t, err)
	return g
}

func dogRequest(t *testing.T) *domain.ImageGenerationRequest {
	t.Helper()
	ar := domain.DefaultAspectRatio()
	req, err := domain.NewImageGenerationRequest(domain.ImageGenerationParams{
		Fragments:   []domain.PromptFragment{{Text: "Dog in sofa", Weight: 1}},
		MimeType:    domain.MimeTypePNG,
		AspectRatio: &ar,
	})
	require.NoError(t, err)
	return req
}

// tinyPNG は 2x3 の PNG を生成します。
func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 3))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func b64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
