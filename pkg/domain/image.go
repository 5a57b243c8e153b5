package domain

import (
	"strings"
)

// 出力画像のエンコーディングです。
const (
	MimeTypeJPEG = "image/jpeg"
	MimeTypePNG  = "image/png"
)

// PromptFragment は重み付きのプロンプト断片です。Weight が 0 の場合は 1 として扱います。
type PromptFragment struct {
	Text   string `json:"text"`
	Weight int64  `json:"weight"`
}

// AspectRatio は生成画像の縦横比です。
type AspectRatio struct {
	WidthRatio  int64 `json:"widthRatio"`
	HeightRatio int64 `json:"heightRatio"`
}

// DefaultAspectRatio は 1:1 を返します。
func DefaultAspectRatio() AspectRatio {
	return AspectRatio{WidthRatio: 1, HeightRatio: 1}
}

// NewAspectRatio は縦横比を作ります。0 以下の値は 1 に置き換えます。
func NewAspectRatio(width, height int64) AspectRatio {
	ar := DefaultAspectRatio()
	if width > 0 {
		ar.WidthRatio = width
	}
	if height > 0 {
		ar.HeightRatio = height
	}
	return ar
}

// ImageGenerationParams は ImageGenerationRequest の材料です。
// MimeType と AspectRatio は省略できません（デフォルト値で補いません）。
type ImageGenerationParams struct {
	Fragments   []PromptFragment
	MimeType    string
	Seed        *int64 // nil でサービス側のランダム
	AspectRatio *AspectRatio
}

// ImageGenerationRequest は検証済みで不変の画像生成要求です。
// モデル URI は持たず、送信時にジェネレーターが認証スコープから組み立てます。
type ImageGenerationRequest struct {
	fragments   []PromptFragment
	mimeType    string
	seed        *int64
	aspectRatio AspectRatio
}

// NewImageGenerationRequest は params を検証して ImageGenerationRequest を作ります。
func NewImageGenerationRequest(params ImageGenerationParams) (*ImageGenerationRequest, error) {
	fragments := make([]PromptFragment, 0, len(params.Fragments))
	for _, f := range params.Fragments {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		if f.Weight == 0 {
			f.Weight = 1
		}
		fragments = append(fragments, f)
	}
	if len(fragments) == 0 {
		return nil, MissingField("text")
	}
	mimeType := strings.TrimSpace(params.MimeType)
	if mimeType == "" {
		return nil, MissingField("mimeType")
	}
	if params.AspectRatio == nil {
		return nil, MissingField("aspectRatio")
	}

	req := &ImageGenerationRequest{
		fragments:   fragments,
		mimeType:    mimeType,
		aspectRatio: *params.AspectRatio,
	}
	if params.Seed != nil {
		seed := *params.Seed
		req.seed = &seed
	}
	return req, nil
}

// Fragments はプロンプト断片のコピーを返します。
func (r *ImageGenerationRequest) Fragments() []PromptFragment {
	out := make([]PromptFragment, len(r.fragments))
	copy(out, r.fragments)
	return out
}

func (r *ImageGenerationRequest) MimeType() string { return r.mimeType }

func (r *ImageGenerationRequest) AspectRatio() AspectRatio { return r.aspectRatio }

// Seed は指定されたシードを返します。未指定なら ok は false です。
func (r *ImageGenerationRequest) Seed() (seed int64, ok bool) {
	if r.seed == nil {
		return 0, false
	}
	return *r.seed, true
}

// ImageGenerationPayload は imageGenerationAsync に送る JSON ボディです。
type ImageGenerationPayload struct {
	ModelURI          string                 `json:"modelUri"`
	Messages          []ImageMessage         `json:"messages"`
	GenerationOptions ImageGenerationOptions `json:"generationOptions"`
}

// ImageMessage はワイヤ上のプロンプト断片です。
type ImageMessage struct {
	Text   string `json:"text"`
	Weight int64  `json:"weight,string"`
}

// ImageGenerationOptions はワイヤ上の生成オプションです。
// 重みと違い、seed と縦横比は数値のまま送ります。
type ImageGenerationOptions struct {
	MimeType    string      `json:"mimeType"`
	Seed        *int64      `json:"seed,omitempty"`
	AspectRatio AspectRatio `json:"aspectRatio"`
}

// Payload は modelURI を差し込んだワイヤ表現を返します。
func (r *ImageGenerationRequest) Payload(modelURI string) ImageGenerationPayload {
	messages := make([]ImageMessage, 0, len(r.fragments))
	for _, f := range r.fragments {
		messages = append(messages, ImageMessage{Text: f.Text, Weight: f.Weight})
	}
	p := ImageGenerationPayload{
		ModelURI: modelURI,
		Messages: messages,
		GenerationOptions: ImageGenerationOptions{
			MimeType:    r.mimeType,
			AspectRatio: r.aspectRatio,
		},
	}
	if r.seed != nil {
		seed := *r.seed
		p.GenerationOptions.Seed = &seed
	}
	return p
}

// ImageResponse は生成が成功した画像データとそのメタデータです。
type ImageResponse struct {
	OperationID  string
	Data         []byte
	MimeType     string // バイト列から判定した値
	ModelVersion string
	Width        int // 判定できない場合は 0
	Height       int
}
