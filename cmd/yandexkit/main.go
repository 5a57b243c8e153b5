package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/shouni/go-remote-io/pkg/gcsfactory"
	"github.com/shouni/go-remote-io/pkg/remoteio"
	"github.com/shouni/go-remote-io/pkg/s3factory"
	"github.com/shouni/yandex-foundation-kit/pkg/adapters"
	"github.com/shouni/yandex-foundation-kit/pkg/config"
	"github.com/shouni/yandex-foundation-kit/pkg/domain"
	"github.com/shouni/yandex-foundation-kit/pkg/generator"
	"github.com/shouni/yandex-foundation-kit/pkg/imgutil"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: yandexkit <command> [options]")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  image     画像を生成して完了まで待ち、ファイルに保存します")
	fmt.Fprintln(w, "  status    オペレーションの状態を 1 回だけ照会します")
	fmt.Fprintln(w, "  complete  system と user のメッセージでテキストを生成します")
	fmt.Fprintln(w, "  chat      標準入力で対話します")
	fmt.Fprintln(w, `Use "yandexkit <command> -h" for more information about a command.`)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		printUsage(stderr)
		return errors.New("command is required")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "help", "--help", "-h":
		printUsage(stdout)
		return nil
	case "image", "status", "complete", "chat":
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command: %s", cmd)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Debug("設定を読み込みました", "config", cfg)

	c, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	switch cmd {
	case "image":
		return runImage(ctx, c, rest, stdout)
	case "status":
		return runStatus(ctx, c, rest, stdout)
	case "complete":
		return runComplete(ctx, c, rest, stdout)
	default:
		return runChat(ctx, c, rest, stdin, stdout)
	}
}

type client struct {
	art  *generator.ArtGenerator
	text *generator.TextGenerator

	// openWriter は出力先 URI に合った書き込み先を返します。
	openWriter func(ctx context.Context, uri string) (remoteio.OutputWriter, func() error, error)
}

func newClient(cfg *config.Config, logger *slog.Logger) (*client, error) {
	transport := adapters.NewHTTPTransport(
		adapters.WithTimeout(cfg.HTTPTimeout),
		adapters.WithSkipNetworkValidation(cfg.SkipNetworkValidation),
		adapters.WithLogger(logger),
	)
	creds, err := generator.NewCredentialStore(cfg.APIKey, cfg.FolderID)
	if err != nil {
		return nil, err
	}
	core, err := generator.NewCore(transport, creds, generator.WithEndpoints(cfg.Endpoints), generator.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	art, err := generator.NewArtGenerator(core, generator.WithPollInterval(cfg.PollInterval))
	if err != nil {
		return nil, err
	}
	text, err := generator.NewTextGenerator(core)
	if err != nil {
		return nil, err
	}
	return &client{art: art, text: text, openWriter: openOutputWriter}, nil
}

// openOutputWriter は gs:// と s3:// にはクラウドのクライアントを持つ書き込み先を、
// それ以外にはローカルファイルの書き込み先を返します。close は書き込み後に必ず呼びます。
func openOutputWriter(ctx context.Context, uri string) (remoteio.OutputWriter, func() error, error) {
	var (
		factory remoteio.IOFactory
		err     error
	)
	switch {
	case remoteio.IsGCSURI(uri):
		factory, err = gcsfactory.New(ctx)
	case remoteio.IsS3URI(uri):
		factory, err = s3factory.New(ctx)
	default:
		return remoteio.NewUniversalIOWriter(nil, nil), func() error { return nil }, nil
	}
	if err != nil {
		return nil, nil, err
	}
	w, err := factory.OutputWriter()
	if err != nil {
		_ = factory.Close()
		return nil, nil, err
	}
	return w, factory.Close, nil
}

// writeOutput は data を uri に書き出します。
func (c *client) writeOutput(ctx context.Context, uri string, data []byte, contentType string) error {
	w, closeWriter, err := c.openWriter(ctx, uri)
	if err != nil {
		return fmt.Errorf("failed to open output %s: %w", uri, err)
	}
	defer func() { _ = closeWriter() }()
	if err := w.Write(ctx, uri, bytes.NewReader(data), contentType); err != nil {
		return fmt.Errorf("failed to write %s: %w", uri, err)
	}
	return nil
}

// promptList は繰り返し指定できる -prompt フラグです。"テキスト::重み" で重みを指定できます。
type promptList []domain.PromptFragment

func (p *promptList) String() string {
	texts := make([]string, 0, len(*p))
	for _, f := range *p {
		texts = append(texts, f.Text)
	}
	return strings.Join(texts, ", ")
}

func (p *promptList) Set(v string) error {
	f, err := parsePrompt(v)
	if err != nil {
		return err
	}
	*p = append(*p, f)
	return nil
}

func parsePrompt(v string) (domain.PromptFragment, error) {
	text, weight, found := strings.Cut(v, "::")
	if !found {
		return domain.PromptFragment{Text: v, Weight: 1}, nil
	}
	w, err := strconv.ParseInt(strings.TrimSpace(weight), 10, 64)
	if err != nil || w <= 0 {
		return domain.PromptFragment{}, fmt.Errorf("invalid prompt weight %q", weight)
	}
	return domain.PromptFragment{Text: text, Weight: w}, nil
}

// parseAspectRatio は "16:9" 形式の縦横比を読みます。
func parseAspectRatio(v string) (domain.AspectRatio, error) {
	w, h, found := strings.Cut(v, ":")
	if !found {
		return domain.AspectRatio{}, fmt.Errorf("aspect ratio must be W:H, got %q", v)
	}
	width, err := strconv.ParseInt(strings.TrimSpace(w), 10, 64)
	if err != nil || width <= 0 {
		return domain.AspectRatio{}, fmt.Errorf("invalid width ratio %q", w)
	}
	height, err := strconv.ParseInt(strings.TrimSpace(h), 10, 64)
	if err != nil || height <= 0 {
		return domain.AspectRatio{}, fmt.Errorf("invalid height ratio %q", h)
	}
	return domain.NewAspectRatio(width, height), nil
}

func parseMimeType(format string) (string, error) {
	switch strings.ToLower(format) {
	case "png":
		return domain.MimeTypePNG, nil
	case "jpeg", "jpg":
		return domain.MimeTypeJPEG, nil
	}
	return "", fmt.Errorf("unsupported format %q (png or jpeg)", format)
}

// imageMetadata は生成画像と並べて保存するサイドカー JSON です。
type imageMetadata struct {
	OperationID  string                  `json:"operationId"`
	Prompts      []domain.PromptFragment `json:"prompts"`
	MimeType     string                  `json:"mimeType"`
	AspectRatio  domain.AspectRatio      `json:"aspectRatio"`
	Seed         *int64                  `json:"seed,omitempty"`
	ModelVersion string                  `json:"modelVersion,omitempty"`
	Width        int                     `json:"width,omitempty"`
	Height       int                     `json:"height,omitempty"`
	Bytes        int                     `json:"bytes"`
	CreatedAt    time.Time               `json:"createdAt"`
}

// sidecarURI は画像の出力先の拡張子を .json に替えます。gs:// や s3:// でも同じ規則です。
func sidecarURI(imageURI string) string {
	return strings.TrimSuffix(imageURI, path.Ext(imageURI)) + ".json"
}

// writeSidecarMetadata は画像と並べてメタデータの JSON を書き出し、書き出し先を返します。
func (c *client) writeSidecarMetadata(ctx context.Context, meta imageMetadata, imageURI string) (string, error) {
	uri := sidecarURI(imageURI)
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := c.writeOutput(ctx, uri, data, "application/json"); err != nil {
		return "", err
	}
	return uri, nil
}

func runImage(ctx context.Context, c *client, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("image", flag.ContinueOnError)
	var prompts promptList
	fs.Var(&prompts, "prompt", `Prompt fragment, repeatable; "text::weight" sets a weight (required)`)
	out := fs.String("out", "image.png", "Output path; gs://bucket/key and s3://bucket/key are also accepted")
	format := fs.String("format", "png", "Output encoding requested from the service: png or jpeg")
	ratio := fs.String("aspect", "1:1", "Aspect ratio as W:H")
	seed := fs.Int64("seed", -1, "Deterministic seed; negative lets the service choose")
	jpegQuality := fs.Int("jpeg-quality", 0, "Re-encode the result as JPEG with this quality (1-100); 0 keeps the original bytes")
	retry := fs.Bool("retry", false, "Retry transport and decode failures while polling")
	timeout := fs.Duration("timeout", 0, "Give up polling after this duration; 0 waits indefinitely")
	sidecar := fs.Bool("metadata", false, "Write a JSON sidecar next to the image")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(prompts) == 0 {
		fs.Usage()
		return errors.New("-prompt is required")
	}

	mimeType, err := parseMimeType(*format)
	if err != nil {
		return err
	}
	ar, err := parseAspectRatio(*ratio)
	if err != nil {
		return err
	}
	params := domain.ImageGenerationParams{
		Fragments:   prompts,
		MimeType:    mimeType,
		AspectRatio: &ar,
	}
	if *seed >= 0 {
		params.Seed = seed
	}
	req, err := domain.NewImageGenerationRequest(params)
	if err != nil {
		return err
	}

	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	var img *domain.ImageResponse
	if *retry {
		res, err := c.art.Submit(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, "Operation ID:", res.OperationID())
		if res.State == generator.StateSucceeded {
			img = res.Image
		} else if img, err = c.art.WaitWithRetry(ctx, res.OperationID(), generator.DefaultRetryPolicy()); err != nil {
			return err
		}
	} else if img, err = c.art.GenerateAndWait(ctx, req); err != nil {
		return err
	}

	data, contentType := img.Data, img.MimeType
	if *jpegQuality > 0 {
		if data, err = imgutil.CompressToJPEG(data, *jpegQuality); err != nil {
			return err
		}
		contentType = domain.MimeTypeJPEG
	}
	if err := c.writeOutput(ctx, *out, data, contentType); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Image saved: %s (%s, %dx%d, %d bytes)\n", *out, contentType, img.Width, img.Height, len(data))

	if *sidecar {
		meta := imageMetadata{
			OperationID:  img.OperationID,
			Prompts:      req.Fragments(),
			MimeType:     req.MimeType(),
			AspectRatio:  req.AspectRatio(),
			Seed:         params.Seed,
			ModelVersion: img.ModelVersion,
			Width:        img.Width,
			Height:       img.Height,
			Bytes:        len(data),
			CreatedAt:    time.Now().UTC(),
		}
		uri, err := c.writeSidecarMetadata(ctx, meta, *out)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, "Metadata saved:", uri)
	}
	return nil
}

// statusView は status コマンドの出力です。
type statusView struct {
	ID          string     `json:"id"`
	State       string     `json:"state"`
	Done        bool       `json:"done"`
	Description string     `json:"description,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	ModifiedAt  *time.Time `json:"modifiedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
	ImageBytes  int        `json:"imageBytes,omitempty"`
}

func newStatusView(id string, res *generator.PollResult, pollErr error) statusView {
	v := statusView{ID: id, State: res.State.String()}
	if op := res.Operation; op != nil {
		v.Done = op.Done
		v.Description = op.Description
		v.CreatedAt = op.CreatedAt
		v.ModifiedAt = op.ModifiedAt
	}
	if pollErr != nil {
		v.Error = pollErr.Error()
	}
	if res.Image != nil {
		v.ImageBytes = len(res.Image.Data)
	}
	return v
}

func runStatus(ctx context.Context, c *client, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	id := fs.String("id", "", "Operation ID to check (required)")
	out := fs.String("out", "", "Save the image here when the operation has succeeded; gs:// and s3:// are accepted")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*id) == "" {
		fs.Usage()
		return errors.New("-id is required")
	}

	res, pollErr := c.art.Poll(ctx, *id)
	if res == nil {
		return pollErr
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(newStatusView(*id, res, pollErr)); err != nil {
		return err
	}

	if res.State == generator.StateSucceeded && *out != "" {
		if err := c.writeOutput(ctx, *out, res.Image.Data, res.Image.MimeType); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "Image saved:", *out)
	}
	return pollErr
}

type textFlags struct {
	model       *string
	version     *string
	temperature *float64
	maxTokens   *int64
}

func registerTextFlags(fs *flag.FlagSet) textFlags {
	return textFlags{
		model:       fs.String("model", string(domain.ModelGPTPro), "Model: yandexgpt-lite, yandexgpt, llama-lite, llama"),
		version:     fs.String("version", string(domain.VersionLatest), "Model version: deprecated, latest, rc"),
		temperature: fs.Float64("temperature", 0.3, "Sampling temperature"),
		maxTokens:   fs.Int64("max-tokens", 0, "Maximum tokens to generate; 0 uses the service default"),
	}
}

func (f textFlags) parse() (domain.ModelType, domain.ModelVersion, *domain.CompletionOptions, error) {
	model, err := domain.ParseModelType(*f.model)
	if err != nil {
		return "", "", nil, err
	}
	version, err := domain.ParseModelVersion(*f.version)
	if err != nil {
		return "", "", nil, err
	}
	opts := &domain.CompletionOptions{Temperature: f.temperature}
	if *f.maxTokens > 0 {
		opts.MaxTokens = f.maxTokens
	}
	return model, version, opts, nil
}

func runComplete(ctx context.Context, c *client, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("complete", flag.ContinueOnError)
	system := fs.String("system", "", "System instruction")
	user := fs.String("user", "", "User message (required)")
	tf := registerTextFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*user) == "" {
		fs.Usage()
		return errors.New("-user is required")
	}
	model, version, opts, err := tf.parse()
	if err != nil {
		return err
	}

	var messages []domain.Message
	if *system != "" {
		messages = append(messages, domain.Message{Role: domain.RoleSystem, Text: *system})
	}
	messages = append(messages, domain.Message{Role: domain.RoleUser, Text: *user})
	req, err := domain.NewCompletionRequest(domain.CompletionParams{Messages: messages, Options: opts})
	if err != nil {
		return err
	}

	res, err := c.text.Complete(ctx, model, version, req)
	if err != nil {
		return err
	}
	text, _ := res.FirstText()
	fmt.Fprintln(stdout, text)
	return nil
}

func runChat(ctx context.Context, c *client, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	system := fs.String("system", "You are a helpful assistant.", "System instruction")
	tf := registerTextFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	model, version, opts, err := tf.parse()
	if err != nil {
		return err
	}

	req, err := domain.NewCompletionRequest(domain.CompletionParams{
		Messages: []domain.Message{{Role: domain.RoleSystem, Text: *system}},
		Options:  opts,
	})
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(stdout)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		next := req.WithMessage(domain.Message{Role: domain.RoleUser, Text: line})
		res, err := c.text.Complete(ctx, model, version, next)
		if err != nil {
			return err
		}
		answer, _ := res.FirstText()
		fmt.Fprintln(stdout, "Assistant:", answer)
		req = next.WithMessage(domain.Message{Role: domain.RoleAssistant, Text: answer})
	}
}
