// Package polly adapts the speech-synthesis capability to Amazon Polly for
// deployments without the local voice server.
package polly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"

	"github.com/aituber/presenter-pipeline/api/pipeline"
	"github.com/aituber/presenter-pipeline/internal/provider/contracts"
	"github.com/aituber/presenter-pipeline/providers/common/httpadapter"
)

type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// Config maps pipeline voice profiles onto Polly voices.
type Config struct {
	Region       string
	Engine       string
	DefaultVoice string
	// Voices maps a voice profile (e.g. "narrator") to a Polly VoiceId.
	Voices  map[string]string
	Timeout time.Duration
}

// Adapter implements contracts.Synthesizer against Amazon Polly.
type Adapter struct {
	mu     sync.Mutex
	client synthClient
	cfg    Config
}

// New constructs a Polly adapter with lazy AWS client resolution.
func New(cfg Config) *Adapter {
	return NewWithClient(cfg, nil)
}

// NewWithClient constructs a Polly adapter around an injected client, for
// tests.
func NewWithClient(cfg Config, client synthClient) *Adapter {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}
	if strings.TrimSpace(cfg.Engine) == "" {
		cfg.Engine = "neural"
	}
	if strings.TrimSpace(cfg.DefaultVoice) == "" {
		cfg.DefaultVoice = "Takumi"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Adapter{client: client, cfg: cfg}
}

// Synthesize renders one segment text through Polly and returns the MP3
// payload.
func (a *Adapter) Synthesize(ctx context.Context, req contracts.SpeechRequest) (*pipeline.Clip, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("speech text is required")
	}
	client, err := a.resolveClient(ctx)
	if err != nil {
		return nil, err
	}

	engine := pollytypes.EngineStandard
	if strings.EqualFold(a.cfg.Engine, "neural") {
		engine = pollytypes.EngineNeural
	}
	voice := a.cfg.DefaultVoice
	if mapped, ok := a.cfg.Voices[req.VoiceProfile]; ok && mapped != "" {
		voice = mapped
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	output, err := client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         &req.Text,
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(voice),
	})
	if err != nil {
		return nil, normalizePollyError(err)
	}
	if output == nil || output.AudioStream == nil {
		return nil, &httpadapter.TransportError{Err: fmt.Errorf("empty audio stream")}
	}
	defer output.AudioStream.Close()

	data, err := io.ReadAll(output.AudioStream)
	if err != nil {
		return nil, &httpadapter.TransportError{Err: err}
	}
	return &pipeline.Clip{Data: data, Format: "mp3"}, nil
}

// normalizePollyError maps SDK errors onto the shared retryable/terminal
// classification.
func normalizePollyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "TooManyRequestsException":
			return &httpadapter.StatusError{Code: http.StatusTooManyRequests, Body: apiErr.ErrorMessage()}
		case "InvalidSsmlException", "TextLengthExceededException", "LexiconNotFoundException", "MarksNotSupportedForFormatException", "InvalidSampleRateException":
			return &httpadapter.StatusError{Code: http.StatusUnprocessableEntity, Body: apiErr.ErrorMessage()}
		default:
			return &httpadapter.StatusError{Code: http.StatusInternalServerError, Body: apiErr.ErrorMessage()}
		}
	}

	return &httpadapter.TransportError{Err: err}
}

func (a *Adapter) resolveClient(ctx context.Context) (synthClient, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	a.client = polly.NewFromConfig(awsCfg)
	return a.client, nil
}
