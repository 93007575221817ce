// Package speech judges spoken answers to pronunciation exercises.
package speech

import (
	"context"
	"strings"
	"sync"
	"time"

	gspeech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/example/yachay/internal/exercise"
)

// telegram voice notes are opus in an ogg container at 48kHz
const (
	voiceSampleRate   = 48000
	recognizeTimeout  = 30 * time.Second
	maxAlternatives   = 3
	defaultLanguageID = "es-PE"
)

// Transcriber turns audio into candidate transcripts, best first
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) ([]string, error)
}

// GCPTranscriber uses google cloud speech-to-text. The client is created on
// first use.
type GCPTranscriber struct {
	opts     []option.ClientOption
	language string

	mu     sync.Mutex
	client *gspeech.Client
}

// NewGCPTranscriber creates a transcriber for language, a BCP-47 code
func NewGCPTranscriber(language string, opts ...option.ClientOption) *GCPTranscriber {
	if language == "" {
		language = defaultLanguageID
	}
	return &GCPTranscriber{opts: opts, language: language}
}

func (t *GCPTranscriber) speechClient(ctx context.Context) (*gspeech.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		return t.client, nil
	}
	c, err := gspeech.NewClient(ctx, t.opts...)
	if err != nil {
		return nil, eris.Wrap(err, "speech: client")
	}
	t.client = c
	return c, nil
}

// Transcribe runs synchronous recognition on an OGG/Opus voice note
func (t *GCPTranscriber) Transcribe(ctx context.Context, audio []byte) ([]string, error) {
	if len(audio) == 0 {
		return nil, nil
	}
	client, err := t.speechClient(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, recognizeTimeout)
	defer cancel()

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognitionConfig(t.language),
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audio}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "speech: recognize")
	}
	return transcripts(resp), nil
}

// Close releases the client
func (t *GCPTranscriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

func recognitionConfig(language string) *speechpb.RecognitionConfig {
	return &speechpb.RecognitionConfig{
		Encoding:        speechpb.RecognitionConfig_OGG_OPUS,
		SampleRateHertz: voiceSampleRate,
		LanguageCode:    language,
		// quechua is not a recognition language; spanish and english
		// phonetics come closest
		AlternativeLanguageCodes: []string{"en-US"},
		MaxAlternatives:          maxAlternatives,
	}
}

func transcripts(resp *speechpb.RecognizeResponse) []string {
	if resp == nil {
		return nil
	}
	var out []string
	for _, r := range resp.Results {
		if r == nil {
			continue
		}
		for _, alt := range r.Alternatives {
			if alt == nil {
				continue
			}
			if text := strings.TrimSpace(alt.Transcript); text != "" {
				out = append(out, text)
			}
		}
	}
	return out
}

// Verdict is the judgement of one spoken answer
type Verdict struct {
	Transcript string
	Similarity float64
	Passed     bool
}

// Judge scores voice notes against target words
type Judge struct {
	transcriber Transcriber
	threshold   float64
	log         *zap.Logger
}

// NewJudge creates a judge passing answers at exercise.PassSimilarity
func NewJudge(transcriber Transcriber, log *zap.Logger) *Judge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Judge{transcriber: transcriber, threshold: exercise.PassSimilarity, log: log.Named("speech")}
}

// Verdict transcribes audio and keeps the alternative closest to target
func (j *Judge) Verdict(ctx context.Context, audio []byte, target string) (*Verdict, error) {
	alts, err := j.transcriber.Transcribe(ctx, audio)
	if err != nil {
		return nil, err
	}

	best := &Verdict{}
	for _, alt := range alts {
		if sim := exercise.Similarity(alt, target); sim > best.Similarity || best.Transcript == "" {
			best.Transcript, best.Similarity = alt, sim
		}
	}
	best.Passed = best.Transcript != "" && best.Similarity >= j.threshold

	j.log.Debug("pronunciation judged",
		zap.String("target", target),
		zap.String("transcript", best.Transcript),
		zap.Float64("similarity", best.Similarity),
		zap.Int("alternatives", len(alts)))
	return best, nil
}
