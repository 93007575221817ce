package speech

import (
	"context"
	"errors"
	"testing"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTranscriber struct {
	alts []string
	err  error
}

func (f fakeTranscriber) Transcribe(context.Context, []byte) ([]string, error) {
	return f.alts, f.err
}

func TestVerdict(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		alts   []string
		target string
		want   string
		passed bool
	}{
		{"exact", []string{"allqu"}, "allqu", "allqu", true},
		{"best alternative wins", []string{"al kuh", "allco"}, "allqu", "allco", true},
		{"phrase containing word", []string{"el perro es allqu"}, "allqu", "el perro es allqu", true},
		{"wrong word", []string{"michi"}, "allqu", "michi", false},
		{"silence", nil, "allqu", "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			v, err := NewJudge(fakeTranscriber{alts: c.alts}, nil).Verdict(ctx, []byte("ogg"), c.target)
			require.NoError(t, err)
			assert.Equal(t, c.want, v.Transcript)
			assert.Equal(t, c.passed, v.Passed)
		})
	}
}

func TestVerdict_TranscriberError(t *testing.T) {
	_, err := NewJudge(fakeTranscriber{err: errors.New("unavailable")}, nil).Verdict(context.Background(), nil, "runa")
	assert.EqualError(t, err, "unavailable")
}

func TestTranscripts(t *testing.T) {
	resp := &speechpb.RecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: " runa "}, {Transcript: ""}}},
		nil,
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "luna"}}},
	}}
	assert.Equal(t, []string{"runa", "luna"}, transcripts(resp))
	assert.Nil(t, transcripts(nil))
}

func TestRecognitionConfig(t *testing.T) {
	cfg := recognitionConfig("es-PE")
	assert.Equal(t, speechpb.RecognitionConfig_OGG_OPUS, cfg.Encoding)
	assert.EqualValues(t, 48000, cfg.SampleRateHertz)
	assert.Equal(t, "es-PE", cfg.LanguageCode)
}
