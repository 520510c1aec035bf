package tts

import (
	"context"
	"errors"
	"net/url"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/scenereel/internal/elevenlabs"
	"github.com/maauso/scenereel/internal/livepeer"
)

type mockSpeechClient struct {
	mock.Mock
}

func (m *mockSpeechClient) TextToSpeech(ctx context.Context, req livepeer.TTSRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type mockSoundClient struct {
	mock.Mock
}

func (m *mockSoundClient) GenerateSound(ctx context.Context, req elevenlabs.SoundRequest) ([]byte, error) {
	args := m.Called(ctx, req)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func TestLivepeerSynthesizer(t *testing.T) {
	ctx := context.Background()
	client := &mockSpeechClient{}
	client.On("TextToSpeech", ctx, livepeer.TTSRequest{Text: "Run!", Description: "urgent whisper"}).
		Return("https://gw/a.wav", nil)

	asset, err := NewLivepeerSynthesizer(client).Synthesize(ctx, Request{Text: "Run!", Description: "urgent whisper"})
	require.NoError(t, err)
	assert.Equal(t, Asset{URL: "https://gw/a.wav"}, asset)
}

func TestLivepeerSynthesizer_Error(t *testing.T) {
	ctx := context.Background()
	client := &mockSpeechClient{}
	client.On("TextToSpeech", ctx, mock.Anything).Return("", livepeer.ErrNoAudioURL)

	_, err := NewLivepeerSynthesizer(client).Synthesize(ctx, Request{Text: "hi"})
	assert.ErrorIs(t, err, livepeer.ErrNoAudioURL)
}

func TestElevenLabsSoundGenerator_SpoolsBytes(t *testing.T) {
	ctx := context.Background()
	client := &mockSoundClient{}
	client.On("GenerateSound", ctx, elevenlabs.SoundRequest{Text: "thunder", Duration: 3}).
		Return([]byte("mp3-bytes"), nil)

	asset, err := NewElevenLabsSoundGenerator(client, t.TempDir()).GenerateSound(ctx, "thunder", 3)
	require.NoError(t, err)

	u, err := url.Parse(asset.URL)
	require.NoError(t, err)
	assert.Equal(t, "file", u.Scheme)

	data, err := os.ReadFile(u.Path)
	require.NoError(t, err)
	assert.Equal(t, "mp3-bytes", string(data))
}

func TestElevenLabsSoundGenerator_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("client error", func(t *testing.T) {
		client := &mockSoundClient{}
		client.On("GenerateSound", ctx, mock.Anything).Return(nil, errors.New("quota"))

		_, err := NewElevenLabsSoundGenerator(client, t.TempDir()).GenerateSound(ctx, "thunder", 3)
		assert.EqualError(t, err, "elevenlabs sound: quota")
	})

	t.Run("unconfigured", func(t *testing.T) {
		_, err := NewElevenLabsSoundGenerator(nil, "").GenerateSound(ctx, "thunder", 3)
		assert.ErrorIs(t, err, ErrNotConfigured)
	})
}
