// Package voice turns short audio clips into staged chat text via a
// speech-to-text service. Transcripts are reviewed by the user before
// sending; nothing here auto-sends.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
)

// Recoverable transcription outcomes. Each leaves the pending buffer
// untouched; the caller reports a distinct warning.
var (
	ErrNoSpeech       = errors.New("no speech detected")
	ErrUnintelligible = errors.New("could not understand the audio")
)

// MaxClipBytes bounds one recording. It comfortably covers the 5-second
// capture window at the bitrates the browser recorder produces.
const MaxClipBytes = 1 << 20

const requestTimeout = 30 * time.Second

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// Transcriber wraps the speech-to-text service.
type Transcriber struct {
	recognize recognizeFunc
	close     func() error
	logger    *slog.Logger
}

// NewTranscriber creates a transcriber backed by Cloud Speech. The
// credentials file is optional; ambient credentials are used when empty.
func NewTranscriber(ctx context.Context, credentialsFile string, logger *slog.Logger) (*Transcriber, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	return &Transcriber{
		recognize: func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
			return client.Recognize(ctx, req)
		},
		close:  client.Close,
		logger: logger,
	}, nil
}

// Close releases the underlying client.
func (t *Transcriber) Close() error {
	if t.close == nil {
		return nil
	}
	return t.close()
}

// Transcribe converts one clip to text. Failure modes are distinct and
// recoverable: ErrNoSpeech for silence, ErrUnintelligible for audio the
// service could not parse, and a wrapped service error otherwise.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", ErrNoSpeech
	}
	if len(audio) > MaxClipBytes {
		return "", fmt.Errorf("audio clip exceeds %d bytes", MaxClipBytes)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   encodingFor(mimeType),
			LanguageCode:               "en-US",
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	}

	resp, err := t.recognize(ctx, req)
	if err != nil {
		return "", fmt.Errorf("transcription service failed: %w", err)
	}

	if len(resp.Results) == 0 {
		return "", ErrNoSpeech
	}

	var parts []string
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		if text := strings.TrimSpace(result.Alternatives[0].Transcript); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", ErrUnintelligible
	}

	transcript := strings.Join(parts, " ")
	t.logger.Info("transcribed voice clip", "bytes", len(audio), "chars", len(transcript))
	return transcript, nil
}

func encodingFor(mimeType string) speechpb.RecognitionConfig_AudioEncoding {
	switch {
	case strings.HasPrefix(mimeType, "audio/webm"):
		return speechpb.RecognitionConfig_WEBM_OPUS
	case strings.HasPrefix(mimeType, "audio/ogg"):
		return speechpb.RecognitionConfig_OGG_OPUS
	default:
		// WAV/FLAC carry their own headers.
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}
