package voice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

func fakeTranscriber(fn recognizeFunc) *Transcriber {
	return &Transcriber{
		recognize: fn,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func recognition(transcripts ...string) *speechpb.RecognizeResponse {
	resp := &speechpb.RecognizeResponse{}
	for _, text := range transcripts {
		resp.Results = append(resp.Results, &speechpb.SpeechRecognitionResult{
			Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: text}},
		})
	}
	return resp
}

func TestTranscribeSuccess(t *testing.T) {
	tr := fakeTranscriber(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return recognition("I feel a bit", "overwhelmed today"), nil
	})

	got, err := tr.Transcribe(context.Background(), []byte{1, 2, 3}, "audio/webm")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if got != "I feel a bit overwhelmed today" {
		t.Fatalf("unexpected transcript: %q", got)
	}
}

func TestTranscribeEmptyClipIsNoSpeech(t *testing.T) {
	called := false
	tr := fakeTranscriber(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		called = true
		return nil, nil
	})

	_, err := tr.Transcribe(context.Background(), nil, "audio/webm")
	if !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("want ErrNoSpeech, got %v", err)
	}
	if called {
		t.Fatalf("service contacted for an empty clip")
	}
}

func TestTranscribeNoResultsIsNoSpeech(t *testing.T) {
	tr := fakeTranscriber(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return &speechpb.RecognizeResponse{}, nil
	})

	_, err := tr.Transcribe(context.Background(), []byte{1}, "audio/webm")
	if !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("want ErrNoSpeech, got %v", err)
	}
}

func TestTranscribeEmptyAlternativesIsUnintelligible(t *testing.T) {
	tr := fakeTranscriber(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return &speechpb.RecognizeResponse{
			Results: []*speechpb.SpeechRecognitionResult{{}},
		}, nil
	})

	_, err := tr.Transcribe(context.Background(), []byte{1}, "audio/webm")
	if !errors.Is(err, ErrUnintelligible) {
		t.Fatalf("want ErrUnintelligible, got %v", err)
	}
}

func TestTranscribeServiceFailureIsWrapped(t *testing.T) {
	serviceErr := errors.New("deadline exceeded")
	tr := fakeTranscriber(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return nil, serviceErr
	})

	_, err := tr.Transcribe(context.Background(), []byte{1}, "audio/webm")
	if !errors.Is(err, serviceErr) {
		t.Fatalf("service error not wrapped: %v", err)
	}
	if errors.Is(err, ErrNoSpeech) || errors.Is(err, ErrUnintelligible) {
		t.Fatalf("service failure misclassified: %v", err)
	}
}

func TestTranscribeOversizedClipRejected(t *testing.T) {
	tr := fakeTranscriber(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		t.Fatalf("service contacted for oversized clip")
		return nil, nil
	})

	if _, err := tr.Transcribe(context.Background(), make([]byte, MaxClipBytes+1), "audio/webm"); err == nil {
		t.Fatalf("oversized clip accepted")
	}
}
