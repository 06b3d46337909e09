package whisper_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/voicebot/pkg/audio"
	"github.com/MrWong99/voicebot/pkg/provider/stt/whisper"
)

func testWAV() []byte {
	return audio.EncodeWAV(audio.Clip{PCM: make([]byte, 320), Format: audio.Format{SampleRate: 16000, Channels: 1}})
}

func TestNew_EmptyServerURL(t *testing.T) {
	t.Parallel()
	if _, err := whisper.New(""); err == nil {
		t.Fatal("expected error for empty serverURL, got nil")
	}
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	var gotLang, gotModel string
	var gotFile []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotLang = r.FormValue("language")
		gotModel = r.FormValue("model")
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotFile, _ = io.ReadAll(f)
		_ = json.NewEncoder(w).Encode(map[string]string{"text": " hello Claude\n"})
	}))
	t.Cleanup(srv.Close)

	tr, err := whisper.New(srv.URL+"/", whisper.WithModel("base.en"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	wav := testWAV()
	text, err := tr.Transcribe(context.Background(), wav, "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if text != "hello Claude" {
		t.Errorf("text = %q, want %q", text, "hello Claude")
	}
	if gotLang != "en" {
		t.Errorf("language = %q, want %q", gotLang, "en")
	}
	if gotModel != "base.en" {
		t.Errorf("model = %q, want %q", gotModel, "base.en")
	}
	if len(gotFile) != len(wav) {
		t.Errorf("uploaded %d bytes, want %d", len(gotFile), len(wav))
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	tr, _ := whisper.New(srv.URL)
	_, err := tr.Transcribe(context.Background(), testWAV(), "en")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "model not loaded") {
		t.Errorf("error = %v, want status and body", err)
	}
}

func TestTranscribe_CancelledContext(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	tr, _ := whisper.New(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tr.Transcribe(ctx, testWAV(), "en"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
