package stt

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscribeUploadsMultipart(t *testing.T) {
	var (
		gotModel, gotName string
		gotAudio          []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotModel = r.FormValue("model")
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		gotName = hdr.Filename
		gotAudio, _ = io.ReadAll(f)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":" turn on the lights"}`)
	}))
	defer srv.Close()

	svc := NewOpenAISTTService(Config{BaseURL: srv.URL + "/v1", Model: "base.en"})
	require.NoError(t, svc.Init(context.Background()))

	text, err := svc.Transcribe(context.Background(), bytes.NewReader([]byte("RIFFdata")), "clip.wav")
	require.NoError(t, err)
	assert.Equal(t, " turn on the lights", text)
	assert.Equal(t, "base.en", gotModel)
	assert.Equal(t, "clip.wav", gotName)
	assert.Equal(t, []byte("RIFFdata"), gotAudio)
}

func TestTranscribeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"model not loaded"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := NewOpenAISTTService(Config{BaseURL: srv.URL + "/v1"})
	require.NoError(t, svc.Init(context.Background()))
	_, err := svc.Transcribe(context.Background(), strings.NewReader("x"), "a.wav")
	assert.Error(t, err)
}

func TestTranscribeBeforeInit(t *testing.T) {
	_, err := NewOpenAISTTService(Config{}).Transcribe(context.Background(), strings.NewReader("x"), "a.wav")
	assert.Error(t, err)
}
