package poster

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageClientGenerate(t *testing.T) {
	imageBytes := []byte("fake-png")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/generations", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		fmt.Fprintf(w, `{"data": [{"b64_json": %q}]}`, base64.StdEncoding.EncodeToString(imageBytes))
	}))
	defer server.Close()

	client := &ImageClient{
		APIKey:     "sk-test",
		BaseURL:    server.URL,
		Model:      "gpt-image-1",
		HTTPClient: server.Client(),
	}

	image, err := client.Generate(context.Background(), GenerationRequest{Prompt: "a lighthouse", Size: "1024x1024"})
	require.NoError(t, err)
	assert.Equal(t, imageBytes, image.Data)
	assert.Equal(t, "image/png", image.ContentType)
}

func TestImageClientGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": {"message": "prompt rejected"}}`)
	}))
	defer server.Close()

	client := &ImageClient{APIKey: "sk-test", BaseURL: server.URL, HTTPClient: server.Client()}

	_, err := client.Generate(context.Background(), GenerationRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt rejected")
}

func TestImageClientNotConfigured(t *testing.T) {
	client := &ImageClient{}
	assert.False(t, client.IsConfigured())

	_, err := client.Generate(context.Background(), GenerationRequest{Prompt: "x"})
	require.Error(t, err)
}
