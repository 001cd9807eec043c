package embedding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"provision-fc-go/internal/config"
	"provision-fc-go/pkg/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.Init("error", "console", "")
	m.Run()
}

func TestCreateEmbedding_ReturnsVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		_, _ = w.Write([]byte(`{"data": [{"embedding": [0.1, 0.2, 0.3]}]}`))
	}))
	defer server.Close()

	client := NewClient(config.EmbeddingConfig{APIKey: "k", BaseURL: server.URL, Model: "text-embedding-3-small"})
	vector, err := client.CreateEmbedding(context.Background(), "什么是越位？")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
}

func TestCreateEmbedding_EmptyDataIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer server.Close()

	client := NewClient(config.EmbeddingConfig{APIKey: "k", BaseURL: server.URL, Model: "text-embedding-3-small"})
	_, err := client.CreateEmbedding(context.Background(), "q")
	assert.Error(t, err)
}
