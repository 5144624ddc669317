package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		n := 1
		if list, ok := req.Input.([]any); ok {
			n = len(list)
		}
		resp := embedResponse{}
		for i := range n {
			resp.Embeddings = append(resp.Embeddings, []float64{float64(i), 0.5, 1})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"nomic-embed-text:latest"},{"name":"llama3.2:1b"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	s := NewEmbeddingService(Config{})
	assert.Equal(t, DefaultBaseURL, s.baseURL)
	assert.Equal(t, DefaultModel, s.ModelName())
	assert.Equal(t, DefaultDimensions, s.Dimensions())
}

func TestEmbed(t *testing.T) {
	srv := newTestServer(t)
	s := NewEmbeddingService(Config{BaseURL: srv.URL + "/", Dimensions: 3})

	vec, err := s.Embed(context.Background(), "annual leave")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.5, 1}, vec)
}

func TestEmbedBatch(t *testing.T) {
	srv := newTestServer(t)
	s := NewEmbeddingService(Config{BaseURL: srv.URL})

	vecs, err := s.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, float32(2), vecs[2][0])

	empty, err := s.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestEmbed_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewEmbeddingService(Config{BaseURL: srv.URL}).Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestListModelsAndPing(t *testing.T) {
	srv := newTestServer(t)
	s := NewEmbeddingService(Config{BaseURL: srv.URL})

	require.NoError(t, s.Ping(context.Background()))

	models, err := s.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"nomic-embed-text:latest", "llama3.2:1b"}, models)
}

func TestEmbed_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewEmbeddingService(Config{BaseURL: url}).Embed(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}
