package embedder

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_GenerateEmbeddings_PreservesOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// Dimension encodes the prompt's length so each response is
		// distinguishable by input.
		dim := len(req.Prompt)
		vec := make([]float64, dim)
		for i := range vec {
			vec[i] = float64(i)
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: vec})
	}))
	defer server.Close()

	p := NewOllamaProvider(server.URL, "", discardLogger())
	vecs, err := p.GenerateEmbeddings(t.Context(), []string{"a", "bb", "ccc"})

	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Len(t, vecs[0], 1)
	assert.Len(t, vecs[1], 2)
	assert.Len(t, vecs[2], 3)
}

func TestOllamaProvider_EmptyInput(t *testing.T) {
	p := NewOllamaProvider("http://example.invalid", "", discardLogger())
	vecs, err := p.GenerateEmbeddings(t.Context(), nil)

	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestOllamaProvider_DefaultsModelWhenEmpty(t *testing.T) {
	p := NewOllamaProvider("http://example.invalid", "", discardLogger())
	assert.Equal(t, ollamaDefaultModel, p.model)
}

func TestOllamaProvider_NonOKStatusReturnsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	p := NewOllamaProvider(server.URL, "", discardLogger())
	_, err := p.GenerateEmbeddings(t.Context(), []string{"a"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestOllamaProvider_EmptyEmbeddingIsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: nil})
	}))
	defer server.Close()

	p := NewOllamaProvider(server.URL, "", discardLogger())
	_, err := p.GenerateEmbeddings(t.Context(), []string{"a"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty embedding")
}
