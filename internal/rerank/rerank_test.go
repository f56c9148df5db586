package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyantlabs/codectx/internal/config"
)

func TestNewReturnsNoopWithoutEndpoint(t *testing.T) {
	reranker := New(config.RerankConfig{})
	assert.False(t, reranker.Available())

	results, err := reranker.Rerank(context.Background(), "query", []string{"doc"})
	assert.NoError(t, err)
	assert.Nil(t, results)
	assert.NoError(t, reranker.Close())
}

func TestNewReturnsTEIWithEndpoint(t *testing.T) {
	reranker := New(config.RerankConfig{Endpoint: "http://localhost:8081"})
	assert.True(t, reranker.Available())

	tei, ok := reranker.(*TEI)
	require.True(t, ok)
	assert.Equal(t, defaultTimeout, tei.client.Timeout)
}

func TestTEIRerank(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rerank", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "parse config file", req.Query)
		assert.Len(t, req.Texts, 3)
		assert.True(t, req.Truncate)

		json.NewEncoder(w).Encode([]rerankResponse{
			{Index: 2, Score: 0.95},
			{Index: 0, Score: 0.40},
			{Index: 1, Score: 0.10},
		})
	}))
	defer server.Close()

	tei := NewTEI(server.URL, "", time.Second)
	results, err := tei.Rerank(context.Background(), "parse config file", []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 2, results[0].Index)
	assert.Equal(t, 0.95, results[0].Score)
	assert.Equal(t, 0, results[1].Index)
	assert.Equal(t, 1, results[2].Index)
}

func TestTEIRerankSortsUnorderedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]rerankResponse{
			{Index: 0, Score: 0.10},
			{Index: 1, Score: 0.90},
		})
	}))
	defer server.Close()

	tei := NewTEI(server.URL, "", time.Second)
	results, err := tei.Rerank(context.Background(), "q", []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Index, "Highest score must come first")
}

func TestTEIRerankEmptyDocs(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	tei := NewTEI(server.URL, "", time.Second)
	results, err := tei.Rerank(context.Background(), "q", nil)
	assert.NoError(t, err)
	assert.Nil(t, results)
	assert.False(t, called, "Empty input should not reach the server")
}

func TestTEIRerankServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	tei := NewTEI(server.URL, "", time.Second)
	_, err := tei.Rerank(context.Background(), "q", []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestTEIRerankUnreachable(t *testing.T) {
	tei := NewTEI("http://localhost:1", "", 200*time.Millisecond)
	_, err := tei.Rerank(context.Background(), "q", []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is TEI running")
}

func TestPairText(t *testing.T) {
	text := PairText("login", "src/auth.py", "def login(user): ...")
	assert.Equal(t, "login src/auth.py def login(user): ...", text)

	long := strings.Repeat("x", 2000)
	text = PairText("f", "a.py", long)
	assert.Equal(t, len("f a.py ")+pairTextMaxCode, len(text))
}
