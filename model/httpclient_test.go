package model

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shelvick/quoracle/errtag"
)

func TestHTTPClientGenerateSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req httpChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "m1", req.Model)

		_ = json.NewEncoder(w).Encode(httpChatResponse{
			Content:      "hello",
			FinishReason: "stop",
		})
	}))
	defer server.Close()

	client := NewHTTPClient(HTTPConfig{ModelID: "m1", BaseURL: server.URL, APIKey: "secret"})
	reply, err := client.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, SamplingOpts{Temperature: 0.5})
	require.NoError(t, err)
	require.Equal(t, "hello", reply.Content)
	require.Equal(t, "stop", reply.FinishReason)
	require.Equal(t, "m1", client.ID())
}

func TestHTTPClientGenerateClassifiesUpstreamErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewHTTPClient(HTTPConfig{ModelID: "m1", BaseURL: server.URL})
	_, err := client.Generate(context.Background(), nil, SamplingOpts{})
	require.Error(t, err)
	require.True(t, errtag.IsKind(err, errtag.KindRateLimitExceeded))
}

func TestHTTPClientGenerateReturnsBodyLevelError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"type": "bad_request", "message": "missing field"},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(HTTPConfig{ModelID: "m1", BaseURL: server.URL})
	_, err := client.Generate(context.Background(), nil, SamplingOpts{})
	require.Error(t, err)
	require.True(t, errtag.IsKind(err, errtag.KindInvalidResponseFormat))
	require.Contains(t, err.Error(), "missing field")
}

func TestClassifyStatusMapsServerErrorsToServiceUnavailable(t *testing.T) {
	kind, ok := classifyStatus(http.StatusInternalServerError)
	require.True(t, ok)
	require.Equal(t, errtag.KindServiceUnavailable, kind)

	_, ok = classifyStatus(http.StatusOK)
	require.False(t, ok)
}
