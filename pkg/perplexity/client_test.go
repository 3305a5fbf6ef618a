package perplexity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatCompletion(t *testing.T) {
	var gotAuth string
	var gotReq ChatCompletionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		resp := ChatCompletionResponse{
			ID: "cmpl-1",
			Choices: []Choice{
				{Index: 0, Message: Message{Role: "assistant", Content: "Acme builds widgets."}},
			},
			Usage: Usage{PromptTokens: 12, CompletionTokens: 34},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{
		Messages: []Message{{Role: "user", Content: "Tell me about Acme."}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, defaultModel, gotReq.Model, "empty model should fall back to the default")
	assert.Equal(t, "Acme builds widgets.", resp.Answer())
	assert.Equal(t, 12, resp.Usage.PromptTokens)
}

func TestChatCompletionModelOverride(t *testing.T) {
	var gotReq ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		require.NoError(t, json.NewEncoder(w).Encode(ChatCompletionResponse{}))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithModel("sonar"))
	_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "sonar", gotReq.Model)
}

func TestChatCompletionErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestResearch(t *testing.T) {
	var gotReq ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		resp := ChatCompletionResponse{
			Choices: []Choice{{Message: Message{Role: "assistant", Content: "Findings."}}},
			Usage:   Usage{PromptTokens: 5, CompletionTokens: 7},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	answer, usage, err := Research(context.Background(), client, "Who is Jane Doe at Acme?")
	require.NoError(t, err)

	assert.Equal(t, "Findings.", answer)
	assert.Equal(t, 7, usage.CompletionTokens)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "Who is Jane Doe at Acme?", gotReq.Messages[1].Content)
}

func TestAnswerEmpty(t *testing.T) {
	resp := &ChatCompletionResponse{}
	assert.Equal(t, "", resp.Answer())
}
