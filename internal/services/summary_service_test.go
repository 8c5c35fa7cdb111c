package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliialzein/PsyConnect/internal/repository"
)

func TestSummarizeReturnsProviderText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"A calm week with 4 sessions."}}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", "gpt-4o-mini").WithBaseURL(server.URL)
	svc := NewSummaryService(client, zerolog.Nop())

	text := svc.Summarize(context.Background(), &repository.BookingStats{Total: 4})
	assert.Equal(t, "A calm week with 4 sessions.", text)
}

func TestSummarizeDegradesWhenProviderErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", "").WithBaseURL(server.URL)
	svc := NewSummaryService(client, zerolog.Nop())

	text := svc.Summarize(context.Background(), &repository.BookingStats{Total: 4})
	assert.Equal(t, summaryUnavailable, text)
}

func TestSummarizeDegradesWithoutClient(t *testing.T) {
	svc := NewSummaryService(nil, zerolog.Nop())
	text := svc.Summarize(context.Background(), &repository.BookingStats{})
	assert.Equal(t, summaryUnavailable, text)
}

func TestAssistantShortCircuitsCrisisMessages(t *testing.T) {
	svc := NewAssistantService(nil)

	reply, err := svc.Reply(context.Background(), "Lately I think about suicide a lot")
	require.NoError(t, err)
	assert.Equal(t, crisisReply, reply)
}

func TestAssistantReturnsExternalUnavailableOnProviderFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", "").WithBaseURL(server.URL)
	svc := NewAssistantService(client)

	_, err := svc.Reply(context.Background(), "How long is a session?")
	require.ErrorIs(t, err, ErrExternalUnavailable)
}

func TestAssistantForwardsOrdinaryQuestions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Sessions last 50 minutes."}}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", "").WithBaseURL(server.URL)
	svc := NewAssistantService(client)

	reply, err := svc.Reply(context.Background(), "How long is a session?")
	require.NoError(t, err)
	assert.Equal(t, "Sessions last 50 minutes.", reply)
}
