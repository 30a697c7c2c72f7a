package slack_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/reviewnudge/internal/adapter/driven/slack"
	"github.com/ericfisherdev/reviewnudge/internal/domain/model"
	"github.com/ericfisherdev/reviewnudge/internal/domain/port/driven"
)

func sampleMessage() model.RenderedMessage {
	return model.RenderedMessage{
		Text: "1 merge request needs attention",
		Blocks: []model.Block{
			{Type: model.BlockHeader, Text: &model.TextObject{Type: model.TextPlain, Text: "Review"}},
			{Type: model.BlockDivider},
			{Type: model.BlockContext, Elements: []model.TextObject{{Type: model.TextMarkdown, Text: "footer"}}},
		},
	}
}

func TestSend(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	err := slack.NewWebhook(server.Client()).Send(context.Background(), server.URL, sampleMessage())
	require.NoError(t, err)

	assert.Equal(t, "1 merge request needs attention", got["text"])
	blocks := got["blocks"].([]any)
	require.Len(t, blocks, 3)
	divider := blocks[1].(map[string]any)
	assert.Equal(t, "divider", divider["type"])
	assert.NotContains(t, divider, "text")
}

func TestSend_ErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusForbidden, driven.ErrUnauthorized},
		{http.StatusNotFound, driven.ErrUnauthorized},
		{http.StatusTooManyRequests, driven.ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("invalid_token"))
			}))
			defer server.Close()

			err := slack.NewWebhook(server.Client()).Send(context.Background(), server.URL, sampleMessage())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSend_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := slack.NewWebhook(server.Client()).Send(context.Background(), server.URL, sampleMessage())
	require.Error(t, err)
	assert.NotErrorIs(t, err, driven.ErrUnauthorized)
	assert.Contains(t, err.Error(), "500")
}

func TestSend_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	client := server.Client()
	server.Close()

	err := slack.NewWebhook(client).Send(context.Background(), server.URL, sampleMessage())
	assert.ErrorIs(t, err, driven.ErrNetwork)
}
