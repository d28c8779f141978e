package services

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raihq/rai-backend/internal/models"
)

func TestBuildContextWindow(t *testing.T) {
	history := []models.ConversationMessage{
		{Sender: models.SenderUser, Text: "hi"},
		{Sender: models.SenderAssistant, Text: "hello, how can I help?"},
	}

	messages := BuildContextWindow(history, "what's 2+2?", "")
	require.Len(t, messages, 4)

	assert.Equal(t, openai.ChatMessageRoleSystem, messages[0].Role)
	assert.Equal(t, SystemPrompt, messages[0].Content)

	assert.Equal(t, openai.ChatMessageRoleUser, messages[1].Role)
	assert.Equal(t, "hi", messages[1].Content)
	assert.Equal(t, openai.ChatMessageRoleAssistant, messages[2].Role)

	assert.Equal(t, openai.ChatMessageRoleUser, messages[3].Role)
	assert.Equal(t, "what's 2+2?", messages[3].Content)
	assert.Empty(t, messages[3].MultiContent)
}

func TestBuildContextWindowWithImage(t *testing.T) {
	messages := BuildContextWindow(nil, "what is in this picture?", "data:image/png;base64,AAAA")
	require.Len(t, messages, 2)

	current := messages[1]
	assert.Empty(t, current.Content)
	require.Len(t, current.MultiContent, 2)
	assert.Equal(t, openai.ChatMessagePartTypeText, current.MultiContent[0].Type)
	assert.Equal(t, "what is in this picture?", current.MultiContent[0].Text)
	assert.Equal(t, openai.ChatMessagePartTypeImageURL, current.MultiContent[1].Type)
	require.NotNil(t, current.MultiContent[1].ImageURL)
	assert.Equal(t, "data:image/png;base64,AAAA", current.MultiContent[1].ImageURL.URL)
}

func TestIsTransientProviderError(t *testing.T) {
	assert.False(t, IsTransientProviderError(nil))

	assert.True(t, IsTransientProviderError(&openai.APIError{HTTPStatusCode: 429}))
	assert.True(t, IsTransientProviderError(&openai.APIError{HTTPStatusCode: 500}))
	assert.True(t, IsTransientProviderError(&openai.APIError{HTTPStatusCode: 503}))

	assert.False(t, IsTransientProviderError(&openai.APIError{HTTPStatusCode: 400}))
	assert.False(t, IsTransientProviderError(&openai.APIError{HTTPStatusCode: 401}))

	assert.True(t, IsTransientProviderError(context.DeadlineExceeded))
	assert.True(t, IsTransientProviderError(&net.DNSError{IsTimeout: true}))

	assert.False(t, IsTransientProviderError(errors.New("something else")))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", truncateRunes("short", 200))
	assert.Equal(t, "abc", truncateRunes("abcdef", 3))

	// Multi-byte input must never be cut mid-rune.
	got := truncateRunes(strings.Repeat("héllo wörld ", 30), titlePromptLimit)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, titlePromptLimit, utf8.RuneCountInString(got))
}
