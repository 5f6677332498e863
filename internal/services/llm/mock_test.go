package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/respondeo/internal/models"
)

func TestMockService_CannedResponse(t *testing.T) {
	svc := NewMockService()
	svc.Response = "Paris is the capital of France."

	answer, err := svc.Generate(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital of France.", answer)
	assert.Equal(t, 1, svc.PromptCount())
	assert.Contains(t, svc.LastPrompt(), "capital of France")
}

func TestMockService_Error(t *testing.T) {
	svc := NewMockService()
	svc.Err = errors.New("backend down")

	_, err := svc.Generate(context.Background(), "question")
	assert.ErrorIs(t, err, models.ErrProvider)
}

func TestMockService_DerivedAnswer(t *testing.T) {
	svc := NewMockService()

	answer, err := svc.Generate(context.Background(), "first line\nsecond line")
	require.NoError(t, err)
	assert.Equal(t, "mock answer: first line", answer)
}
