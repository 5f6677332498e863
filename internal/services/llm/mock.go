package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
)

// MockService is a deterministic generator for tests and offline runs
type MockService struct {
	mu       sync.Mutex
	Response string
	Err      error
	Prompts  []string
}

var _ interfaces.LLMService = (*MockService)(nil)

// NewMockService returns a generator that echoes a canned response
func NewMockService() *MockService {
	return &MockService{}
}

// Generate records the prompt and returns the canned response, or a
// short derived answer when none is set
func (s *MockService) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.Prompts = append(s.Prompts, prompt)
	response := s.Response
	err := s.Err
	s.mu.Unlock()

	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrProvider, err)
	}
	if response != "" {
		return response, nil
	}

	first := prompt
	if idx := strings.IndexByte(first, '\n'); idx > 0 {
		first = first[:idx]
	}
	return "mock answer: " + strings.TrimSpace(first), nil
}

// PromptCount returns how many generations were requested
func (s *MockService) PromptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Prompts)
}

// LastPrompt returns the most recent prompt, or ""
func (s *MockService) LastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Prompts) == 0 {
		return ""
	}
	return s.Prompts[len(s.Prompts)-1]
}

func (s *MockService) Model() string {
	return "mock-llm"
}

func (s *MockService) Close() error {
	return nil
}
