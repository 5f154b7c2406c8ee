package evaluation

import (
	"context"
	"sync"

	"github.com/noah-isme/grade-sanchalaak/pkg/ai"
)

type stubCompleter struct {
	mu      sync.Mutex
	reply   func(req ai.CompletionRequest) (string, error)
	calls   []ai.CompletionRequest
	modelID string
}

func replyWith(raw string) *stubCompleter {
	return &stubCompleter{reply: func(ai.CompletionRequest) (string, error) { return raw, nil }}
}

func failWith(err error) *stubCompleter {
	return &stubCompleter{reply: func(ai.CompletionRequest) (string, error) { return "", err }}
}

func (s *stubCompleter) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.reply(req)
}

func (s *stubCompleter) Name() string {
	if s.modelID == "" {
		return "stub-model"
	}
	return s.modelID
}

func (s *stubCompleter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func testKeywords() KeywordSet {
	return NewKeywordSet([]string{"Normalization", "Primary Key", "Foreign Key", "Indexing", "Transactions"})
}
