package testutil

import (
	"context"
	"sync"

	"github.com/data-explorer/backend/internal/models"
	"github.com/data-explorer/backend/internal/query"
)

// MockEngine implements query.Engine with canned answers.
type MockEngine struct {
	mu sync.Mutex

	// AnswerFunc, when set, decides every answer.
	AnswerFunc func(ctx context.Context, table query.TableSource, question string) (*models.Answer, error)

	Questions []string
}

// Answer records the question and returns AnswerFunc's result, or a text
// answer echoing the question.
func (m *MockEngine) Answer(ctx context.Context, table query.TableSource, question string) (*models.Answer, error) {
	m.mu.Lock()
	m.Questions = append(m.Questions, question)
	fn := m.AnswerFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, table, question)
	}
	return TextAnswer(question), nil
}

// Calls returns how many questions were asked.
func (m *MockEngine) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Questions)
}

// TextAnswer builds a text answer "answer: <text>".
func TextAnswer(text string) *models.Answer {
	return &models.Answer{Kind: models.AnswerKindText, Text: "answer: " + text}
}

// FailingEngine returns an engine whose answers all fail with kind.
func FailingEngine(kind query.ErrorKind, err error) *MockEngine {
	return &MockEngine{
		AnswerFunc: func(context.Context, query.TableSource, string) (*models.Answer, error) {
			return nil, &query.QueryError{Kind: kind, Err: err}
		},
	}
}

var _ query.Engine = (*MockEngine)(nil)
