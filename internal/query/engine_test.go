package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/data-explorer/backend/internal/models"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLLM struct {
	calls    []openai.ChatCompletionResponse
	err      error
	requests []openai.ChatCompletionRequest
}

func (m *mockLLM) CreateChatCompletion(ctx context.Context, r openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.requests = append(m.requests, r)
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	if len(m.calls) == 0 {
		panic("mockLLM: no more responses configured for request: " + r.Messages[len(r.Messages)-1].Content)
	}
	resp := m.calls[0]
	m.calls = m.calls[1:]
	return resp, nil
}

func reply(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
		},
	}
}

type fakeTable struct {
	table     *models.Table
	result    *models.Table
	truncated bool
	queryErr  error
	queries   []string
}

func (f *fakeTable) Schema() []models.Column { return f.table.Columns }
func (f *fakeTable) Len() int                { return f.table.Len() }

func (f *fakeTable) Preview(_ context.Context, n int) (*models.Table, error) {
	return f.table.Head(n), nil
}

func (f *fakeTable) Query(_ context.Context, sql string, _ int) (*models.Table, bool, error) {
	f.queries = append(f.queries, sql)
	if f.queryErr != nil {
		return nil, false, f.queryErr
	}
	return f.result, f.truncated, nil
}

func salesSource() *fakeTable {
	return &fakeTable{
		table: &models.Table{
			Columns: []models.Column{
				{Name: "product", Type: models.ColumnTypeString},
				{Name: "revenue", Type: models.ColumnTypeDouble},
			},
			Rows: [][]any{
				{"A", 100.0},
				{"B", 250.5},
				{"C", 75.0},
			},
		},
	}
}

func newTestEngine(llm ChatClient) *OpenAIEngine {
	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.SampleRows = 2
	return NewOpenAIEngine(cfg, llm)
}

func TestOpenAIEngine_ScalarAnswer(t *testing.T) {
	llm := &mockLLM{calls: []openai.ChatCompletionResponse{
		reply("```sql\nSELECT SUM(\"revenue\") FROM data;\n```"),
	}}
	src := salesSource()
	src.result = &models.Table{
		Columns: []models.Column{{Name: "sum(revenue)", Type: models.ColumnTypeDouble}},
		Rows:    [][]any{{425.5}},
	}

	answer, err := newTestEngine(llm).Answer(context.Background(), src, "What is the total revenue?")
	require.NoError(t, err)

	assert.Equal(t, models.AnswerKindText, answer.Kind)
	assert.Equal(t, "425.5", answer.Text)
	assert.Equal(t, `SELECT SUM("revenue") FROM data`, answer.SQL)
	require.Len(t, src.queries, 1)
	assert.Equal(t, answer.SQL, src.queries[0])

	require.Len(t, llm.requests, 1)
	req := llm.requests[0]
	assert.Equal(t, openai.GPT4oMini, req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	user := req.Messages[1].Content
	assert.Contains(t, user, `"revenue" DOUBLE`)
	assert.Contains(t, user, "QUESTION: What is the total revenue?")
	assert.Contains(t, user, "A,100")
	assert.NotContains(t, user, "C,75", "only sample rows are sent")
}

func TestOpenAIEngine_TableAnswer(t *testing.T) {
	llm := &mockLLM{calls: []openai.ChatCompletionResponse{
		reply(`SELECT product, revenue FROM data ORDER BY revenue DESC LIMIT 2`),
	}}
	src := salesSource()
	src.result = &models.Table{
		Columns: src.table.Columns,
		Rows:    [][]any{{"B", 250.5}, {"A", 100.0}},
	}
	src.truncated = true

	answer, err := newTestEngine(llm).Answer(context.Background(), src, "Top 2 products?")
	require.NoError(t, err)

	assert.Equal(t, models.AnswerKindTable, answer.Kind)
	assert.True(t, answer.Truncated)
	require.NotNil(t, answer.Table)
	assert.Equal(t, 2, answer.Table.Len())
	assert.Contains(t, answer.Text, "product")
	assert.Contains(t, answer.Text, "250.5")
	assert.Contains(t, answer.Text, "(showing first 2 rows)")
}

func TestOpenAIEngine_DirectAnswer(t *testing.T) {
	llm := &mockLLM{calls: []openai.ChatCompletionResponse{
		reply("ANSWER: The table does not contain weather data."),
	}}
	src := salesSource()

	answer, err := newTestEngine(llm).Answer(context.Background(), src, "Will it rain?")
	require.NoError(t, err)

	assert.Equal(t, models.AnswerKindText, answer.Kind)
	assert.Equal(t, "The table does not contain weather data.", answer.Text)
	assert.Empty(t, src.queries)
}

func TestOpenAIEngine_Errors(t *testing.T) {
	t.Run("missing credentials", func(t *testing.T) {
		engine := NewOpenAIEngine(DefaultConfig(), nil)

		_, err := engine.Answer(context.Background(), salesSource(), "anything")
		var qe *QueryError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, ErrKindMissingCredentials, qe.Kind)
		assert.ErrorIs(t, err, ErrNoAPIKey)
	})

	t.Run("model failure", func(t *testing.T) {
		llm := &mockLLM{err: errors.New("rate limited")}

		_, err := newTestEngine(llm).Answer(context.Background(), salesSource(), "q")
		var qe *QueryError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, ErrKindModel, qe.Kind)
		assert.Contains(t, err.Error(), "rate limited")
		assert.Len(t, llm.requests, 1, "no retries")
	})

	t.Run("no choices", func(t *testing.T) {
		llm := &mockLLM{calls: []openai.ChatCompletionResponse{{}}}

		_, err := newTestEngine(llm).Answer(context.Background(), salesSource(), "q")
		var qe *QueryError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, ErrKindModel, qe.Kind)
	})

	t.Run("write statement rejected", func(t *testing.T) {
		llm := &mockLLM{calls: []openai.ChatCompletionResponse{reply("DROP TABLE data")}}
		src := salesSource()

		_, err := newTestEngine(llm).Answer(context.Background(), src, "q")
		var qe *QueryError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, ErrKindInvalidSQL, qe.Kind)
		assert.Empty(t, src.queries)
	})

	t.Run("execution failure", func(t *testing.T) {
		llm := &mockLLM{calls: []openai.ChatCompletionResponse{reply("SELECT nope FROM data")}}
		src := salesSource()
		src.queryErr = errors.New(`Binder Error: column "nope" not found`)

		_, err := newTestEngine(llm).Answer(context.Background(), src, "q")
		var qe *QueryError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, ErrKindExecution, qe.Kind)
		assert.True(t, strings.HasPrefix(err.Error(), "query failed:"))
	})
}
