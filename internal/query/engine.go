// Package query answers natural-language questions about a table by asking a
// language model for SQL and running it against the table's DuckDB store.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/data-explorer/backend/internal/logger"
	"github.com/data-explorer/backend/internal/models"
	"github.com/sashabaranov/go-openai"
)

// ErrorKind classifies a QueryError.
type ErrorKind string

const (
	ErrKindMissingCredentials ErrorKind = "missing_credentials"
	ErrKindModel              ErrorKind = "model"
	ErrKindInvalidSQL         ErrorKind = "invalid_sql"
	ErrKindExecution          ErrorKind = "execution"
)

// ErrNoAPIKey is wrapped by missing_credentials errors.
var ErrNoAPIKey = errors.New("OPENAI_API_KEY is not set")

// QueryError is returned when a question could not be answered.
type QueryError struct {
	Kind ErrorKind
	Err  error
}

func (e *QueryError) Error() string {
	switch e.Kind {
	case ErrKindMissingCredentials:
		return fmt.Sprintf("missing credentials: %v", e.Err)
	case ErrKindModel:
		return fmt.Sprintf("model request failed: %v", e.Err)
	case ErrKindInvalidSQL:
		return fmt.Sprintf("could not use generated query: %v", e.Err)
	default:
		return fmt.Sprintf("query failed: %v", e.Err)
	}
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// TableSource is a loaded table the engine can inspect and query.
type TableSource interface {
	Schema() []models.Column
	Len() int
	Preview(ctx context.Context, n int) (*models.Table, error)
	Query(ctx context.Context, sql string, maxRows int) (*models.Table, bool, error)
}

// Engine answers a question about a table.
type Engine interface {
	Answer(ctx context.Context, table TableSource, question string) (*models.Answer, error)
}

// Config configures the OpenAI-backed engine.
type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	Temperature   float32
	MaxTokens     int
	SampleRows    int
	MaxResultRows int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Model:         openai.GPT4oMini,
		Temperature:   0,
		MaxTokens:     512,
		SampleRows:    5,
		MaxResultRows: 200,
	}
}

// OpenAIEngine asks a chat model for one SQL query per question.
type OpenAIEngine struct {
	client ChatClient
	cfg    Config
}

// NewOpenAIEngine creates an engine. When client is nil one is built from
// cfg, unless no API key is configured; Answer then reports missing
// credentials on every call.
func NewOpenAIEngine(cfg Config, client ChatClient) *OpenAIEngine {
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.SampleRows < 0 {
		cfg.SampleRows = 0
	}
	if cfg.MaxResultRows <= 0 {
		cfg.MaxResultRows = def.MaxResultRows
	}

	if client == nil && cfg.APIKey != "" {
		client = NewClient(cfg)
	}
	return &OpenAIEngine{client: client, cfg: cfg}
}

// Answer runs the question through the model and the table store. It makes a
// single model call and never retries.
func (e *OpenAIEngine) Answer(ctx context.Context, table TableSource, question string) (*models.Answer, error) {
	log := logger.FromContext(ctx).With("component", "query")
	start := time.Now()

	if e.client == nil {
		return nil, &QueryError{Kind: ErrKindMissingCredentials, Err: ErrNoAPIKey}
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, &QueryError{Kind: ErrKindModel, Err: errors.New("question is empty")}
	}

	var samples *models.Table
	if e.cfg.SampleRows > 0 {
		var err error
		samples, err = table.Preview(ctx, e.cfg.SampleRows)
		if err != nil {
			return nil, &QueryError{Kind: ErrKindExecution, Err: fmt.Errorf("reading sample rows: %w", err)}
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       e.cfg.Model,
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(table.Schema(), table.Len(), samples, question)},
		},
	}

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		log.Warn("model request failed", "error", err)
		return nil, &QueryError{Kind: ErrKindModel, Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &QueryError{Kind: ErrKindModel, Err: errors.New("model returned no choices")}
	}

	reply := ParseReply(resp.Choices[0].Message.Content)
	if reply.Text != "" {
		log.Debug("model answered directly", "elapsed", time.Since(start))
		return &models.Answer{
			Kind:      models.AnswerKindText,
			Text:      reply.Text,
			ElapsedMs: time.Since(start).Milliseconds(),
		}, nil
	}

	stmt, err := ValidateSQL(reply.SQL)
	if err != nil {
		log.Warn("rejected generated sql", "sql", reply.SQL, "error", err)
		return nil, &QueryError{Kind: ErrKindInvalidSQL, Err: err}
	}

	result, truncated, err := table.Query(ctx, stmt, e.cfg.MaxResultRows)
	if err != nil {
		log.Warn("generated sql failed", "sql", stmt, "error", err)
		return nil, &QueryError{Kind: ErrKindExecution, Err: err}
	}

	answer := BuildAnswer(result, truncated)
	answer.SQL = stmt
	answer.ElapsedMs = time.Since(start).Milliseconds()

	log.Info("question answered", "kind", answer.Kind, "rows", result.Len(), "elapsed", time.Since(start))
	return answer, nil
}
