// Package sqlagent runs a langchaingo tool-using agent that answers questions by writing
// and executing read-only SQL against the movie database.
package sqlagent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/moviesage/moviesage-api/internal/domain/repository"
	"github.com/moviesage/moviesage-api/internal/logging"
	"github.com/tmc/langchaingo/agents"
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/tools/sqldatabase"
	"github.com/tmc/langchaingo/tools/sqldatabase/sqlite3"
)

const (
	DefaultMaxIterations = 3
	DefaultTimeout       = 10 * time.Second
)

// ErrNoOutput is returned when the agent finishes without producing an answer.
var ErrNoOutput = errors.New("agent produced no output")

// Options configures a SQL agent.
type Options struct {
	DatabasePath  string
	OllamaURL     string
	Model         string
	MaxIterations int
	Timeout       time.Duration
}

// database is the subset of *sqldatabase.SQLDatabase the agent and its tools use.
type database interface {
	TableNames() []string
	TableInfo(ctx context.Context, tables []string) (string, error)
	Query(ctx context.Context, query string) (string, error)
	Close() error
}

var _ repository.SQLAgent = (*Agent)(nil)

// Agent implements repository.SQLAgent.
type Agent struct {
	db      database
	run     func(ctx context.Context, input string) (string, error)
	timeout time.Duration
}

// New opens its own connection to the SQLite file and builds a bounded one-shot agent on Ollama.
func New(opts Options) (*Agent, error) {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	db, err := sqldatabase.NewSQLDatabaseWithDSN(sqlite3.EngineName, opts.DatabasePath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open agent database: %w", err)
	}

	model, err := ollama.New(ollama.WithModel(opts.Model), ollama.WithServerURL(opts.OllamaURL))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create agent model: %w", err)
	}

	return newAgent(db, deterministicModel{model}, opts), nil
}

// deterministicModel pins sampling temperature to zero on every completion the agent requests.
type deterministicModel struct {
	llms.Model
}

func (m deterministicModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	options = append(options[:len(options):len(options)], llms.WithTemperature(0))
	return m.Model.GenerateContent(ctx, messages, options...)
}

func (m deterministicModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func newAgent(db database, model llms.Model, opts Options) *Agent {
	toolset := Tools(db)
	oneShot := agents.NewOneShotAgent(model, toolset, agents.WithMaxIterations(opts.MaxIterations))
	executor := agents.NewExecutor(
		oneShot,
		agents.WithMaxIterations(opts.MaxIterations),
		agents.WithParserErrorHandler(agents.NewParserErrorHandler(nil)),
	)

	return &Agent{
		db:      db,
		timeout: opts.Timeout,
		run: func(ctx context.Context, input string) (string, error) {
			out, err := chains.Call(ctx, executor, map[string]any{"input": input})
			if err != nil {
				return "", err
			}
			answer, _ := out["output"].(string)
			if answer = strings.TrimSpace(answer); answer == "" {
				return "", ErrNoOutput
			}
			return answer, nil
		},
	}
}

// Run executes the agent loop within the configured wall-clock budget.
func (a *Agent) Run(ctx context.Context, question string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	logger := logging.For("sqlagent")
	start := time.Now()

	answer, err := a.run(ctx, question)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("agent exceeded its %s budget: %w", a.timeout, err)
		}
		logger.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("Agent run failed")
		return "", err
	}

	logger.Debug().Dur("elapsed", time.Since(start)).Msg("Agent run complete")
	return answer, nil
}

// DescribeSchema lists the usable tables and their DDL.
func (a *Agent) DescribeSchema(ctx context.Context) (*repository.Schema, error) {
	tables := a.db.TableNames()
	ddl, err := a.db.TableInfo(ctx, tables)
	if err != nil {
		return nil, fmt.Errorf("failed to describe tables: %w", err)
	}
	return &repository.Schema{Tables: tables, DDL: ddl}, nil
}

func (a *Agent) Close() error {
	return a.db.Close()
}
