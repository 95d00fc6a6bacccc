package query

import (
	"context"

	"github.com/moviesage/moviesage-api/internal/domain/repository"
	"github.com/moviesage/moviesage-api/internal/logging"
)

const (
	MethodSQLAgent   = "sql_agent"
	MethodAgentError = "agent_error"

	agentInstruction = "Answer concisely (1-2 sentences). Do not include SQL or reasoning steps.\n\nQuestion: "
	agentSuccessNote = "Autonomous SQL agent response"
	agentErrorAnswer = "Agent encountered an error. Try rephrasing your question."
)

// AgentResult is the outcome of one autonomous agent run.
type AgentResult struct {
	Answer string `json:"answer"`
	Method string `json:"method"`
	Note   string `json:"note,omitempty"`
	Error  string `json:"error,omitempty"`
}

// SchemaInfo describes what the agent can query, or why that could not be determined.
type SchemaInfo struct {
	Tables []string `json:"tables,omitempty"`
	Schema string   `json:"schema,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// AgentAdapter hands a whole question to an autonomous SQL agent.
type AgentAdapter struct {
	agent repository.SQLAgent
}

func NewAgentAdapter(agent repository.SQLAgent) *AgentAdapter {
	return &AgentAdapter{agent: agent}
}

// Run never returns an error; failures come back as an agent_error result.
func (a *AgentAdapter) Run(ctx context.Context, question string) AgentResult {
	logger := logging.For("agent")
	logger.Info().Str("question", question).Msg("Agent processing")

	answer, err := a.agent.Run(ctx, agentInstruction+question)
	if err != nil {
		logger.Error().Err(err).Msg("Agent error")
		return AgentResult{
			Answer: agentErrorAnswer,
			Method: MethodAgentError,
			Error:  err.Error(),
		}
	}
	if answer == "" {
		answer = "No response generated"
	}

	return AgentResult{
		Answer: answer,
		Method: MethodSQLAgent,
		Note:   agentSuccessNote,
	}
}

// DescribeSchema reports failures inside the result.
func (a *AgentAdapter) DescribeSchema(ctx context.Context) SchemaInfo {
	schema, err := a.agent.DescribeSchema(ctx)
	if err != nil {
		return SchemaInfo{Error: err.Error()}
	}
	return SchemaInfo{Tables: schema.Tables, Schema: schema.DDL}
}
