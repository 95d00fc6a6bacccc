package llm

import (
	"github.com/moviesage/moviesage-api/internal/domain/repository"
	"github.com/moviesage/moviesage-api/internal/logging"
)

var _ repository.LLMRouter = (*Router)(nil)

// Router determines the appropriate LLMClient for a task.
type Router struct {
	localClient repository.LLMClient
	cloudClient repository.LLMClient
}

// NewRouter initializes the LLM router. cloud may be nil, in which case every task stays local.
func NewRouter(local repository.LLMClient, cloud repository.LLMClient) *Router {
	return &Router{
		localClient: local,
		cloudClient: cloud,
	}
}

// RouteLLMTask sends narration to the cloud backend when one is configured; everything else runs locally.
func (r *Router) RouteLLMTask(task repository.TaskType) repository.LLMClient {
	selected := r.localClient
	if task == repository.TaskNarration && r.cloudClient != nil {
		selected = r.cloudClient
	}
	if selected == nil {
		return nil
	}

	logger := logging.For("router")
	logger.Debug().Str("task", string(task)).Str("client", selected.Name()).Msg("Routing LLM task")
	return selected
}
