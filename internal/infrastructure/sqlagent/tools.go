package sqlagent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/tools"
)

var (
	forbiddenSQL = regexp.MustCompile(`(?i)\b(DROP|DELETE|TRUNCATE|ALTER|CREATE|INSERT|UPDATE|REPLACE|GRANT|REVOKE|ATTACH|DETACH|PRAGMA|VACUUM)\b|--|/\*|\*/`)
	selectPrefix = regexp.MustCompile(`(?i)^\s*(SELECT|WITH)\b`)
)

// Tools returns the toolset the agent can call: list tables, describe tables, run a read-only query.
func Tools(db database) []tools.Tool {
	return []tools.Tool{
		&listTablesTool{db: db},
		&schemaTool{db: db},
		&queryTool{db: db},
	}
}

// SanitizeQuery trims a model-written statement and rejects anything that is not a single read-only query.
func SanitizeQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	query = strings.Trim(query, "`")
	query = strings.TrimPrefix(query, "sql")
	query = strings.TrimSpace(query)
	query = strings.TrimSuffix(query, ";")

	if query == "" {
		return "", fmt.Errorf("empty query")
	}
	if strings.Contains(query, ";") {
		return "", fmt.Errorf("only a single statement is allowed")
	}
	if match := forbiddenSQL.FindString(query); match != "" {
		return "", fmt.Errorf("disallowed keyword or pattern found: %s", match)
	}
	if !selectPrefix.MatchString(query) {
		return "", fmt.Errorf("query must start with SELECT")
	}
	return query, nil
}

type listTablesTool struct{ db database }

func (t *listTablesTool) Name() string { return "sql_db_list_tables" }

func (t *listTablesTool) Description() string {
	return "Input is an empty string, output is a comma-separated list of tables in the database."
}

func (t *listTablesTool) Call(ctx context.Context, input string) (string, error) {
	return strings.Join(t.db.TableNames(), ", "), nil
}

type schemaTool struct{ db database }

func (t *schemaTool) Name() string { return "sql_db_schema" }

func (t *schemaTool) Description() string {
	return "Input is a comma-separated list of tables, output is the schema and sample rows for those tables. " +
		"Call sql_db_list_tables first to be sure the tables exist."
}

func (t *schemaTool) Call(ctx context.Context, input string) (string, error) {
	var tables []string
	for _, name := range strings.Split(input, ",") {
		if name = strings.Trim(strings.TrimSpace(name), `"'`); name != "" {
			tables = append(tables, name)
		}
	}
	info, err := t.db.TableInfo(ctx, tables)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	return info, nil
}

// queryTool reports SQL errors back to the model as observations so it can correct itself
// within its iteration budget.
type queryTool struct{ db database }

func (t *queryTool) Name() string { return "sql_db_query" }

func (t *queryTool) Description() string {
	return "Input is a single read-only SQLite SELECT statement, output is the result rows. " +
		"If the query is not correct, an error message is returned; rewrite the query and try again."
}

func (t *queryTool) Call(ctx context.Context, input string) (string, error) {
	query, err := SanitizeQuery(input)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	out, err := t.db.Query(ctx, query)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	return out, nil
}

var (
	_ tools.Tool = (*listTablesTool)(nil)
	_ tools.Tool = (*schemaTool)(nil)
	_ tools.Tool = (*queryTool)(nil)
)
