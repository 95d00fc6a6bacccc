package repository

import (
	"context"
)

// Schema describes the tables an autonomous agent can query.
type Schema struct {
	Tables []string
	DDL    string
}

// SQLAgent answers a question by letting a language model write and execute its own SQL.
// Implementations enforce their own iteration and wall-clock budgets.
type SQLAgent interface {
	Run(ctx context.Context, question string) (string, error)
	DescribeSchema(ctx context.Context) (*Schema, error)
}
