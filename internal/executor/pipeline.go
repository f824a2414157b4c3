package executor

import (
	"context"

	binder "github.com/hanpama/federon/internal/binder"
	gqlerrors "github.com/hanpama/federon/internal/gqlerrors"
	language "github.com/hanpama/federon/internal/language"
	opgraph "github.com/hanpama/federon/internal/opgraph"
	solution "github.com/hanpama/federon/internal/solution"
	steiner "github.com/hanpama/federon/internal/steiner"
)

// Limits bounds operation binding, forwarded to internal/binder unchanged.
type Limits = binder.Limits

// Run binds doc against sch, plans it through the operation graph and
// Steiner solver, and executes the resulting plan against e's subgraphs.
// It is the single entry point internal/server calls per request.
func (e *Engine) Run(ctx context.Context, doc *language.QueryDocument, operationName string, variableValues map[string]any, limits Limits) *ExecutionResult {
	op, errs := binder.Bind(e.Schema, doc, operationName, variableValues, limits)
	if len(errs) > 0 {
		return &ExecutionResult{Errors: bindErrorsToGraphQL(errs)}
	}

	g := opgraph.Build(e.Schema, op)
	sol, err := steiner.Solve(g)
	if err != nil {
		return &ExecutionResult{Errors: []GraphQLError{{
			Message:    err.Error(),
			Extensions: map[string]any{"code": "OPERATION_PLANNING_ERROR"},
		}}}
	}

	isMutation := op.Type == language.Mutation
	plan := solution.Build(g, sol, isMutation)
	plan = solution.Finalize(plan, isMutation)

	return e.Execute(ctx, plan)
}

func bindErrorsToGraphQL(errs []*binder.Error) []GraphQLError {
	out := make([]GraphQLError, len(errs))
	for i, e := range errs {
		out[i] = GraphQLError{
			Message:    e.Message,
			Extensions: (&gqlerrors.Error{Code: gqlerrors.OperationValidationError}).Extensions(),
		}
	}
	return out
}
