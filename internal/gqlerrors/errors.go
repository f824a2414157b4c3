// Package gqlerrors is the closed error-code vocabulary the gateway attaches
// to every GraphQL error it emits, so clients can branch on
// extensions.code instead of parsing messages.
package gqlerrors

import "fmt"

// Code is the closed set of machine-readable error classes the gateway
// attaches to extensions.code.
type Code string

const (
	BadRequest              Code = "BAD_REQUEST"
	OperationValidationError Code = "OPERATION_VALIDATION_ERROR"
	OperationPlanningError   Code = "OPERATION_PLANNING_ERROR"
	SubgraphError            Code = "SUBGRAPH_ERROR"
	SubgraphRequestError     Code = "SUBGRAPH_REQUEST_ERROR"
	InternalServerError      Code = "INTERNAL_SERVER_ERROR"
)

// Error is a located GraphQL error carrying a closed-vocabulary code; its
// Extensions method renders the extensions map executor.GraphQLError carries.
type Error struct {
	Message string
	Path    []any
	Code    Code
	Detail  map[string]any
}

func (e *Error) Error() string { return e.Message }

// Extensions renders e into the map that belongs under the GraphQL response
// error's "extensions" key.
func (e *Error) Extensions() map[string]any {
	ext := map[string]any{"code": string(e.Code)}
	for k, v := range e.Detail {
		ext[k] = v
	}
	return ext
}

func New(code Code, message string) *Error { return &Error{Code: code, Message: message} }

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
