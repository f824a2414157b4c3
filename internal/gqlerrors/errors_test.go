package gqlerrors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_ErrorReturnsMessage(t *testing.T) {
	e := New(BadRequest, "missing query")
	assert.Equal(t, "missing query", e.Error())
}

func TestNewf_FormatsMessage(t *testing.T) {
	e := Newf(SubgraphError, "subgraph %q returned status %d", "PRODUCTS", 502)
	assert.Equal(t, `subgraph "PRODUCTS" returned status 502`, e.Message)
	assert.Equal(t, SubgraphError, e.Code)
}

func TestExtensions_IncludesCodeAndDetail(t *testing.T) {
	e := &Error{
		Code:    OperationValidationError,
		Message: "unknown field",
		Detail:  map[string]any{"field": "bogus"},
	}

	ext := e.Extensions()
	assert.Equal(t, "OPERATION_VALIDATION_ERROR", ext["code"])
	assert.Equal(t, "bogus", ext["field"])
}

func TestExtensions_WithNoDetailOnlyHasCode(t *testing.T) {
	e := New(InternalServerError, "boom")
	assert.Equal(t, map[string]any{"code": "INTERNAL_SERVER_ERROR"}, e.Extensions())
}

func TestExtensions_DoesNotMutateOriginalDetail(t *testing.T) {
	detail := map[string]any{"key": "value"}
	e := &Error{Code: BadRequest, Detail: detail}

	ext := e.Extensions()
	ext["code"] = "mutated"

	assert.Equal(t, "BAD_REQUEST", string(BadRequest))
	assert.Equal(t, "value", detail["key"])
	assert.NotContains(t, detail, "code")
}
