package subgraph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransportError_ErrorAndUnwrap(t *testing.T) {
	inner := errors.New("dial tcp: connection refused")
	te := &TransportError{Err: inner, Retryable: true}

	assert.Equal(t, inner.Error(), te.Error())
	assert.ErrorIs(t, te, inner)
}
