package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	doc, err := Load(context.Background())
	require.NoError(t, err)

	submit := doc.Paths.Find("/payments")
	require.NotNil(t, submit)
	require.NotNil(t, submit.Post)

	lookup := doc.Paths.Find("/payments/{id}")
	require.NotNil(t, lookup)
	assert.NotNil(t, lookup.Get)
}
