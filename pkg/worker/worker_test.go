package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultEmpty(t *testing.T) {
	assert.True(t, Result{}.Empty())
	assert.False(t, Result{Observations: []Observation{{MetricTitle: "m", Value: "1"}}}.Empty())
	assert.False(t, Result{Values: map[string]string{"m": "1"}}.Empty())
}

func TestRegistryPreservesOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(ExampleWorker{})
	r.Register(ExampleWorker{})

	assert.Len(t, r.Workers(), 2)
}

func TestExampleWorker(t *testing.T) {
	w := ExampleWorker{}
	assert.Equal(t, "example", w.Source())

	res, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Empty())
	assert.Equal(t, "42", res.Values["example_total_items"])
}
