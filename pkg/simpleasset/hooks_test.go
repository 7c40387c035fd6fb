package simpleasset

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingSink struct {
	NoopEventSink
	stored int
	err    error
}

func (c *countingSink) ArtifactStored(ctx context.Context, record ArtifactRecord) error {
	c.stored++
	return c.err
}

func TestMultiEventSink(t *testing.T) {
	boom := errors.New("boom")
	first := &countingSink{err: boom}
	second := &countingSink{}

	sink := NewMultiEventSink(first, nil, second)
	err := sink.ArtifactStored(context.Background(), ArtifactRecord{ID: NewID()})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, first.stored)
	assert.Equal(t, 1, second.stored, "a failing sink does not stop the others")
	assert.NoError(t, sink.ArtifactDeleted(context.Background(), NewID()))
}

func TestNewMultiEventSinkCollapses(t *testing.T) {
	only := &countingSink{}
	assert.Same(t, only, NewMultiEventSink(nil, only))
	assert.IsType(t, &NoopEventSink{}, NewMultiEventSink())
}
