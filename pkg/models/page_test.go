package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRequestOffset(t *testing.T) {
	assert.Equal(t, 0, PageRequest{Page: 1, Limit: 10}.Offset())
	assert.Equal(t, 10, PageRequest{Page: 2, Limit: 10}.Offset())
	assert.Equal(t, 40, PageRequest{Page: 5, Limit: 10}.Offset())
	assert.Equal(t, 0, PageRequest{Page: 0, Limit: 10}.Offset())
}

func TestNewPage(t *testing.T) {
	p := NewPage([]int{1, 2, 3}, 7, 2, 3)

	assert.Equal(t, 7, p.Total)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNext)
	assert.True(t, p.HasPrev)

	first := NewPage([]int{1, 2, 3}, 7, 1, 3)
	assert.False(t, first.HasPrev)
	assert.True(t, first.HasNext)

	last := NewPage([]int{7}, 7, 3, 3)
	assert.True(t, last.HasPrev)
	assert.False(t, last.HasNext)
}

func TestNewPage_Empty(t *testing.T) {
	p := NewPage[string](nil, 0, 1, 10)

	assert.NotNil(t, p.Items)
	assert.Empty(t, p.Items)
	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.HasNext)
	assert.False(t, p.HasPrev)
}
