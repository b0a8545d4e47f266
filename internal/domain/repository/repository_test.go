package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPagination(t *testing.T) {
	assert.Equal(t, Pagination{Page: 1, PageSize: DefaultPageSize}, NewPagination(0, 0))
	assert.Equal(t, Pagination{Page: 3, PageSize: MaxPageSize}, NewPagination(3, 500))

	p := NewPagination(3, 10)
	assert.Equal(t, 20, p.Offset())
	assert.Equal(t, 10, p.Limit())

	start, stop := p.Range()
	assert.Equal(t, int64(20), start)
	assert.Equal(t, int64(29), stop)
}

func TestNewPagedResult(t *testing.T) {
	r := NewPagedResult([]string{"a", "b"}, 21, NewPagination(1, 10))
	assert.Equal(t, 3, r.TotalPages)
	assert.Equal(t, int64(21), r.Total)

	r = NewPagedResult([]string{}, 20, NewPagination(2, 10))
	assert.Equal(t, 2, r.TotalPages)

	r = NewPagedResult([]string{}, 0, Pagination{Page: 1})
	assert.Equal(t, 0, r.TotalPages)
}
