package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRequest_Window(t *testing.T) {
	tests := []struct {
		name      string
		pr        PageRequest
		n         int
		wantStart int
		wantEnd   int
	}{
		{name: "defaults", pr: PageRequest{}, n: 50, wantStart: 0, wantEnd: 20},
		{name: "second page", pr: PageRequest{Page: 2, PageSize: 20}, n: 50, wantStart: 20, wantEnd: 40},
		{name: "last partial page", pr: PageRequest{Page: 3, PageSize: 20}, n: 50, wantStart: 40, wantEnd: 50},
		{name: "past the end", pr: PageRequest{Page: 9, PageSize: 20}, n: 50, wantStart: 50, wantEnd: 50},
		{name: "page size capped", pr: PageRequest{Page: 1, PageSize: 1000}, n: 500, wantStart: 0, wantEnd: MaxPageSize},
		{name: "huge page", pr: PageRequest{Page: math.MaxInt / 100, PageSize: MaxPageSize}, n: 50, wantStart: 50, wantEnd: 50},
		{name: "max int page", pr: PageRequest{Page: math.MaxInt, PageSize: 7}, n: 50, wantStart: 50, wantEnd: 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := tt.pr.Window(tt.n)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestPageRequest_Offset(t *testing.T) {
	for _, page := range []int{MaxPage, MaxPage + 1, math.MaxInt} {
		pr := PageRequest{Page: page, PageSize: MaxPageSize}
		assert.GreaterOrEqual(t, pr.Offset(), 0)
		assert.Equal(t, MaxPage, pr.Normalize().Page)
	}
}

func TestNewPage(t *testing.T) {
	page := NewPage([]int{}, 45, PageRequest{Page: 2, PageSize: 20})
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 20, page.PageSize)

	empty := NewPage([]int{}, 0, PageRequest{})
	assert.Equal(t, 0, empty.TotalPages)
	assert.Equal(t, 1, empty.CurrentPage)
}
