package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestGetPaginationParams(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		query string
		want  PaginationParams
	}{
		{"", PaginationParams{Page: 1, Limit: 20, Offset: 0}},
		{"?page=3&limit=10", PaginationParams{Page: 3, Limit: 10, Offset: 20}},
		{"?page=2&page_size=5", PaginationParams{Page: 2, Limit: 5, Offset: 5}},
		{"?page=-4&limit=1000", PaginationParams{Page: 1, Limit: 20, Offset: 0}},
		{"?page=abc&limit=xyz", PaginationParams{Page: 1, Limit: 20, Offset: 0}},
	}

	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/api/tasks"+tc.query, nil)
		assert.Equal(t, tc.want, GetPaginationParams(c), tc.query)
	}
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0, 20))
	assert.Equal(t, 1, TotalPages(20, 20))
	assert.Equal(t, 2, TotalPages(21, 20))
	assert.Equal(t, 0, TotalPages(5, 0))

	resp := NewPaginationResponse(PaginationParams{Page: 2, Limit: 10, Offset: 10}, 35)
	assert.Equal(t, 4, resp.TotalPages)
	assert.Equal(t, int64(35), resp.Total)
}
