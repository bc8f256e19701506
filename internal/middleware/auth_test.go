package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/yukikurage/kpi-management-api/internal/constants"
)

func TestGetUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name  string
		value any
		want  uint64
		ok    bool
	}{
		{"uint64", uint64(5), 5, true},
		{"uint", uint(6), 6, true},
		{"int", 7, 7, true},
		{"int64", int64(8), 8, true},
		{"negative", -1, 0, false},
		{"string", "9", 0, false},
	}

	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(constants.ContextKeyUserID, tc.value)

		got, ok := GetUserID(c)
		assert.Equal(t, tc.ok, ok, tc.name)
		assert.Equal(t, tc.want, got, tc.name)
	}

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := GetUserID(c)
	assert.False(t, ok)
}
