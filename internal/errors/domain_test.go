package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Ordering("superior.requires_self", "self evaluation must be submitted first"))

	assert.True(t, stderrors.Is(err, ErrOrdering))
	assert.False(t, stderrors.Is(err, ErrAuthorization))
	assert.True(t, stderrors.Is(err, Ordering("superior.requires_self", "")))
	assert.False(t, stderrors.Is(err, Ordering("top_management.requires_superior", "")))

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindOrdering, kind)
}

func TestRespondWithDomainError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{Validation("score.range", "score out of range"), http.StatusBadRequest, ErrCodeInvalidInput},
		{Authorization("task.manager_requires_lead", "denied"), http.StatusForbidden, ErrCodeForbidden},
		{Ordering("superior.requires_self", "self first"), http.StatusUnprocessableEntity, ErrCodeOrderingViolation},
		{ConflictError("evaluation.duplicate", "exists"), http.StatusConflict, ErrCodeConflict},
		{NotFoundError("task.not_found", "task not found"), http.StatusNotFound, ErrCodeNotFound},
		{stderrors.New("boom"), http.StatusInternalServerError, ErrCodeInternalError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		RespondWithDomainError(c, tc.err)

		assert.Equal(t, tc.status, w.Code)
		var body APIError
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tc.code, body.Code)
	}
}
