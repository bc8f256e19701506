package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies a domain error.
type Kind string

const (
	KindValidation    Kind = "VALIDATION"
	KindAuthorization Kind = "AUTHORIZATION"
	KindOrdering      Kind = "ORDERING"
	KindConflict      Kind = "CONFLICT"
	KindNotFound      Kind = "NOT_FOUND"
)

// Error is a domain error carrying the rule that rejected the request.
type Error struct {
	Kind    Kind
	Rule    string
	Message string
}

func (e *Error) Error() string {
	if e.Rule == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Rule)
}

// Is matches any *Error of the same kind when target carries no rule,
// and the exact rule otherwise.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Rule == "" || t.Rule == e.Rule
}

// Kind sentinels for errors.Is checks.
var (
	ErrValidation    = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrAuthorization = &Error{Kind: KindAuthorization, Message: "not authorized"}
	ErrOrdering      = &Error{Kind: KindOrdering, Message: "evaluation stage prerequisite missing"}
	ErrConflict      = &Error{Kind: KindConflict, Message: "conflict"}
	ErrNotFound      = &Error{Kind: KindNotFound, Message: "not found"}
)

func Validation(rule, message string) *Error {
	return &Error{Kind: KindValidation, Rule: rule, Message: message}
}

func Authorization(rule, message string) *Error {
	return &Error{Kind: KindAuthorization, Rule: rule, Message: message}
}

func Ordering(rule, message string) *Error {
	return &Error{Kind: KindOrdering, Rule: rule, Message: message}
}

func ConflictError(rule, message string) *Error {
	return &Error{Kind: KindConflict, Rule: rule, Message: message}
}

func NotFoundError(rule, message string) *Error {
	return &Error{Kind: KindNotFound, Rule: rule, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var de *Error
	if stderrors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

// RespondWithDomainError maps err onto an HTTP response. Errors outside the
// domain taxonomy become a generic 500.
func RespondWithDomainError(c *gin.Context, err error) {
	var de *Error
	if !stderrors.As(err, &de) {
		InternalError(c, "")
		return
	}

	details := gin.H{}
	if de.Rule != "" {
		details["rule"] = de.Rule
	}

	switch de.Kind {
	case KindValidation:
		RespondWithError(c, http.StatusBadRequest, NewAPIErrorWithDetails(ErrCodeInvalidInput, de.Message, details))
	case KindAuthorization:
		RespondWithError(c, http.StatusForbidden, NewAPIErrorWithDetails(ErrCodeForbidden, de.Message, details))
	case KindOrdering:
		RespondWithError(c, http.StatusUnprocessableEntity, NewAPIErrorWithDetails(ErrCodeOrderingViolation, de.Message, details))
	case KindConflict:
		details["retryable"] = true
		RespondWithError(c, http.StatusConflict, NewAPIErrorWithDetails(ErrCodeConflict, de.Message, details))
	case KindNotFound:
		RespondWithError(c, http.StatusNotFound, NewAPIErrorWithDetails(ErrCodeNotFound, de.Message, details))
	default:
		InternalError(c, "")
	}
}
