package services

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/yukikurage/kpi-management-api/internal/constants"
	apierrors "github.com/yukikurage/kpi-management-api/internal/errors"
)

// ApprovalAction is what a signed approval link does to its task.
type ApprovalAction string

const (
	ActionApprove          ApprovalAction = "approve"
	ActionReject           ApprovalAction = "reject"
	ActionAccept           ApprovalAction = "accept"
	ActionRejectAssignment ApprovalAction = "reject_assignment"
)

// Valid reports whether a is a known action.
func (a ApprovalAction) Valid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionAccept, ActionRejectAssignment:
		return true
	}
	return false
}

// Approves reports whether a approves the task rather than removing it.
func (a ApprovalAction) Approves() bool {
	return a == ActionApprove || a == ActionAccept
}

// ApprovalClaims is the verified content of an approval token.
type ApprovalClaims struct {
	TaskID    uint64
	Action    ApprovalAction
	TokenID   string
	ExpiresAt time.Time
}

// ApprovalTokenService signs and verifies approval links.
type ApprovalTokenService struct {
	secret  []byte
	ttl     time.Duration
	baseURL string
	now     func() time.Time
}

func NewApprovalTokenService(secret string, ttl time.Duration, baseURL string) *ApprovalTokenService {
	if ttl <= 0 {
		ttl = constants.DefaultApprovalTokenTTL
	}
	return &ApprovalTokenService{
		secret:  []byte(secret),
		ttl:     ttl,
		baseURL: baseURL,
		now:     time.Now,
	}
}

// Issue signs a token for one task and action.
func (s *ApprovalTokenService) Issue(taskID uint64, action ApprovalAction) (string, error) {
	if !action.Valid() {
		return "", fmt.Errorf("unknown approval action %q", action)
	}
	now := s.now()
	claims := jwt.MapClaims{
		"iss":     constants.ApprovalTokenIssuer,
		"exp":     now.Add(s.ttl).Unix(),
		"iat":     now.Unix(),
		"nbf":     now.Unix(),
		"jti":     uuid.NewString(),
		"type":    "task_approval",
		"task_id": taskID,
		"action":  string(action),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Link builds the public URL that resolves a token.
func (s *ApprovalTokenService) Link(taskID uint64, action ApprovalAction) (string, error) {
	token, err := s.Issue(taskID, action)
	if err != nil {
		return "", err
	}
	return s.baseURL + "/api/tasks/approval?token=" + url.QueryEscape(token), nil
}

// Verify checks the signature, expiry and shape of a token.
func (s *ApprovalTokenService) Verify(tokenString string) (*ApprovalClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(constants.ApprovalTokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apierrors.Validation("approval.token_expired", "approval link has expired")
		}
		return nil, apierrors.Validation("approval.invalid_token", "approval link is invalid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, apierrors.Validation("approval.invalid_token", "approval link is invalid")
	}
	if tokenType, _ := claims["type"].(string); tokenType != "task_approval" {
		return nil, apierrors.Validation("approval.invalid_token", "approval link is invalid")
	}

	rawID, ok := claims["task_id"].(float64)
	if !ok || rawID <= 0 {
		return nil, apierrors.Validation("approval.invalid_token", "approval link has no task")
	}
	action := ApprovalAction(fmt.Sprint(claims["action"]))
	if !action.Valid() {
		return nil, apierrors.Validation("approval.invalid_token", "approval link has an unknown action")
	}

	out := &ApprovalClaims{
		TaskID: uint64(rawID),
		Action: action,
	}
	out.TokenID, _ = claims["jti"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}
