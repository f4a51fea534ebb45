package auth

import (
	"time"

	"github.com/polkiloo/draftpay/internal/domain/model"
)

// Claims is what an access token asserts about its bearer.
type Claims struct {
	UserID int64
	Role   model.Role
}

// IsAdmin reports whether the bearer may reach back-office endpoints.
func (c Claims) IsAdmin() bool {
	return c.Role == model.RoleAdmin
}

// Strategy issues and verifies access tokens.
type Strategy interface {
	IssueToken(claims Claims) (string, error)
	ParseToken(token string) (Claims, error)
	Name() string
}

type Options struct {
	TTL time.Duration
}
