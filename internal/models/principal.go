package models

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Role enumerates the roles carried by credentials.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleAdmin
}

// Principal is the authenticated caller, derived once from a verified credential.
type Principal struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// JWTClaims is the credential payload issued by the identity provider. The
// subject id may arrive as "id", "userId" or the registered "sub" claim.
type JWTClaims struct {
	SubjectID string `json:"id,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Role      Role   `json:"role"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Principal converts claims into a typed principal.
func (c *JWTClaims) Principal() Principal {
	id := c.SubjectID
	if id == "" {
		id = c.UserID
	}
	if id == "" {
		id = c.Subject
	}
	return Principal{
		ID:    id,
		Role:  Role(strings.ToLower(string(c.Role))),
		Name:  c.Name,
		Email: c.Email,
	}
}

// QRClaims is the payload of an attendance QR token. It names the event only,
// never the student.
type QRClaims struct {
	EventID string `json:"eventId"`
	jwt.RegisteredClaims
}
