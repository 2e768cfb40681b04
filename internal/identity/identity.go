package identity

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles form a closed set. Anything outside it is denied every operation.
const (
	RoleUcenik          = "ucenik"
	RoleRoditelj        = "roditelj"
	RoleNastavnik       = "nastavnik"
	RoleAdministracija  = "administracija"
	RolePacijent        = "pacijent"
	RoleLekar           = "lekar"
	RoleMedicinskaSestr = "medicinska_sestra"
	RoleAdministrator   = "administrator"
	RoleAdmin           = "admin"
)

var knownRoles = map[string]bool{
	RoleUcenik:          true,
	RoleRoditelj:        true,
	RoleNastavnik:       true,
	RoleAdministracija:  true,
	RolePacijent:        true,
	RoleLekar:           true,
	RoleMedicinskaSestr: true,
	RoleAdministrator:   true,
	RoleAdmin:           true,
}

// KnownRole reports whether role belongs to the closed set.
func KnownRole(role string) bool { return knownRoles[role] }

// Claim is the externally verified caller identity, reconstructed per
// request from a signed token and never persisted.
type Claim struct {
	SubjectID string
	Role      string
	Email     string
	FirstName string
	LastName  string
}

var ErrInvalidToken = errors.New("invalid token")

type tokenClaims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Parse validates an HS256 bearer token and extracts the claim. Expired
// tokens fail outright; there is no degraded guest session.
func Parse(token, secret string) (Claim, error) {
	if strings.TrimSpace(secret) == "" {
		return Claim{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	claims := &tokenClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Claim{}, ErrInvalidToken
	}
	if !parsed.Valid || claims.Subject == "" || claims.Role == "" {
		return Claim{}, ErrInvalidToken
	}
	return Claim{
		SubjectID: claims.Subject,
		Role:      claims.Role,
		Email:     claims.Email,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
	}, nil
}

// Issue mints a token for the given claim. Used by the dev token command
// and by tests; production tokens come from the SSO collaborator.
func Issue(c Claim, secret string, ttl time.Duration, now time.Time) (string, error) {
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "euprava25-sso",
			Subject:   c.SubjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:      c.Role,
		Email:     c.Email,
		FirstName: c.FirstName,
		LastName:  c.LastName,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}
