package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken envuelve cualquier rechazo del token (firma, expiración, emisor o claims faltantes).
var ErrInvalidToken = errors.New("jwt: token inválido")

// Identity es quién actúa y en qué tenant; es lo único que el servicio toma del token.
type Identity struct {
	UserID    string
	CompanyID string
	Role      string // "admin" | "bodeguero" | "vendedor"; vacío en tokens sin rol
}

// Claims del token. El usuario viaja en sub.
type Claims struct {
	jwt.RegisteredClaims
	CompanyID string `json:"company_id"`
	Role      string `json:"role,omitempty"`
}

// Identity devuelve la identidad contenida en los claims.
func (c *Claims) Identity() Identity {
	return Identity{UserID: c.Subject, CompanyID: c.CompanyID, Role: c.Role}
}

// Sign firma un token HS256 para la identidad dada. Lo usan las herramientas internas y los tests;
// el servicio solo verifica.
func Sign(secret string, id Identity, issuer string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt: secret vacío")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		CompanyID: id.CompanyID,
		Role:      id.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Verifier valida tokens HS256 con un secret compartido.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier crea el verificador. Con issuer vacío no se comprueba iss.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("jwt: secret vacío")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &Verifier{secret: []byte(secret), parser: jwt.NewParser(opts...)}, nil
}

// Parse valida firma, expiración y emisor, y exige sub y company_id.
// Todo rechazo cumple errors.Is(err, ErrInvalidToken).
func (v *Verifier) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.CompanyID == "" {
		return nil, fmt.Errorf("%w: faltan sub o company_id", ErrInvalidToken)
	}
	return claims, nil
}
