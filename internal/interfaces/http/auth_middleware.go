package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-reservas/internal/application/dto"
	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/pkg/jwt"
)

// LocalClaims guarda en c.Locals los claims verificados del token.
const LocalClaims = "auth_claims"

// AuthMiddleware valida el Bearer Token y deja los claims en c.Locals(LocalClaims).
// Sin secret configurado toda petición responde 401.
func AuthMiddleware(secret, issuer string) fiber.Handler {
	verifier, verr := jwt.NewVerifier(secret, issuer)
	return func(c *fiber.Ctx) error {
		tokenString, code, msg := bearerToken(c.Get(fiber.HeaderAuthorization))
		if code != "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: code, Message: msg})
		}
		if verr != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "autenticación no configurada"})
		}
		claims, err := verifier.Parse(tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "token inválido o expirado"})
		}
		c.Locals(LocalClaims, claims)
		return c.Next()
	}
}

func bearerToken(header string) (token, code, msg string) {
	if header == "" {
		return "", "MISSING_TOKEN", "Authorization header requerido"
	}
	scheme, rest, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "INVALID_TOKEN", "formato: Bearer <token>"
	}
	token = strings.TrimSpace(rest)
	if token == "" {
		return "", "MISSING_TOKEN", "token vacío"
	}
	return token, "", ""
}

// RequireRole deja pasar solo a los roles indicados. Va después de AuthMiddleware.
// Un token sin rol responde 401 MISSING_ROLE; un rol no permitido, 403 FORBIDDEN.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *fiber.Ctx) error {
		role := identityFrom(c).Role
		if role == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_ROLE", Message: "el token no incluye rol"})
		}
		if _, ok := allowed[role]; !ok {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "rol sin permiso para esta operación"})
		}
		return c.Next()
	}
}

// ClaimsFrom devuelve los claims verificados, o nil fuera de AuthMiddleware.
func ClaimsFrom(c *fiber.Ctx) *jwt.Claims {
	claims, _ := c.Locals(LocalClaims).(*jwt.Claims)
	return claims
}

func identityFrom(c *fiber.Ctx) jwt.Identity {
	if claims := ClaimsFrom(c); claims != nil {
		return claims.Identity()
	}
	return jwt.Identity{}
}

// actorFrom arma el contexto de autorización que reciben los casos de uso a partir del token
// y del request id asignado por el middleware requestid.
func actorFrom(c *fiber.Ctx) domain.Actor {
	id := identityFrom(c)
	return domain.Actor{
		CompanyID: id.CompanyID,
		UserID:    id.UserID,
		Role:      id.Role,
		RequestID: c.GetRespHeader(fiber.HeaderXRequestID),
	}
}
