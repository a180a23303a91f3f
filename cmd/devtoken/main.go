// devtoken firma un Bearer Token para entornos de desarrollo con JWT_SECRET, JWT_ISSUER y
// JWT_EXPIRATION_MINUTES de la configuración.
//
// Uso: go run ./cmd/devtoken <user_id> <company_id> [rol]
// El rol por defecto es admin.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/pkg/config"
	"github.com/jhoicas/inventario-reservas/pkg/jwt"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "uso: devtoken <user_id> <company_id> [rol]")
		os.Exit(2)
	}
	role := domain.RoleAdmin
	if len(os.Args) > 3 {
		role = os.Args[3]
	}
	switch role {
	case domain.RoleAdmin, domain.RoleBodeguero, domain.RoleVendedor:
	default:
		fmt.Fprintf(os.Stderr, "rol desconocido: %s\n", role)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cargar configuración: %v\n", err)
		os.Exit(1)
	}
	if cfg.App.Env == "production" {
		fmt.Fprintln(os.Stderr, "devtoken no firma tokens en production")
		os.Exit(1)
	}
	ttl := time.Duration(cfg.JWT.Expiration) * time.Minute
	tok, err := jwt.Sign(cfg.JWT.Secret, jwt.Identity{UserID: os.Args[1], CompanyID: os.Args[2], Role: role}, cfg.JWT.Issuer, ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Firmar token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
