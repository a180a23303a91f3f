package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/jhoicas/inventario-reservas/internal/application/dto"
	"github.com/jhoicas/inventario-reservas/internal/application/inventory"
	"github.com/jhoicas/inventario-reservas/internal/application/sales"
	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/pkg/logger"
	"github.com/jhoicas/inventario-reservas/pkg/metrics"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AppName      string
	Ledger       *inventory.StockLedgerUseCase
	Reservations *inventory.ReservationUseCase
	Sales        *sales.SaleUseCase
	Metrics      *metrics.Metrics // nil = sin /metrics
	Log          *logger.Logger
	JWTSecret    string
	JWTIssuer    string // vacío = no se comprueba iss
}

// NewApp construye la aplicación Fiber con recover, request id, /health, /metrics y las rutas de la API.
func NewApp(deps RouterDeps) *fiber.App {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	app := fiber.New(fiber.Config{
		AppName:      deps.AppName,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(dto.ErrorResponse{Code: "HTTP_ERROR", Message: fe.Message})
			}
			log.Ctx(c.UserContext()).Error().Err(err).Str("path", c.Path()).Msg("error no controlado")
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
		},
	})
	app.Use(recover.New())
	app.Use(requestid.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": deps.AppName})
	})
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}

	Router(app, deps)
	return app
}

// Router registra las rutas de la API. Todas requieren Bearer Token.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret, deps.JWTIssuer))
	anyRole := RequireRole(domain.RoleAdmin, domain.RoleBodeguero, domain.RoleVendedor)
	stockRoles := RequireRole(domain.RoleAdmin, domain.RoleBodeguero)
	salesRoles := RequireRole(domain.RoleAdmin, domain.RoleVendedor)
	adminOnly := RequireRole(domain.RoleAdmin)

	items := api.Group("/items")
	itemHandler := NewItemHandler(deps.Ledger)
	items.Get("/", anyRole, itemHandler.List)
	items.Post("/", stockRoles, itemHandler.Create)
	items.Get("/:id", anyRole, itemHandler.GetByID)
	items.Post("/:id/adjust", stockRoles, itemHandler.Adjust)
	items.Delete("/:id", stockRoles, itemHandler.Delete)
	items.Post("/:id/restore", adminOnly, itemHandler.Restore)

	movements := api.Group("/movements")
	movementHandler := NewMovementHandler(deps.Ledger)
	movements.Get("/", anyRole, movementHandler.List)

	reservations := api.Group("/reservations")
	reservationHandler := NewReservationHandler(deps.Reservations)
	reservations.Get("/", anyRole, reservationHandler.List)
	reservations.Post("/", anyRole, reservationHandler.Create)
	reservations.Post("/expire", adminOnly, reservationHandler.Expire)
	reservations.Get("/:id", anyRole, reservationHandler.GetByID)
	reservations.Post("/:id/confirm", anyRole, reservationHandler.Confirm)
	reservations.Post("/:id/release", anyRole, reservationHandler.Release)

	salesGroup := api.Group("/sales")
	saleHandler := NewSaleHandler(deps.Sales)
	salesGroup.Get("/", salesRoles, saleHandler.List)
	salesGroup.Post("/", salesRoles, saleHandler.Create)
	salesGroup.Post("/drafts", salesRoles, saleHandler.CreateDraft)
	salesGroup.Get("/:id", salesRoles, saleHandler.GetByID)
	salesGroup.Patch("/:id", salesRoles, saleHandler.Update)
	salesGroup.Delete("/:id", salesRoles, saleHandler.Delete)
	salesGroup.Post("/:id/reservations", salesRoles, saleHandler.AttachReservations)
	salesGroup.Post("/:id/pay", salesRoles, saleHandler.Pay)
	salesGroup.Post("/:id/cancel", salesRoles, saleHandler.Cancel)
	salesGroup.Post("/:id/ship", stockRoles, saleHandler.Ship)
	salesGroup.Post("/:id/deliver", stockRoles, saleHandler.Deliver)
	salesGroup.Post("/:id/restore", adminOnly, saleHandler.Restore)
}
