package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jhoicas/inventario-reservas/internal/application/audit"
	"github.com/jhoicas/inventario-reservas/internal/application/dto"
	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
	"github.com/jhoicas/inventario-reservas/pkg/logger"
	"github.com/jhoicas/inventario-reservas/pkg/metrics"
)

// errNotDue indica que la reserva ya no está ACTIVE o aún no venció al tomar su lock.
var errNotDue = errors.New("reserva no vencible")

// ReservationConfig parámetros del gestor de reservas.
type ReservationConfig struct {
	DefaultTTL  time.Duration // 0 = sin vencimiento por defecto
	ExpireBatch int           // máximo de reservas vencidas procesadas por llamada a ExpireDue
}

// ExpireResult resumen de una ejecución de ExpireDue.
type ExpireResult struct {
	Expired int
	Skipped int
	Failed  int
}

// ReservationUseCase convierte cantidad disponible en retenciones con vencimiento sin permitir sobreventa.
// Media toda mutación de StockItem que se origina en un evento de reserva.
type ReservationUseCase struct {
	txRunner TxRunner
	repos    repository.Set
	audit    *audit.Recorder
	metrics  *metrics.Metrics
	log      *logger.Logger
	cfg      ReservationConfig
}

// NewReservationUseCase construye el caso de uso.
func NewReservationUseCase(
	txRunner TxRunner,
	repos repository.Set,
	recorder *audit.Recorder,
	m *metrics.Metrics,
	log *logger.Logger,
	cfg ReservationConfig,
) *ReservationUseCase {
	if cfg.ExpireBatch <= 0 {
		cfg.ExpireBatch = 500
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ReservationUseCase{
		txRunner: txRunner,
		repos:    repos,
		audit:    recorder,
		metrics:  m,
		log:      log.Named("reservations"),
		cfg:      cfg,
	}
}

// Reserve retiene quantity unidades del ítem. En una transacción bloquea el ítem (SELECT FOR UPDATE),
// suma las reservas ACTIVE y rechaza con ErrInsufficientStock si la suma superaría la cantidad física.
func (uc *ReservationUseCase) Reserve(ctx context.Context, actor domain.Actor, itemID string, quantity decimal.Decimal, expiresAt *time.Time) (res *entity.StockReservation, err error) {
	ctx, span := tracer.Start(ctx, "reservation.reserve")
	span.SetAttributes(attribute.String("stock_item.id", itemID), attribute.String("quantity", quantity.String()))
	defer func() { endSpan(span, err); uc.metrics.Reservation("reserve", err) }()

	if err := validateReserve(actor, quantity); err != nil {
		return nil, err
	}
	err = uc.audit.InTx(ctx, uc.txRunner, func(repos repository.Set, events *audit.Batch) error {
		item, err := repos.Items.GetForUpdate(ctx, actor.CompanyID, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.NewNotFound("ítem no encontrado")
		}
		res, err = uc.reserveInTx(ctx, repos, events, actor, item, quantity, expiresAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ReserveBySKU resuelve el SKU a un ítem concreto (el más antiguo con cantidad libre suficiente)
// y reserva sobre él en la misma transacción.
func (uc *ReservationUseCase) ReserveBySKU(ctx context.Context, actor domain.Actor, sku string, quantity decimal.Decimal, expiresAt *time.Time) (res *entity.StockReservation, err error) {
	ctx, span := tracer.Start(ctx, "reservation.reserve_by_sku")
	span.SetAttributes(attribute.String("sku", sku), attribute.String("quantity", quantity.String()))
	defer func() { endSpan(span, err); uc.metrics.Reservation("reserve", err) }()

	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, domain.NewValidation("el SKU es obligatorio")
	}
	if err := validateReserve(actor, quantity); err != nil {
		return nil, err
	}
	err = uc.audit.InTx(ctx, uc.txRunner, func(repos repository.Set, events *audit.Batch) error {
		candidates, err := repos.Items.ListAvailableBySKU(ctx, actor.CompanyID, sku)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			total, err := repos.Items.CountBySKU(ctx, actor.CompanyID, sku)
			if err != nil {
				return err
			}
			if total == 0 {
				return domain.NewNotFound(fmt.Sprintf("no hay ítems con SKU %s", sku))
			}
			return domain.NewInsufficientStock(fmt.Sprintf("no hay ítems disponibles del SKU %s", sku))
		}
		for _, c := range candidates {
			if c.IsSerialized() && !quantity.Equal(decimal.NewFromInt(1)) {
				continue
			}
			item, err := repos.Items.GetForUpdate(ctx, actor.CompanyID, c.ID)
			if err != nil {
				return err
			}
			if item == nil || !item.IsAvailable() {
				continue
			}
			held, err := repos.Reservations.SumActiveByItem(ctx, actor.CompanyID, item.ID)
			if err != nil {
				return err
			}
			if held.Add(quantity).GreaterThan(item.Quantity) {
				continue
			}
			res, err = uc.reserveInTx(ctx, repos, events, actor, item, quantity, expiresAt)
			return err
		}
		return domain.NewInsufficientStock(fmt.Sprintf("stock insuficiente disponible para el SKU %s", sku))
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// reserveInTx crea la reserva sobre un ítem ya bloqueado por la transacción actual.
func (uc *ReservationUseCase) reserveInTx(ctx context.Context, repos repository.Set, events *audit.Batch, actor domain.Actor, item *entity.StockItem, quantity decimal.Decimal, expiresAt *time.Time) (*entity.StockReservation, error) {
	if !item.IsAvailable() {
		return nil, domain.NewBusinessRule("el ítem no está disponible para reservas")
	}
	if item.IsSerialized() && !quantity.Equal(decimal.NewFromInt(1)) {
		return nil, domain.NewValidation("un ítem serializado solo se puede reservar de a una unidad")
	}
	held, err := repos.Reservations.SumActiveByItem(ctx, actor.CompanyID, item.ID)
	if err != nil {
		return nil, err
	}
	if held.Add(quantity).GreaterThan(item.Quantity) {
		return nil, domain.NewInsufficientStock(fmt.Sprintf(
			"stock insuficiente disponible: solicitado %s, libre %s", quantity, item.Quantity.Sub(held)))
	}

	now := time.Now().UTC()
	if expiresAt == nil && uc.cfg.DefaultTTL > 0 {
		exp := now.Add(uc.cfg.DefaultTTL)
		expiresAt = &exp
	}
	res := &entity.StockReservation{
		ID:          uuid.New().String(),
		CompanyID:   actor.CompanyID,
		StockItemID: item.ID,
		Quantity:    quantity,
		Status:      entity.ReservationStatusActive,
		ExpiresAt:   expiresAt,
		CreatedBy:   actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repos.Reservations.Create(ctx, res); err != nil {
		return nil, err
	}
	resID := res.ID
	// La retención es virtual hasta confirmar: before == after.
	mov := &entity.StockMovement{
		ID:             uuid.New().String(),
		CompanyID:      actor.CompanyID,
		StockItemID:    item.ID,
		Type:           entity.MovementTypeReserve,
		Quantity:       decimal.Zero,
		QuantityBefore: item.Quantity,
		QuantityAfter:  item.Quantity,
		Reason:         "reserva creada",
		ReservationID:  &resID,
		Metadata: map[string]any{
			"reserved":    quantity.String(),
			"held_before": held.String(),
			"held_after":  held.Add(quantity).String(),
		},
		CreatedBy: actor.UserID,
		CreatedAt: now,
	}
	if err := repos.Movements.Create(ctx, mov); err != nil {
		return nil, err
	}
	if err := events.Record(ctx, actor, "reservation.create", "stock_reservation", res.ID, nil, res, nil); err != nil {
		return nil, err
	}
	return res, nil
}

// Confirm convierte la retención en descuento físico: CONFIRMED, cantidad descontada y movimiento CONFIRM.
func (uc *ReservationUseCase) Confirm(ctx context.Context, actor domain.Actor, reservationID string) (res *entity.StockReservation, err error) {
	ctx, span := tracer.Start(ctx, "reservation.confirm")
	span.SetAttributes(attribute.String("reservation.id", reservationID))
	defer func() { endSpan(span, err); uc.metrics.Reservation("confirm", err) }()

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	err = uc.audit.InTx(ctx, uc.txRunner, func(repos repository.Set, events *audit.Batch) error {
		res, err = uc.ConfirmInTx(ctx, repos, events, actor, reservationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ConfirmInTx confirma usando los repositorios y el lote de auditoría del caller (misma transacción).
// Orden de locks: reserva y luego ítem. Si retorna error el caller debe hacer rollback.
func (uc *ReservationUseCase) ConfirmInTx(ctx context.Context, repos repository.Set, events *audit.Batch, actor domain.Actor, reservationID string) (*entity.StockReservation, error) {
	res, err := repos.Reservations.GetForUpdate(ctx, actor.CompanyID, reservationID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, domain.NewNotFound("reserva no encontrada")
	}
	if !entity.CanTransitionReservation(res.Status, entity.ReservationStatusConfirmed) {
		return nil, domain.NewBusinessRule("la reserva no está activa")
	}
	item, err := repos.Items.GetForUpdate(ctx, actor.CompanyID, res.StockItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.NewNotFound("ítem de la reserva no encontrado")
	}
	if item.Quantity.Sub(res.Quantity).IsNegative() {
		return nil, domain.NewBusinessRule(fmt.Sprintf(
			"stock insuficiente para confirmar: disponible %s, reservado %s", item.Quantity, res.Quantity))
	}
	before := *res
	now := time.Now().UTC()
	if _, err := consumeQuantity(ctx, repos, actor, item, res, now); err != nil {
		return nil, err
	}
	if err := uc.transition(ctx, repos, res, entity.ReservationStatusConfirmed, now); err != nil {
		return nil, err
	}
	if err := events.Record(ctx, actor, "reservation.confirm", "stock_reservation", res.ID, &before, res, nil); err != nil {
		return nil, err
	}
	return res, nil
}

// Release cancela una reserva ACTIVE y registra un RELEASE sin cambio físico.
func (uc *ReservationUseCase) Release(ctx context.Context, actor domain.Actor, reservationID, reason string) (res *entity.StockReservation, err error) {
	ctx, span := tracer.Start(ctx, "reservation.release")
	span.SetAttributes(attribute.String("reservation.id", reservationID))
	defer func() { endSpan(span, err); uc.metrics.Reservation("release", err) }()

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	err = uc.audit.InTx(ctx, uc.txRunner, func(repos repository.Set, events *audit.Batch) error {
		res, err = uc.ReleaseInTx(ctx, repos, events, actor, reservationID, reason, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ReleaseInTx cancela usando los repositorios y el lote de auditoría del caller (misma transacción).
func (uc *ReservationUseCase) ReleaseInTx(ctx context.Context, repos repository.Set, events *audit.Batch, actor domain.Actor, reservationID, reason string, metadata map[string]any) (*entity.StockReservation, error) {
	if strings.TrimSpace(reason) == "" {
		reason = "liberación de reserva"
	}
	res, err := repos.Reservations.GetForUpdate(ctx, actor.CompanyID, reservationID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, domain.NewNotFound("reserva no encontrada")
	}
	if !entity.CanTransitionReservation(res.Status, entity.ReservationStatusCancelled) {
		return nil, domain.NewBusinessRule("la reserva no está activa")
	}
	before := *res
	now := time.Now().UTC()
	if err := uc.writeRelease(ctx, repos, actor, res, entity.ReservationStatusCancelled, reason, metadata, now); err != nil {
		return nil, err
	}
	if err := events.Record(ctx, actor, "reservation.release", "stock_reservation", res.ID, &before, res, metadata); err != nil {
		return nil, err
	}
	return res, nil
}

// ExpireDue vence toda reserva ACTIVE con expires_at < now (companyID vacío = todas las empresas).
// Cada reserva se vence en su propia transacción: una falla no bloquea a las demás.
// Volver a ejecutarla sobre reservas ya vencidas no hace nada.
func (uc *ReservationUseCase) ExpireDue(ctx context.Context, companyID string, now time.Time) (result ExpireResult, err error) {
	ctx, span := tracer.Start(ctx, "reservation.expire_due")
	defer func() {
		span.SetAttributes(
			attribute.Int("expired", result.Expired),
			attribute.Int("skipped", result.Skipped),
			attribute.Int("failed", result.Failed),
		)
		endSpan(span, err)
	}()

	due, err := uc.repos.Reservations.ListDue(ctx, companyID, now, uc.cfg.ExpireBatch)
	if err != nil {
		return result, fmt.Errorf("list due reservations: %w", err)
	}
	for _, r := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		err := uc.expireOne(ctx, r.CompanyID, r.ID, now)
		switch {
		case errors.Is(err, errNotDue):
			result.Skipped++
		case err != nil:
			result.Failed++
			uc.log.Ctx(ctx).Error().Err(err).
				Str("reservation_id", r.ID).
				Str("company_id", r.CompanyID).
				Msg("no se pudo vencer la reserva")
		default:
			result.Expired++
		}
	}
	return result, nil
}

// expireOne toma el lock de la reserva y la vence solo si sigue ACTIVE y vencida.
// El lock de fila actúa como reclamo: dos réplicas nunca vencen la misma reserva.
func (uc *ReservationUseCase) expireOne(ctx context.Context, companyID, reservationID string, now time.Time) error {
	actor := domain.SystemActor(companyID)
	return uc.audit.InTx(ctx, uc.txRunner, func(repos repository.Set, events *audit.Batch) error {
		res, err := repos.Reservations.GetForUpdate(ctx, companyID, reservationID)
		if err != nil {
			return err
		}
		if res == nil || !res.IsDue(now) {
			return errNotDue
		}
		before := *res
		metadata := map[string]any{
			"expired":    true,
			"expires_at": res.ExpiresAt.UTC().Format(time.RFC3339Nano),
			"expired_at": now.UTC().Format(time.RFC3339Nano),
		}
		if err := uc.writeRelease(ctx, repos, actor, res, entity.ReservationStatusExpired, "reserva vencida", metadata, now); err != nil {
			return err
		}
		return events.Record(ctx, actor, "reservation.expire", "stock_reservation", res.ID, &before, res, metadata)
	})
}

// writeRelease cambia la reserva a un estado terminal sin descuento físico y escribe el RELEASE.
func (uc *ReservationUseCase) writeRelease(ctx context.Context, repos repository.Set, actor domain.Actor, res *entity.StockReservation, to, reason string, metadata map[string]any, now time.Time) error {
	item, err := repos.Items.GetForUpdate(ctx, res.CompanyID, res.StockItemID)
	if err != nil {
		return err
	}
	if item == nil {
		return domain.NewNotFound("ítem de la reserva no encontrado")
	}
	if err := uc.transition(ctx, repos, res, to, now); err != nil {
		return err
	}
	resID := res.ID
	mov := &entity.StockMovement{
		ID:             uuid.New().String(),
		CompanyID:      res.CompanyID,
		StockItemID:    item.ID,
		Type:           entity.MovementTypeRelease,
		Quantity:       decimal.Zero,
		QuantityBefore: item.Quantity,
		QuantityAfter:  item.Quantity,
		Reason:         reason,
		ReservationID:  &resID,
		Metadata:       metadata,
		CreatedBy:      actor.UserID,
		CreatedAt:      now,
	}
	return repos.Movements.Create(ctx, mov)
}

// transition aplica el cambio de estado condicionado al estado ACTIVE.
func (uc *ReservationUseCase) transition(ctx context.Context, repos repository.Set, res *entity.StockReservation, to string, now time.Time) error {
	ok, err := repos.Reservations.UpdateStatus(ctx, res.CompanyID, res.ID, entity.ReservationStatusActive, to, now)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NewBusinessRule("la reserva no está activa")
	}
	res.Status = to
	res.UpdatedAt = now
	return nil
}

// GetReservation obtiene una reserva de la empresa.
func (uc *ReservationUseCase) GetReservation(ctx context.Context, actor domain.Actor, reservationID string) (*entity.StockReservation, error) {
	if err := checkRead(actor, false); err != nil {
		return nil, err
	}
	res, err := uc.repos.Reservations.GetByID(ctx, actor.CompanyID, reservationID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, domain.NewNotFound("reserva no encontrada")
	}
	return res, nil
}

// ListReservations lista reservas de la empresa.
func (uc *ReservationUseCase) ListReservations(ctx context.Context, actor domain.Actor, filter repository.ReservationFilter, page dto.PageRequest) ([]*entity.StockReservation, error) {
	if err := checkRead(actor, false); err != nil {
		return nil, err
	}
	page.DefaultPage()
	return uc.repos.Reservations.List(ctx, actor.CompanyID, filter, page.Limit, page.Offset)
}

func validateReserve(actor domain.Actor, quantity decimal.Decimal) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if !quantity.IsPositive() {
		return domain.NewValidation("la cantidad a reservar debe ser mayor que cero")
	}
	return checkScale("la cantidad a reservar", quantity, entity.QuantityScale)
}

// checkScale rechaza valores con más decimales de los que guarda la base; no se redondea en silencio.
func checkScale(field string, d decimal.Decimal, scale int32) error {
	if !entity.FitsScale(d, scale) {
		return domain.NewValidation(fmt.Sprintf("%s admite como máximo %d decimales", field, scale))
	}
	return nil
}
