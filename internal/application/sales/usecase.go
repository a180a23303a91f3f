package sales

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jhoicas/inventario-reservas/internal/application/audit"
	"github.com/jhoicas/inventario-reservas/internal/application/dto"
	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
	"github.com/jhoicas/inventario-reservas/pkg/metrics"
)

var tracer = otel.Tracer("inventario-reservas/sales")

// statusLabel nombres legibles para los mensajes de error.
var statusLabel = map[string]string{
	entity.SaleStatusDraft:     "en borrador",
	entity.SaleStatusReserved:  "reservada",
	entity.SaleStatusPaid:      "pagada",
	entity.SaleStatusShipped:   "enviada",
	entity.SaleStatusDelivered: "entregada",
	entity.SaleStatusCancelled: "cancelada",
}

// Config reglas configurables de ventas.
type Config struct {
	NumberPrefix    string // prefijo del consecutivo, ej. VTA-000001
	AllowCancelPaid bool   // permite cancelar una venta pagada que aún no se envió
}

// SaleUseCase conduce la venta por su ciclo de vida y delega en el gestor de reservas
// los efectos de inventario de pagar o cancelar.
type SaleUseCase struct {
	txRunner     TxRunner
	repos        repository.Set
	reservations ReservationService
	prices       PriceSource
	audit        *audit.Recorder
	metrics      *metrics.Metrics
	cfg          Config
}

// NewSaleUseCase construye el caso de uso. repos se usa para lecturas fuera de transacción.
func NewSaleUseCase(
	txRunner TxRunner,
	repos repository.Set,
	reservations ReservationService,
	prices PriceSource,
	recorder *audit.Recorder,
	m *metrics.Metrics,
	cfg Config,
) *SaleUseCase {
	if prices == nil {
		prices = BasePriceSource{}
	}
	if cfg.NumberPrefix == "" {
		cfg.NumberPrefix = "VTA"
	}
	return &SaleUseCase{
		txRunner:     txRunner,
		repos:        repos,
		reservations: reservations,
		prices:       prices,
		audit:        recorder,
		metrics:      m,
		cfg:          cfg,
	}
}

// CreateSale arma una venta RESERVED a partir de reservas ACTIVE y sin venta, y las vincula en la misma transacción.
func (uc *SaleUseCase) CreateSale(ctx context.Context, actor domain.Actor, in dto.CreateSaleRequest) (*entity.Sale, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	ids, err := normalizeIDs(in.ReservationIDs)
	if err != nil {
		return nil, err
	}
	discount := decimal.Zero
	if in.Discount != nil {
		discount = *in.Discount
	}
	if discount.IsNegative() {
		return nil, domain.NewValidation("el descuento no puede ser negativo")
	}

	var sale *entity.Sale
	err = uc.audit.InTx(ctx, uc.txRunner, func(repos repository.Set, events *audit.Batch) error {
		reservations, err := lockLinkable(ctx, repos, actor, ids)
		if err != nil {
			return err
		}
		subtotal, err := uc.subtotal(ctx, repos, actor, reservations)
		if err != nil {
			return err
		}
		if discount.GreaterThan(subtotal) {
			return domain.NewValidation("el descuento no puede superar el subtotal")
		}
		number, err := uc.nextNumber(ctx, repos, actor.CompanyID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		sale = &entity.Sale{
			ID:        uuid.New().String(),
			CompanyID: actor.CompanyID,
			Number:    number,
			Status:    entity.SaleStatusReserved,
			Customer: entity.SaleCustomer{
				Name:  strings.TrimSpace(in.Customer.Name),
				Email: strings.TrimSpace(in.Customer.Email),
				Phone: strings.TrimSpace(in.Customer.Phone),
			},
			Notes:      in.Notes,
			Subtotal:   subtotal,
			Discount:   discount,
			CreatedBy:  actor.UserID,
			AssignedTo: in.AssignedTo,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		sale.Recalculate()
		if err := repos.Sales.Create(ctx, sale); err != nil {
			return err
		}
		if err := linkAll(ctx, repos, actor, sale, reservations, now); err != nil {
			return err
		}
		return events.Record(ctx, actor, "sale.create", "sale", sale.ID, nil, sale, nil)
	})
	if err != nil {
		return nil, err
	}
	uc.metrics.SaleTransition(sale.Status)
	return sale, nil
}

// CreateDraft crea una venta en borrador sin reservas (cotización).
func (uc *SaleUseCase) CreateDraft(ctx context.Context, actor domain.Actor, in dto.CreateDraftSaleRequest) (*entity.Sale, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	var sale *entity.Sale
	err := uc.audit.InTx(ctx, uc.txRunner, func(repos repository.Set, events *audit.Batch) error {
		number, err := uc.nextNumber(ctx, repos, actor.CompanyID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		sale = &entity.Sale{
			ID:        uuid.New().String(),
			CompanyID: actor.CompanyID,
			Number:    number,
			Status:    entity.SaleStatusDraft,
			Customer: entity.SaleCustomer{
				Name:  strings.TrimSpace(in.Customer.Name),
				Email: strings.TrimSpace(in.Customer.Email),
				Phone: strings.TrimSpace(in.Customer.Phone),
			},
			Notes:      in.Notes,
			Subtotal:   decimal.Zero,
			Discount:   decimal.Zero,
			Total:      decimal.Zero,
			CreatedBy:  actor.UserID,
			AssignedTo: in.AssignedTo,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := repos.Sales.Create(ctx, sale); err != nil {
			return err
		}
		return events.Record(ctx, actor, "sale.create_draft", "sale", sale.ID, nil, sale, nil)
	})
	if err != nil {
		return nil, err
	}
	uc.metrics.SaleTransition(sale.Status)
	return sale, nil
}

// AttachReservations vincula reservas a una venta en borrador y la pasa a RESERVED.
func (uc *SaleUseCase) AttachReservations(ctx context.Context, actor domain.Actor, saleID string, reservationIDs []string) (*entity.Sale, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	ids, err := normalizeIDs(reservationIDs)
	if err != nil {
		return nil, err
	}
	var sale *entity.Sale
	err = uc.audit.InTx(ctx, uc.txRunner, func(repos repository.Set, events *audit.Batch) error {
		sale, err = lockSale(ctx, repos, actor, saleID)
		if err != nil {
			return err
		}
		if !entity.CanTransitionSale(sale.Status, entity.SaleStatusReserved) {
			return domain.NewBusinessRule(fmt.Sprintf("no se pueden agregar reservas a una venta %s", statusLabel[sale.Status]))
		}
		reservations, err := lockLinkable(ctx, repos, actor, ids)
		if err != nil {
			return err
		}
		subtotal, err := uc.subtotal(ctx, repos, actor, reservations)
		if err != nil {
			return err
		}
		before := *sale
		now := time.Now().UTC()
		sale.Subtotal = subtotal
		if sale.Discount.GreaterThan(subtotal) {
			return domain.NewValidation("el descuento no puede superar el subtotal")
		}
		sale.Recalculate()
		sale.Status = entity.SaleStatusReserved
		sale.UpdatedAt = now
		if err := repos.Sales.Update(ctx, sale); err != nil {
			return err
		}
		if err := linkAll(ctx, repos, actor, sale, reservations, now); err != nil {
			return err
		}
		return events.Record(ctx, actor, "sale.reserve", "sale", sale.ID, &before, sale, nil)
	})
	if err != nil {
		return nil, err
	}
	uc.metrics.SaleTransition(sale.Status)
	return sale, nil
}

// UpdateSale aplica el patch mientras la venta no esté enviada ni entregada.
// Si cambia el descuento recalcula total = subtotal - descuento.
func (uc *SaleUseCase) UpdateSale(ctx context.Context, actor domain.Actor, saleID string, patch dto.UpdateSaleRequest) (*entity.Sale, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	var sale *entity.Sale
	err := uc.audit.InTx(ctx, uc.txRunner, func(repos repository.Set, events *audit.Batch) error {
		var err error
		sale, err = lockSale(ctx, repos, actor, saleID)
		if err != nil {
			return err
		}
		if sale.Status == entity.SaleStatusShipped || sale.Status == entity.SaleStatusDelivered {
			return domain.NewBusinessRule(fmt.Sprintf("no se puede modificar una venta %s", statusLabel[sale.Status]))
		}
		before := *sale
		if patch.CustomerName != nil {
			sale.Customer.Name = strings.TrimSpace(*patch.CustomerName)
		}
		if patch.CustomerEmail != nil {
			sale.Customer.Email = strings.TrimSpace(*patch.CustomerEmail)
		}
		if patch.CustomerPhone != nil {
			sale.Customer.Phone = strings.TrimSpace(*patch.CustomerPhone)
		}
		if patch.Notes != nil {
			sale.Notes = *patch.Notes
		}
		if patch.AssignedTo != nil {
			sale.AssignedTo = *patch.AssignedTo
		}
		if patch.Discount != nil {
			if patch.Discount.IsNegative() {
				return domain.NewValidation("el descuento no puede ser negativo")
			}
			if patch.Discount.GreaterThan(sale.Subtotal) {
				return domain.NewValidation("el descuento no puede superar el subtotal")
			}
			sale.Discount = *patch.Discount
			sale.Recalculate()
		}
		sale.UpdatedAt = time.Now().UTC()
		if err := repos.Sales.Update(ctx, sale); err != nil {
			return err
		}
		return events.Record(ctx, actor, "sale.update", "sale", sale.ID, &before, sale, nil)
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// Pay confirma todas las reservas de la venta y la pasa a PAID. Todo o nada:
// si una confirmación falla se hace rollback y ninguna reserva queda CONFIRMED.
func (uc *SaleUseCase) Pay(ctx context.Context, actor domain.Actor, saleID string) (sale *entity.Sale, err error) {
	ctx, span := tracer.Start(ctx, "sale.pay", trace.WithAttributes(attribute.String("sale.id", saleID)))
	defer func() { endSpan(span, err) }()

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	err = uc.audit.InTx(ctx, uc.txRunner, func(repos repository.Set, events *audit.Batch) error {
		var err error
		sale, err = lockSale(ctx, repos, actor, saleID)
		if err != nil {
			return err
		}
		if !entity.CanTransitionSale(sale.Status, entity.SaleStatusPaid) {
			return domain.NewBusinessRule(fmt.Sprintf("no se puede pagar una venta %s", statusLabel[sale.Status]))
		}
		reservations, err := lockSaleReservations(ctx, repos, actor, sale.ID)
		if err != nil {
			return err
		}
		if len(reservations) == 0 {
			return domain.NewBusinessRule("la venta no tiene reservas vinculadas")
		}
		for _, r := range reservations {
			if _, err := uc.reservations.ConfirmInTx(ctx, repos, events, actor, r.ID); err != nil {
				return fmt.Errorf("confirmar reserva %s: %w", r.ID, err)
			}
		}
		before := *sale
		now := time.Now().UTC()
		sale.Status = entity.SaleStatusPaid
		sale.PaidAt = &now
		sale.UpdatedAt = now
		if err := repos.Sales.Update(ctx, sale); err != nil {
			return err
		}
		return events.Record(ctx, actor, "sale.pay", "sale", sale.ID, &before, sale, nil)
	})
	if err != nil {
		return nil, err
	}
	uc.metrics.SaleTransition(sale.Status)
	return sale, nil
}

// Cancel libera las reservas ACTIVE de la venta y la pasa a CANCELLED.
// Nunca es legal desde SHIPPED, DELIVERED o CANCELLED; desde PAID solo si la configuración lo permite.
func (uc *SaleUseCase) Cancel(ctx context.Context, actor domain.Actor, saleID string) (sale *entity.Sale, err error) {
	ctx, span := tracer.Start(ctx, "sale.cancel", trace.WithAttributes(attribute.String("sale.id", saleID)))
	defer func() { endSpan(span, err) }()

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	err = uc.audit.InTx(ctx, uc.txRunner, func(repos repository.Set, events *audit.Batch) error {
		var err error
		sale, err = lockSale(ctx, repos, actor, saleID)
		if err != nil {
			return err
		}
		if !entity.CanTransitionSale(sale.Status, entity.SaleStatusCancelled) ||
			(sale.Status == entity.SaleStatusPaid && !uc.cfg.AllowCancelPaid) {
			return domain.NewBusinessRule(fmt.Sprintf("no se puede cancelar una venta %s", statusLabel[sale.Status]))
		}
		reservations, err := lockSaleReservations(ctx, repos, actor, sale.ID)
		if err != nil {
			return err
		}
		meta := map[string]any{"sale_id": sale.ID, "sale_number": sale.Number}
		for _, r := range reservations {
			if !r.IsActive() {
				continue
			}
			if _, err := uc.reservations.ReleaseInTx(ctx, repos, events, actor, r.ID, "venta cancelada", meta); err != nil {
				return fmt.Errorf("liberar reserva %s: %w", r.ID, err)
			}
		}
		before := *sale
		now := time.Now().UTC()
		sale.Status = entity.SaleStatusCancelled
		sale.CancelledAt = &now
		sale.UpdatedAt = now
		if err := repos.Sales.Update(ctx, sale); err != nil {
			return err
		}
		return events.Record(ctx, actor, "sale.cancel", "sale", sale.ID, &before, sale, nil)
	})
	if err != nil {
		return nil, err
	}
	uc.metrics.SaleTransition(sale.Status)
	return sale, nil
}

// Ship pasa una venta PAID a SHIPPED.
func (uc *SaleUseCase) Ship(ctx context.Context, actor domain.Actor, saleID string) (*entity.Sale, error) {
	return uc.advance(ctx, actor, saleID, entity.SaleStatusShipped, "sale.ship", func(s *entity.Sale, now time.Time) {
		s.ShippedAt = &now
	})
}

// Deliver pasa una venta SHIPPED a DELIVERED.
func (uc *SaleUseCase) Deliver(ctx context.Context, actor domain.Actor, saleID string) (*entity.Sale, error) {
	return uc.advance(ctx, actor, saleID, entity.SaleStatusDelivered, "sale.deliver", func(s *entity.Sale, now time.Time) {
		s.DeliveredAt = &now
	})
}

// advance transición de solo estado y fecha, sin efectos sobre reservas.
func (uc *SaleUseCase) advance(ctx context.Context, actor domain.Actor, saleID, to, action string, stamp func(*entity.Sale, time.Time)) (*entity.Sale, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	var sale *entity.Sale
	err := uc.audit.InTx(ctx, uc.txRunner, func(repos repository.Set, events *audit.Batch) error {
		var err error
		sale, err = lockSale(ctx, repos, actor, saleID)
		if err != nil {
			return err
		}
		if !entity.CanTransitionSale(sale.Status, to) {
			return domain.NewBusinessRule(fmt.Sprintf("no se puede pasar a %s una venta %s", statusLabel[to], statusLabel[sale.Status]))
		}
		before := *sale
		now := time.Now().UTC()
		sale.Status = to
		stamp(sale, now)
		sale.UpdatedAt = now
		if err := repos.Sales.Update(ctx, sale); err != nil {
			return err
		}
		return events.Record(ctx, actor, action, "sale", sale.ID, &before, sale, nil)
	})
	if err != nil {
		return nil, err
	}
	uc.metrics.SaleTransition(sale.Status)
	return sale, nil
}

// DeleteSale hace borrado lógico; solo en DRAFT y sin reservas vinculadas.
func (uc *SaleUseCase) DeleteSale(ctx context.Context, actor domain.Actor, saleID string) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	return uc.audit.InTx(ctx, uc.txRunner, func(repos repository.Set, events *audit.Batch) error {
		sale, err := lockSale(ctx, repos, actor, saleID)
		if err != nil {
			return err
		}
		if sale.Status != entity.SaleStatusDraft {
			return domain.NewBusinessRule(fmt.Sprintf("no se puede eliminar una venta %s", statusLabel[sale.Status]))
		}
		if len(sale.ReservationIDs) > 0 {
			return domain.NewBusinessRule("la venta tiene reservas vinculadas")
		}
		before := *sale
		now := time.Now().UTC()
		sale.DeletedAt = &now
		sale.UpdatedAt = now
		if err := repos.Sales.Update(ctx, sale); err != nil {
			return err
		}
		return events.Record(ctx, actor, "sale.delete", "sale", sale.ID, &before, sale, nil)
	})
}

// RestoreSale quita la marca de borrado lógico.
func (uc *SaleUseCase) RestoreSale(ctx context.Context, actor domain.Actor, saleID string) (*entity.Sale, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	var sale *entity.Sale
	err := uc.audit.InTx(ctx, uc.txRunner, func(repos repository.Set, events *audit.Batch) error {
		var err error
		sale, err = repos.Sales.GetForUpdate(ctx, actor.CompanyID, saleID)
		if err != nil {
			return err
		}
		if sale == nil {
			return domain.NewNotFound("venta no encontrada")
		}
		if !sale.IsDeleted() {
			return domain.NewBusinessRule("la venta no está eliminada")
		}
		before := *sale
		sale.DeletedAt = nil
		sale.UpdatedAt = time.Now().UTC()
		if err := repos.Sales.Update(ctx, sale); err != nil {
			return err
		}
		return events.Record(ctx, actor, "sale.restore", "sale", sale.ID, &before, sale, nil)
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// GetSale obtiene una venta de la empresa. Las eliminadas solo con includeDeleted (rol admin).
func (uc *SaleUseCase) GetSale(ctx context.Context, actor domain.Actor, saleID string, includeDeleted bool) (*entity.Sale, error) {
	if err := checkRead(actor, includeDeleted); err != nil {
		return nil, err
	}
	sale, err := uc.repos.Sales.GetByID(ctx, actor.CompanyID, saleID)
	if err != nil {
		return nil, err
	}
	if sale == nil || (sale.IsDeleted() && !includeDeleted) {
		return nil, domain.NewNotFound("venta no encontrada")
	}
	return sale, nil
}

// ListSales lista las ventas de la empresa.
func (uc *SaleUseCase) ListSales(ctx context.Context, actor domain.Actor, filter repository.SaleFilter, page dto.PageRequest) ([]*entity.Sale, error) {
	if err := checkRead(actor, filter.IncludeDeleted); err != nil {
		return nil, err
	}
	page.DefaultPage()
	return uc.repos.Sales.List(ctx, actor.CompanyID, filter, page.Limit, page.Offset)
}

func (uc *SaleUseCase) nextNumber(ctx context.Context, repos repository.Set, companyID string) (string, error) {
	n, err := repos.Sales.NextNumber(ctx, companyID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%06d", uc.cfg.NumberPrefix, n), nil
}

// subtotal suma precio unitario × cantidad reservada.
func (uc *SaleUseCase) subtotal(ctx context.Context, repos repository.Set, actor domain.Actor, reservations []*entity.StockReservation) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, r := range reservations {
		item, err := repos.Items.GetByID(ctx, actor.CompanyID, r.StockItemID)
		if err != nil {
			return decimal.Zero, err
		}
		if item == nil {
			return decimal.Zero, domain.NewNotFound("ítem de la reserva no encontrado")
		}
		price, err := uc.prices.UnitPrice(ctx, item)
		if err != nil {
			return decimal.Zero, fmt.Errorf("precio del ítem %s: %w", item.ID, err)
		}
		total = total.Add(price.Mul(r.Quantity))
	}
	return total, nil
}

// lockSale bloquea la fila de la venta; las eliminadas se tratan como inexistentes.
func lockSale(ctx context.Context, repos repository.Set, actor domain.Actor, saleID string) (*entity.Sale, error) {
	sale, err := repos.Sales.GetForUpdate(ctx, actor.CompanyID, saleID)
	if err != nil {
		return nil, err
	}
	if sale == nil || sale.IsDeleted() {
		return nil, domain.NewNotFound("venta no encontrada")
	}
	return sale, nil
}

// lockLinkable bloquea las reservas (orden por id) y exige que estén ACTIVE y sin venta.
func lockLinkable(ctx context.Context, repos repository.Set, actor domain.Actor, ids []string) ([]*entity.StockReservation, error) {
	list := make([]*entity.StockReservation, 0, len(ids))
	for _, id := range ids {
		r, err := repos.Reservations.GetForUpdate(ctx, actor.CompanyID, id)
		if err != nil {
			return nil, err
		}
		if r == nil {
			return nil, domain.NewNotFound(fmt.Sprintf("reserva %s no encontrada", id))
		}
		if !r.IsActive() {
			return nil, domain.NewBusinessRule(fmt.Sprintf("la reserva %s no está activa", id))
		}
		if r.IsLinked() {
			return nil, domain.NewBusinessRule(fmt.Sprintf("la reserva %s ya pertenece a una venta", id))
		}
		list = append(list, r)
	}
	return list, nil
}

// lockSaleReservations bloquea las reservas de la venta y luego sus ítems, ambos en orden de id,
// para que dos pagos concurrentes sobre los mismos ítems no se bloqueen mutuamente.
func lockSaleReservations(ctx context.Context, repos repository.Set, actor domain.Actor, saleID string) ([]*entity.StockReservation, error) {
	linked, err := repos.Reservations.ListBySale(ctx, actor.CompanyID, saleID)
	if err != nil {
		return nil, err
	}
	sort.Slice(linked, func(i, j int) bool { return linked[i].ID < linked[j].ID })
	locked := make([]*entity.StockReservation, 0, len(linked))
	itemIDs := make([]string, 0, len(linked))
	seen := make(map[string]bool, len(linked))
	for _, l := range linked {
		r, err := repos.Reservations.GetForUpdate(ctx, actor.CompanyID, l.ID)
		if err != nil {
			return nil, err
		}
		if r == nil {
			return nil, domain.NewNotFound(fmt.Sprintf("reserva %s no encontrada", l.ID))
		}
		locked = append(locked, r)
		if !seen[r.StockItemID] {
			seen[r.StockItemID] = true
			itemIDs = append(itemIDs, r.StockItemID)
		}
	}
	sort.Strings(itemIDs)
	for _, id := range itemIDs {
		if _, err := repos.Items.GetForUpdate(ctx, actor.CompanyID, id); err != nil {
			return nil, err
		}
	}
	return locked, nil
}

// linkAll vincula cada reserva a la venta (escritura única).
func linkAll(ctx context.Context, repos repository.Set, actor domain.Actor, sale *entity.Sale, reservations []*entity.StockReservation, now time.Time) error {
	ids := make([]string, 0, len(reservations))
	for _, r := range reservations {
		ok, err := repos.Reservations.LinkSale(ctx, actor.CompanyID, r.ID, sale.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewBusinessRule(fmt.Sprintf("la reserva %s ya pertenece a una venta", r.ID))
		}
		saleID := sale.ID
		r.SaleID = &saleID
		ids = append(ids, r.ID)
	}
	sale.ReservationIDs = append(sale.ReservationIDs, ids...)
	sort.Strings(sale.ReservationIDs)
	return nil
}

// normalizeIDs exige una lista no vacía y sin duplicados; devuelve los ids ordenados (orden de locks).
func normalizeIDs(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, domain.NewValidation("se requiere al menos una reserva")
	}
	seen := make(map[string]bool, len(raw))
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, domain.NewValidation("id de reserva vacío")
		}
		if seen[id] {
			return nil, domain.NewValidation(fmt.Sprintf("reserva %s repetida", id))
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func checkRead(actor domain.Actor, includeDeleted bool) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if includeDeleted && !actor.CanSeeDeleted() {
		return domain.NewForbidden("solo un administrador puede consultar registros eliminados")
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
