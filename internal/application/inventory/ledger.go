package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-reservas/internal/application/audit"
	"github.com/jhoicas/inventario-reservas/internal/application/dto"
	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
)

// StockLedgerUseCase es la única fuente de verdad de la cantidad física y el estado de cada ítem.
// Todo cambio de cantidad escribe exactamente un StockMovement en la misma transacción.
type StockLedgerUseCase struct {
	txRunner TxRunner
	repos    repository.Set
	audit    *audit.Recorder
}

// NewStockLedgerUseCase construye el caso de uso. repos se usa para lecturas fuera de transacción.
func NewStockLedgerUseCase(txRunner TxRunner, repos repository.Set, recorder *audit.Recorder) *StockLedgerUseCase {
	return &StockLedgerUseCase{txRunner: txRunner, repos: repos, audit: recorder}
}

// CreateItem da de alta un ítem (lote o unidad serializada) y registra el movimiento IN con before=0.
func (uc *StockLedgerUseCase) CreateItem(ctx context.Context, actor domain.Actor, in dto.CreateStockItemRequest) (*entity.StockItem, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	sku := strings.TrimSpace(in.SKU)
	if sku == "" {
		return nil, domain.NewValidation("el SKU es obligatorio")
	}
	if in.Quantity.IsNegative() {
		return nil, domain.NewValidation("la cantidad no puede ser negativa")
	}
	if err := checkScale("la cantidad", in.Quantity, entity.QuantityScale); err != nil {
		return nil, err
	}
	if in.BasePrice.IsNegative() {
		return nil, domain.NewValidation("el precio base no puede ser negativo")
	}
	if err := checkScale("el precio base", in.BasePrice, entity.PriceScale); err != nil {
		return nil, err
	}
	var serial *string
	if in.SerialNumber != nil && strings.TrimSpace(*in.SerialNumber) != "" {
		s := strings.TrimSpace(*in.SerialNumber)
		serial = &s
		if !in.Quantity.Equal(decimal.NewFromInt(1)) {
			return nil, domain.NewValidation("un ítem serializado debe tener cantidad 1")
		}
	}
	status := strings.ToUpper(strings.TrimSpace(in.Status))
	if status == "" {
		status = entity.ItemStatusAvailable
	}
	reason := in.Reason
	if reason == "" {
		reason = "alta de ítem"
	}

	now := time.Now().UTC()
	item := &entity.StockItem{
		ID:           uuid.New().String(),
		CompanyID:    actor.CompanyID,
		SKU:          sku,
		Model:        strings.TrimSpace(in.Model),
		SerialNumber: serial,
		Quantity:     in.Quantity,
		Status:       status,
		BasePrice:    in.BasePrice,
		CreatedBy:    actor.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := uc.audit.InTx(ctx, uc.txRunner, func(repos repository.Set, events *audit.Batch) error {
		if serial != nil {
			existing, err := repos.Items.GetBySerial(ctx, actor.CompanyID, *serial)
			if err != nil {
				return err
			}
			if existing != nil {
				return domain.NewConflict(fmt.Sprintf("el serial %s ya existe", *serial))
			}
		}
		if err := repos.Items.Create(ctx, item); err != nil {
			return err
		}
		mov := &entity.StockMovement{
			ID:             uuid.New().String(),
			CompanyID:      actor.CompanyID,
			StockItemID:    item.ID,
			Type:           entity.MovementTypeIn,
			Quantity:       item.Quantity,
			QuantityBefore: decimal.Zero,
			QuantityAfter:  item.Quantity,
			Reason:         reason,
			CreatedBy:      actor.UserID,
			CreatedAt:      now,
		}
		if err := repos.Movements.Create(ctx, mov); err != nil {
			return err
		}
		return events.Record(ctx, actor, "stock_item.create", "stock_item", item.ID, nil, item, nil)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// AdjustQuantity aplica delta (positivo o negativo) a la cantidad del ítem y registra un ADJUST.
// Bloquea la fila del ítem (SELECT FOR UPDATE) durante la transacción.
func (uc *StockLedgerUseCase) AdjustQuantity(ctx context.Context, actor domain.Actor, itemID string, delta decimal.Decimal, reason string) (*entity.StockItem, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if delta.IsZero() {
		return nil, domain.NewValidation("el delta del ajuste no puede ser cero")
	}
	if err := checkScale("el delta del ajuste", delta, entity.QuantityScale); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, domain.NewValidation("el motivo del ajuste es obligatorio")
	}

	var result *entity.StockItem
	err := uc.audit.InTx(ctx, uc.txRunner, func(repos repository.Set, events *audit.Batch) error {
		item, err := repos.Items.GetForUpdate(ctx, actor.CompanyID, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.NewNotFound("ítem no encontrado")
		}
		if item.IsDeleted() {
			return domain.NewBusinessRule("no se puede ajustar un ítem eliminado")
		}
		before := *item
		after := item.Quantity.Add(delta)
		if after.IsNegative() {
			return domain.NewBusinessRule("el ajuste dejaría la cantidad en negativo")
		}
		if item.IsSerialized() && !entity.ValidSerializedQuantity(after) {
			return domain.NewValidation("un ítem serializado solo admite cantidad 0 o 1")
		}
		now := time.Now().UTC()
		item.Quantity = after
		item.UpdatedAt = now
		if err := repos.Items.Update(ctx, item); err != nil {
			return err
		}
		mov := &entity.StockMovement{
			ID:             uuid.New().String(),
			CompanyID:      actor.CompanyID,
			StockItemID:    item.ID,
			Type:           entity.MovementTypeAdjust,
			Quantity:       delta,
			QuantityBefore: before.Quantity,
			QuantityAfter:  after,
			Reason:         reason,
			CreatedBy:      actor.UserID,
			CreatedAt:      now,
		}
		if err := repos.Movements.Create(ctx, mov); err != nil {
			return err
		}
		result = item
		return events.Record(ctx, actor, "stock_item.adjust", "stock_item", item.ID, &before, item,
			map[string]any{"delta": delta.String(), "reason": reason})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SoftDeleteItem marca el ítem como eliminado. Falla si tiene reservas ACTIVE.
func (uc *StockLedgerUseCase) SoftDeleteItem(ctx context.Context, actor domain.Actor, itemID string) error {
	return uc.toggleDeleted(ctx, actor, itemID, true)
}

// RestoreItem quita la marca de borrado lógico.
func (uc *StockLedgerUseCase) RestoreItem(ctx context.Context, actor domain.Actor, itemID string) error {
	return uc.toggleDeleted(ctx, actor, itemID, false)
}

func (uc *StockLedgerUseCase) toggleDeleted(ctx context.Context, actor domain.Actor, itemID string, deleted bool) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	return uc.audit.InTx(ctx, uc.txRunner, func(repos repository.Set, events *audit.Batch) error {
		item, err := repos.Items.GetForUpdate(ctx, actor.CompanyID, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.NewNotFound("ítem no encontrado")
		}
		if deleted && item.IsDeleted() {
			return domain.NewBusinessRule("el ítem ya está eliminado")
		}
		if !deleted && !item.IsDeleted() {
			return domain.NewBusinessRule("el ítem no está eliminado")
		}
		active, err := repos.Reservations.CountActiveByItem(ctx, actor.CompanyID, item.ID)
		if err != nil {
			return err
		}
		if active > 0 {
			return domain.NewBusinessRule("el ítem tiene reservas activas")
		}
		before := *item
		now := time.Now().UTC()
		action := "stock_item.restore"
		if deleted {
			item.DeletedAt = &now
			action = "stock_item.delete"
		} else {
			item.DeletedAt = nil
		}
		item.UpdatedAt = now
		if err := repos.Items.Update(ctx, item); err != nil {
			return err
		}
		return events.Record(ctx, actor, action, "stock_item", item.ID, &before, item, nil)
	})
}

// GetItem obtiene un ítem de la empresa. Los eliminados solo se devuelven con includeDeleted.
func (uc *StockLedgerUseCase) GetItem(ctx context.Context, actor domain.Actor, itemID string, includeDeleted bool) (*entity.StockItem, error) {
	if err := checkRead(actor, includeDeleted); err != nil {
		return nil, err
	}
	item, err := uc.repos.Items.GetByID(ctx, actor.CompanyID, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil || (item.IsDeleted() && !includeDeleted) {
		return nil, domain.NewNotFound("ítem no encontrado")
	}
	return item, nil
}

// ListItems lista los ítems de la empresa.
func (uc *StockLedgerUseCase) ListItems(ctx context.Context, actor domain.Actor, filter repository.StockItemFilter, page dto.PageRequest) ([]*entity.StockItem, error) {
	if err := checkRead(actor, filter.IncludeDeleted); err != nil {
		return nil, err
	}
	page.DefaultPage()
	return uc.repos.Items.List(ctx, actor.CompanyID, filter, page.Limit, page.Offset)
}

// ListMovements lista el ledger de la empresa (más recientes primero).
func (uc *StockLedgerUseCase) ListMovements(ctx context.Context, actor domain.Actor, filter repository.MovementFilter, page dto.PageRequest) ([]*entity.StockMovement, error) {
	if err := checkRead(actor, false); err != nil {
		return nil, err
	}
	page.DefaultPage()
	return uc.repos.Movements.List(ctx, actor.CompanyID, filter, page.Limit, page.Offset)
}

// consumeQuantity descuenta qty del ítem bloqueado al confirmar una reserva y escribe el CONFIRM.
// Llama a markSold cuando corresponde.
func consumeQuantity(ctx context.Context, repos repository.Set, actor domain.Actor, item *entity.StockItem, res *entity.StockReservation, now time.Time) (*entity.StockMovement, error) {
	before := item.Quantity
	after := before.Sub(res.Quantity)
	if after.IsNegative() {
		return nil, domain.NewBusinessRule("la confirmación dejaría la cantidad en negativo")
	}
	item.Quantity = after
	markSold(item)
	item.UpdatedAt = now
	if err := repos.Items.Update(ctx, item); err != nil {
		return nil, err
	}
	resID := res.ID
	mov := &entity.StockMovement{
		ID:             uuid.New().String(),
		CompanyID:      item.CompanyID,
		StockItemID:    item.ID,
		Type:           entity.MovementTypeConfirm,
		Quantity:       res.Quantity.Neg(),
		QuantityBefore: before,
		QuantityAfter:  item.Quantity,
		Reason:         "confirmación de reserva",
		ReservationID:  &resID,
		CreatedBy:      actor.UserID,
		CreatedAt:      now,
	}
	if res.SaleID != nil {
		mov.Metadata = map[string]any{"sale_id": *res.SaleID}
	}
	if err := repos.Movements.Create(ctx, mov); err != nil {
		return nil, err
	}
	return mov, nil
}

// markSold deja el ítem serializado en SOLD cuando su cantidad llegó exactamente a cero.
// Los lotes conservan su estado aunque queden en cero.
func markSold(item *entity.StockItem) bool {
	if !item.IsSerialized() || !item.Quantity.IsZero() {
		return false
	}
	item.Quantity = decimal.Zero
	item.Status = entity.ItemStatusSold
	return true
}

// checkRead valida el actor y que includeDeleted solo lo use un rol autorizado.
func checkRead(actor domain.Actor, includeDeleted bool) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if includeDeleted && !actor.CanSeeDeleted() {
		return domain.NewForbidden("solo un administrador puede consultar registros eliminados")
	}
	return nil
}
