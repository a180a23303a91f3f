package repository

// Set agrupa los repositorios atados a una misma transacción.
type Set struct {
	Items        StockItemRepository
	Reservations ReservationRepository
	Movements    StockMovementRepository
	Sales        SaleRepository
	Outbox       AuditOutboxRepository
}
