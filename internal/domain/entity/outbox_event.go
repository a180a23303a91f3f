package entity

import "time"

// OutboxEvent evento de auditoría escrito en la misma transacción que la mutación que lo originó.
// El relay lo entrega al sink después del commit y lo marca como publicado.
type OutboxEvent struct {
	ID          string
	CompanyID   string
	Action      string
	EntityType  string
	EntityID    string
	Payload     []byte // Event serializado en JSON
	CreatedAt   time.Time
	PublishedAt *time.Time
	RetryCount  int
	LastError   string
}

// IsPublished indica si el evento ya se entregó.
func (e *OutboxEvent) IsPublished() bool {
	return e.PublishedAt != nil
}

// ShouldRetry indica si el relay debe volver a intentarlo.
func (e *OutboxEvent) ShouldRetry(maxRetries int) bool {
	return !e.IsPublished() && (maxRetries <= 0 || e.RetryCount < maxRetries)
}
