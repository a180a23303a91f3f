package dto

// Límites de paginación de los listados.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// PageRequest paginación para listados (limit/offset del query string).
type PageRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// NewPageRequest arma la página ya normalizada.
func NewPageRequest(limit, offset int) PageRequest {
	p := PageRequest{Limit: limit, Offset: offset}
	p.DefaultPage()
	return p
}

// DefaultPage normaliza la página: Limit <= 0 usa DefaultPageLimit, Limit se recorta a MaxPageLimit
// y un Offset negativo pasa a 0.
func (p *PageRequest) DefaultPage() {
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultPageLimit
	case p.Limit > MaxPageLimit:
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
