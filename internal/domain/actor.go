package domain

// Roles conocidos por el núcleo. Solo admin puede consultar registros eliminados.
const (
	RoleAdmin     = "admin"
	RoleBodeguero = "bodeguero"
	RoleVendedor  = "vendedor"
	RoleSystem    = "system"
)

// Actor es el contexto de autorización explícito que recibe cada operación del núcleo.
// El núcleo confía en estos datos y no vuelve a derivar la identidad.
type Actor struct {
	CompanyID string
	UserID    string
	Role      string
	RequestID string
}

// CanSeeDeleted indica si el actor puede pedir registros con borrado lógico.
func (a Actor) CanSeeDeleted() bool {
	return a.Role == RoleAdmin || a.Role == RoleSystem
}

// Validate exige tenant y usuario.
func (a Actor) Validate() error {
	if a.CompanyID == "" || a.UserID == "" {
		return &Error{Kind: ErrUnauthorized, Message: "contexto de autorización incompleto"}
	}
	return nil
}

// SystemActor construye el actor usado por procesos internos (barrido de expiración).
func SystemActor(companyID string) Actor {
	return Actor{CompanyID: companyID, UserID: "system", Role: RoleSystem}
}
