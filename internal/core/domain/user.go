package domain

const (
	RoleAdmin  = "Administrador"
	RoleSeller = "Vendedor"
)

// Identity is what a successful login hands to the presentation layer.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// CredentialCheck is the raw outcome of validating a username/password pair.
// Role and UserID are zero unless OK is true.
type CredentialCheck struct {
	OK     bool
	Role   string
	UserID int64
}
