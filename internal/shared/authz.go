package shared

// Claims understood by the storefront authorizer.
const (
	ClaimAdmin    = "admin"
	ClaimCustomer = "customer"
)

// Principal identifies the signed-in caller.
type Principal struct {
	UserID string
	Email  string
}

// Anonymous reports whether no user is bound.
func (p Principal) Anonymous() bool {
	return p.UserID == ""
}
