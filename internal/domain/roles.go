package domain

// Role is the closed set of organizational roles recognized by the
// procurement workflow. Authorization is a table lookup, never ad hoc
// string comparison in handlers.
type Role string

const (
	RoleUser             Role = "user"
	RoleInventoryManager Role = "inventory_manager"
	RoleManager          Role = "manager"
	RoleFinanceManager   Role = "finance_manager"
	RoleAdmin            Role = "admin"
)

// IsValid returns true for a recognized role
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleInventoryManager, RoleManager, RoleFinanceManager, RoleAdmin:
		return true
	}
	return false
}

// roleSet is a small allow-list used by the transition table
type roleSet []Role

func (s roleSet) contains(r Role) bool {
	if r == RoleAdmin {
		return true
	}
	for _, allowed := range s {
		if allowed == r {
			return true
		}
	}
	return false
}
