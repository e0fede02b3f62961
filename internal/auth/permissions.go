package auth

// Permission keys gate individual operations. Handlers check permissions,
// never the raw role string.
const (
	PermSocietyCreate  = "society.create"
	PermSocietyManage  = "society.member.add"
	PermChargeCreate   = "billing.charge.create"
	PermChargeList     = "billing.charge.list"
	PermSettlementView = "billing.settlement.view"
	PermSettlementPay  = "billing.settlement.pay"
	PermDocumentUpload = "document.upload"
)

// rolePermissions resolves the permission set granted by each role. The super
// admin provisions societies; a society admin (manager) runs billing for it;
// members view and settle their own obligations.
var rolePermissions = map[Role][]string{
	RoleSuperAdmin: {
		PermSocietyCreate, PermSocietyManage,
		PermChargeCreate, PermChargeList,
		PermSettlementView, PermSettlementPay,
		PermDocumentUpload,
	},
	RoleAdmin: {
		PermSocietyManage,
		PermChargeCreate, PermChargeList,
		PermSettlementView,
		PermDocumentUpload,
	},
	RoleMember: {
		PermSettlementView, PermSettlementPay,
	},
}

// PermissionsForRole returns the permission set for a role.
func PermissionsForRole(role Role) map[string]struct{} {
	keys := rolePermissions[role]
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// Principal represents an authenticated identity with resolved permissions.
type Principal struct {
	User        *User
	Permissions map[string]struct{}
}

// NewPrincipal constructs a principal with permissions derived from the role.
func NewPrincipal(user *User) Principal {
	return Principal{User: user, Permissions: PermissionsForRole(user.Role)}
}

// HasPermission reports whether the principal can execute the action
// identified by key.
func (p Principal) HasPermission(key string) bool {
	_, ok := p.Permissions[key]
	return ok
}
