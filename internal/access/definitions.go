package access

// Canonical administrative permission codes. ScopeResolver treats these as the
// single source of truth for admin status; no structural heuristics.
const (
	PermSystemAdmin        = "system.admin"
	PermOrganizationManage = "organization.manage"
	PermDepartmentManage   = "department.manage"
	PermDepartmentViewAll  = "department.view_all"
)

func init() {
	defs := []*Definition{
		{
			Code:        PermSystemAdmin,
			Group:       "platform",
			Description: "Full platform access, bypasses all scope restrictions",
		},
		{
			Code:        "organization.view",
			Group:       "tenancy",
			Description: "View organizations",
		},
		{
			Code:        PermOrganizationManage,
			Group:       "tenancy",
			Description: "Create and manage organizations",
		},
		{
			Code:        "department.view",
			Group:       "tenancy",
			Description: "View departments",
		},
		{
			Code:        PermDepartmentManage,
			Group:       "tenancy",
			Description: "Create and manage departments",
		},
		{
			Code:        PermDepartmentViewAll,
			Group:       "tenancy",
			Description: "View data across all departments of the organization",
		},
		{
			Code:        "user.view",
			Group:       "identity",
			Description: "View users",
		},
		{
			Code:        "user.create",
			Group:       "identity",
			Description: "Create new users",
		},
		{
			Code:        "user.edit",
			Group:       "identity",
			Description: "Edit existing users",
		},
		{
			Code:        "user.delete",
			Group:       "identity",
			Description: "Delete users",
		},
		{
			Code:        "role.view",
			Group:       "accesscontrol",
			Description: "View roles",
		},
		{
			Code:        "role.manage",
			Group:       "accesscontrol",
			Description: "Create roles and assign them to users",
		},
		{
			Code:        "permission.view",
			Group:       "accesscontrol",
			Description: "View permissions and overrides",
		},
		{
			Code:        "permission.manage",
			Group:       "accesscontrol",
			Description: "Grant and revoke permission overrides",
		},
		{
			Code:        "device.view",
			Group:       "fleet",
			Description: "View devices",
		},
		{
			Code:        "device.create",
			Group:       "fleet",
			Description: "Register new devices",
		},
		{
			Code:        "device.edit",
			Group:       "fleet",
			Description: "Edit device metadata and connectivity settings",
		},
		{
			Code:        "device.delete",
			Group:       "fleet",
			Description: "Decommission devices",
		},
		{
			Code:        "device_model.view",
			Group:       "fleet",
			Description: "View device models",
		},
		{
			Code:        "device_model.manage",
			Group:       "fleet",
			Description: "Manage device models",
		},
		{
			Code:        "warranty.view",
			Group:       "fleet",
			Description: "View device warranty status",
		},
		{
			Code:        "warranty.manage",
			Group:       "fleet",
			Description: "Update device warranty records",
		},
		{
			Code:        "telemetry.view",
			Group:       "telemetry",
			Description: "Read device telemetry",
		},
		{
			Code:        "telemetry.export",
			Group:       "telemetry",
			Description: "Export telemetry readings",
		},
		{
			Code:        "audit.view",
			Group:       "platform",
			Description: "View audit logs",
		},
	}

	for _, def := range defs {
		if err := Register(def); err != nil {
			panic(err)
		}
	}
}
