package permission

import "errors"

// RoleName identifies a role. Built-in role names are constants below;
// custom roles introduce new names at runtime.
type RoleName string

const (
	RoleGuest      RoleName = "guest"
	RoleUser       RoleName = "user"
	RoleTrader     RoleName = "trader"
	RoleAnalyst    RoleName = "analyst"
	RoleManager    RoleName = "manager"
	RoleAdmin      RoleName = "admin"
	RoleSuperAdmin RoleName = "super_admin"
)

// ErrRoleCycle is returned when hierarchy resolution detects a role that
// is (transitively) its own ancestor.
var ErrRoleCycle = errors.New("role hierarchy cycle detected")

// Definition describes one role: its identity, display metadata, direct
// permission set, and optional parent in the hierarchy.
type Definition struct {
	Name        RoleName
	DisplayName string
	Description string
	Permissions Set
	ParentRole  RoleName // empty for hierarchy roots
}

var builtinRoles = map[RoleName]Definition{
	RoleGuest: {
		Name:        RoleGuest,
		DisplayName: "Guest",
		Description: "Limited read-only access to public information",
		Permissions: NewSet(AccessSystem, ViewData),
	},
	RoleUser: {
		Name:        RoleUser,
		DisplayName: "User",
		Description: "Basic user with limited trading capabilities",
		Permissions: NewSet(
			AccessSystem, ViewData,
			ViewTrades, ViewPortfolio, ViewAlerts, ViewReports,
		),
		ParentRole: RoleGuest,
	},
	RoleTrader: {
		Name:        RoleTrader,
		DisplayName: "Trader",
		Description: "Active trader with full trading capabilities",
		Permissions: NewSet(
			AccessSystem, ViewData,
			ViewTrades, ExecuteTrades,
			ViewPortfolio, ManagePortfolio,
			ViewAlerts, ManageAlerts,
			ViewReports, GenerateReports,
		),
		ParentRole: RoleUser,
	},
	RoleAnalyst: {
		Name:        RoleAnalyst,
		DisplayName: "Analyst",
		Description: "Data analyst with advanced analysis capabilities",
		Permissions: NewSet(
			AccessSystem, ViewData, ManageData,
			ViewTrades, ViewPortfolio,
			ViewAIModels, TrainAIModels,
			ViewAlerts, ViewReports, GenerateReports,
		),
		ParentRole: RoleUser,
	},
	RoleManager: {
		Name:        RoleManager,
		DisplayName: "Manager",
		Description: "Team manager with oversight capabilities",
		Permissions: NewSet(
			AccessSystem, ViewData, ManageData,
			ViewTrades, ManageTrades,
			ViewPortfolio, ManagePortfolio,
			ViewAIModels, ManageAIModels,
			ViewAlerts, ManageAlerts,
			ViewReports, ManageReports,
			ViewUsers, ViewSessions,
		),
		ParentRole: RoleTrader,
	},
	RoleAdmin: {
		Name:        RoleAdmin,
		DisplayName: "Administrator",
		Description: "System administrator with full system access",
		Permissions: NewSet(
			AccessSystem, ViewData, ManageData,
			ViewTrades, ManageTrades,
			ViewPortfolio, ManagePortfolio,
			ViewAIModels, ManageAIModels,
			ViewAlerts, ManageAlerts,
			ViewReports, ManageReports,
			ViewUsers, CreateUsers, EditUsers, ManageUsers,
			ViewSessions, ManageSessions,
			ViewLogs, ManageSystem,
		),
		ParentRole: RoleManager,
	},
	RoleSuperAdmin: {
		Name:        RoleSuperAdmin,
		DisplayName: "Super Administrator",
		Description: "Super administrator with all permissions",
		Permissions: NewSet(allPermissions...),
		ParentRole:  RoleAdmin,
	},
}

// BuiltinRoles returns the built-in role definitions keyed by name. The
// returned map is a copy; permission sets are cloned so callers cannot
// mutate the canonical definitions.
func BuiltinRoles() map[RoleName]Definition {
	out := make(map[RoleName]Definition, len(builtinRoles))
	for name, def := range builtinRoles {
		def.Permissions = def.Permissions.Clone()
		out[name] = def
	}
	return out
}

// IsBuiltin reports whether name is one of the system roles.
func IsBuiltin(name RoleName) bool {
	_, ok := builtinRoles[name]
	return ok
}

// Hierarchy returns the built-in role hierarchy as child → parent.
// Hierarchy roots map to the empty RoleName.
func Hierarchy() map[RoleName]RoleName {
	out := make(map[RoleName]RoleName, len(builtinRoles))
	for name, def := range builtinRoles {
		out[name] = def.ParentRole
	}
	return out
}

// Lookup resolves a role name against the given definition map, falling
// back to the built-in roles.
type Lookup func(RoleName) (Definition, bool)

// BuiltinLookup is a Lookup over the built-in roles only.
func BuiltinLookup(name RoleName) (Definition, bool) {
	def, ok := builtinRoles[name]
	return def, ok
}

// EffectivePermissions resolves the full permission set for a role: its
// direct permissions united with every ancestor's, walking ParentRole
// until a root. A visited set guards against cycles; on a cycle the
// resolution fails with ErrRoleCycle rather than looping or crashing.
func EffectivePermissions(name RoleName, lookup Lookup) (Set, error) {
	if lookup == nil {
		lookup = BuiltinLookup
	}

	result := NewSet()
	visited := make(map[RoleName]struct{})

	current := name
	for current != "" {
		if _, seen := visited[current]; seen {
			return nil, ErrRoleCycle
		}
		visited[current] = struct{}{}

		def, ok := lookup(current)
		if !ok {
			// Unknown ancestor terminates the walk; permissions gathered
			// so far still apply.
			break
		}

		result.Add(def.Permissions)
		current = def.ParentRole
	}

	return result, nil
}
