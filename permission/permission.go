package permission

import "sort"

// Permission is a single capability atom checked before a privileged
// action. The set is closed: values outside this enumeration are rejected
// at the boundary by Valid rather than compared ad hoc as raw strings.
type Permission string

const (
	AccessSystem Permission = "access_system"

	ViewData   Permission = "view_data"
	ManageData Permission = "manage_data"

	ViewTrades    Permission = "view_trades"
	ManageTrades  Permission = "manage_trades"
	ExecuteTrades Permission = "execute_trades"

	ViewPortfolio   Permission = "view_portfolio"
	ManagePortfolio Permission = "manage_portfolio"

	ViewAIModels   Permission = "view_ai_models"
	ManageAIModels Permission = "manage_ai_models"
	TrainAIModels  Permission = "train_ai_models"

	ViewAlerts   Permission = "view_alerts"
	ManageAlerts Permission = "manage_alerts"

	ViewReports     Permission = "view_reports"
	ManageReports   Permission = "manage_reports"
	GenerateReports Permission = "generate_reports"

	ViewAnalytics Permission = "view_analytics"

	ViewUsers   Permission = "view_users"
	CreateUsers Permission = "create_users"
	EditUsers   Permission = "edit_users"
	ManageUsers Permission = "manage_users"

	ViewSessions   Permission = "view_sessions"
	ManageSessions Permission = "manage_sessions"

	ViewLogs     Permission = "view_logs"
	ManageSystem Permission = "manage_system"
)

var allPermissions = []Permission{
	AccessSystem,
	ViewData, ManageData,
	ViewTrades, ManageTrades, ExecuteTrades,
	ViewPortfolio, ManagePortfolio,
	ViewAIModels, ManageAIModels, TrainAIModels,
	ViewAlerts, ManageAlerts,
	ViewReports, ManageReports, GenerateReports,
	ViewAnalytics,
	ViewUsers, CreateUsers, EditUsers, ManageUsers,
	ViewSessions, ManageSessions,
	ViewLogs, ManageSystem,
}

var permissionSet = func() map[Permission]struct{} {
	m := make(map[Permission]struct{}, len(allPermissions))
	for _, p := range allPermissions {
		m[p] = struct{}{}
	}
	return m
}()

// All returns every permission in the enumeration, in a stable order.
func All() []Permission {
	out := make([]Permission, len(allPermissions))
	copy(out, allPermissions)
	return out
}

// Valid reports whether p is a member of the closed enumeration.
func Valid(p Permission) bool {
	_, ok := permissionSet[p]
	return ok
}

// String returns the wire form of the permission.
func (p Permission) String() string {
	return string(p)
}

// Set is an unordered collection of permissions.
type Set map[Permission]struct{}

// NewSet builds a Set from the given permissions.
func NewSet(perms ...Permission) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// Has reports whether p is in the set.
func (s Set) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Add inserts every permission from other into s.
func (s Set) Add(other Set) {
	for p := range other {
		s[p] = struct{}{}
	}
}

// Sorted returns the set's members in lexicographic order.
func (s Set) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}
