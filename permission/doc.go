// Package permission defines the closed permission enumeration, the
// built-in role set, and role hierarchy resolution for authcore.
//
// Permissions are capability atoms validated once at the boundary; roles
// are typed names carrying a permission set and an optional parent. A
// role's effective permission set is the union of its own permissions and
// every ancestor's, resolved with cycle protection.
package permission
