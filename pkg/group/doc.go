// Package group implements group administration: tenant group creation,
// paginated member listing, role management, and user membership changes.
package group
