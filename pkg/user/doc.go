// Package user implements user administration on top of the admin API
// gateway: lookups that must match exactly one username, creation with
// conflict translation, idempotent deletes, and role and group management.
package user
