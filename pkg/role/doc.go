// Package role implements realm role administration and effective role
// resolution, the fan-out that joins direct holders with members of every
// group the role is assigned to.
package role
