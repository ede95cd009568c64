package kc

// Credential is a write-only secret attached to a user on creation or
// password reset. Keycloak never returns credentials on reads.
type Credential struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

// PasswordCredential builds a password credential.
func PasswordCredential(value string, temporary bool) Credential {
	return Credential{Type: "password", Value: value, Temporary: temporary}
}

// User is a Keycloak user representation. ID is assigned by the backend and
// is empty on values that have not been created yet. Roles and Groups are nil
// on base records and non-nil (possibly empty) after enrichment.
type User struct {
	ID          string       `json:"id,omitempty"`
	Username    string       `json:"username"`
	FirstName   string       `json:"firstName,omitempty"`
	LastName    string       `json:"lastName,omitempty"`
	Email       string       `json:"email,omitempty"`
	Enabled     bool         `json:"enabled"`
	Credentials []Credential `json:"credentials,omitempty"`
	Roles       []Role       `json:"roles,omitempty"`
	Groups      []Group      `json:"groups,omitempty"`
}

// Group is a Keycloak group representation. Roles and Members are nil on base
// records and non-nil after enrichment.
type Group struct {
	ID         string              `json:"id,omitempty"`
	Name       string              `json:"name"`
	Path       string              `json:"path,omitempty"`
	Attributes map[string][]string `json:"attributes,omitempty"`
	Roles      []Role              `json:"roles,omitempty"`
	Members    []User              `json:"members,omitempty"`
}

// Role is a Keycloak realm role representation. Role-mapping payloads
// reference roles by the id+name pair; the remaining fields are informational.
type Role struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Composite   bool   `json:"composite,omitempty"`
	ClientRole  bool   `json:"clientRole,omitempty"`
	ContainerID string `json:"containerId,omitempty"`
}

// Ref returns the id+name pair Keycloak expects in role-mapping payloads.
func (r Role) Ref() Role {
	return Role{ID: r.ID, Name: r.Name}
}
