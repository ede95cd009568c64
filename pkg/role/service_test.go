package role

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kcerrors "github.com/tendant/keycloak-admin/pkg/errors"
	"github.com/tendant/keycloak-admin/pkg/kc"
)

// mockGateway is an in-memory stand-in for the admin API.
type mockGateway struct {
	roles      []kc.Role
	roleUsers  map[string][]kc.User
	roleGroups map[string][]kc.Group
	createErr  error
	usersErr   error
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		roleUsers:  map[string][]kc.User{},
		roleGroups: map[string][]kc.Group{},
	}
}

func (m *mockGateway) CreateRole(ctx context.Context, role kc.Role) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, r := range m.roles {
		if r.Name == role.Name {
			return &kc.APIError{StatusCode: 409, Method: "POST", Path: "/roles"}
		}
	}
	role.ID = uuid.New().String()
	m.roles = append(m.roles, role)
	return nil
}

func (m *mockGateway) UpdateRole(ctx context.Context, id string, role kc.Role) error {
	for i, r := range m.roles {
		if r.ID == id {
			role.ID = id
			m.roles[i] = role
			return nil
		}
	}
	return &kc.APIError{StatusCode: 404, Method: "PUT", Path: "/roles-by-id/" + id}
}

func (m *mockGateway) DeleteRole(ctx context.Context, id string) error {
	for i, r := range m.roles {
		if r.ID == id {
			m.roles = append(m.roles[:i], m.roles[i+1:]...)
			return nil
		}
	}
	return &kc.APIError{StatusCode: 404, Method: "DELETE", Path: "/roles-by-id/" + id}
}

func (m *mockGateway) RoleByName(ctx context.Context, name string) (kc.Role, error) {
	for _, r := range m.roles {
		if r.Name == name {
			return r, nil
		}
	}
	return kc.Role{}, &kc.APIError{StatusCode: 404, Method: "GET", Path: "/roles/" + name}
}

func (m *mockGateway) ListRoles(ctx context.Context, first, max int) ([]kc.Role, error) {
	if first >= len(m.roles) {
		return nil, nil
	}
	roles := m.roles[first:]
	if len(roles) > max {
		roles = roles[:max]
	}
	return roles, nil
}

func (m *mockGateway) RoleUsers(ctx context.Context, roleName string) ([]kc.User, error) {
	if m.usersErr != nil {
		return nil, m.usersErr
	}
	return m.roleUsers[roleName], nil
}

func (m *mockGateway) RoleGroups(ctx context.Context, roleName string) ([]kc.Group, error) {
	return m.roleGroups[roleName], nil
}

func (m *mockGateway) addRole(name string) kc.Role {
	r := kc.Role{ID: uuid.New().String(), Name: name}
	m.roles = append(m.roles, r)
	return r
}

// mockMembers satisfies MemberLister with fixed member lists per group
// name. Group names in failing report an error.
type mockMembers struct {
	byGroup map[string][]kc.User
	failing map[string]bool
}

func (m *mockMembers) Members(ctx context.Context, name string, first, limit int) ([]kc.User, error) {
	if m.failing[name] {
		return nil, kcerrors.NotFound(kcerrors.ErrCodeGroupNotFound, "group", name)
	}
	return m.byGroup[name], nil
}

func namedUser(id, username string) kc.User {
	return kc.User{ID: id, Username: username}
}

func TestCreateRole(t *testing.T) {
	gw := newMockGateway()
	svc := NewService(gw, &mockMembers{}, WithRealmContext("trikora", "admin-cli"))

	created, err := svc.CreateRole(context.Background(), kc.Role{Name: "tenant-admin", Description: "tenant administration"})
	require.NoError(t, err)
	assert.Equal(t, "tenant-admin", created.Name)
	assert.NotEmpty(t, created.ID)
}

func TestCreateRoleDuplicate(t *testing.T) {
	gw := newMockGateway()
	gw.addRole("tenant-admin")
	svc := NewService(gw, &mockMembers{})

	_, err := svc.CreateRole(context.Background(), kc.Role{Name: "tenant-admin"})
	require.Error(t, err)
	assert.True(t, kcerrors.IsCode(err, kcerrors.ErrCodeRoleAlreadyExists))
}

func TestGetRolePrefixOfSibling(t *testing.T) {
	gw := newMockGateway()
	gw.addRole("admin")
	gw.addRole("admin-readonly")
	svc := NewService(gw, &mockMembers{})

	// A role whose name prefixes a sibling's must still resolve.
	role, err := svc.GetRole(context.Background(), "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", role.Name)
}

func TestGetRoleNotFound(t *testing.T) {
	gw := newMockGateway()
	gw.addRole("tenant-admin")
	svc := NewService(gw, &mockMembers{})

	_, err := svc.GetRole(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, kcerrors.IsCode(err, kcerrors.ErrCodeRoleNotFound))
}

func TestDeleteRoleIdempotent(t *testing.T) {
	gw := newMockGateway()
	gw.addRole("tenant-admin")
	svc := NewService(gw, &mockMembers{})

	deleted, err := svc.DeleteRole(context.Background(), "tenant-admin")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = svc.DeleteRole(context.Background(), "tenant-admin")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestListRolesWindow(t *testing.T) {
	gw := newMockGateway()
	for i := 0; i < 300; i++ {
		gw.addRole(fmt.Sprintf("role-%03d", i))
	}
	svc := NewService(gw, &mockMembers{}, WithBufferSize(100))

	roles, err := svc.ListRoles(context.Background(), 50, 75)
	require.NoError(t, err)
	assert.Len(t, roles, 25)
	assert.Equal(t, "role-050", roles[0].Name)

	roles, err = svc.ListRoles(context.Background(), 0, 300)
	require.NoError(t, err)
	assert.Len(t, roles, 300)
}

func TestAssignedUsers(t *testing.T) {
	gw := newMockGateway()
	gw.addRole("tenant-admin")
	gw.roleUsers["tenant-admin"] = []kc.User{namedUser("u1", "mrrectangule")}
	svc := NewService(gw, &mockMembers{})

	users, err := svc.AssignedUsers(context.Background(), "tenant-admin")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "mrrectangule", users[0].Username)
}

func TestAssignedUsersEmptyNonNil(t *testing.T) {
	gw := newMockGateway()
	gw.addRole("tenant-admin")
	svc := NewService(gw, &mockMembers{})

	users, err := svc.AssignedUsers(context.Background(), "tenant-admin")
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestEffectiveUsersMergesGroupsFirst(t *testing.T) {
	gw := newMockGateway()
	gw.addRole("tenant-admin")
	gw.roleUsers["tenant-admin"] = []kc.User{
		namedUser("u1", "direct-only"),
		namedUser("u2", "also-in-group"),
	}
	gw.roleGroups["tenant-admin"] = []kc.Group{
		{ID: "g1", Name: "alpha"},
		{ID: "g2", Name: "beta"},
	}
	members := &mockMembers{byGroup: map[string][]kc.User{
		"alpha": {namedUser("u2", "also-in-group"), namedUser("u3", "alpha-only")},
		"beta":  {namedUser("u3", "alpha-only"), namedUser("u4", "beta-only")},
	}}
	svc := NewService(gw, members)

	users, err := svc.EffectiveUsers(context.Background(), "tenant-admin")
	require.NoError(t, err)

	var ids []string
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	// Group members first in group order, duplicates collapsed to the
	// first occurrence, then direct holders not already present.
	assert.Equal(t, []string{"u2", "u3", "u4", "u1"}, ids)
}

func TestEffectiveUsersDirectOnly(t *testing.T) {
	gw := newMockGateway()
	gw.addRole("tenant-admin")
	gw.roleUsers["tenant-admin"] = []kc.User{namedUser("u1", "mrrectangule")}
	svc := NewService(gw, &mockMembers{})

	users, err := svc.EffectiveUsers(context.Background(), "tenant-admin")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "u1", users[0].ID)
}

func TestEffectiveUsersReportsEveryGroupFailure(t *testing.T) {
	gw := newMockGateway()
	gw.addRole("tenant-admin")
	gw.roleGroups["tenant-admin"] = []kc.Group{
		{ID: "g1", Name: "alpha"},
		{ID: "g2", Name: "beta"},
		{ID: "g3", Name: "gamma"},
	}
	members := &mockMembers{
		byGroup: map[string][]kc.User{"beta": {namedUser("u1", "mrrectangule")}},
		failing: map[string]bool{"alpha": true, "gamma": true},
	}
	svc := NewService(gw, members)

	_, err := svc.EffectiveUsers(context.Background(), "tenant-admin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alpha")
	assert.Contains(t, err.Error(), "gamma")
	assert.NotContains(t, err.Error(), "beta")
}

func TestEffectiveUsersUnknownRole(t *testing.T) {
	svc := NewService(newMockGateway(), &mockMembers{})

	_, err := svc.EffectiveUsers(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, kcerrors.IsCode(err, kcerrors.ErrCodeRoleNotFound))
}

func TestEffectiveUsersEmptyNonNil(t *testing.T) {
	gw := newMockGateway()
	gw.addRole("tenant-admin")
	svc := NewService(gw, &mockMembers{})

	users, err := svc.EffectiveUsers(context.Background(), "tenant-admin")
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}
