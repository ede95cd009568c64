package role

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tendant/keycloak-admin/pkg/group"
	"github.com/tendant/keycloak-admin/pkg/kc"
	"github.com/tendant/keycloak-admin/pkg/user"
)

// setupKeycloak starts a disposable Keycloak in dev mode and returns a
// gateway scoped to the master realm.
func setupKeycloak(t *testing.T) *kc.Client {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "quay.io/keycloak/keycloak:24.0",
			ExposedPorts: []string{"8080/tcp"},
			Cmd:          []string{"start-dev"},
			Env: map[string]string{
				"KEYCLOAK_ADMIN":          "admin",
				"KEYCLOAK_ADMIN_PASSWORD": "admin",
			},
			WaitingFor: wait.ForHTTP("/realms/master").
				WithPort("8080/tcp").
				WithStartupTimeout(3 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "8080/tcp")
	require.NoError(t, err)
	baseURL := fmt.Sprintf("http://%s:%s", host, port.Port())

	tokens := kc.NewPasswordTokenSource(baseURL, "master", "admin-cli", "admin", "admin")
	return kc.NewClient(kc.Config{
		BaseURL:  baseURL,
		Realm:    "master",
		ClientID: "admin-cli",
	}, tokens)
}

func TestAdminRoundTrip(t *testing.T) {
	if os.Getenv("KC_INTEGRATION_TEST") == "" {
		t.Skip("set KC_INTEGRATION_TEST to run against a Keycloak container")
	}

	client := setupKeycloak(t)
	ctx := context.Background()

	userService := user.NewService(client,
		user.WithRealmContext(client.Realm(), client.ClientID()))
	groupService := group.NewService(client, userService,
		group.WithRealmContext(client.Realm(), client.ClientID()))
	roleService := NewService(client, groupService,
		WithRealmContext(client.Realm(), client.ClientID()))

	createdRole, err := roleService.CreateRole(ctx, kc.Role{Name: "tenant-admin", Description: "tenant administration"})
	require.NoError(t, err)
	assert.NotEmpty(t, createdRole.ID)

	createdGroup, err := groupService.CreateTenantGroup(ctx, "TENANT_acme")
	require.NoError(t, err)
	assert.Equal(t, []string{"acme"}, createdGroup.Attributes[group.TenantAttribute])

	_, err = groupService.AddGroupRoles(ctx, "TENANT_acme", "tenant-admin")
	require.NoError(t, err)

	createdUser, err := userService.CreateUser(ctx, kc.User{
		Username:    "mrrectangule",
		Email:       "rect@example.com",
		Enabled:     true,
		Credentials: []kc.Credential{kc.PasswordCredential("s3cret", false)},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, createdUser.ID)
	assert.Equal(t, "rect@example.com", createdUser.Email)
	assert.NotNil(t, createdUser.Roles)

	// Duplicate creation surfaces the upstream conflict.
	_, err = userService.CreateUser(ctx, kc.User{Username: "mrrectangule"})
	require.Error(t, err)

	_, err = groupService.AddUserToGroup(ctx, "mrrectangule", "TENANT_acme")
	require.NoError(t, err)

	// The role flows to the user through the group.
	effective, err := roleService.EffectiveUsers(ctx, "tenant-admin")
	require.NoError(t, err)
	var usernames []string
	for _, u := range effective {
		usernames = append(usernames, u.Username)
	}
	assert.Contains(t, usernames, "mrrectangule")

	enriched, err := userService.GetUser(ctx, "mrrectangule")
	require.NoError(t, err)
	var groupNames []string
	for _, g := range enriched.Groups {
		groupNames = append(groupNames, g.Name)
	}
	assert.Contains(t, groupNames, "TENANT_acme")

	deleted, err := userService.DeleteUser(ctx, "mrrectangule")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = userService.DeleteUser(ctx, "mrrectangule")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = groupService.DeleteGroup(ctx, "TENANT_acme")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = roleService.DeleteRole(ctx, "tenant-admin")
	require.NoError(t, err)
	assert.True(t, deleted)
}
