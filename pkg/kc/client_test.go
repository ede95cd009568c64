package kc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens string

func (s staticTokens) Token(ctx context.Context) (string, error) {
	return string(s), nil
}

// recordingServer captures the last request and replies with a canned
// status and body.
type recordingServer struct {
	*httptest.Server
	lastMethod string
	lastPath   string
	lastQuery  map[string][]string
	lastAuth   string
	lastBody   []byte
	status     int
	response   string
}

func newRecordingServer(t *testing.T) *recordingServer {
	rs := &recordingServer{status: http.StatusOK}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.lastMethod = r.Method
		rs.lastPath = r.URL.Path
		rs.lastQuery = r.URL.Query()
		rs.lastAuth = r.Header.Get("Authorization")
		rs.lastBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(rs.status)
		w.Write([]byte(rs.response))
	}))
	t.Cleanup(rs.Close)
	return rs
}

func newTestClient(srv *recordingServer) *Client {
	return NewClient(Config{
		BaseURL:  srv.URL,
		Realm:    "trikora",
		ClientID: "admin-cli",
	}, staticTokens("token-abc"))
}

func TestFindUsersRequestShape(t *testing.T) {
	srv := newRecordingServer(t)
	srv.response = `[{"id":"u1","username":"mrrectangule","enabled":true}]`
	c := newTestClient(srv)

	users, err := c.FindUsers(context.Background(), "mrrectangule", true, 0, 2)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "mrrectangule", users[0].Username)

	assert.Equal(t, http.MethodGet, srv.lastMethod)
	assert.Equal(t, "/admin/realms/trikora/users", srv.lastPath)
	assert.Equal(t, "mrrectangule", srv.lastQuery["username"][0])
	assert.Equal(t, "true", srv.lastQuery["exact"][0])
	assert.Equal(t, "0", srv.lastQuery["first"][0])
	assert.Equal(t, "2", srv.lastQuery["max"][0])
	assert.Equal(t, "admin-cli", srv.lastQuery["client_id"][0])
	assert.Equal(t, "Bearer token-abc", srv.lastAuth)
}

func TestCreateUserSendsRepresentation(t *testing.T) {
	srv := newRecordingServer(t)
	srv.status = http.StatusCreated
	c := newTestClient(srv)

	err := c.CreateUser(context.Background(), User{Username: "mrrectangule", Email: "rect@example.com", Enabled: true})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, srv.lastMethod)
	assert.Equal(t, "/admin/realms/trikora/users", srv.lastPath)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(srv.lastBody, &sent))
	assert.Equal(t, "mrrectangule", sent["username"])
	assert.Equal(t, "rect@example.com", sent["email"])
	assert.Equal(t, true, sent["enabled"])
}

func TestErrorStatusBecomesAPIError(t *testing.T) {
	srv := newRecordingServer(t)
	srv.status = http.StatusConflict
	srv.response = `{"errorMessage":"User exists with same username"}`
	c := newTestClient(srv)

	err := c.CreateUser(context.Background(), User{Username: "mrrectangule"})
	require.Error(t, err)

	assert.Equal(t, http.StatusConflict, StatusOf(err))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.MethodPost, apiErr.Method)
	assert.Equal(t, "/users", apiErr.Path)
	assert.Contains(t, apiErr.Body, "User exists")
}

func TestResetPasswordPath(t *testing.T) {
	srv := newRecordingServer(t)
	srv.status = http.StatusNoContent
	c := newTestClient(srv)

	err := c.ResetPassword(context.Background(), "u1", PasswordCredential("s3cret", true))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, srv.lastMethod)
	assert.Equal(t, "/admin/realms/trikora/users/u1/reset-password", srv.lastPath)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(srv.lastBody, &sent))
	assert.Equal(t, "password", sent["type"])
	assert.Equal(t, "s3cret", sent["value"])
	assert.Equal(t, true, sent["temporary"])
}

func TestUserRolesUsesCompositeEndpoint(t *testing.T) {
	srv := newRecordingServer(t)
	srv.response = `[{"id":"r1","name":"tenant-admin"}]`
	c := newTestClient(srv)

	roles, err := c.UserRoles(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "/admin/realms/trikora/users/u1/role-mappings/realm/composite", srv.lastPath)
}

func TestGroupMembersPaging(t *testing.T) {
	srv := newRecordingServer(t)
	srv.response = `[]`
	c := newTestClient(srv)

	_, err := c.GroupMembers(context.Background(), "g1", 50, 25)
	require.NoError(t, err)
	assert.Equal(t, "/admin/realms/trikora/groups/g1/members", srv.lastPath)
	assert.Equal(t, "50", srv.lastQuery["first"][0])
	assert.Equal(t, "25", srv.lastQuery["max"][0])
}

func TestRoleEndpointsByNameAndID(t *testing.T) {
	srv := newRecordingServer(t)
	srv.response = `[]`
	c := newTestClient(srv)

	_, err := c.RoleUsers(context.Background(), "tenant-admin")
	require.NoError(t, err)
	assert.Equal(t, "/admin/realms/trikora/roles/tenant-admin/users", srv.lastPath)

	_, err = c.RoleGroups(context.Background(), "tenant-admin")
	require.NoError(t, err)
	assert.Equal(t, "/admin/realms/trikora/roles/tenant-admin/groups", srv.lastPath)

	srv.status = http.StatusNoContent
	srv.response = ""
	require.NoError(t, c.DeleteRole(context.Background(), "r1"))
	assert.Equal(t, "/admin/realms/trikora/roles-by-id/r1", srv.lastPath)
	assert.Equal(t, http.MethodDelete, srv.lastMethod)
}

func TestRoleByName(t *testing.T) {
	srv := newRecordingServer(t)
	srv.response = `{"id":"r1","name":"tenant-admin"}`
	c := newTestClient(srv)

	role, err := c.RoleByName(context.Background(), "tenant-admin")
	require.NoError(t, err)
	assert.Equal(t, "/admin/realms/trikora/roles/tenant-admin", srv.lastPath)
	assert.Equal(t, "r1", role.ID)

	srv.status = http.StatusNotFound
	srv.response = `{"error":"Could not find role"}`
	_, err = c.RoleByName(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
}

func TestFindRolesSearchParam(t *testing.T) {
	srv := newRecordingServer(t)
	srv.response = `[{"id":"r1","name":"tenant-admin"}]`
	c := newTestClient(srv)

	roles, err := c.FindRoles(context.Background(), "tenant")
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "/admin/realms/trikora/roles", srv.lastPath)
	assert.Equal(t, "tenant", srv.lastQuery["search"][0])
}

func TestGroupAttributesRoundTrip(t *testing.T) {
	srv := newRecordingServer(t)
	srv.status = http.StatusCreated
	c := newTestClient(srv)

	err := c.CreateGroup(context.Background(), Group{
		Name:       "TENANT_acme",
		Attributes: map[string][]string{"tkr-tenant": {"acme"}},
	})
	require.NoError(t, err)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(srv.lastBody, &sent))
	attrs := sent["attributes"].(map[string]any)
	assert.Equal(t, []any{"acme"}, attrs["tkr-tenant"])
}

func TestMembershipEndpoints(t *testing.T) {
	srv := newRecordingServer(t)
	srv.status = http.StatusNoContent
	c := newTestClient(srv)

	require.NoError(t, c.AddUserToGroup(context.Background(), "u1", "g1"))
	assert.Equal(t, http.MethodPut, srv.lastMethod)
	assert.Equal(t, "/admin/realms/trikora/users/u1/groups/g1", srv.lastPath)

	require.NoError(t, c.RemoveUserFromGroup(context.Background(), "u1", "g1"))
	assert.Equal(t, http.MethodDelete, srv.lastMethod)
}

func TestTokenSourceFailureShortCircuits(t *testing.T) {
	srv := newRecordingServer(t)
	c := NewClient(Config{BaseURL: srv.URL, Realm: "trikora", ClientID: "admin-cli"},
		failingTokens{})

	_, err := c.FindUsers(context.Background(), "mrrectangule", true, 0, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acquire token")
	assert.Empty(t, srv.lastMethod)
}

type failingTokens struct{}

func (failingTokens) Token(ctx context.Context) (string, error) {
	return "", assert.AnError
}
