package kc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// TokenSource supplies a bearer token for admin API calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Config carries the connection settings for a Client.
type Config struct {
	// BaseURL is the Keycloak server root, e.g. "http://localhost:8090".
	BaseURL string
	// Realm all calls are scoped to.
	Realm string
	// ClientID identifies the calling application to the backend.
	ClientID string
	// HTTPClient is optional; a default with a 30s timeout is used when nil.
	HTTPClient *http.Client
}

// Client issues individual Keycloak admin REST operations. Each method maps
// to exactly one endpoint and each call is attempted exactly once.
type Client struct {
	httpClient *http.Client
	baseURL    string
	realm      string
	clientID   string
	tokens     TokenSource
}

// NewClient creates a gateway for the realm and client id in cfg.
func NewClient(cfg Config, tokens TokenSource) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		realm:      cfg.Realm,
		clientID:   cfg.ClientID,
		tokens:     tokens,
	}
}

// Realm returns the realm the client is scoped to.
func (c *Client) Realm() string { return c.realm }

// ClientID returns the application identifier the client is scoped to.
func (c *Client) ClientID() string { return c.clientID }

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("client_id", c.clientID)

	u := fmt.Sprintf("%s/admin/realms/%s%s?%s", c.baseURL, url.PathEscape(c.realm), path, query.Encode())

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return err
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Body:       string(respBody),
		}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func pageQuery(first, max int) url.Values {
	q := url.Values{}
	q.Set("first", strconv.Itoa(first))
	q.Set("max", strconv.Itoa(max))
	return q
}

// CreateUser registers a new user. The backend assigns the id.
func (c *Client) CreateUser(ctx context.Context, user User) error {
	return c.do(ctx, http.MethodPost, "/users", nil, user, nil)
}

// UpdateUser replaces the user identified by id.
func (c *Client) UpdateUser(ctx context.Context, id string, user User) error {
	return c.do(ctx, http.MethodPut, "/users/"+url.PathEscape(id), nil, user, nil)
}

// DeleteUser removes the user identified by id.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil, nil)
}

// ResetPassword sets a new credential on the user identified by id.
func (c *Client) ResetPassword(ctx context.Context, id string, cred Credential) error {
	return c.do(ctx, http.MethodPut, "/users/"+url.PathEscape(id)+"/reset-password", nil, cred, nil)
}

// FindUsers searches users by username within the page window [first,
// first+max). An empty username lists all users in the window. With exact set
// the backend matches the whole username instead of a substring.
func (c *Client) FindUsers(ctx context.Context, username string, exact bool, first, max int) ([]User, error) {
	q := pageQuery(first, max)
	if username != "" {
		q.Set("username", username)
	}
	if exact {
		q.Set("exact", "true")
	}
	var users []User
	if err := c.do(ctx, http.MethodGet, "/users", q, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UserRoles returns the realm roles of the user, composites included.
func (c *Client) UserRoles(ctx context.Context, id string) ([]Role, error) {
	var roles []Role
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id)+"/role-mappings/realm/composite", nil, nil, &roles)
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// UserGroups returns the groups the user is a member of.
func (c *Client) UserGroups(ctx context.Context, id string) ([]Group, error) {
	var groups []Group
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id)+"/groups", nil, nil, &groups)
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// AddUserRoles adds realm role mappings to the user. Roles must carry id and
// name.
func (c *Client) AddUserRoles(ctx context.Context, id string, roles []Role) error {
	return c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(id)+"/role-mappings/realm", nil, roles, nil)
}

// RemoveUserRoles removes realm role mappings from the user.
func (c *Client) RemoveUserRoles(ctx context.Context, id string, roles []Role) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id)+"/role-mappings/realm", nil, roles, nil)
}

// AddUserToGroup enrolls the user in the group, both by id.
func (c *Client) AddUserToGroup(ctx context.Context, userID, groupID string) error {
	return c.do(ctx, http.MethodPut, "/users/"+url.PathEscape(userID)+"/groups/"+url.PathEscape(groupID), nil, nil, nil)
}

// RemoveUserFromGroup removes the user from the group, both by id.
func (c *Client) RemoveUserFromGroup(ctx context.Context, userID, groupID string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(userID)+"/groups/"+url.PathEscape(groupID), nil, nil, nil)
}

// CreateGroup registers a new top-level group.
func (c *Client) CreateGroup(ctx context.Context, group Group) error {
	return c.do(ctx, http.MethodPost, "/groups", nil, group, nil)
}

// UpdateGroup replaces the group identified by id.
func (c *Client) UpdateGroup(ctx context.Context, id string, group Group) error {
	return c.do(ctx, http.MethodPut, "/groups/"+url.PathEscape(id), nil, group, nil)
}

// DeleteGroup removes the group identified by id.
func (c *Client) DeleteGroup(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/groups/"+url.PathEscape(id), nil, nil, nil)
}

// FindGroups searches groups by name. With exact set the backend matches the
// whole name instead of a substring.
func (c *Client) FindGroups(ctx context.Context, search string, exact bool) ([]Group, error) {
	q := url.Values{}
	if search != "" {
		q.Set("search", search)
	}
	if exact {
		q.Set("exact", "true")
	}
	var groups []Group
	if err := c.do(ctx, http.MethodGet, "/groups", q, nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// ListGroups returns groups within the page window [first, first+max).
func (c *Client) ListGroups(ctx context.Context, first, max int) ([]Group, error) {
	var groups []Group
	if err := c.do(ctx, http.MethodGet, "/groups", pageQuery(first, max), nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// GroupMembers returns the members of the group within the page window
// [first, first+max).
func (c *Client) GroupMembers(ctx context.Context, id string, first, max int) ([]User, error) {
	var users []User
	err := c.do(ctx, http.MethodGet, "/groups/"+url.PathEscape(id)+"/members", pageQuery(first, max), nil, &users)
	if err != nil {
		return nil, err
	}
	return users, nil
}

// GroupRoles returns the realm roles of the group, composites included.
func (c *Client) GroupRoles(ctx context.Context, id string) ([]Role, error) {
	var roles []Role
	err := c.do(ctx, http.MethodGet, "/groups/"+url.PathEscape(id)+"/role-mappings/realm/composite", nil, nil, &roles)
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// AddGroupRoles adds realm role mappings to the group. Roles must carry id
// and name.
func (c *Client) AddGroupRoles(ctx context.Context, id string, roles []Role) error {
	return c.do(ctx, http.MethodPost, "/groups/"+url.PathEscape(id)+"/role-mappings/realm", nil, roles, nil)
}

// RemoveGroupRoles removes realm role mappings from the group.
func (c *Client) RemoveGroupRoles(ctx context.Context, id string, roles []Role) error {
	return c.do(ctx, http.MethodDelete, "/groups/"+url.PathEscape(id)+"/role-mappings/realm", nil, roles, nil)
}

// CreateRole registers a new realm role.
func (c *Client) CreateRole(ctx context.Context, role Role) error {
	return c.do(ctx, http.MethodPost, "/roles", nil, role, nil)
}

// UpdateRole replaces the role identified by id.
func (c *Client) UpdateRole(ctx context.Context, id string, role Role) error {
	return c.do(ctx, http.MethodPut, "/roles-by-id/"+url.PathEscape(id), nil, role, nil)
}

// DeleteRole removes the role identified by id.
func (c *Client) DeleteRole(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/roles-by-id/"+url.PathEscape(id), nil, nil, nil)
}

// RoleByName fetches the realm role with exactly that name. A missing role
// is a 404 APIError.
func (c *Client) RoleByName(ctx context.Context, name string) (Role, error) {
	var role Role
	if err := c.do(ctx, http.MethodGet, "/roles/"+url.PathEscape(name), nil, nil, &role); err != nil {
		return Role{}, err
	}
	return role, nil
}

// FindRoles searches realm roles by name.
func (c *Client) FindRoles(ctx context.Context, search string) ([]Role, error) {
	q := url.Values{}
	if search != "" {
		q.Set("search", search)
	}
	var roles []Role
	if err := c.do(ctx, http.MethodGet, "/roles", q, nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// ListRoles returns realm roles within the page window [first, first+max).
func (c *Client) ListRoles(ctx context.Context, first, max int) ([]Role, error) {
	var roles []Role
	if err := c.do(ctx, http.MethodGet, "/roles", pageQuery(first, max), nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// RoleUsers returns the users with the role directly assigned, not effective.
func (c *Client) RoleUsers(ctx context.Context, roleName string) ([]User, error) {
	var users []User
	err := c.do(ctx, http.MethodGet, "/roles/"+url.PathEscape(roleName)+"/users", nil, nil, &users)
	if err != nil {
		return nil, err
	}
	return users, nil
}

// RoleGroups returns the groups with the role directly assigned.
func (c *Client) RoleGroups(ctx context.Context, roleName string) ([]Group, error) {
	var groups []Group
	err := c.do(ctx, http.MethodGet, "/roles/"+url.PathEscape(roleName)+"/groups", nil, nil, &groups)
	if err != nil {
		return nil, err
	}
	return groups, nil
}
