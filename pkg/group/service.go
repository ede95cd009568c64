package group

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	kcerrors "github.com/tendant/keycloak-admin/pkg/errors"
	"github.com/tendant/keycloak-admin/pkg/fanout"
	"github.com/tendant/keycloak-admin/pkg/kc"
	"github.com/tendant/keycloak-admin/pkg/paging"
)

const (
	// TenantAttribute is the group attribute that carries the tenant name.
	TenantAttribute = "tkr-tenant"
	// TenantPrefix marks a group name as a tenant group. The prefix is
	// stripped before the name is stored in the tenant attribute.
	TenantPrefix = "TENANT_"
)

// Gateway is the slice of the admin API the group service depends on.
type Gateway interface {
	CreateGroup(ctx context.Context, group kc.Group) error
	UpdateGroup(ctx context.Context, id string, group kc.Group) error
	DeleteGroup(ctx context.Context, id string) error
	FindGroups(ctx context.Context, search string, exact bool) ([]kc.Group, error)
	ListGroups(ctx context.Context, first, max int) ([]kc.Group, error)
	GroupMembers(ctx context.Context, id string, first, max int) ([]kc.User, error)
	GroupRoles(ctx context.Context, id string) ([]kc.Role, error)
	AddGroupRoles(ctx context.Context, id string, roles []kc.Role) error
	RemoveGroupRoles(ctx context.Context, id string, roles []kc.Role) error
	AddUserToGroup(ctx context.Context, userID, groupID string) error
	RemoveUserFromGroup(ctx context.Context, userID, groupID string) error
	RoleByName(ctx context.Context, name string) (kc.Role, error)
}

// UserResolver looks up users for membership changes. *user.Service
// satisfies it.
type UserResolver interface {
	GetUserBase(ctx context.Context, username string) (kc.User, error)
	GetUser(ctx context.Context, username string) (kc.User, error)
}

type Service struct {
	gateway  Gateway
	users    UserResolver
	realm    string
	clientID string
	buffer   int
}

type Option func(*Service)

// WithRealmContext records the realm and client id used in error messages.
func WithRealmContext(realm, clientID string) Option {
	return func(s *Service) {
		s.realm = realm
		s.clientID = clientID
	}
}

// WithBufferSize sets the page size used when listing groups and members.
func WithBufferSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.buffer = n
		}
	}
}

func NewService(gateway Gateway, users UserResolver, opts ...Option) *Service {
	s := &Service{
		gateway: gateway,
		users:   users,
		buffer:  paging.DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetGroupBase looks up a group by name without loading roles or members.
// The name must match exactly one group.
func (s *Service) GetGroupBase(ctx context.Context, name string) (kc.Group, error) {
	groups, err := s.gateway.FindGroups(ctx, name, true)
	if err != nil {
		return kc.Group{}, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to find group")
	}
	if len(groups) != 1 {
		return kc.Group{}, kcerrors.NotFound(kcerrors.ErrCodeGroupNotFound, "group", name)
	}
	return groups[0], nil
}

// GetGroup looks up a group by name and loads its realm roles and full
// member list.
func (s *Service) GetGroup(ctx context.Context, name string) (kc.Group, error) {
	group, err := s.GetGroupBase(ctx, name)
	if err != nil {
		return kc.Group{}, err
	}
	return s.enrich(ctx, group)
}

func (s *Service) enrich(ctx context.Context, group kc.Group) (kc.Group, error) {
	roles, err := s.gateway.GroupRoles(ctx, group.ID)
	if err != nil {
		return kc.Group{}, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to fetch group roles")
	}
	members, err := s.members(ctx, group.ID, 0, paging.Unbounded)
	if err != nil {
		return kc.Group{}, err
	}
	if roles == nil {
		roles = []kc.Role{}
	}
	group.Roles = roles
	group.Members = members
	return group, nil
}

func (s *Service) members(ctx context.Context, id string, first, limit int) ([]kc.User, error) {
	members, err := paging.All(ctx, func(ctx context.Context, first, max int) ([]kc.User, error) {
		return s.gateway.GroupMembers(ctx, id, first, max)
	}, first, limit, s.buffer)
	if err != nil {
		return nil, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to fetch group members")
	}
	return members, nil
}

// Members returns the group's members between first and limit, fetched in
// buffer-sized pages. Pass paging.Unbounded to list to the end.
func (s *Service) Members(ctx context.Context, name string, first, limit int) ([]kc.User, error) {
	group, err := s.GetGroupBase(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.members(ctx, group.ID, first, limit)
}

// CreateGroup registers a new group and returns it with roles and members
// loaded.
func (s *Service) CreateGroup(ctx context.Context, group kc.Group) (kc.Group, error) {
	if group.Name == "" {
		return kc.Group{}, kcerrors.New(kcerrors.ErrCodeInvalidInput, "group name is required")
	}
	if err := s.gateway.CreateGroup(ctx, group); err != nil {
		return kc.Group{}, kcerrors.TranslateCreate(err,
			kcerrors.AlreadyExists(kcerrors.ErrCodeGroupAlreadyExists, "group", group.Name),
			s.clientID, s.realm)
	}
	return s.GetGroup(ctx, group.Name)
}

// CreateTenantGroup creates a group carrying the tenant attribute. The
// TENANT_ prefix, when present, is stripped from the attribute value but
// kept in the group name.
func (s *Service) CreateTenantGroup(ctx context.Context, name string) (kc.Group, error) {
	tenant := strings.TrimPrefix(name, TenantPrefix)
	return s.CreateGroup(ctx, kc.Group{
		Name:       name,
		Attributes: map[string][]string{TenantAttribute: {tenant}},
	})
}

// UpdateGroup replaces the group identified by name with the given
// representation and returns the updated group, enriched.
func (s *Service) UpdateGroup(ctx context.Context, name string, group kc.Group) (kc.Group, error) {
	if group.Name == "" {
		group.Name = name
	}
	current, err := s.GetGroupBase(ctx, name)
	if err != nil {
		return kc.Group{}, err
	}
	if err := s.gateway.UpdateGroup(ctx, current.ID, group); err != nil {
		return kc.Group{}, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to update group")
	}
	return s.GetGroup(ctx, group.Name)
}

// DeleteGroup removes the group by name. Deleting a group that does not
// exist reports false without an error.
func (s *Service) DeleteGroup(ctx context.Context, name string) (bool, error) {
	group, err := s.GetGroupBase(ctx, name)
	if err != nil {
		if kcerrors.IsCode(err, kcerrors.ErrCodeGroupNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := s.gateway.DeleteGroup(ctx, group.ID); err != nil {
		return false, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to delete group")
	}
	return true, nil
}

// ListGroups returns the realm's groups between first and limit, fetched
// in buffer-sized pages. Pass paging.Unbounded to list to the end.
func (s *Service) ListGroups(ctx context.Context, first, limit int) ([]kc.Group, error) {
	groups, err := paging.All(ctx, s.gateway.ListGroups, first, limit, s.buffer)
	if err != nil {
		return nil, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to list groups")
	}
	return groups, nil
}

// AddGroupRoles assigns the named realm roles to the group and returns
// the group with its collections reloaded. Role names are resolved
// concurrently and every unresolvable name is reported.
func (s *Service) AddGroupRoles(ctx context.Context, name string, roleNames ...string) (kc.Group, error) {
	refs, err := s.resolveRoleRefs(ctx, roleNames)
	if err != nil {
		return kc.Group{}, err
	}
	group, err := s.GetGroupBase(ctx, name)
	if err != nil {
		return kc.Group{}, err
	}
	if err := s.gateway.AddGroupRoles(ctx, group.ID, refs); err != nil {
		return kc.Group{}, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to add group roles")
	}
	return s.GetGroup(ctx, name)
}

// RemoveGroupRoles removes the named realm roles from the group and
// returns the group with its collections reloaded.
func (s *Service) RemoveGroupRoles(ctx context.Context, name string, roleNames ...string) (kc.Group, error) {
	refs, err := s.resolveRoleRefs(ctx, roleNames)
	if err != nil {
		return kc.Group{}, err
	}
	group, err := s.GetGroupBase(ctx, name)
	if err != nil {
		return kc.Group{}, err
	}
	if err := s.gateway.RemoveGroupRoles(ctx, group.ID, refs); err != nil {
		return kc.Group{}, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to remove group roles")
	}
	return s.GetGroup(ctx, name)
}

// AddUserToGroup puts the user into the group and returns the user with
// its collections reloaded. User and group are resolved concurrently.
func (s *Service) AddUserToGroup(ctx context.Context, username, groupName string) (kc.User, error) {
	userID, groupID, err := s.resolveMembershipPair(ctx, username, groupName)
	if err != nil {
		return kc.User{}, err
	}
	if err := s.gateway.AddUserToGroup(ctx, userID, groupID); err != nil {
		return kc.User{}, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to add user to group")
	}
	return s.users.GetUser(ctx, username)
}

// RemoveUserFromGroup takes the user out of the group and returns the
// user with its collections reloaded.
func (s *Service) RemoveUserFromGroup(ctx context.Context, username, groupName string) (kc.User, error) {
	userID, groupID, err := s.resolveMembershipPair(ctx, username, groupName)
	if err != nil {
		return kc.User{}, err
	}
	if err := s.gateway.RemoveUserFromGroup(ctx, userID, groupID); err != nil {
		return kc.User{}, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to remove user from group")
	}
	return s.users.GetUser(ctx, username)
}

func (s *Service) resolveMembershipPair(ctx context.Context, username, groupName string) (userID, groupID string, err error) {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		user, err := s.users.GetUserBase(ctx, username)
		if err != nil {
			return err
		}
		userID = user.ID
		return nil
	})
	g.Go(func() error {
		group, err := s.GetGroupBase(ctx, groupName)
		if err != nil {
			return err
		}
		groupID = group.ID
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", "", err
	}
	return userID, groupID, nil
}

func (s *Service) resolveRoleRefs(ctx context.Context, roleNames []string) ([]kc.Role, error) {
	return fanout.Collect(ctx, roleNames, func(ctx context.Context, name string) (kc.Role, error) {
		role, err := s.gateway.RoleByName(ctx, name)
		if err != nil {
			if kc.StatusOf(err) == http.StatusNotFound {
				return kc.Role{}, kcerrors.NotFound(kcerrors.ErrCodeRoleNotFound, "role", name)
			}
			return kc.Role{}, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to fetch role")
		}
		return role.Ref(), nil
	})
}
