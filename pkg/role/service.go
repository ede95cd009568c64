package role

import (
	"context"
	"net/http"

	"golang.org/x/sync/errgroup"

	kcerrors "github.com/tendant/keycloak-admin/pkg/errors"
	"github.com/tendant/keycloak-admin/pkg/fanout"
	"github.com/tendant/keycloak-admin/pkg/kc"
	"github.com/tendant/keycloak-admin/pkg/paging"
)

// Gateway is the slice of the admin API the role service depends on.
type Gateway interface {
	CreateRole(ctx context.Context, role kc.Role) error
	UpdateRole(ctx context.Context, id string, role kc.Role) error
	DeleteRole(ctx context.Context, id string) error
	RoleByName(ctx context.Context, name string) (kc.Role, error)
	ListRoles(ctx context.Context, first, max int) ([]kc.Role, error)
	RoleUsers(ctx context.Context, roleName string) ([]kc.User, error)
	RoleGroups(ctx context.Context, roleName string) ([]kc.Group, error)
}

// MemberLister lists a group's members by group name. *group.Service
// satisfies it.
type MemberLister interface {
	Members(ctx context.Context, name string, first, limit int) ([]kc.User, error)
}

type Service struct {
	gateway  Gateway
	members  MemberLister
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

// WithBufferSize sets the page size used when listing roles.
func WithBufferSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.buffer = n
		}
	}
}

func NewService(gateway Gateway, members MemberLister, opts ...Option) *Service {
	s := &Service{
		gateway: gateway,
		members: members,
		buffer:  paging.DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetRole looks up a realm role by its exact name. Roles carry no dependent
// collections, so there is nothing to enrich.
func (s *Service) GetRole(ctx context.Context, name string) (kc.Role, error) {
	role, err := s.gateway.RoleByName(ctx, name)
	if err != nil {
		if kc.StatusOf(err) == http.StatusNotFound {
			return kc.Role{}, kcerrors.NotFound(kcerrors.ErrCodeRoleNotFound, "role", name)
		}
		return kc.Role{}, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to fetch role")
	}
	return role, nil
}

// CreateRole registers a new realm role and returns it.
func (s *Service) CreateRole(ctx context.Context, role kc.Role) (kc.Role, error) {
	if role.Name == "" {
		return kc.Role{}, kcerrors.New(kcerrors.ErrCodeInvalidInput, "role name is required")
	}
	if err := s.gateway.CreateRole(ctx, role); err != nil {
		return kc.Role{}, kcerrors.TranslateCreate(err,
			kcerrors.AlreadyExists(kcerrors.ErrCodeRoleAlreadyExists, "role", role.Name),
			s.clientID, s.realm)
	}
	return s.GetRole(ctx, role.Name)
}

// UpdateRole replaces the role identified by name with the given
// representation and returns the updated role.
func (s *Service) UpdateRole(ctx context.Context, name string, role kc.Role) (kc.Role, error) {
	if role.Name == "" {
		role.Name = name
	}
	current, err := s.GetRole(ctx, name)
	if err != nil {
		return kc.Role{}, err
	}
	if err := s.gateway.UpdateRole(ctx, current.ID, role); err != nil {
		return kc.Role{}, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to update role")
	}
	return s.GetRole(ctx, role.Name)
}

// DeleteRole removes the role by name. Deleting a role that does not
// exist reports false without an error.
func (s *Service) DeleteRole(ctx context.Context, name string) (bool, error) {
	role, err := s.GetRole(ctx, name)
	if err != nil {
		if kcerrors.IsCode(err, kcerrors.ErrCodeRoleNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := s.gateway.DeleteRole(ctx, role.ID); err != nil {
		return false, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to delete role")
	}
	return true, nil
}

// ListRoles returns the realm's roles between first and limit, fetched in
// buffer-sized pages. Pass paging.Unbounded to list to the end.
func (s *Service) ListRoles(ctx context.Context, first, limit int) ([]kc.Role, error) {
	roles, err := paging.All(ctx, s.gateway.ListRoles, first, limit, s.buffer)
	if err != nil {
		return nil, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to list roles")
	}
	return roles, nil
}

// AssignedUsers returns the users the role is assigned to directly.
func (s *Service) AssignedUsers(ctx context.Context, name string) ([]kc.User, error) {
	role, err := s.GetRole(ctx, name)
	if err != nil {
		return nil, err
	}
	users, err := s.gateway.RoleUsers(ctx, role.Name)
	if err != nil {
		return nil, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to fetch role users")
	}
	if users == nil {
		users = []kc.User{}
	}
	return users, nil
}

// AssignedGroups returns the groups the role is assigned to.
func (s *Service) AssignedGroups(ctx context.Context, name string) ([]kc.Group, error) {
	role, err := s.GetRole(ctx, name)
	if err != nil {
		return nil, err
	}
	groups, err := s.gateway.RoleGroups(ctx, role.Name)
	if err != nil {
		return nil, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to fetch role groups")
	}
	if groups == nil {
		groups = []kc.Group{}
	}
	return groups, nil
}

// EffectiveUsers returns every user that holds the role, whether assigned
// directly or inherited through a group. Direct holders and role groups
// are fetched concurrently, then each group's members are fetched in
// parallel with every failure reported. Users inherited through groups
// come first, in group order, then direct holders not already seen.
// Duplicates collapse by user id, keeping the first occurrence.
func (s *Service) EffectiveUsers(ctx context.Context, name string) ([]kc.User, error) {
	role, err := s.GetRole(ctx, name)
	if err != nil {
		return nil, err
	}

	var direct []kc.User
	var groups []kc.Group
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		users, err := s.gateway.RoleUsers(gctx, role.Name)
		if err != nil {
			return kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to fetch role users")
		}
		direct = users
		return nil
	})
	g.Go(func() error {
		found, err := s.gateway.RoleGroups(gctx, role.Name)
		if err != nil {
			return kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to fetch role groups")
		}
		groups = found
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	memberships, err := fanout.Collect(ctx, groups, func(ctx context.Context, group kc.Group) ([]kc.User, error) {
		return s.members.Members(ctx, group.Name, 0, paging.Unbounded)
	})
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	users := []kc.User{}
	for _, members := range memberships {
		for _, u := range members {
			if !seen[u.ID] {
				seen[u.ID] = true
				users = append(users, u)
			}
		}
	}
	for _, u := range direct {
		if !seen[u.ID] {
			seen[u.ID] = true
			users = append(users, u)
		}
	}
	return users, nil
}
