package user

import (
	"context"
	"net/http"

	kcerrors "github.com/tendant/keycloak-admin/pkg/errors"
	"github.com/tendant/keycloak-admin/pkg/fanout"
	"github.com/tendant/keycloak-admin/pkg/kc"
	"github.com/tendant/keycloak-admin/pkg/paging"
)

// Gateway is the slice of the admin API the user service depends on.
type Gateway interface {
	CreateUser(ctx context.Context, user kc.User) error
	UpdateUser(ctx context.Context, id string, user kc.User) error
	DeleteUser(ctx context.Context, id string) error
	ResetPassword(ctx context.Context, id string, cred kc.Credential) error
	FindUsers(ctx context.Context, username string, exact bool, first, max int) ([]kc.User, error)
	UserRoles(ctx context.Context, id string) ([]kc.Role, error)
	UserGroups(ctx context.Context, id string) ([]kc.Group, error)
	AddUserRoles(ctx context.Context, id string, roles []kc.Role) error
	RemoveUserRoles(ctx context.Context, id string, roles []kc.Role) error
	RoleByName(ctx context.Context, name string) (kc.Role, error)
}

type Service struct {
	gateway  Gateway
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

// WithBufferSize sets the page size used when listing users.
func WithBufferSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.buffer = n
		}
	}
}

func NewService(gateway Gateway, opts ...Option) *Service {
	s := &Service{
		gateway: gateway,
		buffer:  paging.DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetUserBase looks up a user by username without loading roles or groups.
// The username must match exactly one user.
func (s *Service) GetUserBase(ctx context.Context, username string) (kc.User, error) {
	// A second result is enough to rule the match ambiguous.
	users, err := s.gateway.FindUsers(ctx, username, true, 0, 2)
	if err != nil {
		return kc.User{}, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to find user")
	}
	if len(users) != 1 {
		return kc.User{}, kcerrors.NotFound(kcerrors.ErrCodeUserNotFound, "user", username)
	}
	return users[0], nil
}

// GetUser looks up a user by username and loads its realm roles and groups.
func (s *Service) GetUser(ctx context.Context, username string) (kc.User, error) {
	user, err := s.GetUserBase(ctx, username)
	if err != nil {
		return kc.User{}, err
	}
	return s.enrich(ctx, user)
}

func (s *Service) enrich(ctx context.Context, user kc.User) (kc.User, error) {
	roles, err := s.gateway.UserRoles(ctx, user.ID)
	if err != nil {
		return kc.User{}, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to fetch user roles")
	}
	groups, err := s.gateway.UserGroups(ctx, user.ID)
	if err != nil {
		return kc.User{}, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to fetch user groups")
	}
	if roles == nil {
		roles = []kc.Role{}
	}
	if groups == nil {
		groups = []kc.Group{}
	}
	user.Roles = roles
	user.Groups = groups
	return user, nil
}

// CreateUser registers a new user and returns it with roles and groups loaded.
func (s *Service) CreateUser(ctx context.Context, user kc.User) (kc.User, error) {
	if user.Username == "" {
		return kc.User{}, kcerrors.New(kcerrors.ErrCodeInvalidInput, "username is required")
	}
	if err := s.gateway.CreateUser(ctx, user); err != nil {
		return kc.User{}, kcerrors.TranslateCreate(err,
			kcerrors.AlreadyExists(kcerrors.ErrCodeUserAlreadyExists, "user", user.Username),
			s.clientID, s.realm)
	}
	return s.GetUser(ctx, user.Username)
}

// UpdateUser replaces the user identified by username with the given
// representation and returns the updated user, enriched.
func (s *Service) UpdateUser(ctx context.Context, username string, user kc.User) (kc.User, error) {
	if user.Username == "" {
		user.Username = username
	}
	current, err := s.GetUserBase(ctx, username)
	if err != nil {
		return kc.User{}, err
	}
	if err := s.gateway.UpdateUser(ctx, current.ID, user); err != nil {
		return kc.User{}, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to update user")
	}
	return s.GetUser(ctx, user.Username)
}

// DeleteUser removes the user by username. Deleting a user that does not
// exist reports false without an error.
func (s *Service) DeleteUser(ctx context.Context, username string) (bool, error) {
	user, err := s.GetUserBase(ctx, username)
	if err != nil {
		if kcerrors.IsCode(err, kcerrors.ErrCodeUserNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := s.gateway.DeleteUser(ctx, user.ID); err != nil {
		return false, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to delete user")
	}
	return true, nil
}

// EnableUser turns on the user's enabled flag. Enabling a user that does
// not exist reports false without an error.
func (s *Service) EnableUser(ctx context.Context, username string) (bool, error) {
	return s.setEnabled(ctx, username, true)
}

// DisableUser turns off the user's enabled flag. Disabling a user that
// does not exist reports false without an error.
func (s *Service) DisableUser(ctx context.Context, username string) (bool, error) {
	return s.setEnabled(ctx, username, false)
}

func (s *Service) setEnabled(ctx context.Context, username string, enabled bool) (bool, error) {
	user, err := s.GetUserBase(ctx, username)
	if err != nil {
		if kcerrors.IsCode(err, kcerrors.ErrCodeUserNotFound) {
			return false, nil
		}
		return false, err
	}
	user.Enabled = enabled
	if err := s.gateway.UpdateUser(ctx, user.ID, user); err != nil {
		return false, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to update user")
	}
	return true, nil
}

// ResetPassword replaces the user's password credential.
func (s *Service) ResetPassword(ctx context.Context, username, password string, temporary bool) error {
	user, err := s.GetUserBase(ctx, username)
	if err != nil {
		return err
	}
	if err := s.gateway.ResetPassword(ctx, user.ID, kc.PasswordCredential(password, temporary)); err != nil {
		return kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to reset password")
	}
	return nil
}

// ListUsers returns the realm's users between first and limit, fetched in
// buffer-sized pages. Pass paging.Unbounded to list to the end.
func (s *Service) ListUsers(ctx context.Context, first, limit int) ([]kc.User, error) {
	users, err := paging.All(ctx, func(ctx context.Context, first, max int) ([]kc.User, error) {
		return s.gateway.FindUsers(ctx, "", false, first, max)
	}, first, limit, s.buffer)
	if err != nil {
		return nil, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to list users")
	}
	return users, nil
}

// GetUserRoles returns the realm roles assigned to the user.
func (s *Service) GetUserRoles(ctx context.Context, username string) ([]kc.Role, error) {
	user, err := s.GetUserBase(ctx, username)
	if err != nil {
		return nil, err
	}
	roles, err := s.gateway.UserRoles(ctx, user.ID)
	if err != nil {
		return nil, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to fetch user roles")
	}
	if roles == nil {
		roles = []kc.Role{}
	}
	return roles, nil
}

// GetUserGroups returns the groups the user belongs to.
func (s *Service) GetUserGroups(ctx context.Context, username string) ([]kc.Group, error) {
	user, err := s.GetUserBase(ctx, username)
	if err != nil {
		return nil, err
	}
	groups, err := s.gateway.UserGroups(ctx, user.ID)
	if err != nil {
		return nil, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to fetch user groups")
	}
	if groups == nil {
		groups = []kc.Group{}
	}
	return groups, nil
}

// AddUserRoles assigns the named realm roles to the user and returns the
// user with its collections reloaded. Role names are resolved concurrently
// and every unresolvable name is reported.
func (s *Service) AddUserRoles(ctx context.Context, username string, roleNames ...string) (kc.User, error) {
	refs, err := s.resolveRoleRefs(ctx, roleNames)
	if err != nil {
		return kc.User{}, err
	}
	user, err := s.GetUserBase(ctx, username)
	if err != nil {
		return kc.User{}, err
	}
	if err := s.gateway.AddUserRoles(ctx, user.ID, refs); err != nil {
		return kc.User{}, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to add user roles")
	}
	return s.GetUser(ctx, username)
}

// RemoveUserRoles removes the named realm roles from the user and returns
// the user with its collections reloaded.
func (s *Service) RemoveUserRoles(ctx context.Context, username string, roleNames ...string) (kc.User, error) {
	refs, err := s.resolveRoleRefs(ctx, roleNames)
	if err != nil {
		return kc.User{}, err
	}
	user, err := s.GetUserBase(ctx, username)
	if err != nil {
		return kc.User{}, err
	}
	if err := s.gateway.RemoveUserRoles(ctx, user.ID, refs); err != nil {
		return kc.User{}, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to remove user roles")
	}
	return s.GetUser(ctx, username)
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
