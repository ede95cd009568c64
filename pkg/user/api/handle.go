package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/jinzhu/copier"

	kcerrors "github.com/tendant/keycloak-admin/pkg/errors"
	"github.com/tendant/keycloak-admin/pkg/kc"
	"github.com/tendant/keycloak-admin/pkg/paging"
	"github.com/tendant/keycloak-admin/pkg/user"
)

// Handle handles HTTP requests for user management
type Handle struct {
	userService *user.Service
}

func NewHandle(userService *user.Service) Handle {
	return Handle{userService: userService}
}

// RegisterRoutes registers the user routes
func (h Handle) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.ListUsers)
		r.Post("/", h.CreateUser)
		r.Get("/{username}", h.GetUser)
		r.Put("/{username}", h.UpdateUser)
		r.Delete("/{username}", h.DeleteUser)
		r.Put("/{username}/enable", h.EnableUser)
		r.Put("/{username}/disable", h.DisableUser)
		r.Put("/{username}/password", h.ResetPassword)
		r.Get("/{username}/roles", h.GetUserRoles)
		r.Post("/{username}/roles", h.AddUserRoles)
		r.Delete("/{username}/roles", h.RemoveUserRoles)
		r.Get("/{username}/groups", h.GetUserGroups)
	})
}

type UserRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Enabled   *bool  `json:"enabled"`
	Password  string `json:"password,omitempty"`
}

type UserResponse struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	FirstName string          `json:"first_name,omitempty"`
	LastName  string          `json:"last_name,omitempty"`
	Email     string          `json:"email,omitempty"`
	Enabled   bool            `json:"enabled"`
	Roles     []RoleResponse  `json:"roles,omitempty"`
	Groups    []GroupResponse `json:"groups,omitempty"`
}

type RoleResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type GroupResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

type RoleNamesRequest struct {
	Roles []string `json:"roles"`
}

type PasswordRequest struct {
	Password  string `json:"password"`
	Temporary bool   `json:"temporary"`
}

type DeletedResponse struct {
	Deleted bool `json:"deleted"`
}

type ChangedResponse struct {
	Changed bool `json:"changed"`
}

func (h Handle) ListUsers(w http.ResponseWriter, r *http.Request) {
	first, limit := pageWindow(r)
	users, err := h.userService.ListUsers(r.Context(), first, limit)
	if err != nil {
		slog.Error("Failed listing users", "err", err)
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toUserResponses(users))
}

func (h Handle) CreateUser(w http.ResponseWriter, r *http.Request) {
	var request UserRequest
	if err := render.DecodeJSON(r.Body, &request); err != nil {
		writeError(w, r, kcerrors.New(kcerrors.ErrCodeInvalidInput, "invalid request body"))
		return
	}

	newUser := toUser(request)
	if request.Password != "" {
		newUser.Credentials = []kc.Credential{kc.PasswordCredential(request.Password, false)}
	}

	created, err := h.userService.CreateUser(r.Context(), newUser)
	if err != nil {
		slog.Error("Failed creating user", "username", request.Username, "err", err)
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toUserResponse(created))
}

func (h Handle) GetUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	found, err := h.userService.GetUser(r.Context(), username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toUserResponse(found))
}

func (h Handle) UpdateUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	var request UserRequest
	if err := render.DecodeJSON(r.Body, &request); err != nil {
		writeError(w, r, kcerrors.New(kcerrors.ErrCodeInvalidInput, "invalid request body"))
		return
	}

	updated, err := h.userService.UpdateUser(r.Context(), username, toUser(request))
	if err != nil {
		slog.Error("Failed updating user", "username", username, "err", err)
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toUserResponse(updated))
}

func (h Handle) DeleteUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	deleted, err := h.userService.DeleteUser(r.Context(), username)
	if err != nil {
		slog.Error("Failed deleting user", "username", username, "err", err)
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, DeletedResponse{Deleted: deleted})
}

func (h Handle) EnableUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	changed, err := h.userService.EnableUser(r.Context(), username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, ChangedResponse{Changed: changed})
}

func (h Handle) DisableUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	changed, err := h.userService.DisableUser(r.Context(), username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, ChangedResponse{Changed: changed})
}

func (h Handle) ResetPassword(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	var request PasswordRequest
	if err := render.DecodeJSON(r.Body, &request); err != nil || request.Password == "" {
		writeError(w, r, kcerrors.New(kcerrors.ErrCodeInvalidInput, "password is required"))
		return
	}

	if err := h.userService.ResetPassword(r.Context(), username, request.Password, request.Temporary); err != nil {
		slog.Error("Failed resetting password", "username", username, "err", err)
		writeError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func (h Handle) GetUserRoles(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	roles, err := h.userService.GetUserRoles(r.Context(), username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var response []RoleResponse
	if err := copier.Copy(&response, &roles); err != nil {
		writeError(w, r, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to map roles"))
		return
	}
	render.JSON(w, r, response)
}

func (h Handle) AddUserRoles(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	var request RoleNamesRequest
	if err := render.DecodeJSON(r.Body, &request); err != nil || len(request.Roles) == 0 {
		writeError(w, r, kcerrors.New(kcerrors.ErrCodeInvalidInput, "roles are required"))
		return
	}

	updated, err := h.userService.AddUserRoles(r.Context(), username, request.Roles...)
	if err != nil {
		slog.Error("Failed adding user roles", "username", username, "err", err)
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toUserResponse(updated))
}

func (h Handle) RemoveUserRoles(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	var request RoleNamesRequest
	if err := render.DecodeJSON(r.Body, &request); err != nil || len(request.Roles) == 0 {
		writeError(w, r, kcerrors.New(kcerrors.ErrCodeInvalidInput, "roles are required"))
		return
	}

	updated, err := h.userService.RemoveUserRoles(r.Context(), username, request.Roles...)
	if err != nil {
		slog.Error("Failed removing user roles", "username", username, "err", err)
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toUserResponse(updated))
}

func (h Handle) GetUserGroups(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	groups, err := h.userService.GetUserGroups(r.Context(), username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var response []GroupResponse
	if err := copier.Copy(&response, &groups); err != nil {
		writeError(w, r, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to map groups"))
		return
	}
	render.JSON(w, r, response)
}

func pageWindow(r *http.Request) (first, limit int) {
	first = 0
	limit = paging.Unbounded
	if v := r.URL.Query().Get("first"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			first = n
		}
	}
	if v := r.URL.Query().Get("max"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			limit = n
		}
	}
	return first, limit
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	render.Status(r, kcerrors.HTTPStatus(err))
	render.JSON(w, r, map[string]string{
		"code":    string(kcerrors.GetCode(err)),
		"message": err.Error(),
	})
}
