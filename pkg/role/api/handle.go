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
	"github.com/tendant/keycloak-admin/pkg/role"
)

// Handle handles HTTP requests for role management
type Handle struct {
	roleService *role.Service
}

func NewHandle(roleService *role.Service) Handle {
	return Handle{roleService: roleService}
}

// RegisterRoutes registers the role routes
func (h Handle) RegisterRoutes(r chi.Router) {
	r.Route("/roles", func(r chi.Router) {
		r.Get("/", h.ListRoles)
		r.Post("/", h.CreateRole)
		r.Get("/{name}", h.GetRole)
		r.Put("/{name}", h.UpdateRole)
		r.Delete("/{name}", h.DeleteRole)
		r.Get("/{name}/users", h.AssignedUsers)
		r.Get("/{name}/groups", h.AssignedGroups)
		r.Get("/{name}/effective-users", h.EffectiveUsers)
	})
}

type RoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type RoleResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Composite   bool   `json:"composite,omitempty"`
}

type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type GroupResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

type DeletedResponse struct {
	Deleted bool `json:"deleted"`
}

func (h Handle) ListRoles(w http.ResponseWriter, r *http.Request) {
	first, limit := pageWindow(r)
	roles, err := h.roleService.ListRoles(r.Context(), first, limit)
	if err != nil {
		slog.Error("Failed listing roles", "err", err)
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toRoleResponses(roles))
}

func (h Handle) CreateRole(w http.ResponseWriter, r *http.Request) {
	var request RoleRequest
	if err := render.DecodeJSON(r.Body, &request); err != nil {
		writeError(w, r, kcerrors.New(kcerrors.ErrCodeInvalidInput, "invalid request body"))
		return
	}

	created, err := h.roleService.CreateRole(r.Context(), kc.Role{Name: request.Name, Description: request.Description})
	if err != nil {
		slog.Error("Failed creating role", "role", request.Name, "err", err)
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toRoleResponse(created))
}

func (h Handle) GetRole(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	found, err := h.roleService.GetRole(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toRoleResponse(found))
}

func (h Handle) UpdateRole(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var request RoleRequest
	if err := render.DecodeJSON(r.Body, &request); err != nil {
		writeError(w, r, kcerrors.New(kcerrors.ErrCodeInvalidInput, "invalid request body"))
		return
	}

	updated, err := h.roleService.UpdateRole(r.Context(), name, kc.Role{Name: request.Name, Description: request.Description})
	if err != nil {
		slog.Error("Failed updating role", "role", name, "err", err)
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toRoleResponse(updated))
}

func (h Handle) DeleteRole(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	deleted, err := h.roleService.DeleteRole(r.Context(), name)
	if err != nil {
		slog.Error("Failed deleting role", "role", name, "err", err)
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, DeletedResponse{Deleted: deleted})
}

func (h Handle) AssignedUsers(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	users, err := h.roleService.AssignedUsers(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toUserResponses(users))
}

func (h Handle) AssignedGroups(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	groups, err := h.roleService.AssignedGroups(r.Context(), name)
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

func (h Handle) EffectiveUsers(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	users, err := h.roleService.EffectiveUsers(r.Context(), name)
	if err != nil {
		slog.Error("Failed resolving effective users", "role", name, "err", err)
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toUserResponses(users))
}

func toRoleResponse(role kc.Role) RoleResponse {
	var response RoleResponse
	if err := copier.Copy(&response, &role); err != nil {
		slog.Error("Failed mapping role response", "role", role.Name, "err", err)
	}
	return response
}

func toRoleResponses(roles []kc.Role) []RoleResponse {
	responses := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		responses = append(responses, toRoleResponse(r))
	}
	return responses
}

func toUserResponses(users []kc.User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, UserResponse{ID: u.ID, Username: u.Username, Email: u.Email})
	}
	return responses
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
