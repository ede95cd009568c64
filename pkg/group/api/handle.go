package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/jinzhu/copier"

	kcerrors "github.com/tendant/keycloak-admin/pkg/errors"
	"github.com/tendant/keycloak-admin/pkg/group"
	"github.com/tendant/keycloak-admin/pkg/kc"
	"github.com/tendant/keycloak-admin/pkg/paging"
)

// Handle handles HTTP requests for group management
type Handle struct {
	groupService *group.Service
}

func NewHandle(groupService *group.Service) Handle {
	return Handle{groupService: groupService}
}

// RegisterRoutes registers the group routes
func (h Handle) RegisterRoutes(r chi.Router) {
	r.Route("/groups", func(r chi.Router) {
		r.Get("/", h.ListGroups)
		r.Post("/", h.CreateGroup)
		r.Post("/tenants", h.CreateTenantGroup)
		r.Get("/{name}", h.GetGroup)
		r.Put("/{name}", h.UpdateGroup)
		r.Delete("/{name}", h.DeleteGroup)
		r.Get("/{name}/members", h.ListMembers)
		r.Put("/{name}/members/{username}", h.AddUserToGroup)
		r.Delete("/{name}/members/{username}", h.RemoveUserFromGroup)
		r.Post("/{name}/roles", h.AddGroupRoles)
		r.Delete("/{name}/roles", h.RemoveGroupRoles)
	})
}

type GroupRequest struct {
	Name string `json:"name"`
}

type GroupResponse struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Path       string              `json:"path,omitempty"`
	Attributes map[string][]string `json:"attributes,omitempty"`
	Roles      []RoleResponse      `json:"roles,omitempty"`
	Members    []MemberResponse    `json:"members,omitempty"`
}

type RoleResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type MemberResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type RoleNamesRequest struct {
	Roles []string `json:"roles"`
}

type DeletedResponse struct {
	Deleted bool `json:"deleted"`
}

func (h Handle) ListGroups(w http.ResponseWriter, r *http.Request) {
	first, limit := pageWindow(r)
	groups, err := h.groupService.ListGroups(r.Context(), first, limit)
	if err != nil {
		slog.Error("Failed listing groups", "err", err)
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toGroupResponses(groups))
}

func (h Handle) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var request GroupRequest
	if err := render.DecodeJSON(r.Body, &request); err != nil {
		writeError(w, r, kcerrors.New(kcerrors.ErrCodeInvalidInput, "invalid request body"))
		return
	}

	created, err := h.groupService.CreateGroup(r.Context(), kc.Group{Name: request.Name})
	if err != nil {
		slog.Error("Failed creating group", "group", request.Name, "err", err)
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toGroupResponse(created))
}

func (h Handle) CreateTenantGroup(w http.ResponseWriter, r *http.Request) {
	var request GroupRequest
	if err := render.DecodeJSON(r.Body, &request); err != nil || request.Name == "" {
		writeError(w, r, kcerrors.New(kcerrors.ErrCodeInvalidInput, "group name is required"))
		return
	}

	created, err := h.groupService.CreateTenantGroup(r.Context(), request.Name)
	if err != nil {
		slog.Error("Failed creating tenant group", "group", request.Name, "err", err)
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toGroupResponse(created))
}

func (h Handle) GetGroup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	found, err := h.groupService.GetGroup(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toGroupResponse(found))
}

func (h Handle) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var request GroupRequest
	if err := render.DecodeJSON(r.Body, &request); err != nil {
		writeError(w, r, kcerrors.New(kcerrors.ErrCodeInvalidInput, "invalid request body"))
		return
	}

	updated, err := h.groupService.UpdateGroup(r.Context(), name, kc.Group{Name: request.Name})
	if err != nil {
		slog.Error("Failed updating group", "group", name, "err", err)
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toGroupResponse(updated))
}

func (h Handle) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	deleted, err := h.groupService.DeleteGroup(r.Context(), name)
	if err != nil {
		slog.Error("Failed deleting group", "group", name, "err", err)
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, DeletedResponse{Deleted: deleted})
}

func (h Handle) ListMembers(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	first, limit := pageWindow(r)
	members, err := h.groupService.Members(r.Context(), name, first, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var response []MemberResponse
	if err := copier.Copy(&response, &members); err != nil {
		writeError(w, r, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to map members"))
		return
	}
	render.JSON(w, r, response)
}

func (h Handle) AddUserToGroup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	username := chi.URLParam(r, "username")
	updated, err := h.groupService.AddUserToGroup(r.Context(), username, name)
	if err != nil {
		slog.Error("Failed adding user to group", "group", name, "username", username, "err", err)
		writeError(w, r, err)
		return
	}
	var response MemberResponse
	if err := copier.Copy(&response, &updated); err != nil {
		writeError(w, r, kcerrors.Wrap(err, kcerrors.ErrCodeInternal, "failed to map member"))
		return
	}
	render.JSON(w, r, response)
}

func (h Handle) RemoveUserFromGroup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	username := chi.URLParam(r, "username")
	if _, err := h.groupService.RemoveUserFromGroup(r.Context(), username, name); err != nil {
		slog.Error("Failed removing user from group", "group", name, "username", username, "err", err)
		writeError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func (h Handle) AddGroupRoles(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var request RoleNamesRequest
	if err := render.DecodeJSON(r.Body, &request); err != nil || len(request.Roles) == 0 {
		writeError(w, r, kcerrors.New(kcerrors.ErrCodeInvalidInput, "roles are required"))
		return
	}

	updated, err := h.groupService.AddGroupRoles(r.Context(), name, request.Roles...)
	if err != nil {
		slog.Error("Failed adding group roles", "group", name, "err", err)
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toGroupResponse(updated))
}

func (h Handle) RemoveGroupRoles(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var request RoleNamesRequest
	if err := render.DecodeJSON(r.Body, &request); err != nil || len(request.Roles) == 0 {
		writeError(w, r, kcerrors.New(kcerrors.ErrCodeInvalidInput, "roles are required"))
		return
	}

	updated, err := h.groupService.RemoveGroupRoles(r.Context(), name, request.Roles...)
	if err != nil {
		slog.Error("Failed removing group roles", "group", name, "err", err)
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toGroupResponse(updated))
}

func toGroupResponse(g kc.Group) GroupResponse {
	var response GroupResponse
	if err := copier.Copy(&response, &g); err != nil {
		slog.Error("Failed mapping group response", "group", g.Name, "err", err)
	}
	return response
}

func toGroupResponses(groups []kc.Group) []GroupResponse {
	responses := make([]GroupResponse, 0, len(groups))
	for _, g := range groups {
		responses = append(responses, toGroupResponse(g))
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
