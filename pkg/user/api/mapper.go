package api

import (
	"log/slog"

	"github.com/jinzhu/copier"

	"github.com/tendant/keycloak-admin/pkg/kc"
)

func toUser(request UserRequest) kc.User {
	enabled := true
	if request.Enabled != nil {
		enabled = *request.Enabled
	}
	return kc.User{
		Username:  request.Username,
		FirstName: request.FirstName,
		LastName:  request.LastName,
		Email:     request.Email,
		Enabled:   enabled,
	}
}

func toUserResponse(user kc.User) UserResponse {
	var response UserResponse
	if err := copier.Copy(&response, &user); err != nil {
		slog.Error("Failed mapping user response", "username", user.Username, "err", err)
	}
	return response
}

func toUserResponses(users []kc.User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, toUserResponse(u))
	}
	return responses
}
