package main

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/chi-demo/app"

	"github.com/tendant/keycloak-admin/pkg/group"
	groupapi "github.com/tendant/keycloak-admin/pkg/group/api"
	"github.com/tendant/keycloak-admin/pkg/kc"
	"github.com/tendant/keycloak-admin/pkg/role"
	roleapi "github.com/tendant/keycloak-admin/pkg/role/api"
	"github.com/tendant/keycloak-admin/pkg/user"
	userapi "github.com/tendant/keycloak-admin/pkg/user/api"
)

type KeycloakConfig struct {
	BaseURL      string `env:"KC_BASE_URL" env-default:"http://localhost:8090"`
	Realm        string `env:"KC_REALM" env-default:"trikorasolutions"`
	ClientID     string `env:"KC_CLIENT_ID" env-default:"backend-service"`
	ClientSecret string `env:"KC_CLIENT_SECRET" env-default:""`
	BufferSize   int    `env:"KC_BUFFER_SIZE" env-default:"100"`
}

type JwtConfig struct {
	JwtSecret string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
}

type Config struct {
	KeycloakConfig KeycloakConfig
	AppConfig      app.AppConfig
	JwtConfig      JwtConfig
}

func main() {

	config := Config{}
	cleanenv.ReadEnv(&config)

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	tokens := kc.NewClientCredentialsTokenSource(
		config.KeycloakConfig.BaseURL,
		config.KeycloakConfig.Realm,
		config.KeycloakConfig.ClientID,
		config.KeycloakConfig.ClientSecret,
	)
	client := kc.NewClient(kc.Config{
		BaseURL:  config.KeycloakConfig.BaseURL,
		Realm:    config.KeycloakConfig.Realm,
		ClientID: config.KeycloakConfig.ClientID,
	}, tokens)

	userService := user.NewService(client,
		user.WithRealmContext(client.Realm(), client.ClientID()),
		user.WithBufferSize(config.KeycloakConfig.BufferSize))
	groupService := group.NewService(client, userService,
		group.WithRealmContext(client.Realm(), client.ClientID()),
		group.WithBufferSize(config.KeycloakConfig.BufferSize))
	roleService := role.NewService(client, groupService,
		role.WithRealmContext(client.Realm(), client.ClientID()),
		role.WithBufferSize(config.KeycloakConfig.BufferSize))

	userHandle := userapi.NewHandle(userService)
	groupHandle := groupapi.NewHandle(groupService)
	roleHandle := roleapi.NewHandle(roleService)

	tokenAuth := jwtauth.New("HS256", []byte(config.JwtConfig.JwtSecret), nil)

	server.R.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(tokenAuth))
		r.Use(jwtauth.Authenticator(tokenAuth))
		userHandle.RegisterRoutes(r)
		groupHandle.RegisterRoutes(r)
		roleHandle.RegisterRoutes(r)
	})

	server.Run()

}
