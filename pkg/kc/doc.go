// Package kc is the low-level gateway to the Keycloak admin REST API.
//
// One method on Client corresponds to one REST endpoint. The gateway decodes
// wire records into the typed representations in this package and reports
// failed calls as *APIError values carrying the upstream HTTP status code.
// It performs no retries, no caching and no error classification; the
// business-logic services in pkg/user, pkg/group and pkg/role layer the
// enrichment, pagination and error taxonomy on top.
//
// All calls are scoped to the realm and client id the Client was built with,
// and authenticate with a bearer token obtained from the injected
// TokenSource on every request.
package kc
