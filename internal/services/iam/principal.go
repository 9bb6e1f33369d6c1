// Package iam runs the authentication pipeline: credential classification,
// validation, just-in-time user provisioning, tenant resolution and
// principal emission.
package iam

import "github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"

// CredentialKind identifies how a principal authenticated.
type CredentialKind string

const (
	CredentialToken  CredentialKind = "token"
	CredentialAPIKey CredentialKind = "api_key"
)

// Principal is an authenticated identity bound to a tenant for the scope of
// one request. It is immutable after construction.
type Principal struct {
	UserID         domain.UserID
	Username       string
	TenantID       domain.TenantID
	CredentialKind CredentialKind
}
