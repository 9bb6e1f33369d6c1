package iam

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/apikey"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/auth"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/authz"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/domain"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/probe"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/repository"
)

// Request headers recognized by the pipeline.
const (
	HeaderTenantID = "X-Tenant-Id"
	HeaderAPIKey   = "X-Api-Key"
)

// AuthRequest carries the credential material extracted from a request.
type AuthRequest struct {
	Authorization string
	APIKey        string
	TenantID      string
}

// AuthRequestFromHTTP extracts the relevant headers.
func AuthRequestFromHTTP(r *http.Request) AuthRequest {
	return AuthRequest{
		Authorization: r.Header.Get("Authorization"),
		APIKey:        r.Header.Get(HeaderAPIKey),
		TenantID:      r.Header.Get(HeaderTenantID),
	}
}

// TokenValidator validates a raw bearer token into an identity.
type TokenValidator interface {
	Validate(ctx context.Context, raw string) (auth.Identity, error)
}

// Config holds pipeline settings.
type Config struct {
	// SingleTenantMode lets requests without a tenant header fall back to
	// the default tenant, auto-enrolling first-time users.
	SingleTenantMode  bool
	DefaultTenantName string
	// APIKeyTag is the recognizable secret prefix used for credential
	// classification.
	APIKeyTag string
}

// Service is the authentication pipeline. Each stage is a pure-ish function
// from request state to request state; I/O happens in validation, JIT
// provisioning and the tenant permission check.
type Service struct {
	db        *bun.DB
	validator TokenValidator
	users     repository.UserRepository
	tenants   repository.TenantRepository
	keys      repository.APIKeyRepository
	outbox    repository.OutboxRepository
	engine    authz.Engine
	probe     probe.AuthProbe
	cfg       Config
}

// NewService wires the pipeline.
func NewService(
	db *bun.DB,
	validator TokenValidator,
	users repository.UserRepository,
	tenants repository.TenantRepository,
	keys repository.APIKeyRepository,
	outbox repository.OutboxRepository,
	engine authz.Engine,
	p probe.AuthProbe,
	cfg Config,
) *Service {
	if cfg.APIKeyTag == "" {
		cfg.APIKeyTag = apikey.DefaultTag
	}
	if p == nil {
		p = probe.NopAuthProbe{}
	}
	return &Service{
		db:        db,
		validator: validator,
		users:     users,
		tenants:   tenants,
		keys:      keys,
		outbox:    outbox,
		engine:    engine,
		probe:     p,
		cfg:       cfg,
	}
}

type tenantSource int

const (
	sourceHeader tenantSource = iota
	sourceDefault
	sourceKey
)

// Authenticate runs the full pipeline and yields the request principal.
func (s *Service) Authenticate(ctx context.Context, req AuthRequest) (*Principal, error) {
	principal, err := s.authenticate(ctx, req)
	if err != nil {
		if reason := auth.ReasonOf(err); reason != "" {
			s.probe.AuthenticationFailed(string(reason))
		}
		return nil, err
	}
	s.probe.Authenticated(string(principal.UserID), string(principal.TenantID), string(principal.CredentialKind))
	return principal, nil
}

func (s *Service) authenticate(ctx context.Context, req AuthRequest) (*Principal, error) {
	// Stage 1: classification.
	if token, ok := auth.BearerToken(req.Authorization); ok && auth.LooksLikeJWT(token) {
		return s.authenticateToken(ctx, token, req.TenantID)
	}
	if secret, ok := s.apiKeySecret(req); ok {
		return s.authenticateAPIKey(ctx, secret)
	}
	return nil, auth.NewError(auth.ReasonNoCredentials)
}

// apiKeySecret looks for a secret in the dedicated header, the ApiKey
// authorization scheme, or a tagged value behind the Bearer scheme.
func (s *Service) apiKeySecret(req AuthRequest) (string, bool) {
	if strings.HasPrefix(req.APIKey, s.cfg.APIKeyTag) {
		return req.APIKey, true
	}
	if secret, ok := auth.APIKeyCredential(req.Authorization); ok {
		return secret, true
	}
	if token, ok := auth.BearerToken(req.Authorization); ok && strings.HasPrefix(token, s.cfg.APIKeyTag) {
		return token, true
	}
	return "", false
}

func (s *Service) authenticateToken(ctx context.Context, raw, tenantHeader string) (*Principal, error) {
	// Stage 2a: validation.
	identity, err := s.validator.Validate(ctx, raw)
	if err != nil {
		return nil, err
	}
	userID, err := domain.ParseUserID(identity.UserID)
	if err != nil {
		return nil, auth.NewError(auth.ReasonMissingClaim)
	}

	// Stage 3: JIT provisioning in its own transaction, so the user row
	// survives even when tenant resolution fails below.
	var created bool
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		created, err = s.users.Ensure(ctx, tx, userID, identity.Username)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("provision user: %w", err)
	}
	if created {
		s.probe.UserProvisioned(identity.UserID, identity.Username)
	}

	// Stage 4: tenant resolution and binding check.
	tenantID, source, err := s.resolveTenant(ctx, tenantHeader)
	if err != nil {
		return nil, err
	}
	if err := s.checkTenantBinding(ctx, userID, tenantID, source); err != nil {
		return nil, err
	}

	// Stage 5.
	return &Principal{
		UserID:         userID,
		Username:       identity.Username,
		TenantID:       tenantID,
		CredentialKind: CredentialToken,
	}, nil
}

func (s *Service) authenticateAPIKey(ctx context.Context, secret string) (*Principal, error) {
	// Stage 2b: prefix lookup plus slow-hash verification.
	key, err := s.verifyAPIKey(ctx, secret)
	if err != nil {
		return nil, err
	}

	username := string(key.OwnerUserID)
	if user, err := s.users.FindByID(ctx, key.OwnerUserID); err == nil {
		username = user.Username
	}

	// Stage 4: the tenant comes from the key; any X-Tenant-Id header is
	// ignored, mismatch included.
	if err := s.checkTenantBinding(ctx, key.OwnerUserID, key.TenantID, sourceKey); err != nil {
		return nil, err
	}

	return &Principal{
		UserID:         key.OwnerUserID,
		Username:       username,
		TenantID:       key.TenantID,
		CredentialKind: CredentialAPIKey,
	}, nil
}

// verifyAPIKey finds the candidates by prefix and runs constant-time hash
// verification over them. No match, a failed verify, a revoked key and an
// expired key are indistinguishable to the caller.
func (s *Service) verifyAPIKey(ctx context.Context, secret string) (*domain.APIKey, error) {
	if len(secret) < domain.PrefixLength {
		return nil, auth.NewError(auth.ReasonAPIKeyVerificationFailed)
	}

	candidates, err := s.keys.FindByPrefix(ctx, secret[:domain.PrefixLength])
	if err != nil {
		return nil, fmt.Errorf("look up api key candidates: %w", err)
	}

	var match *domain.APIKey
	for _, candidate := range candidates {
		if apikey.Verify(candidate.Hash, secret) {
			match = candidate
			break
		}
	}
	if match == nil || !match.IsUsable(time.Now().UTC()) {
		return nil, auth.NewError(auth.ReasonAPIKeyVerificationFailed)
	}

	// Opportunistic; a failed write must not fail the request.
	_ = s.keys.UpdateLastUsed(ctx, match.ID, time.Now().UTC())

	return match, nil
}

// resolveTenant resolves the token path's tenant: explicit header first,
// then the default tenant in single-tenant mode.
func (s *Service) resolveTenant(ctx context.Context, tenantHeader string) (domain.TenantID, tenantSource, error) {
	if tenantHeader != "" {
		tenantID, err := domain.ParseTenantID(tenantHeader)
		if err != nil {
			return "", 0, fmt.Errorf("header %s: %w", HeaderTenantID, auth.ErrTenantContextMissing)
		}
		return tenantID, sourceHeader, nil
	}

	if s.cfg.SingleTenantMode {
		tenant, err := s.tenants.FindByName(ctx, s.cfg.DefaultTenantName)
		if err != nil {
			return "", 0, fmt.Errorf("default tenant %q: %w", s.cfg.DefaultTenantName, auth.ErrTenantContextMissing)
		}
		return tenant.ID, sourceDefault, nil
	}

	return "", 0, auth.ErrTenantContextMissing
}

// checkTenantBinding requires VIEW on the tenant. On the default tenant in
// single-tenant mode a missing binding bootstraps the membership instead of
// failing; the outbox propagates it to the engine.
func (s *Service) checkTenantBinding(ctx context.Context, userID domain.UserID, tenantID domain.TenantID, source tenantSource) error {
	subject := authz.ObjectRef{Type: authz.ResourceUser, ID: string(userID)}
	resource := authz.ObjectRef{Type: authz.ResourceTenant, ID: string(tenantID)}

	ok, err := s.engine.Check(ctx, subject, authz.PermissionView, resource)
	if err != nil {
		return fmt.Errorf("check tenant binding: %w", err)
	}
	if ok {
		return nil
	}
	if source != sourceDefault {
		return auth.ErrForbidden
	}
	return s.bootstrapMembership(ctx, userID, tenantID)
}

// bootstrapMembership auto-adds a first-login user to the default tenant.
func (s *Service) bootstrapMembership(ctx context.Context, userID domain.UserID, tenantID domain.TenantID) error {
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load default tenant: %w", err)
	}
	tenant.AddMember(userID, domain.RoleMember)

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.outbox.Append(ctx, tx, tenant.CollectEvents()...)
	})
	if err != nil {
		return fmt.Errorf("bootstrap tenant membership: %w", err)
	}
	s.probe.TenantBootstrapped(string(tenantID), string(userID))
	return nil
}
