package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/clinicdesk/backend/internal/infrastructure/auth"
	"github.com/clinicdesk/backend/internal/infrastructure/logger"
	"github.com/clinicdesk/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Identity headers and gin context keys
const (
	AuthHeaderKey  = "Authorization"
	BearerPrefix   = "Bearer "
	TenantHeader   = "X-Tenant-ID"
	UserHeader     = "X-User-ID"
	SiteHeader     = "X-Site"
	OperatorKey    = "cashdesk_operator"
	maxSiteLength  = 64
	identitySource = "identity_source"
)

// IdentityConfig configures how the operator behind a request is resolved
type IdentityConfig struct {
	JWTService *auth.JWTService
	// AllowHeaderIdentity accepts X-Tenant-ID / X-User-ID when no bearer token is sent
	AllowHeaderIdentity bool
	SkipPaths           []string
	SkipPathPrefixes    []string
	Logger              *zap.Logger
}

// DefaultIdentityConfig skips health and documentation routes
func DefaultIdentityConfig(jwtService *auth.JWTService) IdentityConfig {
	return IdentityConfig{
		JWTService:       jwtService,
		SkipPaths:        []string{"/health", "/api/v1/health"},
		SkipPathPrefixes: []string{"/swagger"},
	}
}

// Identity resolves the operator from a bearer token, or from identity headers when allowed,
// and stores it on the gin context. The request logger is enriched with tenant, operator and site.
func Identity(cfg IdentityConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		if skipPath(c.Request.URL.Path, cfg.SkipPaths, cfg.SkipPathPrefixes) {
			c.Next()
			return
		}

		op, source, err := resolveOperator(c, cfg)
		if err != nil {
			log.Warn("request identity rejected",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
			)
			abortUnauthorized(c, err)
			return
		}

		// the site claim is a default; explicit X-Site narrows it for multi-site operators
		if site := strings.TrimSpace(c.GetHeader(SiteHeader)); site != "" && len(site) <= maxSiteLength {
			op.Site = site
		}

		c.Set(OperatorKey, op)
		c.Set(identitySource, source)

		ctx := c.Request.Context()
		reqLog := logger.FromContext(ctx)
		ctx, reqLog = logger.WithTenantID(ctx, reqLog, op.TenantID.String())
		ctx, reqLog = logger.WithUserID(ctx, reqLog, op.UserID.String())
		if op.Site != "" {
			ctx, _ = logger.WithSite(ctx, reqLog, op.Site)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

var errMissingIdentity = errors.New("missing authorization header")

func resolveOperator(c *gin.Context, cfg IdentityConfig) (*auth.Operator, string, error) {
	header := c.GetHeader(AuthHeaderKey)
	if header != "" {
		if !strings.HasPrefix(header, BearerPrefix) {
			return nil, "", auth.ErrInvalidToken
		}
		if cfg.JWTService == nil {
			return nil, "", auth.ErrMissingSecret
		}
		op, err := cfg.JWTService.ValidateToken(strings.TrimPrefix(header, BearerPrefix))
		if err != nil {
			return nil, "", err
		}
		return op, "jwt", nil
	}

	if !cfg.AllowHeaderIdentity {
		return nil, "", errMissingIdentity
	}
	tenantID, err := uuid.Parse(c.GetHeader(TenantHeader))
	if err != nil {
		return nil, "", auth.ErrMissingTenantID
	}
	userID, err := uuid.Parse(c.GetHeader(UserHeader))
	if err != nil {
		return nil, "", auth.ErrMissingUserID
	}
	return &auth.Operator{TenantID: tenantID, UserID: userID}, "header", nil
}

func abortUnauthorized(c *gin.Context, err error) {
	code, message := dto.ErrCodeUnauthorized, "Authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, message = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		code, message = dto.ErrCodeTokenInvalid, "Token is not yet valid"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInvalidClaims),
		errors.Is(err, auth.ErrMissingTenantID), errors.Is(err, auth.ErrMissingUserID):
		code, message = dto.ErrCodeTokenInvalid, "Invalid credentials"
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponseWithRequestID(code, message, c.GetString(logger.RequestIDKey)))
}

func skipPath(path string, paths, prefixes []string) bool {
	for _, p := range paths {
		if path == p {
			return true
		}
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// GetOperator returns the operator resolved by Identity
func GetOperator(c *gin.Context) (*auth.Operator, bool) {
	v, ok := c.Get(OperatorKey)
	if !ok {
		return nil, false
	}
	op, ok := v.(*auth.Operator)
	return op, ok && op != nil
}

// GetTenantID returns the tenant of the resolved operator as a string, or ""
func GetTenantID(c *gin.Context) string {
	if op, ok := GetOperator(c); ok {
		return op.TenantID.String()
	}
	return ""
}

// GetUserID returns the resolved operator id as a string, or ""
func GetUserID(c *gin.Context) string {
	if op, ok := GetOperator(c); ok {
		return op.UserID.String()
	}
	return ""
}
