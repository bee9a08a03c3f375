package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/autoelite-platform/procurement-service/pkg/logging"
)

// Actor identifies the user performing a request.
type Actor struct {
	ID   string
	Role string
}

// Known actor roles accepted by the platform.
const (
	RoleUser             = "user"
	RoleInventoryManager = "inventory_manager"
	RoleManager          = "manager"
	RoleFinanceManager   = "finance_manager"
	RoleAdmin            = "admin"
)

var validRoles = map[string]bool{
	RoleUser:             true,
	RoleInventoryManager: true,
	RoleManager:          true,
	RoleFinanceManager:   true,
	RoleAdmin:            true,
}

// ActorAuthConfig holds configuration for the actor middleware
type ActorAuthConfig struct {
	// Required when true, requests without actor headers will be rejected
	Required bool

	// DefaultActorID is used when no actor header is provided and Required is false
	DefaultActorID string

	// DefaultRole is used when no role header is provided and Required is false
	DefaultRole string
}

// DefaultActorAuthConfig returns a configuration suitable for development
func DefaultActorAuthConfig() *ActorAuthConfig {
	return &ActorAuthConfig{
		Required:       false,
		DefaultActorID: "system",
		DefaultRole:    RoleAdmin,
	}
}

// ActorAuth extracts the acting user from request headers and adds it to the
// request context. Role values are validated against the known role set.
func ActorAuth(config *ActorAuthConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultActorAuthConfig()
	}

	return func(c *gin.Context) {
		actorID := c.GetHeader(HeaderActorID)
		role := c.GetHeader(HeaderActorRole)

		if actorID == "" && !config.Required {
			actorID = config.DefaultActorID
		}
		if role == "" && !config.Required {
			role = config.DefaultRole
		}

		if config.Required && (actorID == "" || role == "") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "MISSING_ACTOR_CONTEXT",
				"message": "Actor identity and role headers are required",
			})
			return
		}

		if !validRoles[role] {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "UNKNOWN_ROLE",
				"message": "Unknown actor role: " + role,
			})
			return
		}

		ctx := logging.ContextWithActorID(c.Request.Context(), actorID)
		c.Request = c.Request.WithContext(ctx)

		c.Set(ContextKeyActorID, actorID)
		c.Set(ContextKeyActorRole, role)

		c.Next()
	}
}

// GetActor retrieves the acting user from Gin context
func GetActor(c *gin.Context) Actor {
	return Actor{
		ID:   c.GetString(ContextKeyActorID),
		Role: c.GetString(ContextKeyActorRole),
	}
}

// RequireRole restricts an endpoint to the given roles.
// Use after ActorAuth.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		actor := GetActor(c)
		if actor.Role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "MISSING_ACTOR_CONTEXT",
				"message": "Actor role is required for this endpoint",
			})
			return
		}

		if !allowed[actor.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "ROLE_NOT_PERMITTED",
				"message": "Role " + actor.Role + " is not permitted to perform this operation",
			})
			return
		}

		c.Next()
	}
}
