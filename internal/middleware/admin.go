package middleware

import (
	"stcoins/internal/domain"

	"github.com/gin-gonic/gin"
)

// AdminRequired gates the admin route group. Services re-check the role on every
// admin operation, so this only rejects early.
func AdminRequired() gin.HandlerFunc {
	return RequireRole(domain.RoleAdmin)
}
