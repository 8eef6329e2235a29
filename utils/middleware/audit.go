package middleware

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/bimuz/bimuz-api/model"
)

// AuditLog records staff mutations that move money or seats. Must run after
// AuthMiddleware.Required; requests without an authenticated user pass
// through unlogged.
func AuditLog(db *gorm.DB, action, resource string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := GetUser(c)
		if !ok {
			return c.Next()
		}

		// Parse resource ID from params if available
		var resourceID uint
		if id := c.Params("id"); id != "" {
			if parsedID, err := strconv.ParseUint(id, 10, 32); err == nil {
				resourceID = uint(parsedID)
			}
		}

		// Capture the request body for POST/PUT mutations
		var requestBody []byte
		if c.Method() == fiber.MethodPost || c.Method() == fiber.MethodPut {
			body := c.Body()
			if len(body) > 0 && json.Valid(body) {
				requestBody = make([]byte, len(body))
				copy(requestBody, body)
			}
		}

		ip := c.IP()
		userAgent := c.Get("User-Agent")
		description := c.Method() + " " + c.Path()

		// Execute the actual handler
		err := c.Next()

		// Log the action after completion
		go func() {
			auditLog := model.StaffAuditLog{
				UserID:      user.ID,
				Action:      action,
				Resource:    resource,
				ResourceID:  resourceID,
				RequestBody: string(requestBody),
				IPAddress:   ip,
				UserAgent:   userAgent,
				Description: description,
			}
			db.Create(&auditLog)
		}()

		return err
	}
}
