package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/apperr"
)

// envelope is the {success, data?, error?, message?} shape spec.md §6
// requires for every response.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ok writes a successful envelope with the given status and payload.
func ok(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(envelope{Success: true, Data: data})
}

// fail writes a failed envelope carrying the stable apperr code as Error
// and a human-readable Message.
func fail(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(envelope{Success: false, Error: code, Message: message})
}

// httpStatus maps a business sentinel to its HTTP status per spec.md §7.
// Unrecognized errors map to 500.
func httpStatus(err error) int {
	switch apperr.Code(err) {
	case "SALE_NOT_ACTIVE", "OUT_OF_STOCK", "ALREADY_PURCHASED", "DUPLICATE_IN_FLIGHT":
		return fiber.StatusConflict
	case "TOO_MANY_ATTEMPTS":
		return fiber.StatusTooManyRequests
	case "INVALID_REQUEST":
		return fiber.StatusBadRequest
	case "NOT_FOUND":
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// failErr writes a failed envelope derived from err's apperr classification.
func failErr(c *fiber.Ctx, err error) error {
	return fail(c, httpStatus(err), apperr.Code(err), err.Error())
}
