package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/emberfall/emberfall-api/internal/auth"
	"github.com/emberfall/emberfall-api/internal/service"
	apperrors "github.com/emberfall/emberfall-api/pkg/util"
)

// StaffHandler serves the staff-only surfaces: the support dashboard list
// and the assignee picker.
type StaffHandler struct {
	tickets *service.TicketService
}

// NewStaffHandler constructs handler.
func NewStaffHandler(ticketService *service.TicketService) *StaffHandler {
	return &StaffHandler{tickets: ticketService}
}

// ListStaff GET /staff.
func (h *StaffHandler) ListStaff(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthenticated("authentication required")
	}
	staff, err := h.tickets.ListStaff(c.UserContext(), *identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": staff})
}

// ListStaffTickets GET /staff/tickets.
func (h *StaffHandler) ListStaffTickets(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthenticated("authentication required")
	}
	overviews, err := h.tickets.ListStaffTickets(c.UserContext(), *identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": overviews})
}
