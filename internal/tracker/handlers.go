package tracker

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/jrodrigopuca/tracking/internal/session"
)

var validate = validator.New()

type startRequest struct {
	Name string `json:"name" validate:"max=100"`
}

type fixRequest struct {
	Lat       float64 `json:"lat" validate:"latitude"`
	Lng       float64 `json:"lng" validate:"longitude"`
	AccuracyM float64 `json:"accuracy,omitempty" validate:"gte=0"`
	Timestamp int64   `json:"timestamp,omitempty" validate:"gte=0"`
}

type waypointRequest struct {
	Name string `json:"name" validate:"required,max=50"`
}

type stopRequest struct {
	Save bool `json:"save"`
}

type fixResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	Status   Status `json:"status"`
}

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Post("/session", func(c *fiber.Ctx) error {
		var req startRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		status, err := svc.Start(req.Name)
		if err != nil {
			if errors.Is(err, ErrSessionInProgress) {
				return fiber.NewError(fiber.StatusConflict, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(status)
	})

	r.Get("/session", func(c *fiber.Ctx) error {
		status, err := svc.Status()
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return c.JSON(status)
	})

	r.Post("/session/pause", func(c *fiber.Ctx) error {
		status, err := svc.Pause()
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return c.JSON(status)
	})

	r.Post("/session/resume", func(c *fiber.Ctx) error {
		status, err := svc.Resume()
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return c.JSON(status)
	})

	r.Post("/session/stop", func(c *fiber.Ctx) error {
		var req stopRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		status, err := svc.Stop(c.Context(), req.Save)
		if err != nil {
			switch {
			case errors.Is(err, ErrNoSession):
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			case errors.Is(err, ErrNoRouteStore):
				return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(status)
	})

	r.Post("/session/points", func(c *fiber.Ctx) error {
		var req fixRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		fix := session.Position{Lat: req.Lat, Lng: req.Lng, AccuracyM: req.AccuracyM}
		if req.Timestamp > 0 {
			fix.Timestamp = time.UnixMilli(req.Timestamp)
		}

		status, reason, err := svc.RecordFix(fix)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		// A rejected fix is not an error; the response says what
		// happened and the session is untouched.
		return c.JSON(fixResponse{
			Accepted: reason == session.RejectNone,
			Reason:   string(reason),
			Status:   status,
		})
	})

	r.Post("/session/waypoints", func(c *fiber.Ctx) error {
		var req waypointRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		wp, err := svc.AddWaypoint(req.Name)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrNoPositionAvailable):
				return fiber.NewError(fiber.StatusConflict, err.Error())
			case errors.Is(err, session.ErrSessionInactive), errors.Is(err, ErrNoSession):
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(wp)
	})

	r.Post("/session/snapshot", func(c *fiber.Ctx) error {
		if err := svc.SaveSnapshot(c.Context()); err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/session/restore", func(c *fiber.Ctx) error {
		status, err := svc.RestoreSnapshot(c.Context())
		if err != nil {
			if errors.Is(err, ErrSessionInProgress) {
				return fiber.NewError(fiber.StatusConflict, err.Error())
			}
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return c.JSON(status)
	})

	r.Delete("/session", func(c *fiber.Ctx) error {
		svc.Discard(c.Context())
		return c.SendStatus(fiber.StatusNoContent)
	})
}
