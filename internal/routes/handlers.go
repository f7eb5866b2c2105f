package routes

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

func RegisterRoutes(r fiber.Router, store *Store) {
	r.Get("/", func(c *fiber.Ctx) error {
		list, err := store.List(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if list == nil {
			list = []SavedRoute{}
		}
		return c.JSON(list)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		route, err := store.Get(c.Context(), c.Params("id"))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fiber.NewError(fiber.StatusNotFound, "route not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(route)
	})

	r.Delete("/:id", func(c *fiber.Ctx) error {
		if err := store.Delete(c.Context(), c.Params("id")); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
