package httpapi

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/gridsight/solar-consumer/internal/ingest"
)

var validate = validator.New()

// RunTrigger starts one ingest run for a country on demand.
type RunTrigger func(ctx context.Context, country string) (*ingest.RunReport, error)

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, tracker *ingest.ReportTracker, trigger RunTrigger) {
	v1 := app.Group("/api/v1")

	v1.Get("/runs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"runs": tracker.All(),
		})
	})

	v1.Get("/runs/:country", func(c *fiber.Ctx) error {
		country, err := parseCountryParam(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		report, ok := tracker.Latest(country)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no runs recorded for country")
		}
		return c.JSON(report)
	})

	v1.Post("/runs/:country", func(c *fiber.Ctx) error {
		country, err := parseCountryParam(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		report, err := trigger(c.Context(), country)
		if err != nil {
			var confErr *ingest.ConfigurationError
			if errors.As(err, &confErr) {
				return fiber.NewError(fiber.StatusUnprocessableEntity, confErr.Error())
			}
			// A transport failure may still have produced a partial run.
			if report != nil {
				return c.Status(fiber.StatusBadGateway).JSON(report)
			}
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}

		return c.JSON(report)
	})
}

// countryParam holds the path parameter identifying a country.
type countryParam struct {
	Country string `validate:"required,len=2,alpha,lowercase"`
}

func parseCountryParam(c *fiber.Ctx) (string, error) {
	p := countryParam{Country: c.Params("country")}
	if err := validate.Struct(p); err != nil {
		return "", err
	}
	return p.Country, nil
}
