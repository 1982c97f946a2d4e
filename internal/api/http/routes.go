package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/hens-workflow/internal/common"
	"github.com/i474232898/hens-workflow/internal/noise"
	"github.com/i474232898/hens-workflow/internal/store"
)

var validate = validator.New()

// SampleReader is the read side of the cache sample history.
type SampleReader interface {
	Latest() (store.CacheSample, error)
	Range(from, to time.Time) ([]store.CacheSample, error)
}

// NoiseDefaults are the values used when a noise request omits a parameter.
type NoiseDefaults struct {
	Variables     []string
	LeadTime      int
	Amplification float64
	Perturbed     []string
	PerturbedSet  bool
}

// Dependencies holds what the handlers read from.
type Dependencies struct {
	Samples SampleReader
	// Skill may be nil; the noise endpoint then answers 503.
	Skill    *noise.SkillTable
	Noise    NoiseDefaults
	Gatherer prometheus.Gatherer
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Dependencies) {
	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := app.Group("/api/v1")

	v1.Get("/cache/status", func(c *fiber.Ctx) error {
		sample, err := deps.Samples.Latest()
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no cache samples yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read cache status")
		}
		return c.JSON(statusResponse(sample))
	})

	v1.Get("/cache/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		samples, err := deps.Samples.Range(req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no cache samples for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read cache history")
		}

		return c.JSON(fiber.Map{
			"from":    req.From,
			"to":      req.To,
			"samples": samples,
		})
	})

	v1.Get("/noise", func(c *fiber.Ctx) error {
		if deps.Skill == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "no skill table configured")
		}

		req := noiseQuery{
			LeadTime:      deps.Noise.LeadTime,
			Amplification: deps.Noise.Amplification,
			Perturbed:     deps.Noise.Perturbed,
			PerturbedSet:  deps.Noise.PerturbedSet,
		}
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		opts := append(noise.PerturbedFromList(req.Perturbed, req.PerturbedSet), noise.WithAmplification(req.Amplification))
		vec, err := noise.Build(deps.Noise.Variables, deps.Skill, req.LeadTime, opts...)
		if err != nil {
			if errors.Is(err, noise.ErrSkillNotFound) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to build noise vector")
		}

		return c.JSON(fiber.Map{
			"leadTime":      req.LeadTime,
			"amplification": req.Amplification,
			"variables":     deps.Noise.Variables,
			"vector":        vec,
		})
	})
}

type cacheStatus struct {
	store.CacheSample
	Percent  float64 `json:"percent"`
	Complete bool    `json:"complete"`
}

func statusResponse(s store.CacheSample) cacheStatus {
	return cacheStatus{CacheSample: s, Percent: s.Percent(), Complete: s.Complete()}
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// noiseQuery holds query parameters for the noise endpoint, pre-filled with
// the configured defaults.
type noiseQuery struct {
	LeadTime      int `validate:"gte=0"`
	Amplification float64
	Perturbed     []string
	PerturbedSet  bool
}

func (q *noiseQuery) bind(c *fiber.Ctx) error {
	if v := c.Query("lead_time"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("lead_time must be an integer number of hours")
		}
		q.LeadTime = n
	}
	if v := c.Query("amplification"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.New("amplification must be a number")
		}
		q.Amplification = f
	}
	// An explicit empty perturbed parameter disables perturbation.
	if c.Context().QueryArgs().Has("perturbed") {
		q.Perturbed = common.SplitList(c.Query("perturbed"))
		q.PerturbedSet = true
	}
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
