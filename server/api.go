package main

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/pipeline"
)

type createNodeRequest struct {
	Type     string             `json:"type"`
	Position *pipeline.Position `json:"position"`
}

type dropRequest struct {
	Payload  string            `json:"payload"`
	Position pipeline.Position `json:"position"`
}

type fieldRequest struct {
	Value any `json:"value"`
}

type reportResponse struct {
	pipeline.Report
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

func newApp(sess *sessions, logger *log.Logger) *fiber.App {
	app := fiber.New()

	app.Use(func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Debug("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"took", time.Since(start).Round(time.Microsecond),
		)
		return err
	})

	// ── Sessions ──────────────────────────────────────────────────────
	app.Post("/sessions", func(c fiber.Ctx) error {
		id, store, err := sess.create()
		if err != nil {
			return writeError(c, err)
		}
		logger.Info("session created", "id", id)
		return c.Status(201).JSON(fiber.Map{"id": id, "graph": store.Snapshot()})
	})

	app.Get("/sessions/:id", func(c fiber.Ctx) error {
		store, err := sess.get(c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(store.Snapshot())
	})

	app.Delete("/sessions/:id", func(c fiber.Ctx) error {
		sess.remove(c.Params("id"))
		logger.Info("session removed", "id", c.Params("id"))
		return c.SendStatus(204)
	})

	app.Post("/sessions/:id/clear", func(c fiber.Ctx) error {
		store, err := sess.get(c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		store.Clear()
		return c.JSON(store.Snapshot())
	})

	// ── Nodes ─────────────────────────────────────────────────────────
	app.Post("/sessions/:id/nodes", func(c fiber.Ctx) error {
		store, err := sess.get(c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		var req createNodeRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		t, err := pipeline.ParseNodeType(req.Type)
		if err != nil {
			return writeError(c, err)
		}
		pos := pipeline.ScatterPosition()
		if req.Position != nil {
			pos = *req.Position
		}
		node, err := store.CreateNode(t, pos)
		if err != nil {
			return writeError(c, err)
		}
		return c.Status(201).JSON(node)
	})

	app.Post("/sessions/:id/drop", func(c fiber.Ctx) error {
		store, err := sess.get(c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		var req dropRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		node, err := store.Drop([]byte(req.Payload), req.Position)
		if err != nil {
			logger.Warn("drop rejected", "session", c.Params("id"), "err", err)
			return writeError(c, err)
		}
		return c.Status(201).JSON(node)
	})

	app.Patch("/sessions/:id/nodes", func(c fiber.Ctx) error {
		store, err := sess.get(c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		var changes []pipeline.NodeChange
		if err := c.Bind().JSON(&changes); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		snap, err := store.ApplyNodeChanges(changes)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(snap)
	})

	app.Put("/sessions/:id/nodes/:node/data/:field", func(c fiber.Ctx) error {
		store, err := sess.get(c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		var req fieldRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		if err := store.UpdateNodeField(c.Params("node"), c.Params("field"), req.Value); err != nil {
			return writeError(c, err)
		}
		return c.SendStatus(204)
	})

	// ── Edges ─────────────────────────────────────────────────────────
	app.Post("/sessions/:id/edges", func(c fiber.Ctx) error {
		store, err := sess.get(c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		var conn pipeline.Connection
		if err := c.Bind().JSON(&conn); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		edge, err := store.Connect(conn)
		if err != nil {
			return writeError(c, err)
		}
		return c.Status(201).JSON(edge)
	})

	app.Patch("/sessions/:id/edges", func(c fiber.Ctx) error {
		store, err := sess.get(c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		var changes []pipeline.EdgeChange
		if err := c.Bind().JSON(&changes); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		snap, err := store.ApplyEdgeChanges(changes)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(snap)
	})

	// ── Submission ────────────────────────────────────────────────────
	app.Post("/sessions/:id/submit", func(c fiber.Ctx) error {
		store, err := sess.get(c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		return submit(c, logger, store.Snapshot())
	})

	app.Get("/sessions/:id/dot", func(c fiber.Ctx) error {
		store, err := sess.get(c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		dot, err := pipeline.ToDOT(store.Snapshot())
		if err != nil {
			return writeError(c, err)
		}
		c.Set(fiber.HeaderContentType, "text/vnd.graphviz")
		return c.SendString(dot)
	})

	app.Post("/pipelines/parse", func(c fiber.Ctx) error {
		var snap pipeline.Snapshot
		if err := c.Bind().JSON(&snap); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		return submit(c, logger, snap)
	})

	return app
}

func submit(c fiber.Ctx, logger *log.Logger, snap pipeline.Snapshot) error {
	report, err := pipeline.Validate(snap)
	if err != nil {
		return writeError(c, err)
	}
	if !report.IsDAG {
		logger.Info("pipeline contains cycle", "cycle", report.Cycle)
	}
	return c.JSON(reportResponse{Report: report, Title: report.Title(), Summary: report.Summary()})
}

// writeError maps domain errors to HTTP status codes.
func writeError(c fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, errSessionNotFound), errors.Is(err, pipeline.ErrNodeNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, pipeline.ErrInvalidPayload),
		errors.Is(err, pipeline.ErrUnknownNodeType),
		errors.Is(err, pipeline.ErrUnknownField),
		errors.Is(err, pipeline.ErrInvalidValue),
		errors.Is(err, pipeline.ErrInvalidNode),
		errors.Is(err, pipeline.ErrInvalidEdge):
		status = fiber.StatusBadRequest
	case errors.Is(err, pipeline.ErrDuplicateNode), errors.Is(err, pipeline.ErrDuplicateEdge):
		status = fiber.StatusConflict
	case errors.Is(err, pipeline.ErrNoNodes):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, errSessionLimit):
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
