package server

import (
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/jrodrigopuca/tracking/internal/config"
	"github.com/jrodrigopuca/tracking/internal/metrics"
	"github.com/jrodrigopuca/tracking/internal/routes"
	"github.com/jrodrigopuca/tracking/internal/snapshot"
	"github.com/jrodrigopuca/tracking/internal/stream"
	"github.com/jrodrigopuca/tracking/internal/tracker"
)

type Server struct {
	App     *fiber.App
	Cfg     config.Config
	DB      *pgxpool.Pool
	Redis   *redis.Client
	Stream  *stream.Hub
	Tracker *tracker.Service
	Routes  *routes.Store
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	hub := stream.NewHub(redisClient)
	snapshots := snapshot.NewStore(redisClient, time.Duration(cfg.SnapshotTTLHours)*time.Hour)

	var routeStore *routes.Store
	if db != nil {
		routeStore = routes.NewStore(db)
	}

	policy := tracker.Policy{
		MinInterval: time.Duration(cfg.MinPointIntervalMs) * time.Millisecond,
		Dedup:       cfg.DedupPoints,
	}

	s := &Server{
		App:     app,
		Cfg:     cfg,
		DB:      db,
		Redis:   redisClient,
		Stream:  hub,
		Tracker: tracker.NewService(policy, snapshots, routeStore, hub),
		Routes:  routeStore,
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	metrics.RegisterDefault()
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	tracker.RegisterRoutes(s.App.Group("/tracking"), s.Tracker)
	if s.Routes != nil {
		routes.RegisterRoutes(s.App.Group("/routes"), s.Routes)
	}
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
