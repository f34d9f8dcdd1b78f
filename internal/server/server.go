package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"geoattend/internal/auth"
	"geoattend/internal/httpmiddleware"
	"geoattend/internal/metrics"
	"geoattend/internal/queue"
	"geoattend/internal/store"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Options wires the backend's dependencies.
type Options struct {
	Repo            store.Repository
	Queue           queue.Queue
	Metrics         *metrics.Metrics
	Log             zerolog.Logger
	SigningKey      string
	Issuer          string
	RateLimitPerMin int
	Health          map[string]HealthCheck
}

// Server is the reference backend for the attendance REST contract.
type Server struct {
	repo    store.Repository
	queue   queue.Queue
	metrics *metrics.Metrics
	log     zerolog.Logger
	health  map[string]HealthCheck
	limiter *httpmiddleware.SimpleTokenBucket

	signingKey string
	issuer     string
	now        func() time.Time
}

// New builds a server. Queue and Metrics are optional.
func New(opts Options) *Server {
	return &Server{
		repo:       opts.Repo,
		queue:      opts.Queue,
		metrics:    opts.Metrics,
		log:        opts.Log.With().Str("component", "api").Logger(),
		health:     opts.Health,
		limiter:    httpmiddleware.NewSimpleTokenBucket(opts.RateLimitPerMin, opts.RateLimitPerMin),
		signingKey: opts.SigningKey,
		issuer:     opts.Issuer,
		now:        time.Now,
	}
}

// Router builds the gin engine with every route attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.log, "/healthz", "/metrics"))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	if s.metrics != nil {
		r.Use(s.metrics.Middleware())
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	r.GET("/healthz", s.healthz)

	api := r.Group("", auth.RequireUser(s.signingKey, s.issuer), s.limiter.GinMiddleware(callerKey))

	api.GET("/user/get-class-owner/:userId", requirePathUser(), s.listOwnedClasses)
	api.GET("/user/get-students-class/:userId", requirePathUser(), s.listMemberClasses)

	api.POST("/class/create-class", s.createClass)
	api.POST("/class/join-class/:classId", s.joinClass)
	api.DELETE("/class/delete-class/:classId", s.deleteClass)

	api.GET("/attendance/get-subclass/:classId", s.listTimelines)
	api.POST("/attendance/create-timeline/:classId", s.createTimeline)
	api.PATCH("/attendance/edit-timeline/:id", s.editTimeline)
	api.DELETE("/attendance/delete-timeline/:id", s.deleteTimeline)
	api.POST("/attendance/check-in/:id", s.checkIn)
	api.PATCH("/attendance/check-out/:id", s.checkOut)

	return r
}

func (s *Server) healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range s.health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// publish hands an audit event to the queue. Failures are logged and never
// fail the request that produced the event.
func (s *Server) publish(evt store.Event) {
	if s.queue == nil {
		return
	}
	evt.ID = uuid.NewString()
	evt.OccurredAt = s.now().UTC()
	msg, err := queue.Encode(evt)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = s.queue.Publish(ctx, msg)
		cancel()
	}
	if s.metrics != nil {
		s.metrics.Event(evt.Type, err)
	}
	if err != nil {
		s.log.Error().Err(err).Str("type", evt.Type).Msg("queue publish failed")
	}
}

func (s *Server) attendanceOutcome(kind, outcome string) {
	if s.metrics != nil {
		s.metrics.Attendance(kind, outcome)
	}
}
