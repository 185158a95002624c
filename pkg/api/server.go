// Package api serves the scheduler admin operations and the student record
// endpoints over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Saiteja21M/studentsvc/pkg/admin"
	"github.com/Saiteja21M/studentsvc/pkg/auth"
	"github.com/Saiteja21M/studentsvc/pkg/core"
	"github.com/Saiteja21M/studentsvc/pkg/records"
)

// Scheduler is the admin surface the handlers call. *admin.Scheduler
// satisfies it.
type Scheduler interface {
	Schedule(ctx context.Context, jobType string, data map[string]string, spec core.TriggerSpec, opts ...admin.ScheduleOption) (core.TriggerKey, error)
	Reschedule(ctx context.Context, jobType string, data map[string]string, spec core.TriggerSpec, opts ...admin.ScheduleOption) (core.TriggerKey, error)
	DeleteJob(ctx context.Context, key core.JobKey) (bool, error)
	PauseJob(ctx context.Context, key core.JobKey) (bool, error)
	ResumeJob(ctx context.Context, key core.JobKey) (bool, error)
	JobStatus(ctx context.Context, key core.JobKey) (*core.JobStatus, error)
	ListAll(ctx context.Context) ([]core.GroupSummary, error)
	History(ctx context.Context, key core.JobKey, limit int) ([]*core.FireRecord, error)
}

// Records is the student record surface. *records.Service satisfies it.
type Records interface {
	Save(ctx context.Context, st *records.Student) (*records.Student, error)
	List(ctx context.Context) ([]records.Student, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// Config holds HTTP server settings.
type Config struct {
	Addr              string
	RequestsPerMinute int // zero disables rate limiting
	Burst             int
	ShutdownTimeout   time.Duration
	Gatherer          prometheus.Gatherer // served on /metrics when set
}

// Server is the HTTP front end.
type Server struct {
	cfg        Config
	router     *gin.Engine
	scheduler  Scheduler
	records    Records
	authorizer auth.Authorizer
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// WithClock replaces the wall clock used to compute fire times.
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// WithAuthorizer guards every endpoint except /healthz and /metrics.
func WithAuthorizer(a auth.Authorizer) Option { return func(s *Server) { s.authorizer = a } }

// New builds the router.
func New(cfg Config, sched Scheduler, recs Records, opts ...Option) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{
		cfg:        cfg,
		scheduler:  sched,
		records:    recs,
		authorizer: auth.AllowAll{},
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "api")
	s.router = s.routes()
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	if s.cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	guarded := r.Group("/", rateLimit(s.cfg.RequestsPerMinute, s.cfg.Burst), authorize(s.authorizer))
	s.schedulerRoutes(guarded)

	student := guarded.Group("/student")
	student.POST("/total-marks", s.saveStudent)
	student.GET("/student-details", s.studentDetails)
	student.DELETE("/delete-student", s.deleteStudent)
	s.schedulerRoutes(student)

	return r
}

func (s *Server) schedulerRoutes(g *gin.RouterGroup) {
	g.POST("/schedule-marks-calculation", s.scheduleMarks)
	g.POST("/schedule-daily-report", s.scheduleDailyReport)
	g.POST("/schedule-sync", s.scheduleSync)
	g.DELETE("/cancel-job", s.cancelJob)
	g.PUT("/disable-job", s.disableJob)
	g.PUT("/enable-job", s.enableJob)
	g.GET("/job-status", s.jobStatus)
	g.GET("/scheduled-jobs", s.scheduledJobs)
	g.GET("/job-history", s.jobHistory)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("http server stopped")
	return ctx.Err()
}
