package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler mounted by the router.
type Handlers struct {
	Auth        *handler.AuthHandler
	Subjects    *handler.SubjectHandler
	Teachers    *handler.TeacherHandler
	Classes     *handler.ClassHandler
	Timetable   *handler.TimetableHandler
	Maintenance *handler.MaintenanceHandler
	Metrics     *handler.MetricsHandler
}

// Options configures cross-cutting behaviour of the router.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	AuthEnabled    bool
	EnableDocs     bool
	Tokens         internalmiddleware.TokenValidator
	Observer       internalmiddleware.RequestObserver
	Logger         *zap.Logger
}

// New builds the gin engine with middleware and every route.
func New(h Handlers, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	if opts.Observer != nil {
		r.Use(internalmiddleware.Metrics(opts.Observer))
	}

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)
	api.POST("/auth/login", h.Auth.Login)

	admin := internalmiddleware.AdminGuard(opts.AuthEnabled, opts.Tokens)
	guarded := func(action, resource string, handler gin.HandlerFunc) []gin.HandlerFunc {
		chain := append([]gin.HandlerFunc{}, admin...)
		return append(chain, internalmiddleware.Audit(opts.Logger, action, resource), handler)
	}

	api.GET("/subjects", h.Subjects.List)
	api.POST("/subjects", guarded("create", "subject", h.Subjects.Create)...)
	api.DELETE("/subjects/:id", guarded("delete", "subject", h.Subjects.Delete)...)

	api.GET("/teachers", h.Teachers.List)
	api.POST("/teachers", guarded("create", "teacher", h.Teachers.Create)...)
	api.DELETE("/teachers/:id", guarded("delete", "teacher", h.Teachers.Delete)...)

	api.GET("/classes", h.Classes.List)
	api.POST("/classes", guarded("create", "class", h.Classes.Create)...)
	api.DELETE("/classes/:id", guarded("delete", "class", h.Classes.Delete)...)

	timetable := api.Group("/timetable")
	timetable.GET("", h.Timetable.View)
	timetable.GET("/export", h.Timetable.Export)
	timetable.GET("/jobs/:id", h.Timetable.Job)
	timetable.POST("/generate", guarded("generate", "timetable", h.Timetable.Generate)...)
	timetable.POST("/generate/async", guarded("enqueue", "timetable", h.Timetable.GenerateAsync)...)

	api.POST("/clear", guarded("clear", "all", h.Maintenance.Clear)...)

	return r
}
