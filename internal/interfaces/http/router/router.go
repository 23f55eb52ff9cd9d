package router

import (
	"net/http"

	"github.com/clinicdesk/backend/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes under /api/<version>
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// Route describes one registered endpoint
type Route struct {
	Method string
	Path   string
}

// DomainGroup collects the routes of one bounded context before they are mounted
type DomainGroup struct {
	name       string
	prefix     string
	routes     []routeDefinition
	subgroups  []*DomainGroup
	middleware []gin.HandlerFunc
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewDomainGroup creates a new domain-specific route group
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware to this group
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

func (dg *DomainGroup) handle(method, path string, handlers []gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: method, path: path, handlers: handlers})
	return dg
}

// GET registers a GET route
func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodGet, path, handlers)
}

// POST registers a POST route
func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPost, path, handlers)
}

// PATCH registers a PATCH route
func (dg *DomainGroup) PATCH(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPatch, path, handlers)
}

// Group creates a sub-group within this domain
func (dg *DomainGroup) Group(name, prefix string) *DomainGroup {
	subgroup := NewDomainGroup(name, prefix)
	dg.subgroups = append(dg.subgroups, subgroup)
	return subgroup
}

// RegisterRoutes implements RouteRegistrar
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix)
	if len(dg.middleware) > 0 {
		group.Use(dg.middleware...)
	}
	for _, route := range dg.routes {
		group.Handle(route.method, route.path, route.handlers...)
	}
	for _, subgroup := range dg.subgroups {
		subgroup.RegisterRoutes(group)
	}
}

// Routes lists the group's endpoints relative to its parent
func (dg *DomainGroup) Routes() []Route {
	var out []Route
	for _, route := range dg.routes {
		out = append(out, Route{Method: route.method, Path: joinPath(dg.prefix, route.path)})
	}
	for _, subgroup := range dg.subgroups {
		for _, r := range subgroup.Routes() {
			out = append(out, Route{Method: r.Method, Path: joinPath(dg.prefix, r.Path)})
		}
	}
	return out
}

func joinPath(prefix, path string) string {
	if path == "" || path == "/" {
		return prefix
	}
	return prefix + path
}

// Name returns the group name
func (dg *DomainGroup) Name() string {
	return dg.name
}

// Prefix returns the group prefix
func (dg *DomainGroup) Prefix() string {
	return dg.prefix
}

// CashdeskHandlers are the handlers mounted under /cashdesk
type CashdeskHandlers struct {
	Sessions *handler.SessionHandler
	Entries  *handler.EntryHandler
	Reports  *handler.ReportHandler
}

// NewCashdeskGroup builds the cash desk route table
func NewCashdeskGroup(h CashdeskHandlers, middleware ...gin.HandlerFunc) *DomainGroup {
	cashdesk := NewDomainGroup("cashdesk", "/cashdesk").Use(middleware...)

	sessions := cashdesk.Group("sessions", "/sessions")
	sessions.POST("", h.Sessions.Open)
	sessions.GET("", h.Sessions.List)
	sessions.GET("/current", h.Sessions.GetCurrent)
	sessions.GET("/:id", h.Sessions.GetByID)
	sessions.GET("/:id/entries", h.Sessions.ListEntries)
	sessions.POST("/:id/close", h.Sessions.Close)
	sessions.POST("/:id/reopen", h.Sessions.Reopen)
	sessions.POST("/:id/incidents", h.Sessions.AddIncident)
	sessions.POST("/:id/incidents/:incident_id/resolve", h.Sessions.ResolveIncident)

	entries := cashdesk.Group("entries", "/entries")
	entries.POST("", h.Entries.Create)
	entries.GET("/:id", h.Entries.GetByID)
	entries.PATCH("/:id", h.Entries.Update)
	entries.POST("/:id/void", h.Entries.Void)
	entries.POST("/:id/attachments", h.Entries.Attach)
	entries.GET("/:id/attachments/url", h.Entries.AttachmentURL)

	reports := cashdesk.Group("reports", "/reports")
	reports.GET("/sessions", h.Reports.SessionSummary)
	reports.GET("/entries/daily", h.Reports.DailyEntrySummary)
	reports.GET("/entries", h.Reports.RangeEntrySummary)

	return cashdesk
}

// RegisterSystemRoutes mounts the unversioned health endpoint and its /api/v1 alias
func RegisterSystemRoutes(engine *gin.Engine, system *handler.SystemHandler) {
	engine.GET("/health", system.Health)
	engine.GET("/api/v1/health", system.Health)
}

// RegisterAttachmentFileRoute serves signed download links issued by the in-memory attachment storage
func RegisterAttachmentFileRoute(engine *gin.Engine, prefix string, files *handler.AttachmentFileHandler) {
	engine.GET(prefix+"/*key", files.Download)
}
