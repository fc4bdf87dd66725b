// Package api exposes the membership services over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"membership/internal/account"
	"membership/internal/approval"
	"membership/internal/attendance"
	"membership/internal/auth"
	"membership/internal/httpmiddleware"
	"membership/internal/images"
	"membership/internal/ledger"
	"membership/internal/members"
	"membership/internal/session"
)

// Accounts signs members in and out.
type Accounts interface {
	Login(ctx context.Context, email, password string) (account.Session, error)
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
	Logout(ctx context.Context, roll int, refreshToken string) error
}

// Approvals runs the signup workflow.
type Approvals interface {
	Signup(ctx context.Context, email, password string, roll int) (approval.Pending, error)
	ListPending(ctx context.Context) ([]approval.Pending, error)
	Approve(ctx context.Context, id string) (members.Member, error)
}

// Directory edits member records.
type Directory interface {
	NextRollNo(ctx context.Context) (int, error)
	Save(ctx context.Context, p members.Profile) (members.Member, bool, error)
	SoftDelete(ctx context.Context, roll int) (members.Member, error)
	SetImage(ctx context.Context, roll int, url string) (members.Member, error)
	SetRoles(ctx context.Context, roll int, admin, superAdmin bool) (members.Member, error)
}

// Attendance applies batch attendance changes.
type Attendance interface {
	Add(ctx context.Context, year, month string, day int, rolls []int) (attendance.BatchResult, error)
	Remove(ctx context.Context, year, month string, day int, rolls []int) (attendance.BatchResult, error)
}

// Donations edits member donation ledgers.
type Donations interface {
	Add(ctx context.Context, year, month string, amount decimal.Decimal, roll int) (decimal.Decimal, error)
	Remove(ctx context.Context, year, month string, amount decimal.Decimal, roll int) (decimal.Decimal, error)
}

// Expenses edits the shared expense ledger.
type Expenses interface {
	List(ctx context.Context, year, month string) ([]ledger.Expense, error)
	Add(ctx context.Context, year, month string, amount decimal.Decimal, description string) (ledger.Expense, error)
	Remove(ctx context.Context, id string) (bool, error)
}

// Snapshots serves cached read models.
type Snapshots interface {
	Snapshot(ctx context.Context) (session.Snapshot, error)
	Refresh(ctx context.Context) (session.Snapshot, error)
	Profile(ctx context.Context, roll int) (members.Member, error)
}

// Check reports the health of one dependency.
type Check func(ctx context.Context) bool

// Deps wires the router. Images may be nil when no image backend is configured.
type Deps struct {
	Log         *zap.Logger
	Issuer      *auth.Issuer
	Accounts    Accounts
	Approvals   Approvals
	Members     Directory
	Attendance  Attendance
	Donations   Donations
	Expenses    Expenses
	Cache       Snapshots
	Images      images.Store
	Limiter     *httpmiddleware.TokenBucket
	Gatherer    prometheus.Gatherer
	Checks      map[string]Check
	CORSOrigins []string
	Production  bool
}

type handler struct {
	Deps
	now func() time.Time
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	if len(d.CORSOrigins) == 0 {
		d.CORSOrigins = []string{"http://localhost:3000"}
	}
	h := &handler{Deps: d, now: time.Now}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(d.Log.Named("http"), "/healthz", "/metrics"))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(httpmiddleware.SecurityHeaders(d.Production))

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	r.GET("/healthz", h.health)

	limit := func(c *gin.Context) { c.Next() }
	if d.Limiter != nil {
		limit = d.Limiter.Middleware()
	}

	public := r.Group("/v1/auth", limit)
	public.POST("/signup", h.signup)
	public.POST("/login", h.login)
	public.POST("/refresh", h.refresh)

	v1 := r.Group("/v1", auth.RequireAuth(d.Issuer), limit)
	v1.POST("/auth/logout", h.logout)
	v1.GET("/me", h.me)
	v1.GET("/me/activity", h.activity)
	v1.GET("/members", h.roster)
	v1.GET("/attendance/sheet", h.sheet)
	v1.GET("/finance/summary", h.summary)
	v1.GET("/finance/breakdown", h.breakdown)

	admin := v1.Group("/admin", auth.RequireRole(auth.RoleAdmin, auth.RoleSuperAdmin))
	admin.GET("/pending", h.listPending)
	admin.POST("/pending/:id/approve", h.approve)
	admin.POST("/attendance", h.addAttendance)
	admin.DELETE("/attendance", h.removeAttendance)
	admin.POST("/donations", h.addDonation)
	admin.DELETE("/donations", h.removeDonation)
	admin.GET("/expenses", h.listExpenses)
	admin.POST("/expenses", h.addExpense)
	admin.DELETE("/expenses/:id", h.removeExpense)
	admin.POST("/cache/refresh", h.refreshCache)

	super := admin.Group("/members", auth.RequireRole(auth.RoleSuperAdmin))
	super.GET("/next-roll", h.nextRoll)
	super.PUT("/:roll", h.saveMember)
	super.DELETE("/:roll", h.deleteMember)
	super.PUT("/:roll/roles", h.setRoles)
	super.POST("/:roll/image", h.uploadImage)

	return r
}

func (h *handler) health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.Checks {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}
