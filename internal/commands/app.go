package commands

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"ATLAS-backend/internal/activesession"
	"ATLAS-backend/internal/attendance"
	"ATLAS-backend/internal/breaks"
	"ATLAS-backend/internal/dutycal"
	"ATLAS-backend/internal/manuallog"
	"ATLAS-backend/internal/platform/auth"
	"ATLAS-backend/internal/platform/clock"
	"ATLAS-backend/internal/platform/db"
	"ATLAS-backend/internal/platform/idgen"
	"ATLAS-backend/internal/task"
	"ATLAS-backend/internal/timeline"
	"ATLAS-backend/internal/worksession"
)

// app は設定から組み立てたサービス一式。
type app struct {
	cfg   *db.Config
	conn  *sql.DB
	cal   dutycal.Calendar
	clock clock.Clock

	attendance *attendance.Service
	tasks      *task.Service
	breaks     *breaks.Service
	sessions   *worksession.Service
	tracker    *activesession.Tracker
	manualLogs *manuallog.Service
	timelines  *timeline.Service
}

func newApp(cfg *db.Config, conn *sql.DB, clk clock.Clock) (*app, error) {
	cal, err := dutycal.Load(cfg.Duty.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load duty timezone %q: %w", cfg.Duty.Timezone, err)
	}
	ids := idgen.NewULID()
	policy := attendance.Policy{MaxDuty: time.Duration(cfg.Duty.MaxDutyHours) * time.Hour}

	att := attendance.NewService(conn, cal, policy, ids)
	sessions := worksession.NewService(conn, att, ids)
	att.SetWorkStopper(sessions)
	return &app{
		cfg:        cfg,
		conn:       conn,
		cal:        cal,
		clock:      clk,
		attendance: att,
		tasks:      task.NewService(conn, ids),
		breaks:     breaks.NewService(conn, att, ids),
		sessions:   sessions,
		tracker:    activesession.NewTracker(conn, att),
		manualLogs: manuallog.NewService(conn, cal, *cfg.Duty.ManualLogLookbackDays, ids),
		timelines:  timeline.NewService(conn, att),
	}, nil
}

func (a *app) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if a.cfg.Mode == "dev" {
		// CORS（開発中のみ必要）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:3000"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	if a.cfg.Auth.JWTSecret == "" {
		log.Printf("[WARN] auth.jwt_secret is empty; set it or %s before exposing the API", "ATLAS_JWT_SECRET")
	}

	// /api/v1
	api := r.Group("/api/v1", auth.RequireAuth([]byte(a.cfg.Auth.JWTSecret)))
	attendance.RegisterRoutes(api, a.attendance, a.clock)
	task.RegisterRoutes(api, a.tasks)
	breaks.RegisterRoutes(api, a.breaks, a.clock)
	worksession.RegisterRoutes(api, a.sessions, a.clock)
	activesession.RegisterRoutes(api, a.tracker, a.clock)
	manuallog.RegisterRoutes(api, a.manualLogs, a.clock)
	timeline.RegisterRoutes(api, a.timelines, a.cal, a.clock)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "no such route"}})
	})
	return r
}

// openDB は設定を読み込んで接続まで済ませる。呼び出し側で Close すること。
func openDB() (*db.Config, *sql.DB, error) {
	cfg, err := db.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("[INFO] mode:%s driver:%s", cfg.Mode, cfg.DB.Driver)

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	return cfg, conn, nil
}
