package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"opengate/api/internal/config"
	"opengate/api/internal/model"
	"opengate/api/internal/server"
	"opengate/api/internal/service"

	_ "opengate/api/docs"
)

// @title OpenGate API
// @version 1.0
// @description OpenGate - Factory Gate Access Control API

// @contact.name API Support
// @contact.url https://github.com/opengate/opengate/issues
// @contact.email support@opengate.local

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:3000
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	log.Println("[API] Starting OpenGate API Server...")

	cfg := config.Load()

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("[API] Failed to connect to database: %v", err)
	}
	log.Println("[API] Connected to database")

	// Versioned migrations first; AutoMigrate picks up whatever the SQL
	// files don't cover yet.
	if err := runMigrations(cfg); err != nil {
		log.Printf("[API] SQL migrations skipped: %v", err)
	}
	if err := autoMigrate(db); err != nil {
		log.Fatalf("[API] Failed to migrate database: %v", err)
	}
	log.Println("[API] Database migrated")

	if err := seedRBAC(db, cfg); err != nil {
		log.Fatalf("[API] Failed to seed roles: %v", err)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
		DB:   0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("[API] Failed to connect to Redis: %v", err)
	}
	log.Println("[API] Connected to Redis")
	defer redisClient.Close()

	// Connect to NATS
	natsConn, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		log.Fatalf("[API] Failed to connect to NATS: %v", err)
	}
	log.Println("[API] Connected to NATS")
	defer natsConn.Close()

	jetstream, err := service.NewJetStreamService(natsConn)
	if err != nil {
		log.Printf("[API] JetStream unavailable, events will not be persisted: %v", err)
		jetstream = nil
	} else {
		log.Println("[API] JetStream streams ready")
	}

	srv := server.NewServer(cfg, db, redisClient, natsConn, jetstream)
	srv.Setup()

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	go func() {
		if err := srv.Run(addr); err != nil {
			log.Fatalf("[API] Failed to start server: %v", err)
		}
	}()

	log.Printf("[API] Server ready on %s", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	log.Println("[API] Shutting down...")

	srv.Shutdown()
	log.Println("[API] Server stopped")
}

func runMigrations(cfg *config.Config) error {
	sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	driver, err := migratepg.WithInstance(sqlDB, &migratepg.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+cfg.MigrationsDir, "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Role{},
		&model.Permission{},
		&model.RolePermission{},
		&model.Supplier{},
		&model.Personnel{},
		&model.Vehicle{},
		&model.ScheduledVisit{},
		&model.AccessLog{},
		&model.Incident{},
		&model.LoginLog{},
		&model.OperationLog{},
		&model.SupplierImportTask{},
		&model.Webhook{},
		&model.WebhookDelivery{},
	)
}

// seedRBAC ensures the system roles, the permission catalogue, and the
// first admin account exist.
func seedRBAC(db *gorm.DB, cfg *config.Config) error {
	permissions := []model.Permission{
		{Name: "View presence", Code: model.PermAccessView, GroupName: "access"},
		{Name: "Check in", Code: model.PermAccessCheckIn, GroupName: "access"},
		{Name: "Check out", Code: model.PermAccessCheckOut, GroupName: "access"},
		{Name: "Export logs", Code: model.PermLogsExport, GroupName: "access"},
		{Name: "Manage roster", Code: model.PermRosterManage, GroupName: "roster"},
		{Name: "Manage schedules", Code: model.PermScheduleManage, GroupName: "roster"},
		{Name: "Report incidents", Code: model.PermIncidentReport, GroupName: "incidents"},
		{Name: "Manage incidents", Code: model.PermIncidentManage, GroupName: "incidents"},
		{Name: "Manage users", Code: model.PermUserManage, GroupName: "admin"},
		{Name: "Manage webhooks", Code: model.PermWebhookManage, GroupName: "admin"},
	}
	for i := range permissions {
		if err := db.Where("code = ?", permissions[i].Code).
			FirstOrCreate(&permissions[i]).Error; err != nil {
			return err
		}
	}

	adminRole := model.Role{Name: "Administrator", Code: model.RoleCodeAdmin, IsSystem: true,
		Description: "Full access to every console area"}
	if err := db.Where("code = ?", model.RoleCodeAdmin).FirstOrCreate(&adminRole).Error; err != nil {
		return err
	}

	sosRole := model.Role{Name: "Security Operations", Code: model.RoleCodeSOS, IsSystem: true,
		Description: "Gate console operator"}
	if err := db.Where("code = ?", model.RoleCodeSOS).FirstOrCreate(&sosRole).Error; err != nil {
		return err
	}

	// SOS works the gate: presence, transitions, incident reporting.
	sosPerms := map[string]bool{
		model.PermAccessView:     true,
		model.PermAccessCheckIn:  true,
		model.PermAccessCheckOut: true,
		model.PermIncidentReport: true,
	}
	for _, p := range permissions {
		if !sosPerms[p.Code] {
			continue
		}
		rp := model.RolePermission{RoleID: sosRole.ID, PermissionID: p.ID}
		if err := db.Where("role_id = ? AND permission_id = ?", sosRole.ID, p.ID).
			FirstOrCreate(&rp).Error; err != nil {
			return err
		}
	}

	var userCount int64
	if err := db.Model(&model.User{}).Count(&userCount).Error; err != nil {
		return err
	}
	if userCount == 0 {
		hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		admin := model.User{
			Username: cfg.AdminUsername,
			Password: string(hashed),
			FullName: "Administrator",
			RoleID:   &adminRole.ID,
			Status:   1,
		}
		if err := db.Create(&admin).Error; err != nil {
			return err
		}
		log.Printf("[API] Seeded admin account %q", cfg.AdminUsername)
	}

	return nil
}
