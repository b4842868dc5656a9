// seed inserts development sample data for local testing.
// Idempotent: service definitions and the default policy are upserted; demo
// users are skipped when already present.
package main

import (
	"context"
	"log"
	"time"

	"school-admin/backend/internal/config"
	"school-admin/backend/internal/db"
	grantdomain "school-admin/backend/internal/grant/domain"
	grantrepo "school-admin/backend/internal/grant/repository"
	userdomain "school-admin/backend/internal/user/domain"
	userrepo "school-admin/backend/internal/user/repository"
)

const (
	devAdminID     = "dev-admin-001"
	devCounselorID = "dev-counselor-001"
)

// serviceCatalog is the development catalog: the school-administration
// modules and the minimum hierarchy tier each requires.
var serviceCatalog = []grantdomain.ServiceDefinition{
	{ServiceKey: "wellness", DisplayName: "Wellness Cases", RequiredLevel: grantdomain.LevelTactical, Active: true},
	{ServiceKey: "admissions", DisplayName: "Admissions", RequiredLevel: grantdomain.LevelOperational, Active: true},
	{ServiceKey: "enrollment", DisplayName: "Enrollment", RequiredLevel: grantdomain.LevelOperational, Active: true},
	{ServiceKey: "academic", DisplayName: "Academic Records", RequiredLevel: grantdomain.LevelTactical, Active: true},
	{ServiceKey: "hr", DisplayName: "Human Resources", RequiredLevel: grantdomain.LevelStrategic, Active: true},
	{ServiceKey: "finance", DisplayName: "Finance & Payments", RequiredLevel: grantdomain.LevelStrategic, Active: true},
	{ServiceKey: "admin", DisplayName: "Administration", RequiredLevel: grantdomain.LevelStrategic, Active: true},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := userrepo.NewPostgresRepository(conn)
	grants := grantrepo.NewPostgresRepository(conn)

	for i := range serviceCatalog {
		if err := grants.UpsertService(ctx, &serviceCatalog[i]); err != nil {
			log.Fatalf("seed: service %s: %v", serviceCatalog[i].ServiceKey, err)
		}
	}
	log.Printf("seed: %d service definitions in place", len(serviceCatalog))

	seedUser(ctx, users, &userdomain.User{
		ID: devAdminID, FullName: "Avery Brooks", RoleName: "principal", Status: userdomain.UserStatusActive,
	})
	seedUser(ctx, users, &userdomain.User{
		ID: devCounselorID, FullName: "Dana Reyes", RoleName: "counselor", Status: userdomain.UserStatusActive,
	})

	now := time.Now().UTC()
	adminGrant := &grantdomain.AccessGrant{
		UserID:         devAdminID,
		HierarchyLevel: grantdomain.LevelStrategic,
		Active:         true,
		Services: map[string]bool{
			"wellness": true, "admissions": true, "enrollment": true,
			"academic": true, "hr": true, "finance": true, "admin": true,
		},
		GrantedBy: "seed",
		GrantedAt: now,
		Notes:     "development principal with full access",
	}
	if err := grants.UpsertGrant(ctx, adminGrant); err != nil {
		log.Fatalf("seed: admin grant: %v", err)
	}

	// Counselor: flags beyond the tier on purpose, so the UI has a visible
	// "flag set but hierarchy insufficient" case (hr requires strategic).
	counselorGrant := &grantdomain.AccessGrant{
		UserID:         devCounselorID,
		HierarchyLevel: grantdomain.LevelTactical,
		Active:         true,
		Services: map[string]bool{
			"wellness": true, "academic": true, "hr": true,
		},
		GrantedBy: "seed",
		GrantedAt: now,
		Notes:     "development counselor",
	}
	if err := grants.UpsertGrant(ctx, counselorGrant); err != nil {
		log.Fatalf("seed: counselor grant: %v", err)
	}

	log.Println("seed: done")
}

func seedUser(ctx context.Context, users *userrepo.PostgresRepository, u *userdomain.User) {
	existing, err := users.GetByID(ctx, u.ID)
	if err != nil {
		log.Fatalf("seed: lookup %s: %v", u.ID, err)
	}
	if existing != nil {
		return
	}
	if err := users.Create(ctx, u); err != nil {
		log.Fatalf("seed: create %s: %v", u.ID, err)
	}
	log.Printf("seed: created user %s (%s)", u.ID, u.FullName)
}
