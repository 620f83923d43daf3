// Command seed loads the baseline data a fresh UNI-Pass database needs:
// the leave reason catalog and an initial admin account.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/harsha-e/unipass-api/pkg/config"
	"github.com/harsha-e/unipass-api/pkg/database"
)

type reason struct {
	ID           string
	Label        string
	ApprovalType string
	IsCustom     bool
}

// Sensitivity lives in the workflow config (SENSITIVE_CATEGORIES), not
// on the reason rows.
var reasons = []reason{
	{ID: "medical", Label: "Medical", ApprovalType: "TEACHER_HOD"},
	{ID: "on-duty", Label: "On-Duty", ApprovalType: "TEACHER_HOD"},
	{ID: "symposium", Label: "Symposium", ApprovalType: "TEACHER_HOD"},
	{ID: "personal", Label: "Personal", ApprovalType: "TEACHER_ONLY"},
	{ID: "family-function", Label: "Family Function", ApprovalType: "TEACHER_ONLY"},
	{ID: "other", Label: "Other", ApprovalType: "TEACHER_HOD", IsCustom: true},
}

func main() {
	var (
		adminEmail    string
		adminName     string
		adminPassword string
	)
	flag.StringVar(&adminEmail, "admin-email", "admin@mvgr.edu.in", "initial admin email")
	flag.StringVar(&adminName, "admin-name", "UNI-Pass Admin", "initial admin display name")
	flag.StringVar(&adminPassword, "admin-password", "", "initial admin password (required)")
	flag.Parse()

	if adminPassword == "" {
		log.Fatal("an -admin-password is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close() //nolint:errcheck

	now := time.Now().UTC()
	for _, r := range reasons {
		const query = `INSERT INTO permission_reasons (id, label, approval_type, is_custom, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET label = EXCLUDED.label, approval_type = EXCLUDED.approval_type, is_custom = EXCLUDED.is_custom`
		if _, err := db.Exec(query, r.ID, r.Label, r.ApprovalType, r.IsCustom, now); err != nil {
			log.Fatalf("failed to seed reason %s: %v", r.ID, err)
		}
	}
	log.Printf("seeded %d reasons", len(reasons))

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash admin password: %v", err)
	}
	const adminQuery = `INSERT INTO users (id, email, display_name, role, approved, approved_at, disciplinary_status, attendance, password_hash, created_at, updated_at)
VALUES ($1, $2, $3, 'ADMIN', TRUE, $4, 'NONE', 0, $5, $4, $4)
ON CONFLICT (email) DO NOTHING`
	if _, err := db.Exec(adminQuery, uuid.NewString(), adminEmail, adminName, now, string(hash)); err != nil {
		log.Fatalf("failed to seed admin: %v", err)
	}
	log.Printf("admin account ready: %s", adminEmail)
}
