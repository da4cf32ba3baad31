package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"fairlens/adapters/ingest"
	"fairlens/adapters/postgres"
	"fairlens/domain/fairness"
	"fairlens/internal/api"
	"fairlens/internal/config"
	"fairlens/internal/session"
	"fairlens/internal/testkit"
	"fairlens/ports"
)

func main() {
	// Load .env file if present (ignore errors in production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var repo ports.AuditRepository
	if cfg.Database.URL != "" {
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := postgres.EnsureSchema(context.Background(), db); err != nil {
			log.Fatalf("Failed to ensure audit schema: %v", err)
		}
		repo = postgres.NewAuditRepository(db)
		log.Println("[Main] Audit persistence enabled")
	} else {
		log.Println("[Main] DATABASE_URL not set, audit persistence disabled")
	}

	sessions := session.NewManager(repo)

	if os.Getenv("DEMO_MODE") == "true" {
		if err := seedDemoSession(sessions); err != nil {
			log.Fatalf("Failed to seed demo session: %v", err)
		}
	}

	server := api.NewServer(cfg, sessions)
	addr := ":" + cfg.Server.Port
	log.Printf("[Main] Fairness analysis server listening on %s", addr)
	if err := server.Start(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// seedDemoSession registers a synthetic credit-scoring session so the API
// can be exercised without uploading a model or dataset first.
func seedDemoSession(sessions *session.Manager) error {
	dir, err := os.MkdirTemp("", "fairlens-demo")
	if err != nil {
		return err
	}

	modelPath := filepath.Join(dir, "credit_model.json")
	dataPath := filepath.Join(dir, "credit_data.csv")
	if err := testkit.WriteModelFile(modelPath); err != nil {
		return err
	}
	if err := testkit.WriteCreditCSV(dataPath, 200, 7); err != nil {
		return err
	}

	network := testkit.BiasedNetwork()
	frame, err := ingest.NewDataReader(dataPath).Read()
	if err != nil {
		return err
	}
	instances, labels, featureNames, err := frame.FeatureMatrix("approved")
	if err != nil {
		return err
	}
	pool, err := fairness.NewCandidatePool(instances)
	if err != nil {
		return err
	}

	sess, err := sessions.Create(network, pool, featureNames, labels,
		ingest.DetectSensitiveColumns(featureNames), network.Hash())
	if err != nil {
		return err
	}
	log.Printf("[Main] Demo session ready: %s", sess.ID.String())
	return nil
}
