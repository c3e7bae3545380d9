package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
	"github.com/veraproof/verification-core/internal/apikey"
	"github.com/veraproof/verification-core/internal/data"
)

func main() {
	tenantID := flag.String("tenant", "", "tenant id to issue the key for")
	env := flag.String("env", "sandbox", "sandbox or production")
	flag.Parse()

	if *tenantID == "" {
		log.Fatal("-tenant is required")
	}

	host := envOr("DB_HOST", "localhost")
	port := envOr("DB_PORT", "5432")
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	dbname := os.Getenv("DB_NAME")
	sslmode := envOr("DB_SSLMODE", "disable")

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, dbname, sslmode)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	svc := apikey.NewService(data.APIKeyModel{DB: db}, nil)
	cleartext, key, err := svc.Generate(context.Background(), *tenantID, data.Environment(*env))
	if err != nil {
		log.Fatalf("failed to generate api key: %v", err)
	}

	fmt.Printf("key_id: %s\n", key.KeyID)
	fmt.Printf("api_key: %s\n", cleartext)
	fmt.Println("store this value now; it will not be shown again")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
