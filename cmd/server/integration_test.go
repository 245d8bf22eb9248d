//go:build integration

package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/liamcoop/healthrisk/internal/config"
)

// setupTestDB starts a PostgreSQL container and applies the schema
func setupTestDB(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { postgres.Terminate(ctx) })

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("postgres://postgres:password@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	migrationSQL, err := os.ReadFile("../../migrations/000001_recommendation_rules.up.sql")
	if err != nil {
		t.Fatalf("Failed to read migration file: %v", err)
	}
	if _, err := db.Exec(string(migrationSQL)); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return connStr
}

// setupTestRedis starts a Redis container and returns its address
func setupTestRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start redis container: %v", err)
	}
	t.Cleanup(func() { redisC.Terminate(ctx) })

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}
	return fmt.Sprintf("%s:%s", host, port.Port())
}

// TestEndToEnd_PersistentRules exercises the server against Postgres and
// Redis: seeded rules survive a restart and custom rules take effect.
func TestEndToEnd_PersistentRules(t *testing.T) {
	cfg := &config.Config{
		Port:          "0",
		DatabaseURL:   setupTestDB(t),
		RedisAddr:     setupTestRedis(t),
		RulesCacheTTL: time.Minute,
		ModelSeed:     42,
		ModelTrees:    10,
		ModelSamples:  300,
	}
	ctx := context.Background()

	server, cleanup, err := buildServer(ctx, cfg)
	if err != nil {
		cleanup()
		t.Fatalf("Failed to build server: %v", err)
	}
	ts := httptest.NewServer(server)

	status, body := do(t, http.MethodGet, ts.URL+"/api/v1/health", nil)
	if status != http.StatusOK {
		t.Fatalf("Expected healthy server, got %d: %v", status, body)
	}
	checks, _ := body["checks"].(map[string]any)
	if checks["database"] != "ok" || checks["redis"] != "ok" {
		t.Errorf("Expected database and redis checks ok, got %v", checks)
	}

	t.Log("Adding a custom rule...")
	const advice = "Aim for seven to nine hours of sleep per night."
	status, body = do(t, http.MethodPost, ts.URL+"/api/v1/rules", map[string]any{
		"id":         "sleep",
		"name":       "Sleep",
		"expression": "Features.SleepHoursPerDay < 6.0",
		"advice":     advice,
		"position":   25,
	})
	if status != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %v", status, body)
	}

	form := unhealthyForm()
	form["sleepHoursPerDay"] = 5
	status, body = do(t, http.MethodPost, ts.URL+"/api/v1/assessments", form)
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %v", status, body)
	}
	recs := stringSlice(t, body["recommendations"])
	if len(recs) < 3 || recs[2] != advice {
		t.Errorf("Expected sleep advice third (after exercise), got %v", recs)
	}

	ts.Close()
	cleanup()

	t.Log("Restarting server...")
	server, cleanup, err = buildServer(ctx, cfg)
	if err != nil {
		cleanup()
		t.Fatalf("Failed to rebuild server: %v", err)
	}
	defer cleanup()
	ts = httptest.NewServer(server)
	defer ts.Close()

	status, body = do(t, http.MethodGet, ts.URL+"/api/v1/rules", nil)
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %v", status, body)
	}
	if list, _ := body["rules"].([]any); len(list) != 6 {
		t.Errorf("Expected 5 seeded rules plus 1 custom rule, got %d", len(list))
	}

	status, _ = do(t, http.MethodDelete, ts.URL+"/api/v1/rules/sleep", nil)
	if status != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", status)
	}

	status, body = do(t, http.MethodPost, ts.URL+"/api/v1/assessments", form)
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %v", status, body)
	}
	for _, r := range stringSlice(t, body["recommendations"]) {
		if r == advice {
			t.Errorf("Deleted rule still produced advice")
		}
	}
}
