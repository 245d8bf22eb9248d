//go:build integration

package rules_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/liamcoop/healthrisk/features"
	"github.com/liamcoop/healthrisk/riskmodel"
	"github.com/liamcoop/healthrisk/rules"
)

// setupTestDB creates a PostgreSQL container with the schema applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "healthrisk_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("host=%s port=%s user=test password=test dbname=healthrisk_test sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	for i := 0; i < 30; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	migrationSQL, err := os.ReadFile(filepath.Join("..", "migrations", "000001_recommendation_rules.up.sql"))
	if err != nil {
		t.Fatalf("Failed to read migration file: %v", err)
	}
	if _, err := db.Exec(string(migrationSQL)); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

// setupTestRedis creates a Redis container and returns a connected client
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { client.Close() })

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to ping Redis: %v", err)
	}
	return client
}

func newRule(id, expression string, position int) *rules.Rule {
	return &rules.Rule{
		ID:         id,
		Name:       "Rule " + id,
		Expression: expression,
		Advice:     "advice " + id,
		Position:   position,
		Active:     true,
	}
}

func ids(list []*rules.Rule) []string {
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = r.ID
	}
	return out
}

func TestPostgresRuleStore(t *testing.T) {
	store := rules.NewPostgresRuleStore(setupTestDB(t))

	t.Run("add and get", func(t *testing.T) {
		id := uuid.NewString()
		r := newRule(id, `Features.BMI > 30.0`, 10)
		if err := store.Add(r); err != nil {
			t.Fatalf("Add() failed: %v", err)
		}

		got, err := store.Get(id)
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if got.Expression != r.Expression || got.Advice != r.Advice || got.Position != 10 || !got.Active {
			t.Errorf("Get() = %+v, want %+v", got, r)
		}
		if got.CreatedAt.IsZero() {
			t.Error("CreatedAt should be set")
		}

		if err := store.Add(newRule(id, `true`, 1)); !errors.Is(err, rules.ErrRuleExists) {
			t.Errorf("Expected ErrRuleExists, got %v", err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		if _, err := store.Get("missing"); !errors.Is(err, rules.ErrRuleNotFound) {
			t.Errorf("Get(): expected ErrRuleNotFound, got %v", err)
		}
		if err := store.Update(newRule("missing", `true`, 1)); !errors.Is(err, rules.ErrRuleNotFound) {
			t.Errorf("Update(): expected ErrRuleNotFound, got %v", err)
		}
		if err := store.Delete("missing"); !errors.Is(err, rules.ErrRuleNotFound) {
			t.Errorf("Delete(): expected ErrRuleNotFound, got %v", err)
		}
	})

	t.Run("update preserves creation time", func(t *testing.T) {
		r := newRule("update-me", `RiskLevel > 0`, 5)
		if err := store.Add(r); err != nil {
			t.Fatalf("Add() failed: %v", err)
		}
		created, _ := store.Get("update-me")

		changed := newRule("update-me", `RiskLevel > 1`, 6)
		changed.Active = false
		if err := store.Update(changed); err != nil {
			t.Fatalf("Update() failed: %v", err)
		}

		got, _ := store.Get("update-me")
		if got.Expression != `RiskLevel > 1` || got.Position != 6 || got.Active {
			t.Errorf("Update() not applied: %+v", got)
		}
		if !got.CreatedAt.Equal(created.CreatedAt) {
			t.Errorf("CreatedAt changed from %v to %v", created.CreatedAt, got.CreatedAt)
		}
	})

	t.Run("delete", func(t *testing.T) {
		store.Add(newRule("delete-me", `true`, 1))
		if err := store.Delete("delete-me"); err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}
		if _, err := store.Get("delete-me"); !errors.Is(err, rules.ErrRuleNotFound) {
			t.Errorf("Rule should be gone, got %v", err)
		}
	})
}

func TestPostgresRuleStoreOrdering(t *testing.T) {
	store := rules.NewPostgresRuleStore(setupTestDB(t))

	off := newRule("off", `true`, 15)
	off.Active = false
	for _, r := range []*rules.Rule{
		newRule("checkup", `true`, 50),
		newRule("b", `true`, 20),
		off,
		newRule("nutrition", `true`, 10),
		newRule("a", `true`, 20),
	} {
		if err := store.Add(r); err != nil {
			t.Fatalf("Add(%s) failed: %v", r.ID, err)
		}
	}

	all, err := store.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if want := []string{"nutrition", "off", "a", "b", "checkup"}; !slices.Equal(ids(all), want) {
		t.Errorf("List() = %v, want %v", ids(all), want)
	}

	active, err := store.ListActive()
	if err != nil {
		t.Fatalf("ListActive() failed: %v", err)
	}
	if want := []string{"nutrition", "a", "b", "checkup"}; !slices.Equal(ids(active), want) {
		t.Errorf("ListActive() = %v, want %v", ids(active), want)
	}
}

func TestRedisRulesCache(t *testing.T) {
	client := setupTestRedis(t)
	cache := rules.NewRedisRulesCache(client, "", rules.CacheConfig{TTL: time.Minute})

	if cache.IsValid() || cache.Get() != nil {
		t.Fatal("Cache should start empty")
	}

	cache.Set([]*rules.Rule{newRule("a", `true`, 1), newRule("b", `RiskLevel > 0`, 2)})
	if !cache.IsValid() {
		t.Fatal("Cache should be valid after Set()")
	}
	got := cache.Get()
	if want := []string{"a", "b"}; !slices.Equal(ids(got), want) {
		t.Errorf("Get() = %v, want %v", ids(got), want)
	}
	if got[1].Expression != `RiskLevel > 0` {
		t.Errorf("Cached rule lost its expression: %+v", got[1])
	}

	ttl, err := client.TTL(context.Background(), rules.DefaultRedisKey).Result()
	if err != nil {
		t.Fatalf("TTL() failed: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("Expected key TTL within one minute, got %v", ttl)
	}

	cache.Invalidate()
	if cache.IsValid() || cache.Get() != nil {
		t.Error("Cache should be empty after Invalidate()")
	}
}

// TestSharedCacheAcrossEngines checks that two engines over one database and
// one Redis cache see each other's rule changes.
func TestSharedCacheAcrossEngines(t *testing.T) {
	db := setupTestDB(t)
	client := setupTestRedis(t)

	newEngine := func() *rules.Engine {
		cache := rules.NewRedisRulesCache(client, "", rules.CacheConfig{TTL: time.Minute})
		en, err := rules.NewEngine(rules.NewPostgresRuleStore(db), rules.WithCache(cache))
		if err != nil {
			t.Fatalf("NewEngine() failed: %v", err)
		}
		return en
	}

	first := newEngine()
	defaults, err := rules.DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules() failed: %v", err)
	}
	if _, err := rules.Seed(first, defaults); err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}

	second := newEngine()

	v := features.Vector{22, 5, 0, 1, 5, 110, 160, 0, 0, 2}
	got, err := second.Recommend(v, riskmodel.Low)
	if err != nil {
		t.Fatalf("Recommend() failed: %v", err)
	}
	if !slices.Equal(got, []string{rules.DefaultAdvice}) {
		t.Errorf("Recommend() = %q, want default advice", got)
	}

	if err := first.AddRule(newRule("sleep", `Features.SleepHoursPerDay < 6.0`, 25)); err != nil {
		t.Fatalf("AddRule() failed: %v", err)
	}

	got, err = second.Recommend(v, riskmodel.Low)
	if err != nil {
		t.Fatalf("Recommend() failed: %v", err)
	}
	if !slices.Equal(got, []string{"advice sleep"}) {
		t.Errorf("Second engine should see the new rule, got %q", got)
	}
}
