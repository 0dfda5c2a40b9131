package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"

	"github.com/hackgods/medconnect/internal/account"
	"github.com/hackgods/medconnect/internal/config"
	"github.com/hackgods/medconnect/internal/logging"
	redisclient "github.com/hackgods/medconnect/internal/redis"
)

const (
	doctorCount  = 20
	patientCount = 500
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, "seed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("seed starting")

	if cfg.RedisAddr == "" {
		log.Fatal("REDIS_ADDR or REDIS_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	rdb, err := redisclient.NewRedisClient(ctx, redisclient.ClientConfig{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal("redis connection error", zap.Error(err))
	}
	defer rdb.Close()

	registry := account.NewRegistry(redisclient.NewStore(rdb, cfg.RedisKeyPrefix), log.Named("account"))

	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = "password"
	}

	if err := seedUsers(ctx, log, registry, account.RoleDoctor, doctorCount, password); err != nil {
		log.Fatal("seed doctors", zap.Error(err))
	}
	if err := seedUsers(ctx, log, registry, account.RolePatient, patientCount, password); err != nil {
		log.Fatal("seed patients", zap.Error(err))
	}

	log.Info("seed complete")
}

func seedUsers(ctx context.Context, log *zap.Logger, registry *account.Registry, role account.Role, count int, password string) error {
	log.Info("seeding users", zap.String("role", string(role)), zap.Int("count", count))

	created, skipped := 0, 0
	for created < count {
		name := fakeUsername(role)
		if _, err := registry.Register(ctx, name, password, role); err != nil {
			if errors.Is(err, account.ErrUserExists) {
				skipped++
				if skipped > count {
					return fmt.Errorf("too many username collisions after %d users", created)
				}
				continue
			}
			return err
		}
		created++

		if created%100 == 0 {
			log.Info("users seeded", zap.String("role", string(role)), zap.Int("done", created), zap.Int("total", count))
		}
	}

	log.Info("users seeded", zap.String("role", string(role)), zap.Int("total", created), zap.Int("collisions", skipped))
	return nil
}

func fakeUsername(role account.Role) string {
	name := strings.ToLower(gofakeit.FirstName() + "." + gofakeit.LastName())
	if role == account.RoleDoctor {
		name = "dr." + name
	}
	return fmt.Sprintf("%s%d", name, gofakeit.Number(1, 999))
}
