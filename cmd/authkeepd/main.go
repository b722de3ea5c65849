// Command authkeepd serves the account-security HTTP API.
//
// Configuration comes from authkeepd.yaml (working directory or /etc/authkeepd)
// and AUTHKEEP_* environment variables, env taking precedence.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/authkeep/authkeep"
	"github.com/authkeep/authkeep/httpapi"
	"github.com/authkeep/authkeep/store/memory"
	"github.com/authkeep/authkeep/store/postgres"
)

func main() {
	v := viper.New()
	v.SetConfigName("authkeepd")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/authkeepd")
	v.SetEnvPrefix("AUTHKEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.addr", ":8420")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("token.signing_method", "hs256")
	v.SetDefault("audit.enabled", true)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("password.max_age_days", 0)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatalf("read config: %v", err)
		}
	}

	tokenSecret := v.GetString("token.secret")
	if tokenSecret == "" {
		log.Fatal("token.secret (AUTHKEEP_TOKEN_SECRET) is required")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
	})
	defer redisClient.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		log.Fatalf("redis ping: %v", err)
	}
	cancelPing()

	cfg := authkeep.DefaultConfig()
	cfg.Token.SigningMethod = v.GetString("token.signing_method")
	cfg.Token.PrivateKey = []byte(tokenSecret)
	cfg.Token.Issuer = v.GetString("token.issuer")

	builder := authkeep.New().
		WithConfig(cfg).
		WithRedis(redisClient).
		WithMetricsEnabled(v.GetBool("metrics.enabled"))

	if v.GetBool("audit.enabled") {
		builder = builder.WithAuditSink(authkeep.NewJSONWriterSink(os.Stdout))
	}

	switch driver := v.GetString("store.driver"); driver {
	case "postgres":
		pg, err := postgres.Connect(context.Background(), v.GetString("postgres.dsn"))
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pg.Close()
		builder = builder.WithCredentialStore(pg).WithPasswordPolicy(pg)
	case "memory":
		maxAge := time.Duration(v.GetInt("password.max_age_days")) * 24 * time.Hour
		mem := memory.New(maxAge)
		builder = builder.WithCredentialStore(mem).WithPasswordPolicy(mem)
	default:
		log.Fatalf("unknown store driver %q", driver)
	}

	engine, err := builder.Build()
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}
	defer engine.Close()

	server := &http.Server{
		Addr:              v.GetString("http.addr"),
		Handler:           httpapi.NewHandler(engine),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("authkeepd listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	case sig := <-stop:
		log.Printf("received %s, shutting down", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}
}
