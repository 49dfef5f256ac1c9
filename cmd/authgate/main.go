// Command authgate runs the authentication portal: the HTTP API backed by
// the engine, a Redis session backend, and a user directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	authgate "github.com/authgate/authgate"
	"github.com/authgate/authgate/server"
)

func main() {
	var (
		listen          = flag.String("listen", ":9091", "address the portal listens on")
		redisAddr       = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or an embedded miniredis is used")
		usersPath       = flag.String("users", "users.json", "path to the user directory file")
		policyPath      = flag.String("policy", "", "path to the access control policy file; empty allows every domain")
		externalURL     = flag.String("external-url", "http://localhost:9091", "externally reachable base URL, used in verification mails")
		defaultRedirect = flag.String("default-redirect", "", "where authenticated users land when no target was requested")
		smtpAddr        = flag.String("smtp-addr", "", "smtp host:port for verification mails; if empty, mails are logged to stdout")
		smtpFrom        = flag.String("smtp-from", "authgate@localhost", "sender address for verification mails")
		insecureCookie  = flag.Bool("insecure-cookie", false, "drop the Secure cookie attribute, for plain-HTTP development")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[authgate] ", log.LstdFlags)

	if err := run(logger, options{
		listen:          *listen,
		redisAddr:       *redisAddr,
		usersPath:       *usersPath,
		policyPath:      *policyPath,
		externalURL:     strings.TrimRight(*externalURL, "/"),
		defaultRedirect: *defaultRedirect,
		smtpAddr:        *smtpAddr,
		smtpFrom:        *smtpFrom,
		insecureCookie:  *insecureCookie,
	}); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}

type options struct {
	listen          string
	redisAddr       string
	usersPath       string
	policyPath      string
	externalURL     string
	defaultRedirect string
	smtpAddr        string
	smtpFrom        string
	insecureCookie  bool
}

func run(logger *log.Logger, opts options) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secret := os.Getenv("AUTHGATE_TOKEN_SECRET")
	if secret == "" {
		return errors.New("AUTHGATE_TOKEN_SECRET must be set")
	}

	client, cleanup, err := redisClient(logger, opts.redisAddr)
	if err != nil {
		return err
	}
	defer cleanup()

	directory, err := openFileDirectory(opts.usersPath)
	if err != nil {
		return fmt.Errorf("user directory: %w", err)
	}

	cfg := authgate.DefaultConfig()
	cfg.DefaultRedirect = opts.defaultRedirect
	cfg.IdentityVerification.TokenSecret = []byte(secret)
	cfg.IdentityVerification.ExternalURL = opts.externalURL

	if opts.policyPath != "" {
		acl, err := loadPolicy(opts.policyPath)
		if err != nil {
			return fmt.Errorf("access control policy: %w", err)
		}
		cfg.AccessControl = acl
	} else {
		cfg.AccessControl = authgate.AccessControlConfig{DefaultPolicy: []string{"*"}}
	}

	engine, err := authgate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLDAP(directory).
		WithNotifier(newNotifier(opts.smtpAddr, opts.smtpFrom, logger)).
		WithAuditSink(authgate.NewJSONWriterSink(os.Stdout)).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	srv := server.New(engine, logger)
	srv.CookieSecure = !opts.insecureCookie

	httpServer := &http.Server{
		Addr:              opts.listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", opts.listen)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Print("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// redisClient connects to the configured Redis, falling back to an embedded
// miniredis for development when no address is given.
func redisClient(logger *log.Logger, addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("embedded redis: %w", err)
		}
		logger.Printf("no redis configured, using embedded store at %s (sessions will not survive restarts)", mr.Addr())
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	logger.Printf("using redis at %s", addr)
	return client, func() { _ = client.Close() }, nil
}
