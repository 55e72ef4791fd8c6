// Command gosession-probe logs into a gym backend and reports what the
// session layer sees: decoded claims, storage scope, and the result of an
// optional authenticated GET. Configuration comes from GOSESSION_* env vars
// (see ConfigFromEnv) with flags for the credentials.
//
// Examples:
//
//	GOSESSION_API_BASE_URL=https://api.gym.example \
//	  gosession-probe -identifier 0012345678 -password secret
//
//	GOSESSION_API_BASE_URL=https://api.gym.example \
//	GOSESSION_REDIS_ADDR=127.0.0.1:6379 \
//	  gosession-probe -identifier 0012345678 -password secret -remember \
//	  -get https://api.gym.example/api/members
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	goSession "github.com/gymkit/goSession"
)

func main() {
	var (
		identifier = flag.String("identifier", "", "login identifier (national code or phone)")
		password   = flag.String("password", "", "login password")
		remember   = flag.Bool("remember", false, "use the durable storage scope")
		getURL     = flag.String("get", "", "optional URL to GET with the session's bearer token")
		timeout    = flag.Duration("timeout", 30*time.Second, "overall probe deadline")
	)
	flag.Parse()

	if *identifier == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "identifier and password are required")
		os.Exit(2)
	}

	cfg, redisAddr, err := goSession.ConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	cfg.Metrics.Enabled = true

	builder := goSession.New().WithConfig(cfg).WithMetricsEnabled(true)
	if redisAddr != "" {
		builder.WithRedis(redis.NewClient(&redis.Options{Addr: redisAddr}))
	}

	ctrl, err := builder.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = ctrl.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	session, err := ctrl.Login(ctx, goSession.Credentials{
		Identifier: *identifier,
		Password:   *password,
		Remember:   *remember,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "login: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("login ok")
	fmt.Println("  subject:", session.User.SubjectID)
	fmt.Println("  role:   ", session.User.Role)
	if session.User.GymID != "" {
		fmt.Println("  gym:    ", session.User.GymID)
	}
	if session.User.HasExpiry {
		fmt.Println("  expires:", session.User.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Println("  scope:  ", session.Scope)

	if *getURL != "" {
		resp, err := ctrl.Client().Get(ctx, *getURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "get %s: %v\n", *getURL, err)
			os.Exit(1)
		}
		_ = resp.Body.Close()
		fmt.Printf("GET %s -> %s\n", *getURL, resp.Status)
	}

	if err := ctrl.Logout(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "logout: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("logout ok")

	snap := ctrl.MetricsSnapshot()
	fmt.Printf("counters: login=%d refresh=%d retried=%d\n",
		snap.Counters[goSession.MetricLoginSuccess],
		snap.Counters[goSession.MetricRefreshSuccess],
		snap.Counters[goSession.MetricRequestRetried])
}
