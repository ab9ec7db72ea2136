package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/burntcarrot/otpad/ot"
	"github.com/burntcarrot/otpad/store"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

// Flags represents the command-line flags that are passed to otpad's server.
type Flags struct {
	Addr      string
	Redis     string
	MaxLag    int
	Debug     bool
	JSONLogs  bool
	RecordOps string
}

// parseFlags parses command-line flags.
func parseFlags() Flags {
	addr := flag.String("addr", ":9000", "Server's network address")
	redisAddr := flag.String("redis", os.Getenv("OTPAD_REDIS_ADDR"), "Redis address for document snapshots (in-memory when empty)")
	maxLag := flag.Int("max-lag", 500, "Maximum number of versions an edit may lag behind before the client is resynced")
	debug := flag.Bool("debug", false, "Enable debugging mode to show more verbose logs")
	jsonLogs := flag.Bool("json", false, "Write logs as JSON")
	recordOps := flag.String("history", ot.RecordReconciled.String(), "Operation copy kept in history: reconciled or submitted")

	flag.Parse()

	return Flags{
		Addr:      *addr,
		Redis:     *redisAddr,
		MaxLag:    *maxLag,
		Debug:     *debug,
		JSONLogs:  *jsonLogs,
		RecordOps: *recordOps,
	}
}

// setupLogger initializes the server's logger (logrus).
func setupLogger(flags Flags) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if flags.JSONLogs {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if flags.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	return logger
}

func main() {
	flags := parseFlags()
	logger := setupLogger(flags)

	policy := ot.RecordReconciled
	switch flags.RecordOps {
	case ot.RecordReconciled.String():
	case ot.RecordSubmitted.String():
		policy = ot.RecordSubmitted
	default:
		logger.Fatalf("unknown history policy %q", flags.RecordOps)
	}

	// Use redis for snapshots if an address was given.
	var docs store.Store = store.NewMemoryStore()
	if flags.Redis != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rs, err := store.OpenRedis(ctx, flags.Redis)
		cancel()
		if err != nil {
			logger.Fatal(err)
		}
		defer rs.Close()

		docs = rs
		logger.Infof("Storing documents in redis at %s", flags.Redis)
	}

	engine := ot.NewEngine(ot.WithLogger(logger), ot.WithHistoryPolicy(policy))
	srv := NewServer(engine, docs, logger, flags.MaxLag)

	// Start the server.
	color.Green("Starting otpad server on %s\n", flags.Addr)
	err := http.ListenAndServe(flags.Addr, srv.Router())
	if err != nil {
		logger.Fatal("Error starting server, exiting. ", err)
	}
}
