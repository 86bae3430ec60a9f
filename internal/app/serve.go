package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/slanglab/internal/cli"
	"horse.fit/slanglab/internal/httpapi"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "0.0.0.0", "Host interface to bind")
	port := fs.Int("port", 8090, "Port to listen on")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 90*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	runTimeout := fs.Duration("run-timeout", 60*time.Second, "Timeout for one tracker run triggered over HTTP")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *port <= 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}

	d, err := openDeps(envLoader, 10*time.Second)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer d.Close()

	server := httpapi.NewServer(d.newRunner(), d.pool, d.logger, httpapi.Options{
		Host:            *host,
		Port:            *port,
		ReadTimeout:     *readTimeout,
		WriteTimeout:    *writeTimeout,
		ShutdownTimeout: *shutdownTimeout,
		RunTimeout:      *runTimeout,
		AllowedOrigins:  d.cfg.CORSAllowedOriginsList(),
		AdminTokenHash:  d.cfg.AdminTokenHash,
	})

	ctx, stop := signalContext()
	defer stop()

	if err := server.Start(ctx); err != nil {
		d.logger.Error().Err(err).Msg("api server exited with error")
		return 1
	}
	return 0
}
