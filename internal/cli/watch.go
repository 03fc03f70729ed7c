package cli

import (
	"context"
	stderrors "errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/crmon/internal/config"
	"github.com/rileyhilliard/crmon/internal/errors"
	"github.com/rileyhilliard/crmon/internal/logger"
	"github.com/rileyhilliard/crmon/internal/metrics"
	"github.com/rileyhilliard/crmon/internal/ui"
	"github.com/rileyhilliard/crmon/internal/watch"
)

// watchLogFile is where the dashboard logs when no log file is configured.
const watchLogFile = "watch.log"

// watchCommand runs the dashboard until the user quits.
func watchCommand(flags ClusterFlags, metricsAddr string) error {
	if !ui.IsTerminal(os.Stdout) {
		return errors.New(errors.ErrConfig,
			"crmon watch needs an interactive terminal",
			"Use 'crmon status' for scripts and pipes")
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	lc := cfg.Log
	if lc.File == "" && logFileFlag == "" {
		lc.File = defaultWatchLog()
	}
	initLogger(lc)
	log := logger.New("watch")

	if metricsAddr == "" {
		metricsAddr = cfg.Metrics.Addr
	}
	if metricsAddr != "" {
		srv := serveMetrics(metricsAddr, log)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := connect(ctx, cfg, flags.Cluster)
	if err != nil {
		return err
	}
	// Graceful shutdown: stop the loops and close all SSH connections
	defer sess.Close()

	done := make(chan struct{})
	model := watch.NewModel(sess.cluster, done)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	close(done)

	log.Info("dashboard closed")
	return err
}

// serveMetrics exposes the Prometheus registry in the background.
func serveMetrics(addr string, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			log.Error("metrics endpoint: %v", err)
		}
	}()
	return srv
}

func defaultWatchLog() string {
	if global := config.GlobalPath(); global != "" {
		return filepath.Join(filepath.Dir(global), watchLogFile)
	}
	return filepath.Join(os.TempDir(), "crmon-"+watchLogFile)
}
