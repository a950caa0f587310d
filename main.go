package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/ProsperityMC/christmas-draw/store"
	"github.com/charmbracelet/log"
	exit_reload "github.com/mrmelon54/exit-reload"
)

var (
	configFlag      string
	createAdminFlag bool
)

func main() {
	flag.StringVar(&configFlag, "conf", "config.yml", "Path to the config file")
	flag.BoolVar(&createAdminFlag, "create-admin", false, "Interactively create an admin user and exit")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "ChristmasDraw",
	})

	conf, err := loadConfig(configFlag)
	if err != nil {
		logger.Fatal("Failed to load config", "err", err)
	}
	setLogLevel(logger, conf.LogLevel)

	st, err := store.Open(conf.Database)
	if err != nil {
		logger.Fatal("Failed to open database", "path", conf.Database, "err", err)
	}

	if createAdminFlag {
		err := createAdmin(context.Background(), st, os.Stdin, os.Stdout)
		_ = st.Close()
		if err != nil {
			logger.Fatal("Failed to create admin", "err", err)
		}
		return
	}

	gen, err := conf.Draw.Generator()
	if err != nil {
		logger.Fatal("Invalid draw config", "err", err)
	}
	srv := NewServer(conf, st, gen, logger)

	server := &http.Server{
		Handler:           srv.Router(),
		Addr:              conf.Listen,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Listening for HTTP requests", "addr", server.Addr)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Listen and serve error", "err", err)
		}
	}()

	exit_reload.ExitReload("ChristmasDraw", func() {
		newConf, err := loadConfig(configFlag)
		if err != nil {
			logger.Error("Failed to reload config", "err", err)
			return
		}
		gen, err := newConf.Draw.Generator()
		if err != nil {
			logger.Error("Invalid draw config", "err", err)
			return
		}
		setLogLevel(logger, newConf.LogLevel)
		srv.SetGenerator(gen)
		logger.Info("Reloaded config", "strategy", gen.Strategy())
	}, func() {
		_ = server.Close()
		_ = st.Close()
	})
}

func setLogLevel(logger *log.Logger, level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		logger.Warn("Unknown log level, using info", "level", level)
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)
}
