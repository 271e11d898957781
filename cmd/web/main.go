// Board web server for pugboard
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	prof "github.com/go-while/go-cpu-mem-profiler"
	"go.uber.org/zap"

	"github.com/go-while/pugboard/internal/boardstore"
	"github.com/go-while/pugboard/internal/config"
	"github.com/go-while/pugboard/internal/models"
	"github.com/go-while/pugboard/internal/web"
)

var (
	// command-line flags
	configFile  string
	webport     int
	webssl      bool
	webcertFile string
	webkeyFile  string
	dbPath      string
	pprofAddr   string
	debug       bool
)

var appVersion = "-unset-"

var Prof *prof.Profiler

func main() {
	config.AppVersion = appVersion

	flag.StringVar(&configFile, "config", "", "YAML config file (optional, defaults are used without it)")
	flag.IntVar(&webport, "webport", 0, "Web server port (default: 11980)")
	flag.BoolVar(&webssl, "webssl", false, "Enable SSL")
	flag.StringVar(&webcertFile, "websslcert", "", "SSL certificate file (/path/to/fullchain.pem)")
	flag.StringVar(&webkeyFile, "websslkey", "", "SSL key file (/path/to/privkey.pem)")
	flag.StringVar(&dbPath, "db", "", "sqlite3 database file (overrides database.path)")
	flag.StringVar(&pprofAddr, "pprof", "", "serve pprof and write periodic memory profiles, e.g. :51111 (default: off)")
	flag.BoolVar(&debug, "debug", false, "debug logging and gin debug mode")
	flag.Parse()

	logger, err := newLogger(debug)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	mainConfig := config.NewDefaultConfig()
	if configFile != "" {
		if mainConfig, err = config.LoadFile(configFile); err != nil {
			zap.L().Fatal("[WEB]: Failed to load config", zap.String("file", configFile), zap.Error(err))
		}
	}
	mainConfig.AppVersion = appVersion

	// Override config with command-line flags if provided
	if webport > 0 {
		mainConfig.Web.ListenPort = webport
	}
	if webssl {
		mainConfig.Web.SSL = true
	}
	if webcertFile != "" {
		mainConfig.Web.CertFile = webcertFile
	}
	if webkeyFile != "" {
		mainConfig.Web.KeyFile = webkeyFile
	}
	if dbPath != "" {
		mainConfig.Database.Driver = "sqlite3"
		mainConfig.Database.Path = dbPath
	}
	if debug {
		mainConfig.Web.Debug = true
	}
	if err := mainConfig.Validate(); err != nil {
		zap.L().Fatal("[WEB]: Invalid configuration", zap.Error(err))
	}

	if mainConfig.Web.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if pprofAddr != "" {
		Prof = prof.NewProf()
		go Prof.PprofWeb(pprofAddr)
		Prof.StartMemProfile(5*time.Minute, 30*time.Second)
		zap.L().Info("[WEB]: pprof enabled", zap.String("addr", pprofAddr))
	}

	zap.L().Info("[WEB]: Starting pugboard",
		zap.String("version", appVersion),
		zap.Int("port", mainConfig.Web.ListenPort),
		zap.Bool("ssl", mainConfig.Web.SSL),
		zap.String("driver", mainConfig.Database.Driver),
	)

	store, err := boardstore.Open(mainConfig.Database)
	if err != nil {
		var serr *models.StoreConnectionError
		if errors.As(err, &serr) {
			zap.L().Fatal("[WEB]: Board store unreachable", zap.String("driver", serr.Driver), zap.Error(serr.Err))
		}
		zap.L().Fatal("[WEB]: Failed to initialize board store", zap.Error(err))
	}
	defer store.Close()

	server, err := web.NewServer(store, mainConfig, logger)
	if err != nil {
		zap.L().Fatal("[WEB]: Failed to create web server", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		zap.L().Info("[WEB]: Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			zap.L().Error("[WEB]: Web server stopped", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		zap.L().Error("[WEB]: Graceful shutdown failed", zap.Error(err))
	}
	zap.L().Info("[WEB]: Server stopped")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
