// Package internal wires the registry together: configuration, the history
// ledger and its store, the build description, and the HTTP server.
package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/modelgarden/registry/internal/api"
	"github.com/modelgarden/registry/internal/config"
	"github.com/modelgarden/registry/internal/db"
	"github.com/modelgarden/registry/internal/history"
	"github.com/modelgarden/registry/pkg/buildspec"
	"github.com/modelgarden/registry/pkg/check"
	"github.com/modelgarden/registry/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// The Postgres store must satisfy the same contract as the file store.
var _ history.Store = (*db.PgStore)(nil)

// Server manages the garden registry state.
type Server struct {
	ServerID string
	Version  string

	config    *config.Config
	logs      *logger.LogBuffer
	echo      *echo.Echo
	history   *history.Service
	buildSpec *buildspec.Spec
	pg        *db.PgStore
}

// New creates an instance of the registry server.
func New(version string, logStore *logger.LogBuffer, config *config.Config) *Server {
	logger.SetLogrus(config.Log)
	return &Server{
		ServerID: uuid.New().String(),
		Version:  version,
		logs:     logStore,
		config:   config,
	}
}

// Info is the registry's identity, served on /info.
type Info struct {
	ServerID    string `json:"server_id"`
	Version     string `json:"version"`
	ClusterName string `json:"cluster_name"`
}

func (s *Server) getInfo(echo.Context) (interface{}, error) {
	return Info{
		ServerID:    s.ServerID,
		Version:     s.Version,
		ClusterName: s.config.ClusterName,
	}, nil
}

func (s *Server) getConfig(echo.Context) (interface{}, error) {
	printable, err := s.config.Printable()
	if err != nil {
		return nil, err
	}
	return json.RawMessage(printable), nil
}

func (s *Server) getLogs(c echo.Context) (interface{}, error) {
	args := struct {
		LessThanID    *int `query:"less_than_id"`
		GreaterThanID *int `query:"greater_than_id"`
		Limit         *int `query:"tail"`
	}{}
	if err := api.BindArgs(&args, c); err != nil {
		return nil, err
	}
	startID := -1
	endID := -1
	limit := -1
	if args.GreaterThanID != nil {
		startID = *args.GreaterThanID + 1
	}
	if args.LessThanID != nil {
		endID = *args.LessThanID
	}
	if args.Limit != nil {
		limit = *args.Limit
	}
	return s.logs.Entries(startID, endID, limit), nil
}

func (s *Server) getBuildTargets(c echo.Context) (interface{}, error) {
	spec, err := s.requireBuildSpec()
	if err != nil {
		return nil, err
	}
	return spec.Targets, nil
}

func (s *Server) getBuildTargetCopts(c echo.Context) (interface{}, error) {
	args := struct {
		Target   string  `path:"target"`
		Platform *string `query:"platform"`
	}{}
	if err := api.BindArgs(&args, c); err != nil {
		return nil, err
	}
	spec, err := s.requireBuildSpec()
	if err != nil {
		return nil, err
	}
	target := spec.Target(args.Target)
	if target == nil {
		return nil, api.AsErrNotFound("build target %q", args.Target)
	}
	platform := buildspec.PlatformDefault
	if args.Platform != nil {
		platform = buildspec.Platform(*args.Platform)
	}
	return map[string]interface{}{
		"target":   target.Name,
		"platform": platform,
		"copts":    target.EffectiveCopts(platform),
	}, nil
}

func (s *Server) getBuildCommands(c echo.Context) (interface{}, error) {
	args := struct {
		Platform *string `query:"platform"`
	}{}
	if err := api.BindArgs(&args, c); err != nil {
		return nil, err
	}
	spec, err := s.requireBuildSpec()
	if err != nil {
		return nil, err
	}
	platform := buildspec.PlatformDefault
	if args.Platform != nil {
		platform = buildspec.Platform(*args.Platform)
	}
	return spec.CompileCommands(platform)
}

func (s *Server) requireBuildSpec() (*buildspec.Spec, error) {
	if s.buildSpec == nil {
		return nil, api.AsErrNotFound("no build spec configured")
	}
	return s.buildSpec, nil
}

func (s *Server) openStore() (history.Store, error) {
	if s.config.DB.Host == "" {
		log.Infof("using file-backed training history at %s", s.config.HistoryFile)
		return history.NewFileStore(s.config.HistoryFile), nil
	}

	log.Infof("connecting to postgres at %s:%s", s.config.DB.Host, s.config.DB.Port)
	pg, err := db.ConnectPostgres(s.config.DB.URL())
	if err != nil {
		return nil, err
	}
	s.pg = pg
	return pg, nil
}

// Run starts the registry and serves until the context is canceled or the
// server fails.
func (s *Server) Run(ctx context.Context) error {
	log.Infof("garden registry %s (id %s)", s.Version, s.ServerID)

	store, err := s.openStore()
	if err != nil {
		return err
	}
	if s.pg != nil {
		defer func() {
			if cErr := s.pg.Close(); cErr != nil {
				log.WithError(cErr).Error("error closing database connection")
			}
		}()
	}

	s.history, err = history.NewService(store)
	if err != nil {
		return err
	}

	if s.config.BuildSpecFile != "" {
		s.buildSpec, err = buildspec.Load(s.config.BuildSpecFile)
		if err != nil {
			return err
		}
		if err := check.Validate(s.buildSpec); err != nil {
			return errors.Wrap(err, "invalid build spec")
		}
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.Logger = logger.New()
	s.echo.HTTPErrorHandler = api.JSONErrorHandler
	s.echo.Use(middleware.Recover())
	if s.config.EnableCors {
		s.echo.Use(middleware.CORS())
	}

	s.echo.GET("/info", api.Route(s.getInfo))
	s.echo.GET("/config", api.Route(s.getConfig))
	s.echo.GET("/logs", api.Route(s.getLogs))

	s.history.RegisterAPIHandler(s.echo)

	buildGroup := s.echo.Group("/build-targets")
	buildGroup.GET("", api.Route(s.getBuildTargets))
	buildGroup.GET("/:target/copts", api.Route(s.getBuildTargetCopts))
	s.echo.GET("/build-commands", api.Route(s.getBuildCommands))

	errs := make(chan error, 1)
	go func() {
		errs <- s.echo.Start(fmt.Sprintf(":%d", s.config.Port))
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
