package history

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/modelgarden/registry/internal/api"
	"github.com/modelgarden/registry/pkg/model"
)

// RegisterAPIHandler registers the ledger's API routes.
func (s *Service) RegisterAPIHandler(echoService *echo.Echo, middleware ...echo.MiddlewareFunc) {
	modelsGroup := echoService.Group("/models", middleware...)
	modelsGroup.GET("", api.Route(s.getModels))
	modelsGroup.GET("/:model", api.Route(s.getModel))
	modelsGroup.GET("/:model/versions/:version", api.Route(s.getVersion))
	modelsGroup.POST("/:model/versions", api.Route(s.postVersion))

	scriptsGroup := echoService.Group("/scripts", middleware...)
	scriptsGroup.GET("", api.Route(s.getScripts))
	scriptsGroup.GET("/:script/authors", api.Route(s.getScriptAuthors))

	echoService.GET("/history/verify", api.Route(s.getVerify), middleware...)
}

func (s *Service) getModels(c echo.Context) (interface{}, error) {
	return s.Models(), nil
}

func (s *Service) getModel(c echo.Context) (interface{}, error) {
	args := struct {
		Model string `path:"model"`
	}{}
	if err := api.BindArgs(&args, c); err != nil {
		return nil, err
	}

	versions, err := s.Versions(args.Model)
	if err != nil {
		return nil, convertNotFound(err)
	}
	return map[string]interface{}{
		"name":     args.Model,
		"versions": versions,
	}, nil
}

func (s *Service) getVersion(c echo.Context) (interface{}, error) {
	args := struct {
		Model   string `path:"model"`
		Version string `path:"version"`
	}{}
	if err := api.BindArgs(&args, c); err != nil {
		return nil, err
	}

	run, err := s.Run(args.Model, args.Version)
	if err != nil {
		return nil, convertNotFound(err)
	}
	return run, nil
}

func (s *Service) postVersion(c echo.Context) (interface{}, error) {
	args := struct {
		Model string `path:"model"`
	}{}
	if err := api.BindArgs(&args, c); err != nil {
		return nil, err
	}

	var run model.TrainingRun
	if err := c.Bind(&run); err != nil {
		return nil, err
	}

	label, err := s.AppendRun(args.Model, run)
	if err != nil {
		return nil, api.AsValidationError("%s", err.Error())
	}
	return map[string]string{"model": args.Model, "version": label}, nil
}

func (s *Service) getScripts(c echo.Context) (interface{}, error) {
	return s.Scripts(), nil
}

func (s *Service) getScriptAuthors(c echo.Context) (interface{}, error) {
	args := struct {
		Script string `path:"script"`
	}{}
	if err := api.BindArgs(&args, c); err != nil {
		return nil, err
	}

	authors, err := s.AuthorsOf(args.Script)
	if err != nil {
		return nil, convertNotFound(err)
	}
	return map[string]interface{}{
		"script":  args.Script,
		"authors": authors,
	}, nil
}

func (s *Service) getVerify(c echo.Context) (interface{}, error) {
	if err := s.Verify(); err != nil {
		return nil, api.AsErrConflict("%s", err.Error())
	}
	return map[string]string{"status": "ok"}, nil
}

func convertNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return err
}
