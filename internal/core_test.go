package internal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"gotest.tools/assert"

	"github.com/modelgarden/registry/internal/api"
	"github.com/modelgarden/registry/internal/config"
	"github.com/modelgarden/registry/pkg/buildspec"
	"github.com/modelgarden/registry/pkg/logger"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	conf := config.DefaultConfig()
	conf.ClusterName = "garden-test"

	s := New("0.0.0-test", logger.NewLogBuffer(100), conf)
	s.buildSpec = &buildspec.Spec{
		Targets: []buildspec.Target{
			{
				Name:  "training_op_helpers",
				Kind:  buildspec.StaticLibrary,
				Srcs:  []string{"kernels/box_util.cc"},
				Copts: []string{"-std=c++14"},
				PlatformFlags: map[buildspec.Platform]buildspec.FlagSet{
					buildspec.PlatformWindows: {Defines: []string{"NOMINMAX"}},
				},
			},
		},
	}

	s.echo = echo.New()
	s.echo.HTTPErrorHandler = api.JSONErrorHandler
	s.echo.GET("/info", api.Route(s.getInfo))
	s.echo.GET("/config", api.Route(s.getConfig))
	s.echo.GET("/logs", api.Route(s.getLogs))
	s.echo.GET("/build-targets", api.Route(s.getBuildTargets))
	s.echo.GET("/build-targets/:target/copts", api.Route(s.getBuildTargetCopts))
	s.echo.GET("/build-commands", api.Route(s.getBuildCommands))
	return s
}

func doRequest(s *Server, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestGetInfo(t *testing.T) {
	s := testServer(t)
	rec := doRequest(s, "/info")
	assert.Equal(t, rec.Code, http.StatusOK)

	var info Info
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, info.Version, "0.0.0-test")
	assert.Equal(t, info.ClusterName, "garden-test")
	assert.Equal(t, info.ServerID, s.ServerID)
}

func TestGetConfigScrubsSecrets(t *testing.T) {
	s := testServer(t)
	s.config.DB.Password = "hunter2"

	rec := doRequest(s, "/config")
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Assert(t, !strings.Contains(rec.Body.String(), "hunter2"))
}

func TestGetLogs(t *testing.T) {
	s := testServer(t)
	for i := 0; i < 5; i++ {
		assert.NilError(t, s.logs.Fire(log.WithField("n", i)))
	}

	rec := doRequest(s, "/logs?tail=2")
	assert.Equal(t, rec.Code, http.StatusOK)

	var entries []logger.Entry
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Equal(t, len(entries), 2)
	assert.Equal(t, entries[1].ID, 4)
}

func TestBuildTargetCopts(t *testing.T) {
	s := testServer(t)

	rec := doRequest(s, "/build-targets/training_op_helpers/copts?platform=windows")
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Assert(t, strings.Contains(rec.Body.String(), "/DNOMINMAX"))

	rec = doRequest(s, "/build-targets/training_op_helpers/copts")
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Assert(t, strings.Contains(rec.Body.String(), "-std=c++14"))

	rec = doRequest(s, "/build-targets/box_util/copts")
	assert.Equal(t, rec.Code, http.StatusNotFound)
}

func TestBuildEndpointsWithoutSpec(t *testing.T) {
	s := testServer(t)
	s.buildSpec = nil

	for _, target := range []string{"/build-targets", "/build-commands"} {
		rec := doRequest(s, target)
		assert.Equal(t, rec.Code, http.StatusNotFound)
	}
}
