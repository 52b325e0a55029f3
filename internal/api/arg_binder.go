package api

import (
	"net/http"
	"reflect"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// BindArgs fills a struct's fields from the request's path and query
// parameters, matched by `path` and `query` field tags. Pointer fields are
// optional and stay nil when the parameter is absent; value fields are
// required. The registry's routes only carry string and integer parameters,
// and those are the only kinds bound here.
func BindArgs(i interface{}, c echo.Context) error {
	v := reflect.ValueOf(i).Elem()
	for ix := 0; ix < v.NumField(); ix++ {
		tag := v.Type().Field(ix).Tag
		if name, ok := tag.Lookup("path"); ok {
			if err := setArg(v.Field(ix), name, c.Param(name)); err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
		}
		if name, ok := tag.Lookup("query"); ok {
			if err := setArg(v.Field(ix), name, c.QueryParam(name)); err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
		}
	}
	return nil
}

func setArg(f reflect.Value, name string, raw string) error {
	optional := f.Kind() == reflect.Ptr
	if raw == "" {
		if optional {
			return nil
		}
		return errors.Errorf("missing parameter: %s", name)
	}

	target := f
	if optional {
		f.Set(reflect.New(f.Type().Elem()))
		target = f.Elem()
	}
	switch target.Kind() {
	case reflect.String:
		target.SetString(raw)
	case reflect.Int:
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return errors.Wrapf(err, "cannot parse parameter %s", name)
		}
		target.SetInt(int64(parsed))
	default:
		return errors.Errorf("cannot bind parameter %s of kind %v", name, target.Kind())
	}
	return nil
}
