package rest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// ReadyCheck is a named dependency check for /readyz.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

func healthz(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func readyz(checks []ReadyCheck) echo.HandlerFunc {
	return func(c echo.Context) error {
		var failures []string
		for _, check := range checks {
			if check.Check == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			err := check.Check(ctx)
			cancel()
			if err != nil {
				name := check.Name
				if name == "" {
					name = "dependency"
				}
				failures = append(failures, name+": "+err.Error())
			}
		}
		if len(failures) > 0 {
			return c.String(http.StatusServiceUnavailable, strings.Join(failures, "; "))
		}
		return c.String(http.StatusOK, "ok")
	}
}
