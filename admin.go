package viewcounter

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/viewcounter/views"
)

func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return Render(c, views.AdminLogin(false, CsrfToken(c)))
	}
	return c.Redirect(http.StatusSeeOther, "/admin/stats/")
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) == 1 {
		if err := setAdminSession(c); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/admin/stats/")
	}
	a.loginLimiter.Record(ip)
	a.log.Warn("admin login failed", "remote_ip", ip)
	return RenderStatus(c, http.StatusUnauthorized, views.AdminLogin(true, CsrfToken(c)))
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) handleAdminStats(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	if c.QueryParam("refresh") != "" {
		a.topCache.Invalidate()
	}
	total, pages, err := a.topCache.Top(c.Request().Context(), 0)
	if err != nil {
		return err
	}
	return Render(c, views.AdminStats(total, pages, CsrfToken(c)))
}
