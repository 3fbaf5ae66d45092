package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/oasis-iglesia/oasis/internal/app"
	"github.com/oasis-iglesia/oasis/internal/channel"
	"github.com/oasis-iglesia/oasis/internal/notify"
	"github.com/oasis-iglesia/oasis/internal/webserver"
)

type channelSettingsPayload struct {
	EvolutionURL      *string `json:"evolution_url" validate:"omitempty,url"`
	EvolutionKey      *string `json:"evolution_key" validate:"omitempty,max=255"`
	EvolutionInstance *string `json:"evolution_instance" validate:"omitempty,min=1,max=100"`
	AppURL            *string `json:"app_url" validate:"omitempty,url"`
	NotifyEmail       *string `json:"notify_email" validate:"omitempty,email"`
	SMTPHost          *string `json:"smtp_host" validate:"omitempty,hostname|ip"`
	SMTPPort          *int    `json:"smtp_port" validate:"omitempty,min=1,max=65535"`
	SMTPUser          *string `json:"smtp_user" validate:"omitempty,max=255"`
	SMTPPass          *string `json:"smtp_pass" validate:"omitempty,max=255"`
	SMTPFrom          *string `json:"smtp_from" validate:"omitempty,email"`
	ChurchName        *string `json:"church_name" validate:"omitempty,max=200"`
}

func registerSettingsRoutes() {
	webserver.ApiGET("/channel/settings", getChannelSettings)
	webserver.ApiPUT("/channel/settings", putChannelSettings)
}

// MaskSecret keeps the last four characters of a secret.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return strings.Repeat("*", 8) + s[len(s)-4:]
}

// @Summary get channel settings (secrets masked)
// @Tags Settings
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /channel/settings [get]
func getChannelSettings(c echo.Context) error {
	appCtx := GetAppContext(c)
	ctx := c.Request().Context()
	wa, err := appCtx.ConfigMgr().All(ctx, app.CategoryWhatsApp)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "SETTINGS_READ_FAILED", "Failed to read settings", err.Error())
	}
	nt, err := appCtx.ConfigMgr().All(ctx, app.CategoryNotify)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "SETTINGS_READ_FAILED", "Failed to read settings", err.Error())
	}
	return ok(c, map[string]interface{}{
		"evolution_url":      wa[channel.KeyBaseURL],
		"evolution_key":      MaskSecret(wa[channel.KeyAPIKey]),
		"evolution_instance": wa[channel.KeyInstanceName],
		"app_url":            wa[channel.KeyAppURL],
		"notify_email":       nt[notify.KeyEmail],
		"smtp_host":          nt[notify.KeySMTPHost],
		"smtp_port":          nt[notify.KeySMTPPort],
		"smtp_user":          nt[notify.KeySMTPUser],
		"smtp_pass":          MaskSecret(nt[notify.KeySMTPPass]),
		"smtp_from":          nt[notify.KeySMTPFrom],
		"church_name":        nt[notify.KeyChurchName],
	})
}

// @Summary update channel settings
// @Tags Settings
// @Security BearerAuth
// @Accept json
// @Param settings body channelSettingsPayload true "Fields to change"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /channel/settings [put]
func putChannelSettings(c echo.Context) error {
	var payload channelSettingsPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse settings", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	values := map[string]interface{}{}
	put := func(category, key string, v *string) {
		if v != nil {
			values[category+"."+key] = strings.TrimSpace(*v)
		}
	}
	put(app.CategoryWhatsApp, channel.KeyBaseURL, payload.EvolutionURL)
	put(app.CategoryWhatsApp, channel.KeyAPIKey, payload.EvolutionKey)
	put(app.CategoryWhatsApp, channel.KeyInstanceName, payload.EvolutionInstance)
	put(app.CategoryWhatsApp, channel.KeyAppURL, payload.AppURL)
	put(app.CategoryNotify, notify.KeyEmail, payload.NotifyEmail)
	put(app.CategoryNotify, notify.KeySMTPHost, payload.SMTPHost)
	put(app.CategoryNotify, notify.KeySMTPUser, payload.SMTPUser)
	put(app.CategoryNotify, notify.KeySMTPPass, payload.SMTPPass)
	put(app.CategoryNotify, notify.KeySMTPFrom, payload.SMTPFrom)
	put(app.CategoryNotify, notify.KeyChurchName, payload.ChurchName)
	if payload.SMTPPort != nil {
		values[app.CategoryNotify+"."+notify.KeySMTPPort] = *payload.SMTPPort
	}
	if len(values) == 0 {
		return fail(c, http.StatusBadRequest, "NO_CHANGES", "No settings provided", nil)
	}

	if err := GetAppContext(c).SaveSettings(values); err != nil {
		return fail(c, http.StatusInternalServerError, "SETTINGS_SAVE_FAILED", "Failed to save settings", err.Error())
	}
	logOperation(c, "channel_settings_update", settingsKeys(values))
	return getChannelSettings(c)
}

func settingsKeys(values map[string]interface{}) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	return strings.Join(keys, ",")
}
