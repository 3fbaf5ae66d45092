package adminapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/oasis-iglesia/oasis/internal/channel"
	"github.com/oasis-iglesia/oasis/internal/domain"
	"github.com/oasis-iglesia/oasis/internal/webserver"
)

type sendTestPayload struct {
	To      string `json:"to" validate:"required,max=64"`
	Message string `json:"message" validate:"required,max=4096"`
}

type sendDocumentPayload struct {
	To       string `json:"to" validate:"required,max=64"`
	FileURL  string `json:"file_url" validate:"required,url"`
	Caption  string `json:"caption" validate:"omitempty,max=1024"`
	FileName string `json:"file_name" validate:"omitempty,max=255"`
}

type sendImagePayload struct {
	To       string `json:"to" validate:"required,max=64"`
	ImageURL string `json:"image_url" validate:"required,url"`
	Caption  string `json:"caption" validate:"omitempty,max=1024"`
}

func registerChannelRoutes() {
	webserver.PublicPOST("/channel/webhook", postChannelWebhook)

	webserver.ApiGET("/channel/status", getChannelStatus)
	webserver.ApiPOST("/channel/create-instance", postChannelCreateInstance)
	webserver.ApiGET("/channel/qr", getChannelQR)
	webserver.ApiPOST("/channel/logout", postChannelLogout)
	webserver.ApiPOST("/channel/reset-kill-switch", postChannelResetKillSwitch)
	webserver.ApiPOST("/channel/send-test", postChannelSendTest)
	webserver.ApiPOST("/channel/send-document", postChannelSendDocument)
	webserver.ApiPOST("/channel/send-image", postChannelSendImage)
}

// postChannelWebhook always acknowledges, whatever the body, so the
// provider never retries.
// @Summary receive provider webhook
// @Tags Channel
// @Accept json
// @Param event body channel.WebhookEvent true "Provider event"
// @Success 200 {object} map[string]interface{}
// @Router /channel/webhook [post]
func postChannelWebhook(c echo.Context) error {
	var ev channel.WebhookEvent
	if err := c.Bind(&ev); err != nil {
		zap.L().Warn("adminapi: unparseable webhook body", zap.Error(err))
		return ok(c, map[string]interface{}{"received": true})
	}
	GetAppContext(c).Channel().ProcessWebhook(c.Request().Context(), ev)
	return ok(c, map[string]interface{}{"received": true})
}

// @Summary get channel status
// @Tags Channel
// @Security BearerAuth
// @Success 200 {object} channel.StatusReport
// @Router /channel/status [get]
func getChannelStatus(c echo.Context) error {
	report, err := GetAppContext(c).Channel().Status(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "STATUS_FAILED", "Failed to read channel status", err.Error())
	}
	return ok(c, report)
}

// @Summary create the provider instance
// @Tags Channel
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /channel/create-instance [post]
func postChannelCreateInstance(c echo.Context) error {
	resp, err := GetAppContext(c).Channel().CreateInstance(c.Request().Context())
	if err != nil {
		return channelError(c, "CREATE_FAILED", err)
	}
	logOperation(c, "channel_create_instance", "created provider instance")
	return ok(c, resp)
}

// @Summary start pairing and get the QR code
// @Tags Channel
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /channel/qr [get]
func getChannelQR(c echo.Context) error {
	resp, err := GetAppContext(c).Channel().QRCode(c.Request().Context())
	if err != nil {
		return channelError(c, "QR_FAILED", err)
	}
	return ok(c, resp)
}

// @Summary log out the provider instance
// @Tags Channel
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /channel/logout [post]
func postChannelLogout(c echo.Context) error {
	resp, err := GetAppContext(c).Channel().Logout(c.Request().Context())
	if err != nil {
		return channelError(c, "LOGOUT_FAILED", err)
	}
	logOperation(c, "channel_logout", "disconnected provider instance")
	return ok(c, resp)
}

// @Summary reset the kill switch
// @Tags Channel
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /channel/reset-kill-switch [post]
func postChannelResetKillSwitch(c echo.Context) error {
	mgr := GetAppContext(c).Channel()
	prev, _ := mgr.Gate().State(c.Request().Context())
	if err := mgr.ResetKillSwitch(c.Request().Context()); err != nil {
		return fail(c, http.StatusInternalServerError, "RESET_FAILED", "Failed to reset kill switch", err.Error())
	}
	logOperation(c, "channel_reset_kill_switch", "previous reason: "+prev.Reason)
	return ok(c, map[string]interface{}{"kill_switch": false, "kill_reason": ""})
}

// @Summary send a test text message
// @Tags Channel
// @Security BearerAuth
// @Accept json
// @Param message body sendTestPayload true "Recipient and text"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /channel/send-test [post]
func postChannelSendTest(c echo.Context) error {
	var payload sendTestPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	resp, err := GetAppContext(c).Channel().SendText(c.Request().Context(), payload.To, payload.Message,
		channel.WithDelay(1*time.Second, 3*time.Second))
	if err != nil {
		return channelError(c, "SEND_FAILED", err)
	}
	return ok(c, map[string]interface{}{"sent": true, "response": resp})
}

// @Summary send a document
// @Tags Channel
// @Security BearerAuth
// @Accept json
// @Param document body sendDocumentPayload true "Recipient and file"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /channel/send-document [post]
func postChannelSendDocument(c echo.Context) error {
	var payload sendDocumentPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	resp, err := GetAppContext(c).Channel().SendDocument(c.Request().Context(),
		payload.To, payload.FileURL, payload.Caption, payload.FileName,
		channel.WithDelay(5*time.Second, 15*time.Second))
	if err != nil {
		return channelError(c, "SEND_FAILED", err)
	}
	return ok(c, map[string]interface{}{"sent": true, "response": resp})
}

// @Summary send an image
// @Tags Channel
// @Security BearerAuth
// @Accept json
// @Param image body sendImagePayload true "Recipient and image"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /channel/send-image [post]
func postChannelSendImage(c echo.Context) error {
	var payload sendImagePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	resp, err := GetAppContext(c).Channel().SendImage(c.Request().Context(),
		payload.To, payload.ImageURL, payload.Caption)
	if err != nil {
		return channelError(c, "SEND_FAILED", err)
	}
	return ok(c, map[string]interface{}{"sent": true, "response": resp})
}

// channelError maps channel errors: kill switch 403, bad recipient 400,
// everything else 500 with the underlying message.
func channelError(c echo.Context, code string, err error) error {
	var ks *channel.KillSwitchError
	switch {
	case errors.As(err, &ks):
		return fail(c, http.StatusForbidden, "KILL_SWITCH_ACTIVE", err.Error(),
			map[string]interface{}{"kill_reason": ks.Reason})
	case errors.Is(err, channel.ErrInvalidRecipient):
		return fail(c, http.StatusBadRequest, "INVALID_RECIPIENT", err.Error(), nil)
	case channel.IsConfigurationError(err):
		return fail(c, http.StatusInternalServerError, "CHANNEL_NOT_CONFIGURED", err.Error(), nil)
	}
	return fail(c, http.StatusInternalServerError, code, err.Error(), nil)
}

func logOperation(c echo.Context, action, desc string) {
	appCtx := GetAppContext(c)
	entry := &domain.SysOprLog{
		ID:        appCtx.NextID(),
		OprName:   webserver.Operator(c),
		OprIp:     c.RealIP(),
		OptAction: action,
		OptDesc:   desc,
		OptTime:   time.Now(),
	}
	if err := GetDB(c).Create(entry).Error; err != nil {
		zap.L().Warn("adminapi: write operation log failed", zap.String("action", action), zap.Error(err))
	}
}
