package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/receivr-io/receivr/internal/models"
	"go.opentelemetry.io/otel/attribute"
)

// RegisterDevice registers a receiver for the calling user
// @Summary      Register a device
// @Description  Registers a new device, or transfers a factory reset device to the caller
// @Id           RegisterDevice
// @Tags         Devices
// @Accept       json
// @Produce      json
// @Param        device  body      models.RegisterDevice  true  "Register Device"
// @Success      201  {object}  models.RegisterDeviceResponse
// @Failure      400  {object}  models.ValidationError
// @Failure      401  {object}  models.UnauthorizedError
// @Failure      409  {object}  models.RegistrationConflictError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/devices/register [post]
func (api *API) RegisterDevice(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "RegisterDevice")
	defer span.End()

	var request models.RegisterDevice
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPayloadError())
		return
	}
	span.SetAttributes(attribute.String("serial_number", request.SerialNumber))

	result, err := api.registrar.Register(ctx, api.GetCurrentSubject(c), request)
	if err != nil {
		if apiResponseError := registrationResponseError(err); apiResponseError != nil {
			c.JSON(apiResponseError.Status, apiResponseError.Body)
			return
		}
		api.SendInternalServerError(c, err)
		return
	}

	device := result.Device
	c.JSON(http.StatusCreated, models.RegisterDeviceResponse{
		DeviceID:             device.DeviceID,
		DeviceInstanceID:     device.DeviceInstanceID,
		DeviceName:           device.Name,
		SerialNumber:         device.SerialNumber,
		MacAddress:           device.MacAddress,
		OwnerUserID:          device.OwnerUserID.String(),
		RegisteredAt:         device.CreatedAt,
		LastResetAt:          device.LastResetAt,
		OwnershipTransferred: result.OwnershipTransferred,
		Credentials:          result.Credentials,
	})
}
