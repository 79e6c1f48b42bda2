package sbhsd

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/CruiseDevice/sbhsd/sbhs"
	"github.com/gin-gonic/gin"
	"github.com/mdouchement/logger"
)

// Router exposes the boards through the /experiment routes and the /monitor SSE stream.
func (c *Controller) Router(log logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), withLogger(log))

	experiment := router.Group("/experiment")
	{
		experiment.GET("/get_machine_ids", c.machineIDs)
		experiment.GET("/set_fan/:dev/:value", c.setFan)
		experiment.GET("/set_heat/:dev/:value", c.setHeat)
		experiment.GET("/get_temp/:dev", c.temperature)
		experiment.GET("/reset/:dev", c.reset)
		experiment.GET("/disconnect/:dev", c.disconnect)
	}
	router.GET("/monitor", c.monitor)

	return router
}

func withLogger(log logger.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Request = ctx.Request.WithContext(logger.WithLogger(ctx.Request.Context(), log))

		start := time.Now()
		ctx.Next()
		log.Debugf("%s %s %d %s", ctx.Request.Method, ctx.Request.URL.Path, ctx.Writer.Status(), time.Since(start))
	}
}

func param(ctx *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(ctx.Param(name))
	return v, err == nil
}

func (c *Controller) machineIDs(ctx *gin.Context) {
	mappings := c.boards.Discover()
	if mappings == nil {
		mappings = []sbhs.Mapping{}
	}

	ctx.JSON(http.StatusOK, mappings)
}

func (c *Controller) setFan(ctx *gin.Context) {
	c.setpoint(ctx, "fan speed", c.boards.SetFan, func(usb sbhs.USB, v int) event {
		return event{name: eventUpdateSetpoint, usb: usb, fan: ToPtr(v)}
	})
}

func (c *Controller) setHeat(ctx *gin.Context) {
	c.setpoint(ctx, "heat", c.boards.SetHeat, func(usb sbhs.USB, v int) event {
		return event{name: eventUpdateSetpoint, usb: usb, heat: ToPtr(v)}
	})
}

func (c *Controller) setpoint(ctx *gin.Context, label string, set func(sbhs.USB, int) error, applied func(sbhs.USB, int) event) {
	response := Response{Message: "Could not set " + label}

	dev, ok := param(ctx, "dev")
	v, ok2 := param(ctx, "value")
	if !ok || !ok2 {
		ctx.JSON(http.StatusBadRequest, response)
		return
	}

	usb := sbhs.USB(dev)
	if err := set(usb, v); err != nil {
		logger.LogWith(ctx.Request.Context()).WithError(err).Warnf("Could not set %s %d%% on %s", label, v, usb)
		ctx.JSON(http.StatusOK, response)
		return
	}

	c.emit(applied(usb, v))
	ctx.JSON(http.StatusOK, Response{
		Status:  true,
		Message: fmt.Sprintf("Set %s at %d%%", label, v),
	})
}

func (c *Controller) temperature(ctx *gin.Context) {
	dev, ok := param(ctx, "dev")
	if !ok {
		ctx.JSON(http.StatusBadRequest, TemperatureResponse{})
		return
	}

	ctx.JSON(http.StatusOK, TemperatureResponse{Temp: c.boards.Temperature(sbhs.USB(dev))})
}

func (c *Controller) reset(ctx *gin.Context) {
	c.lifecycle(ctx, "Reset Successful", "Reset Failed", func(usb sbhs.USB) error {
		if err := c.boards.Reset(usb); err != nil {
			return err
		}

		c.emit(event{name: eventUpdateSetpoint, usb: usb, heat: ToPtr(sbhs.MinSetpoint), fan: ToPtr(sbhs.MaxSetpoint)})
		return nil
	})
}

func (c *Controller) disconnect(ctx *gin.Context) {
	c.lifecycle(ctx, "Disconnected", "Disconnect Failed", c.boards.Disconnect)
}

func (c *Controller) lifecycle(ctx *gin.Context, success, failure string, fn func(sbhs.USB) error) {
	dev, ok := param(ctx, "dev")
	if !ok {
		ctx.JSON(http.StatusBadRequest, Response{Message: failure})
		return
	}

	usb := sbhs.USB(dev)
	if err := fn(usb); err != nil {
		logger.LogWith(ctx.Request.Context()).WithError(err).Warnf("%s for %s", failure, usb)
		ctx.JSON(http.StatusOK, Response{Message: failure})
		return
	}

	ctx.JSON(http.StatusOK, Response{Status: true, Message: success})
}

func (c *Controller) monitor(ctx *gin.Context) {
	log := logger.LogWith(ctx.Request.Context())
	log.Info("Client connected")

	// Set http headers required for SSE.
	ctx.Header("Content-Type", "text/event-stream")
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")
	ctx.Status(http.StatusOK)
	ctx.Writer.Flush()

	disconnected := ctx.Request.Context().Done()

	id := genID()
	ch := make(chan []byte, 20)
	c.emit(event{name: eventWatch, monitorID: id, monitor: ch})

	for {
		select {
		case <-disconnected:
			log.Info("Client disconnected")
			c.emit(event{name: eventUnwatch, monitorID: id})
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}

			err := WriteSSE(ctx.Writer, payload)
			if err != nil {
				log.WithError(err).Error("Could not write monitor SSE payload")
				c.emit(event{name: eventUnwatch, monitorID: id})
				return
			}

			ctx.Writer.Flush()
		}
	}
}
