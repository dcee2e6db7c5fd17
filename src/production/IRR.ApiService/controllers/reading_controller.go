package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/irr.soil_server/src/production/IRR.ApiService/middleware"
	ingestion "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Ingestion"
	logger "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Logger"
	irrmodels "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Models"
	timestamp "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Timestamp"
	validation "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Validation"
)

// maxBodyBytes caps a POST /reading body.
const maxBodyBytes = 1 << 20

var (
	minInstant = time.UnixMilli(timestamp.MinMillis).UTC()
	maxInstant = time.UnixMilli(timestamp.MaxMillis).UTC()
)

// ReadingController handles reading CRUD requests
type ReadingController struct {
	service     *ingestion.ReadingService
	logger      *logger.Logger
	writeGuards []gin.HandlerFunc
}

// NewReadingController creates a new reading controller. writeGuards run
// before the POST and DELETE handlers.
func NewReadingController(service *ingestion.ReadingService, logger *logger.Logger, writeGuards ...gin.HandlerFunc) *ReadingController {
	return &ReadingController{
		service:     service,
		logger:      logger.WithComponent("reading_controller"),
		writeGuards: writeGuards,
	}
}

// RegisterRoutes registers the reading routes with Gin
func (c *ReadingController) RegisterRoutes(router *gin.Engine) {
	readings := router.Group("/reading")
	{
		readings.POST("", c.guarded(c.CreateReading)...)
		readings.GET("", c.GetReadings)
		readings.GET("/test", c.TestEndpoint)
		readings.GET("/:id", c.GetReading)
		readings.DELETE("/:id", c.guarded(c.DeleteReading)...)
	}
}

func (c *ReadingController) guarded(h gin.HandlerFunc) []gin.HandlerFunc {
	chain := make([]gin.HandlerFunc, 0, len(c.writeGuards)+1)
	chain = append(chain, c.writeGuards...)
	return append(chain, h)
}

func (c *ReadingController) CreateReading(ctx *gin.Context) {
	dec := json.NewDecoder(http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxBodyBytes))
	dec.UseNumber()

	var body interface{}
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ctx.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	payload, ok := body.(map[string]interface{})
	if !ok {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON object"})
		return
	}

	reading, err := c.service.CreateReading(ctx.Request.Context(), payload)
	if err != nil {
		c.writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, reading)
}

func (c *ReadingController) GetReadings(ctx *gin.Context) {
	startRaw, hasStart := ctx.GetQuery("start")
	endRaw, hasEnd := ctx.GetQuery("end")

	if !hasStart && !hasEnd {
		readings, err := c.service.ListReadings(ctx.Request.Context())
		if err != nil {
			c.writeError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, readings)
		return
	}

	start, end := minInstant, maxInstant
	if hasStart {
		inst, ok := timestamp.Normalize(startRaw)
		if !ok {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid start"})
			return
		}
		start = inst.Time()
	}
	if hasEnd {
		inst, ok := timestamp.Normalize(endRaw)
		if !ok {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid end"})
			return
		}
		end = inst.Time()
	}
	if start.After(end) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "start must not be after end"})
		return
	}

	readings, err := c.service.ListReadingsInRange(ctx.Request.Context(), start, end)
	if err != nil {
		c.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, readings)
}

func (c *ReadingController) GetReading(ctx *gin.Context) {
	reading, err := c.service.GetReading(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		c.writeError(ctx, err)
		return
	}
	if reading == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "reading not found"})
		return
	}
	ctx.JSON(http.StatusOK, reading)
}

func (c *ReadingController) DeleteReading(ctx *gin.Context) {
	reading, err := c.service.DeleteReading(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		c.writeError(ctx, err)
		return
	}
	if reading == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "reading not found"})
		return
	}
	ctx.Status(http.StatusNoContent)
}

// TestEndpoint lets device firmware check connectivity and the accepted fields.
func (c *ReadingController) TestEndpoint(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"message":        "API is working",
		"timestamp":      timestamp.FromMillis(time.Now().UnixMilli()).ISO,
		"expectedFields": irrmodels.ReadingFields,
	})
}

func (c *ReadingController) writeError(ctx *gin.Context, err error) {
	var verr *validation.ValidationError
	if errors.As(err, &verr) {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":      "validation failed",
			"violations": verr.Violations,
		})
		return
	}

	c.logger.Error().
		Err(err).
		Str("request_id", middleware.GetRequestID(ctx)).
		Str("path", ctx.Request.URL.Path).
		Msg("Reading request failed")

	var serr *irrmodels.StorageError
	if errors.As(err, &serr) {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}
	ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
