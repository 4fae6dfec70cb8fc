package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/recipe-lens/backend/internal/service"
)

// imageField is the multipart field the clients upload the photo under.
const imageField = "imagefile"

type PredictHandler struct {
	gateway        service.IInferenceGateway
	maxUploadBytes int64
}

func NewPredictHandler(gateway service.IInferenceGateway, maxUploadBytes int64) *PredictHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 16 << 20
	}
	return &PredictHandler{gateway: gateway, maxUploadBytes: maxUploadBytes}
}

func (h *PredictHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/predict", h.Predict)
}

// Predict accepts a multipart image with optional title and ingredients
// overrides. Engine refusals (not_food, not_recipe) are ordinary 200 results.
func (h *PredictHandler) Predict(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	fileHeader, err := c.FormFile(imageField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = c.Error(err)
			return
		}
		_ = c.Error(&service.ValidationError{Field: imageField, Message: "an image file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		_ = c.Error(err)
		return
	}

	req := &service.InferenceRequest{
		Image:       image,
		Filename:    fileHeader.Filename,
		Title:       c.PostForm("title"),
		Ingredients: c.PostForm("ingredients"),
	}

	result, err := h.gateway.Generate(c.Request.Context(), "user:"+userID.String(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}
