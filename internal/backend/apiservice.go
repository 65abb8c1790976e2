package backend

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/jo-hoe/mebloggy/internal/core"

	"github.com/labstack/echo/v4"
)

const ProbePath = "/probe"

type APIService struct {
	config      *core.ServiceConfig
	coreService *core.CoreService
	upgrader    websocket.Upgrader
}

type createShowcaseRequest struct {
	Title string `json:"title" validate:"required"`
}

type showcaseOrderRequest struct {
	ShowcaseIDs []string `json:"showcaseIds" validate:"required"`
}

type imageOrderRequest struct {
	ImageIDs []string `json:"imageIds"`
}

type metadataRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

type moveRequest struct {
	ShowcaseID string `json:"showcaseId" validate:"required"`
}

type featuredRequest struct {
	ImageID string `json:"imageId" validate:"required"`
}

type selectionRequest struct {
	ShowcaseIDs []string `json:"showcaseIds"`
}

type lastShowcaseRequest struct {
	ShowcaseID string `json:"showcaseId" validate:"required"`
}

type createShowcaseResponse struct {
	ID string `json:"id"`
}

func NewAPIService(config *core.ServiceConfig, coreService *core.CoreService) *APIService {
	return &APIService{
		config:      config,
		coreService: coreService,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	// Set probe route
	e.GET(ProbePath, func(c echo.Context) error {
		return c.String(http.StatusOK, "API Service is running")
	})

	api := e.Group("/api")

	api.GET("/showcases", s.listShowcasesHandler)
	api.POST("/showcases", s.createShowcaseHandler)
	api.PUT("/showcases/order", s.reorderShowcasesHandler)
	api.GET("/showcases/:id", s.getShowcaseHandler)
	api.PUT("/showcases/:id/images", s.updateImageOrderHandler)

	api.POST("/images", s.uploadImageHandler)
	api.PATCH("/images/:id", s.updateMetadataHandler)
	api.DELETE("/images/:id", s.deleteImageHandler)
	api.POST("/images/:id/move", s.moveImageHandler)
	api.GET("/images/:id/blob", s.imageBlobHandler)
	api.GET("/images/:id/thumbnail", s.thumbnailHandler)

	api.GET("/featured", s.getFeaturedHandler)
	api.PUT("/featured", s.setFeaturedHandler)
	api.DELETE("/featured", s.clearFeaturedHandler)

	api.GET("/avatar", s.getAvatarHandler)
	api.PUT("/avatar", s.setAvatarHandler)
	api.DELETE("/avatar", s.removeAvatarHandler)
	api.GET("/avatar/blob", s.avatarBlobHandler)

	api.GET("/selection", s.getSelectionHandler)
	api.PUT("/selection", s.setSelectionHandler)

	api.GET("/preferences/last-showcase", s.getLastShowcaseHandler)
	api.PUT("/preferences/last-showcase", s.setLastShowcaseHandler)

	api.GET("/events", s.eventsHandler)

	e.StaticFS(strings.TrimSuffix(s.config.AssetBasePath, "/"), s.coreService.SeedFS())
}

func (s *APIService) listShowcasesHandler(ctx echo.Context) error {
	if ctx.QueryParam("visible") == "true" {
		return ctx.JSON(http.StatusOK, s.coreService.VisibleShowcases())
	}
	return ctx.JSON(http.StatusOK, s.coreService.GetShowcases())
}

func (s *APIService) getShowcaseHandler(ctx echo.Context) error {
	showcase := s.coreService.GetShowcase(ctx.Param("id"))
	if showcase == nil {
		return errorResponse(ctx, "getShowcaseHandler", core.ErrShowcaseNotFound)
	}
	return ctx.JSON(http.StatusOK, showcase)
}

func (s *APIService) createShowcaseHandler(ctx echo.Context) error {
	var request createShowcaseRequest
	if err := bindAndValidate(ctx, &request); err != nil {
		return err
	}
	id, err := s.coreService.CreateShowcase(ctx.Request().Context(), request.Title)
	if err != nil {
		return errorResponse(ctx, "createShowcaseHandler", err)
	}
	return ctx.JSON(http.StatusCreated, createShowcaseResponse{ID: id})
}

func (s *APIService) reorderShowcasesHandler(ctx echo.Context) error {
	var request showcaseOrderRequest
	if err := bindAndValidate(ctx, &request); err != nil {
		return err
	}
	if err := s.coreService.ReorderShowcases(ctx.Request().Context(), request.ShowcaseIDs); err != nil {
		return errorResponse(ctx, "reorderShowcasesHandler", err)
	}
	return ctx.JSON(http.StatusOK, s.coreService.GetShowcases())
}

func (s *APIService) updateImageOrderHandler(ctx echo.Context) error {
	var request imageOrderRequest
	if err := bindAndValidate(ctx, &request); err != nil {
		return err
	}
	id := ctx.Param("id")
	if err := s.coreService.UpdateShowcaseImageOrder(ctx.Request().Context(), id, request.ImageIDs); err != nil {
		return errorResponse(ctx, "updateImageOrderHandler", err)
	}
	showcase := s.coreService.GetShowcase(id)
	if showcase == nil {
		// emptied and therefore deleted
		return ctx.NoContent(http.StatusNoContent)
	}
	return ctx.JSON(http.StatusOK, showcase)
}

func (s *APIService) uploadImageHandler(ctx echo.Context) error {
	file, err := ctx.FormFile("image")
	if err != nil {
		slog.Error("uploadImageHandler: failed to get uploaded file",
			"status", http.StatusBadRequest, "error", err)
		return ctx.String(http.StatusBadRequest, "Failed to get uploaded file")
	}
	payload, err := readUpload(file)
	if err != nil {
		slog.Error("uploadImageHandler: failed to read uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return ctx.String(http.StatusInternalServerError, "Failed to read uploaded file")
	}

	image, err := s.coreService.AddImage(ctx.Request().Context(), payload, core.NewImage{
		ShowcaseID:  ctx.FormValue("showcaseId"),
		Title:       ctx.FormValue("title"),
		Description: ctx.FormValue("description"),
		Filename:    file.Filename,
	})
	if err != nil {
		return errorResponse(ctx, "uploadImageHandler", err)
	}
	return ctx.JSON(http.StatusCreated, image)
}

func (s *APIService) updateMetadataHandler(ctx echo.Context) error {
	var request metadataRequest
	if err := bindAndValidate(ctx, &request); err != nil {
		return err
	}
	err := s.coreService.UpdateImageMetadata(ctx.Request().Context(), ctx.Param("id"), request.Title, request.Description)
	if err != nil {
		return errorResponse(ctx, "updateMetadataHandler", err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *APIService) deleteImageHandler(ctx echo.Context) error {
	if err := s.coreService.DeleteImage(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errorResponse(ctx, "deleteImageHandler", err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *APIService) moveImageHandler(ctx echo.Context) error {
	var request moveRequest
	if err := bindAndValidate(ctx, &request); err != nil {
		return err
	}
	if err := s.coreService.MoveImageToShowcase(ctx.Request().Context(), ctx.Param("id"), request.ShowcaseID); err != nil {
		return errorResponse(ctx, "moveImageHandler", err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *APIService) imageBlobHandler(ctx echo.Context) error {
	payload, contentType, err := s.coreService.ImagePayload(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errorResponse(ctx, "imageBlobHandler", err)
	}
	return ctx.Blob(http.StatusOK, contentType, payload)
}

func (s *APIService) thumbnailHandler(ctx echo.Context) error {
	thumbnail, err := s.coreService.Thumbnail(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errorResponse(ctx, "thumbnailHandler", err)
	}
	return ctx.Blob(http.StatusOK, "image/png", thumbnail)
}

func (s *APIService) getFeaturedHandler(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, s.coreService.Featured().Value())
}

func (s *APIService) setFeaturedHandler(ctx echo.Context) error {
	var request featuredRequest
	if err := bindAndValidate(ctx, &request); err != nil {
		return err
	}
	if err := s.coreService.SetFeaturedImage(request.ImageID); err != nil {
		return errorResponse(ctx, "setFeaturedHandler", err)
	}
	return ctx.JSON(http.StatusOK, s.coreService.Featured().Value())
}

func (s *APIService) clearFeaturedHandler(ctx echo.Context) error {
	s.coreService.ClearFeatured()
	return ctx.NoContent(http.StatusNoContent)
}

func (s *APIService) getAvatarHandler(ctx echo.Context) error {
	avatar, err := s.coreService.GetAvatar(ctx.Request().Context())
	if err != nil {
		return errorResponse(ctx, "getAvatarHandler", err)
	}
	return ctx.JSON(http.StatusOK, avatar)
}

func (s *APIService) setAvatarHandler(ctx echo.Context) error {
	file, err := ctx.FormFile("avatar")
	if err != nil {
		slog.Error("setAvatarHandler: failed to get uploaded file",
			"status", http.StatusBadRequest, "error", err)
		return ctx.String(http.StatusBadRequest, "Failed to get uploaded file")
	}
	payload, err := readUpload(file)
	if err != nil {
		slog.Error("setAvatarHandler: failed to read uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return ctx.String(http.StatusInternalServerError, "Failed to read uploaded file")
	}

	avatar, err := s.coreService.SetAvatar(ctx.Request().Context(), payload)
	if err != nil {
		return errorResponse(ctx, "setAvatarHandler", err)
	}
	return ctx.JSON(http.StatusOK, avatar)
}

func (s *APIService) removeAvatarHandler(ctx echo.Context) error {
	if err := s.coreService.RemoveAvatar(ctx.Request().Context()); err != nil {
		return errorResponse(ctx, "removeAvatarHandler", err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *APIService) avatarBlobHandler(ctx echo.Context) error {
	payload, contentType, err := s.coreService.AvatarPayload(ctx.Request().Context())
	if err != nil {
		return errorResponse(ctx, "avatarBlobHandler", err)
	}
	return ctx.Blob(http.StatusOK, contentType, payload)
}

func (s *APIService) getSelectionHandler(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, selectionRequest{ShowcaseIDs: s.coreService.SelectedShowcaseIDs().Value()})
}

func (s *APIService) setSelectionHandler(ctx echo.Context) error {
	var request selectionRequest
	if err := bindAndValidate(ctx, &request); err != nil {
		return err
	}
	s.coreService.SetSelectedShowcaseIDs(request.ShowcaseIDs)
	return ctx.JSON(http.StatusOK, selectionRequest{ShowcaseIDs: s.coreService.SelectedShowcaseIDs().Value()})
}

func (s *APIService) getLastShowcaseHandler(ctx echo.Context) error {
	id, err := s.coreService.LastShowcase(ctx.Request().Context())
	if err != nil {
		return errorResponse(ctx, "getLastShowcaseHandler", err)
	}
	return ctx.JSON(http.StatusOK, lastShowcaseRequest{ShowcaseID: id})
}

func (s *APIService) setLastShowcaseHandler(ctx echo.Context) error {
	var request lastShowcaseRequest
	if err := bindAndValidate(ctx, &request); err != nil {
		return err
	}
	if err := s.coreService.SetLastShowcase(ctx.Request().Context(), request.ShowcaseID); err != nil {
		return errorResponse(ctx, "setLastShowcaseHandler", err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func bindAndValidate(ctx echo.Context, request any) error {
	if err := ctx.Bind(request); err != nil {
		return err
	}
	return ctx.Validate(request)
}

// errorResponse maps core errors to status codes and answers with the error text
func errorResponse(ctx echo.Context, handler string, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrImageNotFound),
		errors.Is(err, core.ErrShowcaseNotFound),
		errors.Is(err, core.ErrAvatarNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrInvalidArgument):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		slog.Error(handler+": request failed", "status", status, "error", err)
	} else {
		slog.Debug(handler+": request rejected", "status", status, "error", err)
	}
	return ctx.String(status, err.Error())
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()
	return io.ReadAll(src)
}
