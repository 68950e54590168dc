package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/snipd/snipd/internal"
	"github.com/snipd/snipd/internal/auth"
	"github.com/snipd/snipd/internal/shortener"
)

type LinkHandler struct {
	service *shortener.Service
}

func NewLinkHandler(service *shortener.Service) *LinkHandler {
	return &LinkHandler{service: service}
}

type CreateLinkRequest struct {
	URL         string `json:"url"`
	Label       string `json:"label"`
	RandomLabel bool   `json:"randomLabel"`
}

type UpdateLinkRequest struct {
	URL string `json:"url"`
}

type LinkResponse struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateLinkResponse struct {
	ID string `json:"id"`
}

type ListLinksResponse struct {
	Links []LinkResponse `json:"links"`
}

type ResolveResponse struct {
	URL string `json:"url"`
}

// principal returns the authenticated user id or fails the request; the
// auth middleware should make the empty case unreachable.
func principal(c echo.Context) (string, error) {
	id := auth.PrincipalID(c)
	if id == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return id, nil
}

func (h *LinkHandler) CreateLink(c echo.Context) error {
	ctx := c.Request().Context()

	ownerID, err := principal(c)
	if err != nil {
		return err
	}

	var req CreateLinkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	link, err := h.service.Create(ctx, ownerID, shortener.CreateParams{
		URL:         req.URL,
		Label:       req.Label,
		RandomLabel: req.RandomLabel,
	})
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, CreateLinkResponse{ID: link.ID})
}

func (h *LinkHandler) ListLinks(c echo.Context) error {
	ctx := c.Request().Context()

	ownerID, err := principal(c)
	if err != nil {
		return err
	}

	links, err := h.service.ListForOwner(ctx, ownerID)
	if err != nil {
		return httpError(err)
	}

	responses := lo.Map(links, func(link *internal.ShortLink, _ int) LinkResponse {
		return toResponse(link)
	})

	return c.JSON(http.StatusOK, ListLinksResponse{Links: responses})
}

func (h *LinkHandler) UpdateLink(c echo.Context) error {
	ctx := c.Request().Context()

	requesterID, err := principal(c)
	if err != nil {
		return err
	}

	var req UpdateLinkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	link, err := h.service.Update(ctx, requesterID, c.Param("id"), req.URL)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, toResponse(link))
}

func (h *LinkHandler) DeleteLink(c echo.Context) error {
	ctx := c.Request().Context()

	requesterID, err := principal(c)
	if err != nil {
		return err
	}

	if err := h.service.Delete(ctx, requesterID, c.Param("id")); err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

// ResolveLink is the public lookup used by external redirect frontends.
func (h *LinkHandler) ResolveLink(c echo.Context) error {
	ctx := c.Request().Context()

	label := c.QueryParam("label")
	if label == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "label is required")
	}

	target, err := h.service.Resolve(ctx, label)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, ResolveResponse{URL: target})
}

// Redirect resolves a label and sends the visitor to the destination. A
// missing link and a broken store get different statuses so the error page
// can tell "this link does not exist" apart from "try again later".
func (h *LinkHandler) Redirect(c echo.Context) error {
	ctx := c.Request().Context()
	label := c.Param("label")

	log.Debug().Str("label", label).Msg("redirect request")

	target, err := h.service.Resolve(ctx, label)
	if err != nil {
		if errors.Is(err, internal.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "link not found")
		}
		log.Error().Err(err).Str("label", label).Msg("redirect lookup failed")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "service unavailable, try again")
	}

	log.Info().Str("label", label).Str("url", target).Msg("redirecting")

	return c.Redirect(http.StatusMovedPermanently, target)
}

func toResponse(link *internal.ShortLink) LinkResponse {
	return LinkResponse{
		ID:        link.ID,
		Label:     link.Label,
		URL:       link.OriginalURL,
		CreatedAt: link.CreatedAt,
		UpdatedAt: link.UpdatedAt,
	}
}

func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, internal.ErrInvalidURL),
		errors.Is(err, internal.ErrInsecureScheme),
		errors.Is(err, internal.ErrLabelRequired),
		errors.Is(err, internal.ErrInvalidLabel):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, internal.ErrLabelTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, internal.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "link not found")
	case errors.Is(err, internal.ErrNotOwner):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, internal.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, internal.ErrStoreUnavailable),
		errors.Is(err, internal.ErrLabelSpaceExhausted):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "service unavailable")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
