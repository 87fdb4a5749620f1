package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"marketplace-backend/dtos"
	"marketplace-backend/services"
	"marketplace-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CategoryHandler struct {
	Service *services.CategoryService
}

func (h *CategoryHandler) GetCategories(c *gin.Context) {
	categories, err := h.Service.GetAllCategories(c.Request.Context())
	if err != nil {
		respondCategoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, dtos.OK(categories))
}

func (h *CategoryHandler) GetCategory(c *gin.Context) {
	detail, err := h.Service.GetCategoryBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondCategoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, dtos.OK(detail))
}

func (h *CategoryHandler) GetBreadcrumb(c *gin.Context) {
	trail, err := h.Service.GetBreadcrumbBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondCategoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, dtos.OK(trail))
}

// GetTopCategories ranks categories by active product count. limit defaults
// to 10 and is clamped to 50 by the service.
func (h *CategoryHandler) GetTopCategories(c *gin.Context) {
	limit := services.DefaultTopCategories
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, dtos.Fail("limit must be a positive integer"))
			return
		}
		limit = n
	}

	top, err := h.Service.GetTopCategories(c.Request.Context(), limit)
	if err != nil {
		respondCategoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, dtos.OK(top))
}

func (h *CategoryHandler) GetCategoriesWithCounts(c *gin.Context) {
	tree, err := h.Service.GetCategoriesWithCounts(c.Request.Context())
	if err != nil {
		respondCategoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, dtos.OK(tree))
}

func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	var req dtos.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dtos.Fail(utils.SanitizeValidationError(err)))
		return
	}

	category, err := h.Service.CreateCategory(c.Request.Context(), req)
	if err != nil {
		respondCategoryError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dtos.OK(category))
}

func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dtos.Fail("Invalid category ID"))
		return
	}

	var req dtos.UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dtos.Fail(utils.SanitizeValidationError(err)))
		return
	}

	category, err := h.Service.UpdateCategory(c.Request.Context(), id, req)
	if err != nil {
		respondCategoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, dtos.OK(category))
}

func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dtos.Fail("Invalid category ID"))
		return
	}

	if err := h.Service.DeleteCategory(c.Request.Context(), id); err != nil {
		respondCategoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, dtos.OK(gin.H{"message": "Category deleted successfully"}))
}

// categoryErrorStatus maps service sentinels onto HTTP statuses. Anything
// unrecognised is a 500.
func categoryErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrCategoryNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidCategory),
		errors.Is(err, services.ErrParentNotFound),
		errors.Is(err, services.ErrCategoryTooDeep),
		errors.Is(err, services.ErrCategoryCycle):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrCategorySlugTaken),
		errors.Is(err, services.ErrCategoryHasProducts),
		errors.Is(err, services.ErrCategoryHasChildren):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondCategoryError(c *gin.Context, err error) {
	status := categoryErrorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError && !errors.Is(err, services.ErrCategoryFetchFailed) &&
		!errors.Is(err, services.ErrCategorySaveFailed) {
		msg = services.ErrCategoryFetchFailed.Error()
	}
	c.JSON(status, dtos.Fail(msg))
}
