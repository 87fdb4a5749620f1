package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"marketplace-backend/dtos"
	"marketplace-backend/models"
	"marketplace-backend/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	ErrCategoryNotFound    = errors.New("category not found")
	ErrCategoryFetchFailed = errors.New("failed to fetch categories")

	ErrInvalidCategory     = errors.New("invalid category")
	ErrParentNotFound      = errors.New("parent category not found")
	ErrCategoryTooDeep     = errors.New("category tree would exceed maximum depth")
	ErrCategoryCycle       = errors.New("category cannot be moved under itself or one of its descendants")
	ErrCategorySlugTaken   = errors.New("category slug already in use")
	ErrCategoryHasProducts = errors.New("cannot delete category with associated products")
	ErrCategoryHasChildren = errors.New("cannot delete category with subcategories")
	ErrCategorySaveFailed  = errors.New("failed to save category")
)

const (
	DefaultTopCategories = 10
	MaxTopCategories     = 50

	defaultCountConcurrency = 8
	// bound for admin-side descendant scans over possibly corrupt data
	maxDescendantScan = 16
)

// CategoryService reads and maintains the category forest.
type CategoryService struct {
	db               *gorm.DB
	log              zerolog.Logger
	countConcurrency int
}

func NewCategoryService(db *gorm.DB, logger zerolog.Logger) *CategoryService {
	return &CategoryService{
		db:               db,
		log:              logger.With().Str("service", "category").Logger(),
		countConcurrency: defaultCountConcurrency,
	}
}

func orderByName(db *gorm.DB) *gorm.DB {
	return db.Order("name ASC")
}

// GetAllCategories returns the root categories with children and grandchildren
// loaded, every level sorted by name. Deeper levels are not loaded.
func (s *CategoryService) GetAllCategories(ctx context.Context) ([]models.Category, error) {
	var roots []models.Category
	err := s.db.WithContext(ctx).
		Where("parent_id IS NULL").
		Order("name ASC").
		Preload("Children", orderByName).
		Preload("Children.Children", orderByName).
		Find(&roots).Error
	if err != nil {
		s.log.Error().Err(err).Msg("load category tree")
		return nil, ErrCategoryFetchFailed
	}
	return roots, nil
}

// GetCategoryBySlug resolves one category with its parent, children,
// breadcrumb and direct active-product count.
func (s *CategoryService) GetCategoryBySlug(ctx context.Context, slug string) (*dtos.CategoryDetail, error) {
	var cat models.Category
	err := s.db.WithContext(ctx).
		Preload("Parent").
		Preload("Children", orderByName).
		Where("slug = ?", slug).
		First(&cat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		s.log.Error().Err(err).Str("slug", slug).Msg("get category by slug")
		return nil, ErrCategoryFetchFailed
	}

	trail, err := s.walkBreadcrumb(ctx, cat)
	if err != nil {
		s.log.Error().Err(err).Str("slug", slug).Msg("resolve breadcrumb")
		return nil, ErrCategoryFetchFailed
	}

	count, err := s.countActiveProducts(ctx, cat.ID)
	if err != nil {
		s.log.Error().Err(err).Str("slug", slug).Msg("count category products")
		return nil, ErrCategoryFetchFailed
	}

	return &dtos.CategoryDetail{Category: cat, Breadcrumb: trail, ProductCount: count}, nil
}

// GetBreadcrumb returns the path from the furthest ancestor to the category.
func (s *CategoryService) GetBreadcrumb(ctx context.Context, id uuid.UUID) ([]dtos.BreadcrumbItem, error) {
	return s.breadcrumbFor(ctx, "id = ?", id)
}

func (s *CategoryService) GetBreadcrumbBySlug(ctx context.Context, slug string) ([]dtos.BreadcrumbItem, error) {
	return s.breadcrumbFor(ctx, "slug = ?", slug)
}

func (s *CategoryService) breadcrumbFor(ctx context.Context, query string, arg interface{}) ([]dtos.BreadcrumbItem, error) {
	var cat models.Category
	err := s.db.WithContext(ctx).Where(query, arg).First(&cat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		s.log.Error().Err(err).Interface("key", arg).Msg("get breadcrumb target")
		return nil, ErrCategoryFetchFailed
	}

	trail, err := s.walkBreadcrumb(ctx, cat)
	if err != nil {
		s.log.Error().Err(err).Interface("key", arg).Msg("resolve breadcrumb")
		return nil, ErrCategoryFetchFailed
	}
	return trail, nil
}

// walkBreadcrumb follows parent pointers one lookup per level, prepending each
// ancestor. A missing parent ends the walk. There is no cycle guard; a corrupt
// chain runs until ctx is done.
func (s *CategoryService) walkBreadcrumb(ctx context.Context, cat models.Category) ([]dtos.BreadcrumbItem, error) {
	trail := []dtos.BreadcrumbItem{dtos.NewBreadcrumbItem(cat)}
	current := cat
	for !current.IsRoot() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var parent models.Category
		err := s.db.WithContext(ctx).First(&parent, "id = ?", *current.ParentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn().Str("category_id", current.ID.String()).Msg("breadcrumb parent missing")
			break
		}
		if err != nil {
			return nil, err
		}

		trail = append([]dtos.BreadcrumbItem{dtos.NewBreadcrumbItem(parent)}, trail...)
		current = parent
	}
	return trail, nil
}

func (s *CategoryService) countActiveProducts(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("category_id = ? AND is_active = ?", categoryID, true).
		Count(&n).Error
	return n, err
}

// GetTopCategories ranks categories by active-product count, highest first.
// Ties keep whatever order the database returns.
func (s *CategoryService) GetTopCategories(ctx context.Context, limit int) ([]dtos.CategoryCount, error) {
	if limit <= 0 {
		limit = DefaultTopCategories
	}
	if limit > MaxTopCategories {
		limit = MaxTopCategories
	}

	rows := []dtos.CategoryCount{}
	err := s.db.WithContext(ctx).
		Model(&models.Category{}).
		Select("categories.id, categories.name, categories.slug, categories.level, categories.icon, COUNT(products.id) AS product_count").
		Joins("LEFT JOIN products ON products.category_id = categories.id AND products.is_active = ? AND products.deleted_at IS NULL", true).
		Group("categories.id, categories.name, categories.slug, categories.level, categories.icon").
		Order("product_count DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		s.log.Error().Err(err).Int("limit", limit).Msg("top categories")
		return nil, ErrCategoryFetchFailed
	}
	return rows, nil
}

// GetCategoriesWithCounts returns every level-1 category with two levels of
// descendants, each node carrying its own active-product count. Counts are
// fetched concurrently; a failed count is logged and reported as 0.
func (s *CategoryService) GetCategoriesWithCounts(ctx context.Context) ([]dtos.CategoryWithCount, error) {
	var roots []models.Category
	err := s.db.WithContext(ctx).
		Where("level = ?", 1).
		Order("name ASC").
		Preload("Children", orderByName).
		Preload("Children.Children", orderByName).
		Find(&roots).Error
	if err != nil {
		s.log.Error().Err(err).Msg("load category tree for counts")
		return nil, ErrCategoryFetchFailed
	}

	tree := make([]dtos.CategoryWithCount, len(roots))
	for i := range roots {
		tree[i] = toCountNode(roots[i])
	}

	var nodes []*dtos.CategoryWithCount
	for i := range tree {
		nodes = collectNodes(&tree[i], nodes)
	}

	var g errgroup.Group
	g.SetLimit(s.countConcurrency)
	for _, node := range nodes {
		node := node
		g.Go(func() error {
			n, err := s.countActiveProducts(ctx, node.ID)
			if err != nil {
				s.log.Warn().Err(err).Str("category_id", node.ID.String()).Msg("product count failed, defaulting to 0")
				n = 0
			}
			node.ProductCount = n
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		s.log.Error().Err(err).Msg("categories with counts")
		return nil, ErrCategoryFetchFailed
	}
	return tree, nil
}

func toCountNode(c models.Category) dtos.CategoryWithCount {
	node := dtos.CategoryWithCount{
		ID:       c.ID,
		Name:     c.Name,
		Slug:     c.Slug,
		Level:    c.Level,
		Icon:     c.Icon,
		Children: make([]dtos.CategoryWithCount, len(c.Children)),
	}
	for i := range c.Children {
		node.Children[i] = toCountNode(c.Children[i])
	}
	return node
}

func collectNodes(n *dtos.CategoryWithCount, acc []*dtos.CategoryWithCount) []*dtos.CategoryWithCount {
	acc = append(acc, n)
	for i := range n.Children {
		acc = collectNodes(&n.Children[i], acc)
	}
	return acc
}

// CreateCategory inserts a category. The slug defaults to the slugified name
// and the level follows from the parent.
func (s *CategoryService) CreateCategory(ctx context.Context, req dtos.CreateCategoryRequest) (*models.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidCategory)
	}
	slug, err := resolveSlug(req.Slug, name)
	if err != nil {
		return nil, err
	}

	cat := models.Category{
		Name:          name,
		NameLocalized: strings.TrimSpace(req.NameLocalized),
		Slug:          slug,
		Level:         1,
		Icon:          req.Icon,
		Description:   req.Description,
	}

	db := s.db.WithContext(ctx)
	if req.ParentID != nil {
		parent, err := s.findParent(db, *req.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.Level+1 > models.MaxCategoryDepth {
			return nil, ErrCategoryTooDeep
		}
		cat.ParentID = &parent.ID
		cat.Level = parent.Level + 1
	}

	if err := db.Create(&cat).Error; err != nil {
		if utils.IsUniqueViolation(err) {
			return nil, ErrCategorySlugTaken
		}
		s.log.Error().Err(err).Str("slug", slug).Msg("create category")
		return nil, ErrCategorySaveFailed
	}
	return &cat, nil
}

// UpdateCategory applies the present fields. Re-parenting moves the whole
// subtree and re-levels it; moving under itself or a descendant is refused.
func (s *CategoryService) UpdateCategory(ctx context.Context, id uuid.UUID, req dtos.UpdateCategoryRequest) (*models.Category, error) {
	db := s.db.WithContext(ctx)

	var cat models.Category
	if err := db.First(&cat, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		s.log.Error().Err(err).Str("category_id", id.String()).Msg("load category for update")
		return nil, ErrCategorySaveFailed
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidCategory)
		}
		updates["name"] = name
	}
	if req.NameLocalized != nil {
		updates["name_localized"] = strings.TrimSpace(*req.NameLocalized)
	}
	if req.Slug != nil {
		if err := validateCategorySlug(*req.Slug); err != nil {
			return nil, err
		}
		updates["slug"] = *req.Slug
	}
	if req.Icon != nil {
		updates["icon"] = *req.Icon
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}

	moving := req.ClearParent || (req.ParentID != nil && (cat.ParentID == nil || *cat.ParentID != *req.ParentID))
	var descendants [][]uuid.UUID
	newLevel := cat.Level
	if moving {
		var err error
		descendants, err = s.descendantsByDepth(db, cat.ID)
		if err != nil {
			s.log.Error().Err(err).Str("category_id", id.String()).Msg("scan descendants")
			return nil, ErrCategorySaveFailed
		}

		if req.ClearParent {
			updates["parent_id"] = nil
			newLevel = 1
		} else {
			if *req.ParentID == cat.ID || containsID(descendants, *req.ParentID) {
				return nil, ErrCategoryCycle
			}
			parent, err := s.findParent(db, *req.ParentID)
			if err != nil {
				return nil, err
			}
			updates["parent_id"] = parent.ID
			newLevel = parent.Level + 1
		}

		if newLevel+len(descendants) > models.MaxCategoryDepth {
			return nil, ErrCategoryTooDeep
		}
		updates["level"] = newLevel
	}

	if len(updates) == 0 {
		return &cat, nil
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&cat).Updates(updates).Error; err != nil {
			return err
		}
		for depth, ids := range descendants {
			if err := tx.Model(&models.Category{}).Where("id IN ?", ids).Update("level", newLevel+depth+1).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if utils.IsUniqueViolation(err) {
			return nil, ErrCategorySlugTaken
		}
		s.log.Error().Err(err).Str("category_id", id.String()).Msg("update category")
		return nil, ErrCategorySaveFailed
	}

	if err := db.First(&cat, "id = ?", id).Error; err != nil {
		s.log.Error().Err(err).Str("category_id", id.String()).Msg("reload category")
		return nil, ErrCategorySaveFailed
	}
	return &cat, nil
}

// DeleteCategory soft-deletes a category that has no products and no children.
func (s *CategoryService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	db := s.db.WithContext(ctx)

	var cat models.Category
	if err := db.First(&cat, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCategoryNotFound
		}
		s.log.Error().Err(err).Str("category_id", id.String()).Msg("load category for delete")
		return ErrCategorySaveFailed
	}

	var productCount int64
	if err := db.Model(&models.Product{}).Where("category_id = ?", id).Count(&productCount).Error; err != nil {
		s.log.Error().Err(err).Str("category_id", id.String()).Msg("check category products")
		return ErrCategorySaveFailed
	}
	if productCount > 0 {
		return ErrCategoryHasProducts
	}

	var childCount int64
	if err := db.Model(&models.Category{}).Where("parent_id = ?", id).Count(&childCount).Error; err != nil {
		s.log.Error().Err(err).Str("category_id", id.String()).Msg("check category children")
		return ErrCategorySaveFailed
	}
	if childCount > 0 {
		return ErrCategoryHasChildren
	}

	if err := db.Delete(&cat).Error; err != nil {
		s.log.Error().Err(err).Str("category_id", id.String()).Msg("delete category")
		return ErrCategorySaveFailed
	}
	return nil
}

func (s *CategoryService) findParent(db *gorm.DB, id uuid.UUID) (*models.Category, error) {
	var parent models.Category
	if err := db.First(&parent, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParentNotFound
		}
		s.log.Error().Err(err).Str("parent_id", id.String()).Msg("load parent category")
		return nil, ErrCategorySaveFailed
	}
	return &parent, nil
}

// descendantsByDepth returns descendant ids grouped by distance from id:
// index 0 holds the children, index 1 the grandchildren and so on.
func (s *CategoryService) descendantsByDepth(db *gorm.DB, id uuid.UUID) ([][]uuid.UUID, error) {
	var levels [][]uuid.UUID
	seen := map[uuid.UUID]bool{id: true}
	frontier := []uuid.UUID{id}

	for i := 0; i < maxDescendantScan && len(frontier) > 0; i++ {
		var ids []uuid.UUID
		if err := db.Model(&models.Category{}).Where("parent_id IN ?", frontier).Pluck("id", &ids).Error; err != nil {
			return nil, err
		}
		var next []uuid.UUID
		for _, child := range ids {
			if !seen[child] {
				seen[child] = true
				next = append(next, child)
			}
		}
		if len(next) == 0 {
			break
		}
		levels = append(levels, next)
		frontier = next
	}
	return levels, nil
}

func containsID(levels [][]uuid.UUID, id uuid.UUID) bool {
	for _, ids := range levels {
		for _, x := range ids {
			if x == id {
				return true
			}
		}
	}
	return false
}

func resolveSlug(slug, name string) (string, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		slug = utils.Slugify(name)
	}
	if err := validateCategorySlug(slug); err != nil {
		return "", err
	}
	return slug, nil
}

// reservedCategorySlugs collide with static routes under /api/categories.
var reservedCategorySlugs = map[string]bool{
	"top":         true,
	"with-counts": true,
}

func validateCategorySlug(slug string) error {
	if err := utils.ValidateSlug(slug); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCategory, err)
	}
	if reservedCategorySlugs[slug] {
		return fmt.Errorf("%w: slug %q is reserved", ErrInvalidCategory, slug)
	}
	return nil
}
