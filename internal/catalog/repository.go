package catalog

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository loads catalog rows and bulk-resolves reference entities.
// Soft-deleted rows are invisible to every query.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a repo.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListProducts returns a page of products plus the unfiltered total.
func (r *Repository) ListProducts(ctx context.Context, filters ListFilters) ([]ProductRecord, int, error) {
	query := `SELECT id, name, COALESCE(local_name,''), COALESCE(description,''), COALESCE(barcode,''), brand_name, unit_code, classification, COALESCE(image_ref,''), created_at, updated_at, deleted_at
FROM catalog_products WHERE deleted_at IS NULL`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR brand_name ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.Brand != "" {
		argCount++
		query += ` AND brand_name = $` + strconv.Itoa(argCount)
		args = append(args, filters.Brand)
	}

	countQuery := `SELECT COUNT(*) FROM catalog_products WHERE deleted_at IS NULL`
	countArgs := []interface{}{}
	countArgCount := 0
	if filters.Search != "" {
		countArgCount++
		countQuery += ` AND (name ILIKE $` + strconv.Itoa(countArgCount) + ` OR brand_name ILIKE $` + strconv.Itoa(countArgCount) + `)`
		countArgs = append(countArgs, "%"+filters.Search+"%")
	}
	if filters.Brand != "" {
		countArgCount++
		countQuery += ` AND brand_name = $` + strconv.Itoa(countArgCount)
		countArgs = append(countArgs, filters.Brand)
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += " ORDER BY " + sortOrder(filters.SortBy, filters.SortDir)

	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []ProductRecord
	for rows.Next() {
		var p ProductRecord
		err := rows.Scan(&p.ID, &p.Name, &p.LocalName, &p.Description, &p.Barcode, &p.BrandName, &p.UnitCode, &p.Classification, &p.ImageRef, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

// GetProduct fetches a single product by id.
func (r *Repository) GetProduct(ctx context.Context, id int64) (ProductRecord, error) {
	query := `SELECT id, name, COALESCE(local_name,''), COALESCE(description,''), COALESCE(barcode,''), brand_name, unit_code, classification, COALESCE(image_ref,''), created_at, updated_at, deleted_at
FROM catalog_products WHERE id = $1 AND deleted_at IS NULL`
	var p ProductRecord
	err := r.db.QueryRow(ctx, query, id).
		Scan(&p.ID, &p.Name, &p.LocalName, &p.Description, &p.Barcode, &p.BrandName, &p.UnitCode, &p.Classification, &p.ImageRef, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductRecord{}, ErrProductNotFound
		}
		return ProductRecord{}, err
	}
	return p, nil
}

// BrandsByName resolves brand entities for a batch of products in one
// round trip. Keys are the exact stored names.
func (r *Repository) BrandsByName(ctx context.Context, names []string) (map[string]BrandRef, error) {
	result := make(map[string]BrandRef)
	if len(names) == 0 {
		return result, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id, name, COALESCE(category,'') FROM brands WHERE name = ANY($1) AND deleted_at IS NULL`, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var b BrandRef
		if err := rows.Scan(&b.ID, &b.Name, &b.Category); err != nil {
			return nil, err
		}
		result[b.Name] = b
	}
	return result, rows.Err()
}

// UnitsByCode resolves unit entities. Lookup is case-insensitive and the
// returned map is keyed by the upper-cased code.
func (r *Repository) UnitsByCode(ctx context.Context, codes []string) (map[string]UnitRef, error) {
	result := make(map[string]UnitRef)
	if len(codes) == 0 {
		return result, nil
	}
	upper := make([]string, 0, len(codes))
	for _, code := range codes {
		upper = append(upper, strings.ToUpper(strings.TrimSpace(code)))
	}
	rows, err := r.db.Query(ctx, `SELECT id, code, name FROM units WHERE upper(code) = ANY($1) AND deleted_at IS NULL`, upper)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var u UnitRef
		if err := rows.Scan(&u.ID, &u.Code, &u.Name); err != nil {
			return nil, err
		}
		result[strings.ToUpper(u.Code)] = u
	}
	return result, rows.Err()
}

// ClassificationsByCode resolves classification entities keyed by code.
func (r *Repository) ClassificationsByCode(ctx context.Context, codes []string) (map[string]ClassificationRef, error) {
	result := make(map[string]ClassificationRef)
	if len(codes) == 0 {
		return result, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id, code, label FROM classifications WHERE code = ANY($1) AND deleted_at IS NULL`, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var c ClassificationRef
		if err := rows.Scan(&c.ID, &c.Code, &c.Label); err != nil {
			return nil, err
		}
		result[c.Code] = c
	}
	return result, rows.Err()
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "id":
		return "id " + dir
	case "brand":
		return "brand_name " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}
