package catalog

import (
	"errors"
	"time"
)

// ProductRecord is a raw catalog row as merchants submitted it. The
// verification engine only reads these fields, it never mutates them.
type ProductRecord struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	LocalName      string     `json:"local_name,omitempty"`
	Description    string     `json:"description,omitempty"`
	Barcode        string     `json:"barcode,omitempty"`
	BrandName      string     `json:"brand_name"`
	UnitCode       string     `json:"unit_code"`
	Classification string     `json:"classification"`
	ImageRef       string     `json:"image_ref"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// BrandRef is the resolved brand master entity for a product.
type BrandRef struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// UnitRef is the resolved unit-of-measure master entity.
type UnitRef struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// ClassificationRef is the resolved catalog classification entity.
// Label carries the human description, Code the numeric prefix.
type ClassificationRef struct {
	ID    int64  `json:"id"`
	Code  string `json:"code"`
	Label string `json:"label"`
}

// ListFilters narrows product listings.
type ListFilters struct {
	Search  string
	Brand   string
	Page    int
	Limit   int
	SortBy  string
	SortDir string
}

var (
	// ErrProductNotFound occurs when a product id cannot be resolved.
	ErrProductNotFound = errors.New("catalog: product not found")
)
