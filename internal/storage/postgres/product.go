package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopora/storefront/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

const productColumns = `id, name, description, price, images, category, brand, stock,
	is_active, is_featured, rating_average, rating_count, created_at, updated_at`

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns one page of active products matching the filter.
func (r *ProductRepository) List(ctx context.Context, f product.ListFilter) (*product.ListPage, error) {
	where := []string{"is_active"}
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Category != "" && f.Category != "all" {
		where = append(where, "category = "+arg(f.Category))
	}
	if f.MinPrice != nil {
		where = append(where, "price >= "+arg(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		where = append(where, "price <= "+arg(*f.MaxPrice))
	}
	if f.Search != "" {
		p := "%" + f.Search + "%"
		where = append(where, "(name ILIKE "+arg(p)+" OR description ILIKE "+arg(p)+" OR brand ILIKE "+arg(p)+")")
	}
	if f.Featured {
		where = append(where, "is_featured")
	}
	whereSQL := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx,
		"SELECT count(*) FROM products WHERE "+whereSQL, args...,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting products: %w", err)
	}

	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 12
	}

	query := fmt.Sprintf(
		"SELECT %s FROM products WHERE %s ORDER BY %s LIMIT %s OFFSET %s",
		productColumns, whereSQL, orderClause(f.SortBy, f.SortDesc),
		arg(limit), arg((page-1)*limit),
	)

	products, err := r.queryProducts(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}

	totalPages := (total + limit - 1) / limit
	return &product.ListPage{
		Products:    products,
		Total:       total,
		TotalPages:  totalPages,
		CurrentPage: page,
	}, nil
}

// orderClause maps the API sort field onto a safe ORDER BY expression.
func orderClause(sortBy string, desc bool) string {
	col := map[string]string{
		"name":       "name",
		"price":      "price",
		"rating":     "rating_average",
		"created_at": "created_at",
	}[sortBy]
	if col == "" {
		col = "created_at"
	}
	if desc {
		return col + " DESC"
	}
	return col + " ASC"
}

// GetByID returns a single product. It returns product.ErrNotFound when no
// matching product exists.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = $1", id)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return p, nil
}

// GetByIDs returns all products whose ID is in ids. Missing IDs are simply
// absent from the result; the caller decides whether that is an error.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	products, err := r.queryProducts(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return products, nil
}

// ListFeatured returns up to limit active featured products.
func (r *ProductRepository) ListFeatured(ctx context.Context, limit int) ([]product.Product, error) {
	products, err := r.queryProducts(ctx,
		"SELECT "+productColumns+" FROM products WHERE is_featured AND is_active ORDER BY created_at DESC LIMIT $1",
		limit)
	if err != nil {
		return nil, fmt.Errorf("listing featured products: %w", err)
	}
	return products, nil
}

// ListRecommended returns a random sample of active products.
func (r *ProductRepository) ListRecommended(ctx context.Context, limit int) ([]product.Product, error) {
	products, err := r.queryProducts(ctx,
		"SELECT "+productColumns+" FROM products WHERE is_active ORDER BY random() LIMIT $1",
		limit)
	if err != nil {
		return nil, fmt.Errorf("listing recommended products: %w", err)
	}
	return products, nil
}

// ListByCategory returns all active products in the category.
func (r *ProductRepository) ListByCategory(ctx context.Context, category string) ([]product.Product, error) {
	products, err := r.queryProducts(ctx,
		"SELECT "+productColumns+" FROM products WHERE category = $1 AND is_active ORDER BY created_at DESC",
		category)
	if err != nil {
		return nil, fmt.Errorf("listing products in category %q: %w", category, err)
	}
	return products, nil
}

// Create persists a new product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return fmt.Errorf("marshaling images: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO products (id, name, description, price, images, category, brand, stock, is_active, is_featured)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Description, p.Price, images, p.Category, p.Brand,
		p.Stock, p.IsActive, p.IsFeatured,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Update applies the non-nil fields and returns the updated product.
func (r *ProductRepository) Update(ctx context.Context, id string, upd product.Update) (*product.Product, error) {
	set := []string{"updated_at = now()"}
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if upd.Name != nil {
		set = append(set, "name = "+arg(*upd.Name))
	}
	if upd.Description != nil {
		set = append(set, "description = "+arg(*upd.Description))
	}
	if upd.Price != nil {
		set = append(set, "price = "+arg(*upd.Price))
	}
	if upd.Images != nil {
		images, err := json.Marshal(upd.Images)
		if err != nil {
			return nil, fmt.Errorf("marshaling images: %w", err)
		}
		set = append(set, "images = "+arg(images))
	}
	if upd.Category != nil {
		set = append(set, "category = "+arg(*upd.Category))
	}
	if upd.Brand != nil {
		set = append(set, "brand = "+arg(*upd.Brand))
	}
	if upd.Stock != nil {
		set = append(set, "stock = "+arg(*upd.Stock))
	}
	if upd.IsActive != nil {
		set = append(set, "is_active = "+arg(*upd.IsActive))
	}
	if upd.IsFeatured != nil {
		set = append(set, "is_featured = "+arg(*upd.IsFeatured))
	}

	query := fmt.Sprintf("UPDATE products SET %s WHERE id = %s RETURNING %s",
		strings.Join(set, ", "), arg(id), productColumns)

	p, err := scanProduct(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("updating product %q: %w", id, err)
	}
	return p, nil
}

// Delete removes a product. Historical orders keep their snapshots.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// SetFeatured flips the featured flag and returns the updated product.
func (r *ProductRepository) SetFeatured(ctx context.Context, id string, featured bool) (*product.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx,
		"UPDATE products SET is_featured = $2, updated_at = now() WHERE id = $1 RETURNING "+productColumns,
		id, featured))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("setting featured on product %q: %w", id, err)
	}
	return p, nil
}

// AddReview inserts the review and recomputes the product's rating
// aggregate in the same transaction. A second review from the same user
// returns product.ErrAlreadyReviewed.
func (r *ProductRepository) AddReview(ctx context.Context, rev *product.Review) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning review transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO product_reviews (product_id, user_id, rating, comment)
		VALUES ($1, $2, $3, $4)`,
		rev.ProductID, rev.UserID, rev.Rating, rev.Comment)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505": // unique_violation
				return product.ErrAlreadyReviewed
			case "23503": // foreign_key_violation
				return product.ErrNotFound
			}
		}
		return fmt.Errorf("inserting review: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE products SET
			rating_average = agg.avg_rating,
			rating_count = agg.cnt,
			updated_at = now()
		FROM (
			SELECT round(avg(rating), 2) AS avg_rating, count(*) AS cnt
			FROM product_reviews WHERE product_id = $1
		) AS agg
		WHERE id = $1`,
		rev.ProductID)
	if err != nil {
		return fmt.Errorf("updating rating aggregate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing review transaction: %w", err)
	}
	return nil
}

// Reviews returns all reviews for a product, newest first.
func (r *ProductRepository) Reviews(ctx context.Context, productID string) ([]product.Review, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.product_id, r.user_id, u.name, r.rating, r.comment, r.created_at
		FROM product_reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.product_id = $1
		ORDER BY r.created_at DESC`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("listing reviews for %q: %w", productID, err)
	}
	defer rows.Close()

	var reviews []product.Review
	for rows.Next() {
		var rev product.Review
		if err := rows.Scan(&rev.ProductID, &rev.UserID, &rev.UserName,
			&rev.Rating, &rev.Comment, &rev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning review: %w", err)
		}
		reviews = append(reviews, rev)
	}
	return reviews, rows.Err()
}

func (r *ProductRepository) queryProducts(ctx context.Context, query string, args ...any) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []product.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func scanProduct(row pgx.Row) (*product.Product, error) {
	var (
		p      product.Product
		images []byte
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &images,
		&p.Category, &p.Brand, &p.Stock, &p.IsActive, &p.IsFeatured,
		&p.Rating.Average, &p.Rating.Count, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(images, &p.Images); err != nil {
		return nil, fmt.Errorf("unmarshaling images: %w", err)
	}
	return &p, nil
}
