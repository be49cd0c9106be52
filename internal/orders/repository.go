package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storefront/storefront/internal/platform/db"
)

// Repository defines order persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error)
	GetByNumber(ctx context.Context, number string) (Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, int, error)
	ListAll(ctx context.Context) ([]Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, at time.Time) (Order, error)
}

// StockChange reports the effect of one stock decrement.
type StockChange struct {
	Found     bool
	Previous  int
	Remaining int
}

// Clamped reports whether the decrement was cut short at zero.
func (c StockChange) Clamped(quantity int) bool {
	return c.Found && c.Previous < quantity
}

// TxRepository exposes the writes that make up order placement.
type TxRepository interface {
	InsertOrder(ctx context.Context, o Order) error
	InsertItems(ctx context.Context, orderID uuid.UUID, items []Item) error
	DecrementStock(ctx context.Context, productID int64, quantity int) (StockChange, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx runs fn in a read-committed transaction, so row locks taken by
// DecrementStock wait for and then see concurrent stock writes.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (t *txRepo) InsertOrder(ctx context.Context, o Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders (
			id, order_number, user_id,
			customer_first_name, customer_last_name, customer_email, customer_phone,
			shipping_street, shipping_city, shipping_state, shipping_zip_code, shipping_country,
			subtotal, shipping, tax, total, status, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		o.ID, o.Number, o.UserID,
		o.Customer.FirstName, o.Customer.LastName, o.Customer.Email, o.Customer.Phone,
		o.ShippingAddress.Street, o.ShippingAddress.City, o.ShippingAddress.State, o.ShippingAddress.ZipCode, o.ShippingAddress.Country,
		o.Subtotal, o.Shipping, o.Tax, o.Total, string(o.Status), o.CreatedAt,
	)
	return err
}

func (t *txRepo) InsertItems(ctx context.Context, orderID uuid.UUID, items []Item) error {
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(`
			INSERT INTO order_items (order_id, product_id, product_name, price, quantity, image_url)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			orderID, it.ProductID, it.ProductName, it.Price, it.Quantity, it.ImageURL)
	}
	results := t.tx.SendBatch(ctx, batch)
	for range items {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return err
		}
	}
	return results.Close()
}

// DecrementStock lowers stock atomically, never below zero.
func (t *txRepo) DecrementStock(ctx context.Context, productID int64, quantity int) (StockChange, error) {
	var change StockChange
	err := t.tx.QueryRow(ctx, `
		UPDATE products p
		SET stock = GREATEST(p.stock - $1, 0), updated_at = NOW()
		FROM (SELECT id, stock FROM products WHERE id = $2 FOR UPDATE) prev
		WHERE p.id = prev.id
		RETURNING prev.stock, p.stock`, quantity, productID).Scan(&change.Previous, &change.Remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockChange{}, nil
	}
	if err != nil {
		return StockChange{}, err
	}
	change.Found = true
	return change, nil
}

const orderColumns = `
	id, order_number, user_id,
	customer_first_name, customer_last_name, customer_email, customer_phone,
	shipping_street, shipping_city, shipping_state, shipping_zip_code, shipping_country,
	subtotal, shipping, tax, total, status, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.UserID,
		&o.Customer.FirstName, &o.Customer.LastName, &o.Customer.Email, &o.Customer.Phone,
		&o.ShippingAddress.Street, &o.ShippingAddress.City, &o.ShippingAddress.State, &o.ShippingAddress.ZipCode, &o.ShippingAddress.Country,
		&o.Subtotal, &o.Shipping, &o.Tax, &o.Total, &status, &o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = Status(status)
	return o, err
}

func (r *PGRepository) queryOrders(ctx context.Context, sql string, args ...any) ([]Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	orders := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *PGRepository) attachItems(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(orders))
	index := make(map[uuid.UUID]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
		orders[i].Items = []Item{}
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, product_id, product_name, price, quantity, image_url
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			it        Item
			orderID   uuid.UUID
			productID *int64
		)
		if err := rows.Scan(&it.ID, &orderID, &productID, &it.ProductName, &it.Price, &it.Quantity, &it.ImageURL); err != nil {
			return err
		}
		if productID != nil {
			it.ProductID = *productID
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	return rows.Err()
}

// ListByUser returns the user's orders, newest first.
func (r *PGRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	orders, err := r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user orders: %w", err)
	}
	return orders, nil
}

// GetByNumber fetches an order and its items.
func (r *PGRepository) GetByNumber(ctx context.Context, number string) (Order, error) {
	orders, err := r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, number)
	if err != nil {
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	if len(orders) == 0 {
		return Order{}, ErrOrderNotFound
	}
	return orders[0], nil
}

// ListAll returns every order, newest first.
func (r *PGRepository) ListAll(ctx context.Context) ([]Order, error) {
	orders, err := r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// List returns one page of orders matching f and the total match count.
func (r *PGRepository) List(ctx context.Context, f ListFilter) ([]Order, int, error) {
	where, args := buildWhere(f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	page := max(f.Page, 1)
	args = append(args, limit, (page-1)*limit)
	sql := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))
	orders, err := r.queryOrders(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

func buildWhere(f ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}
	if f.Status != "" {
		add("status = ?", string(f.Status))
	}
	if f.DateFrom != nil {
		add("created_at >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("created_at <= ?", *f.DateTo)
	}
	if f.Search != "" {
		add("(order_number ILIKE ? OR customer_email ILIKE ? OR (customer_first_name || ' ' || customer_last_name) ILIKE ?)",
			"%"+escapeLike(f.Search)+"%")
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// UpdateStatus sets the status and updated_at of an order.
func (r *PGRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, at time.Time) (Order, error) {
	orders, err := r.queryOrders(ctx, `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3 RETURNING `+orderColumns,
		string(status), at, id)
	if err != nil {
		return Order{}, fmt.Errorf("update order status: %w", err)
	}
	if len(orders) == 0 {
		return Order{}, ErrOrderNotFound
	}
	return orders[0], nil
}

var _ Repository = (*PGRepository)(nil)
