package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

var ErrNotFound = errors.New("order not found")

const uniqueViolation = "23505"

// CreateWithItems inserts the order and its items in one transaction.
// Order must be committed before its items (FK dependency).
//
// Idempotency is enforced by the unique constraint on orders.session_ref,
// not by a pre-check: two concurrent webhook deliveries for the same session
// both attempt the insert, the loser hits 23505 and gets the winner's row
// back with existed=true.
func (r *Repo) CreateWithItems(ctx context.Context, o Order, items []OrderItem) (Order, bool, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var ship Address
	if o.Shipping != nil {
		ship = *o.Shipping
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, session_ref, email, name, status, total_cents,
		                   ship_line1, ship_line2, ship_city, ship_postal_code, ship_country)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		o.ID, o.SessionRef, o.Email, o.Name, string(o.Status), o.TotalCents,
		nullable(ship.Line1), nullable(ship.Line2), nullable(ship.City),
		nullable(ship.PostalCode), nullable(ship.Country),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			_ = tx.Rollback(ctx)
			existing, gerr := r.GetBySessionRef(ctx, o.SessionRef)
			if gerr != nil {
				return Order{}, false, gerr
			}
			return existing, true, nil
		}
		return Order{}, false, err
	}

	for _, it := range items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items(order_id, photo_id, product_type, price_cents, delivery_option, delivery_price_cents)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			o.ID, it.PhotoID, string(it.ProductType), it.PriceCents,
			nullable(string(it.DeliveryOption)), it.DeliveryPriceCents,
		)
		if err != nil {
			return Order{}, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, false, err
	}
	return o, false, nil
}

const orderColumns = `id, session_ref, email, name, status, total_cents,
	ship_line1, ship_line2, ship_city, ship_postal_code, ship_country,
	fulfilled_at, created_at, updated_at`

func (r *Repo) GetByID(ctx context.Context, id string) (Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
	return scanOrder(row)
}

func (r *Repo) GetBySessionRef(ctx context.Context, ref string) (Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE session_ref=$1`, ref)
	return scanOrder(row)
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var status string
	var line1, line2, city, postal, country *string
	err := row.Scan(&o.ID, &o.SessionRef, &o.Email, &o.Name, &status, &o.TotalCents,
		&line1, &line2, &city, &postal, &country,
		&o.FulfilledAt, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	if line1 != nil {
		o.Shipping = &Address{
			Line1:      *line1,
			Line2:      deref(line2),
			City:       deref(city),
			PostalCode: deref(postal),
			Country:    deref(country),
		}
	}
	return o, nil
}

func (r *Repo) Items(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, photo_id, product_type, price_cents, delivery_option, delivery_price_cents
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		var ptype string
		var dopt *string
		if err := rows.Scan(&it.ID, &it.OrderID, &it.PhotoID, &ptype, &it.PriceCents, &dopt, &it.DeliveryPriceCents); err != nil {
			return nil, err
		}
		it.ProductType = ProductType(ptype)
		it.DeliveryOption = DeliveryOption(deref(dopt))
		out = append(out, it)
	}
	return out, rows.Err()
}

// PhotosByIDs resolves photo ids to photo rows. Missing ids are simply
// absent from the result map; the caller decides what to do about them.
func (r *Repo) PhotosByIDs(ctx context.Context, ids []string) (map[string]Photo, error) {
	if len(ids) == 0 {
		return map[string]Photo{}, nil
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, gallery_id, asset_key, preview_url, created_at
		FROM photos WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Photo, len(ids))
	for rows.Next() {
		var p Photo
		if err := rows.Scan(&p.ID, &p.GalleryID, &p.AssetKey, &p.PreviewURL, &p.CreatedAt); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *Repo) MarkFulfilled(ctx context.Context, orderID string, at time.Time) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$1, fulfilled_at=$2, updated_at=now()
		WHERE id=$3`, string(StatusFulfilled), at, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
