package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"sportlentes/backend/internal/domain"
	"sportlentes/backend/internal/store"
	"sportlentes/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, name, category, price, stock, image_url, created_at, updated_at
		FROM products
		ORDER BY category, name
	`)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, translateErr(err)
	}

	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, code, name, category, price, stock, image_url, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id)
	return scanProductRow(row)
}

func (s *Store) GetProductByCode(ctx context.Context, code string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, code, name, category, price, stock, image_url, created_at, updated_at
		FROM products
		WHERE code = $1
	`, strings.TrimSpace(code))
	return scanProductRow(row)
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Code = strings.TrimSpace(product.Code)
	if product.Code == "" || product.Name == "" || product.Category == "" || !product.Price.IsPositive() {
		return nil, store.ErrInvalidSale
	}
	if product.Stock < 0 {
		return nil, store.ErrInvalidSale
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, code, name, category, price, stock, image_url, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, product.ID, product.Code, product.Name, product.Category, product.Price.StringFixed(2), product.Stock, product.ImageURL, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("code %s already registered: %w", product.Code, store.ErrInvalidSale)
		}
		return nil, translateErr(err)
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Code = strings.TrimSpace(product.Code)
	if product.Code == "" || product.Name == "" || product.Category == "" || !product.Price.IsPositive() {
		return nil, store.ErrInvalidSale
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET code = $2, name = $3, category = $4, price = $5, image_url = $6, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Code, product.Name, product.Category, product.Price.StringFixed(2), product.ImageURL)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("code %s already registered: %w", product.Code, store.ErrInvalidSale)
		}
		return nil, translateErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetProduct(ctx, product.ID)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return translateErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AdjustStock applies a relative delta in a single statement so concurrent
// adjustments never overwrite each other. The result is floored at zero.
func (s *Store) AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = GREATEST(stock + $2, 0), updated_at = now()
		WHERE id = $1
		RETURNING id, code, name, category, price, stock, image_url, created_at, updated_at
	`, id, delta)
	return scanProductRow(row)
}

// CreateSale runs the whole checkout as one serializable transaction: every
// line decrements live stock with a guarded relative UPDATE, then the sale
// and its items are inserted. Any failing line aborts the transaction with
// nothing written.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.IdempotencyKey == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalidSale
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, translateErr(err)
	}
	defer func() { _ = pgTx.Rollback() }()

	for i := range sale.Items {
		item := &sale.Items[i]
		if item.Qty < 1 {
			return nil, store.ErrInvalidSale
		}

		var name, code string
		err := pgTx.QueryRowContext(ctx, `
			UPDATE products
			SET stock = stock - $1, updated_at = now()
			WHERE id = $2 AND stock >= $1
			RETURNING name, code
		`, item.Qty, item.ProductID).Scan(&name, &code)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, classifyFailedLine(ctx, pgTx, item.ProductID)
			}
			return nil, translateErr(err)
		}
		if item.ProductName == "" {
			item.ProductName = name
		}
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (id, idempotency_key, seller_id, seller_name, client_tax_id, sale_type, subtotal, discount, total, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, sale.ID, sale.IdempotencyKey, sale.SellerID, sale.SellerName, sale.ClientTaxID, sale.SaleType,
		sale.Subtotal.StringFixed(2), sale.Discount.StringFixed(2), sale.Total.StringFixed(2), sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			_ = pgTx.Rollback()
			existing, lookupErr := s.FindSaleByIdempotencyKey(ctx, sale.IdempotencyKey)
			if lookupErr == nil {
				return existing, nil
			}
			return nil, lookupErr
		}
		return nil, translateErr(err)
	}

	for i, item := range sale.Items {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, line_no, product_id, product_name, qty, unit_price)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, sale.ID, i+1, item.ProductID, item.ProductName, item.Qty, item.UnitPrice.StringFixed(2))
		if err != nil {
			return nil, translateErr(err)
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, translateErr(err)
	}

	return &sale, nil
}

// classifyFailedLine distinguishes a missing product from an out-of-stock
// one after the guarded decrement matched no row.
func classifyFailedLine(ctx context.Context, pgTx *sql.Tx, productID string) error {
	var code string
	err := pgTx.QueryRowContext(ctx, `SELECT code FROM products WHERE id = $1`, productID).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("product %s unavailable: %w", productID, store.ErrInvalidSale)
	}
	if err != nil {
		return translateErr(err)
	}
	return fmt.Errorf("product %s: %w", code, store.ErrInsufficientStock)
}

func (s *Store) FindSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	return s.findSale(ctx, `WHERE id = $1`, id)
}

func (s *Store) FindSaleByIdempotencyKey(ctx context.Context, key string) (*domain.Sale, error) {
	return s.findSale(ctx, `WHERE idempotency_key = $1`, key)
}

func (s *Store) findSale(ctx context.Context, where string, arg any) (*domain.Sale, error) {
	var sale domain.Sale
	var subtotal, discount, total string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, idempotency_key, seller_id, seller_name, client_tax_id, sale_type, subtotal, discount, total, created_at
		FROM sales `+where,
		arg).Scan(&sale.ID, &sale.IdempotencyKey, &sale.SellerID, &sale.SellerName, &sale.ClientTaxID,
		&sale.SaleType, &subtotal, &discount, &total, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, translateErr(err)
	}
	if sale.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return nil, err
	}
	if sale.Discount, err = decimal.NewFromString(discount); err != nil {
		return nil, err
	}
	if sale.Total, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()

	items, err := s.loadSaleItems(ctx, []string{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Items = items[sale.ID]
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, idempotency_key, seller_id, seller_name, client_tax_id, sale_type, subtotal, discount, total, created_at
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		var sale domain.Sale
		var subtotal, discount, total string
		if err := rows.Scan(&sale.ID, &sale.IdempotencyKey, &sale.SellerID, &sale.SellerName, &sale.ClientTaxID,
			&sale.SaleType, &subtotal, &discount, &total, &sale.CreatedAt); err != nil {
			return nil, err
		}
		if sale.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
			return nil, err
		}
		if sale.Discount, err = decimal.NewFromString(discount); err != nil {
			return nil, err
		}
		if sale.Total, err = decimal.NewFromString(total); err != nil {
			return nil, err
		}
		sale.CreatedAt = sale.CreatedAt.UTC()
		sales = append(sales, sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, translateErr(err)
	}

	items, err := s.loadSaleItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = items[sales[i].ID]
	}
	return sales, nil
}

func (s *Store) loadSaleItems(ctx context.Context, saleIDs []string) (map[string][]domain.SaleItem, error) {
	result := make(map[string][]domain.SaleItem, len(saleIDs))
	if len(saleIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, product_id, product_name, qty, unit_price
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, line_no
	`, saleIDs)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		var saleID, unitPrice string
		var item domain.SaleItem
		if err := rows.Scan(&saleID, &item.ProductID, &item.ProductName, &item.Qty, &unitPrice); err != nil {
			return nil, err
		}
		if item.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, err
		}
		result[saleID] = append(result[saleID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, translateErr(err)
	}
	return result, nil
}

func (s *Store) GetSalesSummary(ctx context.Context, from time.Time, to time.Time) (domain.SalesSummary, error) {
	summary := domain.SalesSummary{
		From:        from.Format("2006-01-02"),
		To:          to.Format("2006-01-02"),
		ByDay:       make([]domain.ReportDay, 0, 8),
		TopProducts: make([]domain.ReportProduct, 0, 5),
	}

	var revenue sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total), 0), COUNT(*)
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(&revenue, &summary.Transactions)
	if err != nil {
		return summary, translateErr(err)
	}
	if revenue.Valid {
		if summary.Revenue, err = decimal.NewFromString(revenue.String); err != nil {
			return summary, err
		}
	}
	if summary.Transactions > 0 {
		summary.AverageTicket = summary.Revenue.DivRound(decimal.NewFromInt(summary.Transactions), 2)
	}

	dayRows, err := s.db.QueryContext(ctx, `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, SUM(total), COUNT(*)
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY day
		ORDER BY day
	`, from, to)
	if err != nil {
		return summary, translateErr(err)
	}
	defer dayRows.Close()
	for dayRows.Next() {
		var entry domain.ReportDay
		var dayRevenue string
		if err := dayRows.Scan(&entry.Date, &dayRevenue, &entry.Count); err != nil {
			return summary, err
		}
		if entry.Revenue, err = decimal.NewFromString(dayRevenue); err != nil {
			return summary, err
		}
		summary.ByDay = append(summary.ByDay, entry)
	}
	if err := dayRows.Err(); err != nil {
		return summary, translateErr(err)
	}

	productRows, err := s.db.QueryContext(ctx, `
		SELECT si.product_id, MAX(si.product_name), SUM(si.qty), SUM(si.qty * si.unit_price)
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		WHERE s.created_at >= $1 AND s.created_at < $2
		GROUP BY si.product_id
		ORDER BY SUM(si.qty) DESC, si.product_id
		LIMIT 5
	`, from, to)
	if err != nil {
		return summary, translateErr(err)
	}
	defer productRows.Close()
	for productRows.Next() {
		var entry domain.ReportProduct
		var productRevenue string
		if err := productRows.Scan(&entry.ProductID, &entry.ProductName, &entry.QtySold, &productRevenue); err != nil {
			return summary, err
		}
		if entry.Revenue, err = decimal.NewFromString(productRevenue); err != nil {
			return summary, err
		}
		summary.TopProducts = append(summary.TopProducts, entry)
	}
	if err := productRows.Err(); err != nil {
		return summary, translateErr(err)
	}

	return summary, nil
}

func (s *Store) DeleteSalesData(ctx context.Context) (int, int, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, 0, translateErr(err)
	}
	defer func() { _ = pgTx.Rollback() }()

	salesRes, err := pgTx.ExecContext(ctx, `DELETE FROM sales`)
	if err != nil {
		return 0, 0, translateErr(err)
	}
	logsRes, err := pgTx.ExecContext(ctx, `DELETE FROM activity_logs`)
	if err != nil {
		return 0, 0, translateErr(err)
	}
	salesDeleted, err := salesRes.RowsAffected()
	if err != nil {
		return 0, 0, err
	}
	logsDeleted, err := logsRes.RowsAffected()
	if err != nil {
		return 0, 0, err
	}

	if err := pgTx.Commit(); err != nil {
		return 0, 0, translateErr(err)
	}
	return int(salesDeleted), int(logsDeleted), nil
}

func (s *Store) AppendActivity(ctx context.Context, entry domain.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("act")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_logs (id, actor, action, detail, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, entry.ID, entry.Actor, entry.Action, entry.Detail, entry.CreatedAt)
	return translateErr(err)
}

func (s *Store) ListActivity(ctx context.Context, limit int) ([]domain.ActivityLog, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor, action, detail, created_at
		FROM activity_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	entries := make([]domain.ActivityLog, 0, limit)
	for rows.Next() {
		var entry domain.ActivityLog
		if err := rows.Scan(&entry.ID, &entry.Actor, &entry.Action, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, translateErr(err)
	}
	return entries, nil
}

func (s *Store) GetSettings(ctx context.Context) (*domain.Settings, error) {
	var settings domain.Settings
	err := s.db.QueryRowContext(ctx, `
		SELECT business_name, tax_id, address, phone, updated_at
		FROM settings
		WHERE id = 1
	`).Scan(&settings.BusinessName, &settings.TaxID, &settings.Address, &settings.Phone, &settings.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, translateErr(err)
	}
	settings.UpdatedAt = settings.UpdatedAt.UTC()
	return &settings, nil
}

func (s *Store) UpdateSettings(ctx context.Context, settings domain.Settings) (*domain.Settings, error) {
	if strings.TrimSpace(settings.BusinessName) == "" {
		return nil, store.ErrInvalidSale
	}
	settings.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, business_name, tax_id, address, phone, updated_at)
		VALUES (1,$1,$2,$3,$4,$5)
		ON CONFLICT (id)
		DO UPDATE SET business_name = EXCLUDED.business_name, tax_id = EXCLUDED.tax_id,
			address = EXCLUDED.address, phone = EXCLUDED.phone, updated_at = EXCLUDED.updated_at
	`, settings.BusinessName, settings.TaxID, settings.Address, settings.Phone, settings.UpdatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	updated := settings
	return &updated, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return nil, store.ErrInvalidSale
	}
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.Role == "" {
		user.Role = domain.RoleEmployee
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, display_name, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, user.ID, user.Username, user.Password, user.DisplayName, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("username %s already registered: %w", user.Username, store.ErrInvalidSale)
		}
		return nil, translateErr(err)
	}
	created := user
	return &created, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, password_hash, display_name, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.ID, &user.Username, &user.Password, &user.DisplayName, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, translateErr(err)
	}
	return users, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, display_name, role, active, created_at
		FROM users
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username))).
		Scan(&user.ID, &user.Username, &user.Password, &user.DisplayName, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, translateErr(err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) SetUserActive(ctx context.Context, id string, active bool) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET active = $2
		WHERE id = $1
		RETURNING id, username, password_hash, display_name, role, active, created_at
	`, id, active).Scan(&user.ID, &user.Username, &user.Password, &user.DisplayName, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, translateErr(err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return translateErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidSale
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return translateErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var product domain.Product
	var price string
	err := row.Scan(&product.ID, &product.Code, &product.Name, &product.Category, &price,
		&product.Stock, &product.ImageURL, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if product.Price, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	product.CreatedAt = product.CreatedAt.UTC()
	product.UpdatedAt = product.UpdatedAt.UTC()
	return &product, nil
}

func scanProductRow(row *sql.Row) (*domain.Product, error) {
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, translateErr(err)
	}
	return product, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// translateErr maps low-level failures onto the store sentinels so callers
// can decide between retrying and surfacing the outcome.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("sqlstate %s: %w", pgErr.Code, store.ErrConflict)
		}
		return err
	}
	if errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%v: %w", err, store.ErrUnavailable)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%v: %w", err, store.ErrUnavailable)
	}
	return err
}
