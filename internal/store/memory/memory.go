package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"sportlentes/backend/internal/domain"
	"sportlentes/backend/internal/store"
	"sportlentes/backend/internal/xid"
)

type Store struct {
	mu           sync.RWMutex
	productsByID map[string]domain.Product
	idByCode     map[string]string
	salesByID    map[string]*domain.Sale
	salesByIdem  map[string]*domain.Sale
	activity     []domain.ActivityLog
	settings     domain.Settings
	usersByID    map[string]domain.UserAccount
	idByUsername map[string]string
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_EMPLOYEE_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() (map[string]domain.UserAccount, map[string]string) {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	employeePwd := envOr("SEED_EMPLOYEE_PASSWORD", "vendedor123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_EMPLOYEE_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_EMPLOYEE_PASSWORD to override.")
	}

	now := time.Now().UTC()
	byID := map[string]domain.UserAccount{}
	byUsername := map[string]string{}
	for _, u := range []struct {
		username string
		display  string
		password string
		role     string
	}{
		{"admin", "Administrador", adminPwd, domain.RoleAdmin},
		{"vendedor", "Vendedor", employeePwd, domain.RoleEmployee},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		account := domain.UserAccount{
			ID:          xid.New("usr"),
			Username:    u.username,
			Password:    string(hash),
			DisplayName: u.display,
			Role:        u.role,
			Active:      true,
			CreatedAt:   now,
		}
		byID[account.ID] = account
		byUsername[account.Username] = account.ID
	}
	return byID, byUsername
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	seed := []struct {
		code     string
		name     string
		category string
		price    string
		stock    int
	}{
		{"1001", "Velocity Racer Neon", "Running", "299.90", 15},
		{"1002", "Hydro Blue Polarized", "Acuáticos", "349.00", 8},
		{"1003", "Stealth Black Ops", "Táctico", "199.50", 25},
		{"1004", "Cycling Master Z", "Ciclismo", "420.00", 3},
		{"1005", "Mountain View X", "Hiking", "180.00", 12},
		{"1006", "Urban Style Gold", "Casual", "150.00", 20},
		{"1007", "Snow Force Goggles", "Nieve", "550.00", 5},
		{"1008", "Night Rider Vision", "Nocturno", "210.00", 10},
	}

	productsByID := make(map[string]domain.Product, len(seed))
	idByCode := make(map[string]string, len(seed))
	for _, p := range seed {
		product := domain.Product{
			ID:        xid.New("prod"),
			Code:      p.code,
			Name:      p.name,
			Category:  p.category,
			Price:     decimal.RequireFromString(p.price),
			Stock:     p.stock,
			CreatedAt: now,
			UpdatedAt: now,
		}
		productsByID[product.ID] = product
		idByCode[product.Code] = product.ID
	}

	usersByID, idByUsername := seedUsers()

	return &Store{
		productsByID: productsByID,
		idByCode:     idByCode,
		salesByID:    make(map[string]*domain.Sale),
		salesByIdem:  make(map[string]*domain.Sale),
		activity:     make([]domain.ActivityLog, 0, 128),
		settings: domain.Settings{
			BusinessName: "Sport Lentes",
			TaxID:        "20481234567",
			Address:      "Av. Principal 123",
			Phone:        "999-888-777",
			UpdatedAt:    now,
		},
		usersByID:    usersByID,
		idByUsername: idByUsername,
	}
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.productsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) GetProductByCode(_ context.Context, code string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.idByCode[strings.TrimSpace(code)]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := s.productsByID[id]
	return &copyProduct, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product.Code = strings.TrimSpace(product.Code)
	if product.Code == "" || product.Name == "" || product.Category == "" || !product.Price.IsPositive() {
		return nil, store.ErrInvalidSale
	}
	if product.Stock < 0 {
		return nil, store.ErrInvalidSale
	}
	if _, exists := s.idByCode[product.Code]; exists {
		return nil, fmt.Errorf("code %s already registered: %w", product.Code, store.ErrInvalidSale)
	}

	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	s.productsByID[product.ID] = product
	s.idByCode[product.Code] = product.ID
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.productsByID[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	product.Code = strings.TrimSpace(product.Code)
	if product.Code == "" || product.Name == "" || product.Category == "" || !product.Price.IsPositive() {
		return nil, store.ErrInvalidSale
	}
	if other, taken := s.idByCode[product.Code]; taken && other != product.ID {
		return nil, fmt.Errorf("code %s already registered: %w", product.Code, store.ErrInvalidSale)
	}

	product.Stock = current.Stock
	product.CreatedAt = current.CreatedAt
	product.UpdatedAt = time.Now().UTC()

	if current.Code != product.Code {
		delete(s.idByCode, current.Code)
		s.idByCode[product.Code] = product.ID
	}
	s.productsByID[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.productsByID[id]
	if !exists {
		return store.ErrNotFound
	}
	delete(s.productsByID, id)
	delete(s.idByCode, product.Code)
	return nil
}

// AdjustStock applies a relative delta and floors the result at zero.
func (s *Store) AdjustStock(_ context.Context, id string, delta int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.productsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	product.Stock += delta
	if product.Stock < 0 {
		product.Stock = 0
	}
	product.UpdatedAt = time.Now().UTC()
	s.productsByID[id] = product
	updated := product
	return &updated, nil
}

// CreateSale is the atomic unit of work behind checkout. Every line is
// verified against live stock before anything is written; a single failing
// line aborts the whole sale with no partial decrement.
func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.IdempotencyKey == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalidSale
	}

	if existing, ok := s.salesByIdem[sale.IdempotencyKey]; ok {
		return cloneSale(existing), nil
	}

	// Demand is aggregated per product so a cart repeating a line cannot
	// pass line-by-line checks and drive stock negative.
	required := make(map[string]int, len(sale.Items))
	for _, item := range sale.Items {
		if item.Qty < 1 {
			return nil, store.ErrInvalidSale
		}
		product, exists := s.productsByID[item.ProductID]
		if !exists {
			return nil, fmt.Errorf("product %s unavailable: %w", item.ProductID, store.ErrInvalidSale)
		}
		required[item.ProductID] += item.Qty
		if product.Stock < required[item.ProductID] {
			return nil, fmt.Errorf("product %s: %w", product.Code, store.ErrInsufficientStock)
		}
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	now := sale.CreatedAt
	for i := range sale.Items {
		product := s.productsByID[sale.Items[i].ProductID]
		product.Stock -= sale.Items[i].Qty
		product.UpdatedAt = now
		s.productsByID[product.ID] = product
		if sale.Items[i].ProductName == "" {
			sale.Items[i].ProductName = product.Name
		}
	}

	saved := cloneSale(&sale)
	s.salesByID[sale.ID] = saved
	s.salesByIdem[sale.IdempotencyKey] = saved
	return cloneSale(saved), nil
}

func (s *Store) FindSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) FindSaleByIdempotencyKey(_ context.Context, key string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByIdem[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, 64)
	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		result = append(result, *cloneSale(sale))
	}

	slices.SortFunc(result, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) GetSalesSummary(_ context.Context, from time.Time, to time.Time) (domain.SalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.SalesSummary{
		From:        from.Format("2006-01-02"),
		To:          to.Format("2006-01-02"),
		ByDay:       make([]domain.ReportDay, 0, 8),
		TopProducts: make([]domain.ReportProduct, 0, 8),
	}

	byDay := map[string]*domain.ReportDay{}
	byProduct := map[string]*domain.ReportProduct{}

	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		summary.Transactions++
		summary.Revenue = summary.Revenue.Add(sale.Total)

		day := sale.CreatedAt.UTC().Format("2006-01-02")
		entry := byDay[day]
		if entry == nil {
			entry = &domain.ReportDay{Date: day}
			byDay[day] = entry
		}
		entry.Count++
		entry.Revenue = entry.Revenue.Add(sale.Total)

		for _, item := range sale.Items {
			product := byProduct[item.ProductID]
			if product == nil {
				product = &domain.ReportProduct{ProductID: item.ProductID, ProductName: item.ProductName}
				byProduct[item.ProductID] = product
			}
			product.QtySold += int64(item.Qty)
			product.Revenue = product.Revenue.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Qty))))
		}
	}

	if summary.Transactions > 0 {
		summary.AverageTicket = summary.Revenue.DivRound(decimal.NewFromInt(summary.Transactions), 2)
	}

	for _, entry := range byDay {
		summary.ByDay = append(summary.ByDay, *entry)
	}
	slices.SortFunc(summary.ByDay, func(a, b domain.ReportDay) int {
		return cmpString(a.Date, b.Date)
	})

	for _, entry := range byProduct {
		summary.TopProducts = append(summary.TopProducts, *entry)
	}
	slices.SortFunc(summary.TopProducts, func(a, b domain.ReportProduct) int {
		if a.QtySold == b.QtySold {
			return cmpString(a.ProductID, b.ProductID)
		}
		if a.QtySold > b.QtySold {
			return -1
		}
		return 1
	})
	if len(summary.TopProducts) > 5 {
		summary.TopProducts = summary.TopProducts[:5]
	}

	return summary, nil
}

func (s *Store) DeleteSalesData(_ context.Context) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	salesDeleted := len(s.salesByID)
	logsDeleted := len(s.activity)
	s.salesByID = make(map[string]*domain.Sale)
	s.salesByIdem = make(map[string]*domain.Sale)
	s.activity = s.activity[:0]
	return salesDeleted, logsDeleted, nil
}

func (s *Store) AppendActivity(_ context.Context, entry domain.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("act")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.activity = append(s.activity, entry)
	return nil
}

func (s *Store) ListActivity(_ context.Context, limit int) ([]domain.ActivityLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ActivityLog, len(s.activity))
	copy(result, s.activity)

	slices.SortFunc(result, func(a, b domain.ActivityLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) GetSettings(_ context.Context) (*domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings := s.settings
	return &settings, nil
}

func (s *Store) UpdateSettings(_ context.Context, settings domain.Settings) (*domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(settings.BusinessName) == "" {
		return nil, store.ErrInvalidSale
	}
	settings.UpdatedAt = time.Now().UTC()
	s.settings = settings
	updated := settings
	return &updated, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return nil, store.ErrInvalidSale
	}
	if _, exists := s.idByUsername[username]; exists {
		return nil, fmt.Errorf("username %s already registered: %w", username, store.ErrInvalidSale)
	}
	user.Username = username
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

	s.usersByID[user.ID] = user
	s.idByUsername[user.Username] = user.ID
	created := user
	return &created, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByID))
	for _, user := range s.usersByID {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.idByUsername[strings.ToLower(strings.TrimSpace(username))]
	if !exists {
		return nil, store.ErrNotFound
	}
	user := s.usersByID[id]
	return &user, nil
}

func (s *Store) SetUserActive(_ context.Context, id string, active bool) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	user.Active = active
	s.usersByID[id] = user
	updated := user
	return &updated, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByID[id]
	if !exists {
		return store.ErrNotFound
	}
	delete(s.usersByID, id)
	delete(s.idByUsername, user.Username)
	return nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidSale
	}
	id, exists := s.idByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user := s.usersByID[id]
	user.Password = password
	s.usersByID[id] = user
	return nil
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dup := *src
	items := make([]domain.SaleItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return &dup
}
