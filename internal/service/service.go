package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"sportlentes/backend/internal/cache"
	"sportlentes/backend/internal/domain"
	"sportlentes/backend/internal/store"
	"sportlentes/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const (
	catalogCacheKey = "catalog:products"

	// A commit that loses a serialization race or hits a transient
	// connectivity blip is retried as-is a bounded number of times.
	commitAttempts = 3
	commitBackoff  = 50 * time.Millisecond
)

type Service struct {
	repo       store.Repository
	catalog    cache.CatalogCache
	catalogTTL time.Duration
	log        zerolog.Logger
}

func New(repo store.Repository, catalog cache.CatalogCache, catalogTTL time.Duration, log zerolog.Logger) *Service {
	if catalog == nil {
		catalog = cache.NoopCatalogCache{}
	}
	if catalogTTL < time.Second {
		catalogTTL = 30 * time.Second
	}

	return &Service{
		repo:       repo,
		catalog:    catalog,
		catalogTTL: catalogTTL,
		log:        log,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if cached, hit, err := s.catalog.Get(ctx, catalogCacheKey); err == nil && hit {
		return cached, nil
	} else if err != nil {
		s.log.Debug().Err(err).Msg("catalog cache read failed")
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.Set(ctx, catalogCacheKey, products, s.catalogTTL); err != nil {
		s.log.Debug().Err(err).Msg("catalog cache write failed")
	}
	return products, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) GetProductByCode(ctx context.Context, code string) (domain.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Product{}, store.ErrInvalidSale
	}
	product, err := s.repo.GetProductByCode(ctx, code)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.Code = strings.TrimSpace(req.Code)
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Category == "" {
		req.Category = "General"
	}
	if req.Code == "" || req.Name == "" || !req.Price.IsPositive() || req.InitialStock < 0 {
		return domain.Product{}, store.ErrInvalidSale
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Code:     req.Code,
		Name:     req.Name,
		Category: req.Category,
		Price:    req.Price,
		Stock:    req.InitialStock,
		ImageURL: strings.TrimSpace(req.ImageURL),
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateCatalog(ctx)
	s.logActivity(ctx, "product_create", fmt.Sprintf("code=%s,name=%s,price=%s,stock=%d", created.Code, created.Name, created.Price.StringFixed(2), created.Stock))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Code != nil {
		code := strings.TrimSpace(*req.Code)
		if code == "" {
			return domain.Product{}, store.ErrInvalidSale
		}
		updated.Code = code
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidSale
		}
		updated.Name = name
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return domain.Product{}, store.ErrInvalidSale
		}
		updated.Category = category
	}
	if req.Price != nil {
		if !req.Price.IsPositive() {
			return domain.Product{}, store.ErrInvalidSale
		}
		updated.Price = *req.Price
	}
	if req.ImageURL != nil {
		updated.ImageURL = strings.TrimSpace(*req.ImageURL)
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateCatalog(ctx)
	s.logActivity(ctx, "product_update", fmt.Sprintf("code=%s,name=%s,price=%s", saved.Code, saved.Name, saved.Price.StringFixed(2)))
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}

	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}

	s.invalidateCatalog(ctx)
	s.logActivity(ctx, "product_delete", fmt.Sprintf("code=%s,name=%s", product.Code, product.Name))
	return nil
}

// AdjustStock applies a relative delta to a product's stock. The store
// floors the result at zero so a large negative delta empties the shelf
// instead of going negative.
func (s *Service) AdjustStock(ctx context.Context, id string, req domain.StockAdjustRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}
	if req.Delta == 0 {
		return domain.Product{}, store.ErrInvalidSale
	}

	updated, err := s.repo.AdjustStock(ctx, id, req.Delta)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateCatalog(ctx)
	s.logActivity(ctx, "stock_adjust", fmt.Sprintf("code=%s,delta=%d,stock=%d", updated.Code, req.Delta, updated.Stock))
	return *updated, nil
}

// CommitSale is the checkout entry point. Validation happens before any
// store call, then the sale record and every stock decrement land in one
// atomic unit of work. Serialization conflicts and transient store
// failures get a bounded retry of the identical unit.
func (s *Service) CommitSale(ctx context.Context, req domain.SaleCommitRequest) (domain.SaleResponse, error) {
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = xid.New("idem")
	}
	req.SaleType = strings.ToLower(strings.TrimSpace(req.SaleType))
	if req.SaleType == "" {
		req.SaleType = domain.SaleTypeUnit
	}
	if req.SaleType != domain.SaleTypeUnit && req.SaleType != domain.SaleTypeWholesale {
		return domain.SaleResponse{}, store.ErrInvalidSale
	}
	if len(req.Items) == 0 {
		return domain.SaleResponse{}, store.ErrInvalidSale
	}
	if req.Discount.IsNegative() {
		return domain.SaleResponse{}, store.ErrInvalidSale
	}

	actor, _ := ActorFromContext(ctx)
	if req.SellerID == "" {
		req.SellerID = actor.ID
	}
	if req.SellerName == "" {
		req.SellerName = actor.Name
	}

	subtotal := decimal.Zero
	items := make([]domain.SaleItem, 0, len(req.Items))
	for _, line := range req.Items {
		if line.ProductID == "" || line.Qty < 1 || !line.UnitPrice.IsPositive() {
			return domain.SaleResponse{}, store.ErrInvalidSale
		}
		items = append(items, domain.SaleItem{
			ProductID: line.ProductID,
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice,
		})
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty))))
	}
	if req.Discount.GreaterThan(subtotal) {
		return domain.SaleResponse{}, store.ErrInvalidSale
	}

	if existing, err := s.repo.FindSaleByIdempotencyKey(ctx, req.IdempotencyKey); err == nil {
		return domain.SaleResponse{Sale: *existing, Duplicate: true}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.SaleResponse{}, err
	}

	sale := domain.Sale{
		ID:             xid.New("sale"),
		IdempotencyKey: req.IdempotencyKey,
		SellerID:       req.SellerID,
		SellerName:     req.SellerName,
		ClientTaxID:    strings.TrimSpace(req.ClientTaxID),
		SaleType:       req.SaleType,
		Items:          items,
		Subtotal:       subtotal,
		Discount:       req.Discount,
		Total:          subtotal.Sub(req.Discount),
		CreatedAt:      time.Now().UTC(),
	}

	created, err := s.createSaleWithRetry(ctx, sale)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	// A different ID back means another request with the same key won the
	// race; the sale was committed exactly once.
	duplicate := created.ID != sale.ID
	if !duplicate {
		s.invalidateCatalog(ctx)
		go s.logActivity(context.WithoutCancel(ctx), "sale_commit",
			fmt.Sprintf("sale=%s,total=%s,items=%d,type=%s", created.ID, created.Total.StringFixed(2), len(created.Items), created.SaleType))
	}

	return domain.SaleResponse{Sale: *created, Duplicate: duplicate}, nil
}

func (s *Service) createSaleWithRetry(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	var lastErr error
	for attempt := 1; attempt <= commitAttempts; attempt++ {
		created, err := s.repo.CreateSale(ctx, sale)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, store.ErrConflict) && !errors.Is(err, store.ErrUnavailable) {
			return nil, err
		}
		lastErr = err
		s.log.Warn().Err(err).Int("attempt", attempt).Str("sale", sale.ID).Msg("sale commit retry")

		if attempt < commitAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * commitBackoff):
			}
		}
	}
	return nil, lastErr
}

func (s *Service) LookupSaleByIdempotency(ctx context.Context, key string) (domain.SaleLookupResponse, error) {
	if key == "" {
		return domain.SaleLookupResponse{}, store.ErrInvalidSale
	}
	sale, err := s.repo.FindSaleByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.SaleLookupResponse{Found: false}, nil
		}
		return domain.SaleLookupResponse{}, err
	}
	return domain.SaleLookupResponse{Found: true, Sale: sale}, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.FindSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.repo.ListSales(ctx, from, to, limit)
}

// BuildReceipt renders a plain-text ticket for a committed sale using the
// business settings as the header.
func (s *Service) BuildReceipt(ctx context.Context, saleID string) (domain.ReceiptResponse, error) {
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return domain.ReceiptResponse{}, store.ErrInvalidSale
	}
	sale, err := s.repo.FindSaleByID(ctx, saleID)
	if err != nil {
		return domain.ReceiptResponse{}, err
	}
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return domain.ReceiptResponse{}, err
		}
		settings = &domain.Settings{BusinessName: "Sport Lentes"}
	}

	lines := []string{
		settings.BusinessName,
		"========================",
	}
	if settings.TaxID != "" {
		lines = append(lines, "RUC: "+settings.TaxID)
	}
	if settings.Address != "" {
		lines = append(lines, settings.Address)
	}
	if settings.Phone != "" {
		lines = append(lines, "Tel: "+settings.Phone)
	}
	lines = append(lines,
		"------------------------",
		"Venta: "+sale.ID,
		"Vendedor: "+sale.SellerName,
		"Fecha: "+sale.CreatedAt.Format("2006-01-02 15:04:05"),
	)
	if sale.ClientTaxID != "" {
		lines = append(lines, "Cliente RUC: "+sale.ClientTaxID)
	}
	lines = append(lines, "------------------------")
	for _, item := range sale.Items {
		lines = append(lines, fmt.Sprintf("%s x%d", item.ProductName, item.Qty))
		lines = append(lines, fmt.Sprintf("  S/ %s", item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Qty))).StringFixed(2)))
	}
	lines = append(lines,
		"------------------------",
		fmt.Sprintf("Subtotal : S/ %s", sale.Subtotal.StringFixed(2)),
		fmt.Sprintf("Descuento: S/ %s", sale.Discount.StringFixed(2)),
		fmt.Sprintf("TOTAL    : S/ %s", sale.Total.StringFixed(2)),
		"========================",
		"Gracias por su compra",
		"",
	)

	return domain.ReceiptResponse{
		SaleID:      sale.ID,
		PreviewText: strings.Join(lines, "\n"),
		FileName:    fmt.Sprintf("ticket-%s.txt", sale.ID),
	}, nil
}

func (s *Service) SalesSummary(ctx context.Context, from time.Time, to time.Time) (domain.SalesSummary, error) {
	if !from.Before(to) {
		return domain.SalesSummary{}, store.ErrInvalidSale
	}
	return s.repo.GetSalesSummary(ctx, from, to)
}

func (s *Service) ListActivity(ctx context.Context, limit int) ([]domain.ActivityLog, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return s.repo.ListActivity(ctx, limit)
}

func (s *Service) GetSettings(ctx context.Context) (domain.Settings, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	return *settings, nil
}

func (s *Service) UpdateSettings(ctx context.Context, req domain.Settings) (domain.Settings, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Settings{}, fmt.Errorf("admin role required")
	}

	req.BusinessName = strings.TrimSpace(req.BusinessName)
	if req.BusinessName == "" {
		return domain.Settings{}, store.ErrInvalidSale
	}

	updated, err := s.repo.UpdateSettings(ctx, req)
	if err != nil {
		return domain.Settings{}, err
	}

	s.logActivity(ctx, "settings_update", fmt.Sprintf("name=%s,ruc=%s", updated.BusinessName, updated.TaxID))
	return *updated, nil
}

func (s *Service) WholesalePolicy() domain.WholesalePolicy {
	return domain.WholesalePolicy{
		PackQty:      domain.WholesalePackQty,
		DiscountRate: domain.WholesaleDiscountRate,
	}
}

func (s *Service) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.UserView, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.UserView{}, fmt.Errorf("admin role required")
	}

	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	if req.Role == "" {
		req.Role = domain.RoleEmployee
	}
	if req.Role != domain.RoleAdmin && req.Role != domain.RoleEmployee {
		return domain.UserView{}, store.ErrInvalidSale
	}
	if req.Username == "" || len(req.Password) < 8 {
		return domain.UserView{}, store.ErrInvalidSale
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.UserView{}, err
	}

	created, err := s.repo.CreateUser(ctx, domain.UserAccount{
		Username:    req.Username,
		Password:    string(hash),
		DisplayName: req.DisplayName,
		Role:        req.Role,
	})
	if err != nil {
		return domain.UserView{}, err
	}

	s.logActivity(ctx, "user_create", fmt.Sprintf("username=%s,role=%s", created.Username, created.Role))
	return toUserView(*created), nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.UserView, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("admin role required")
	}

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]domain.UserView, 0, len(users))
	for _, user := range users {
		views = append(views, toUserView(user))
	}
	return views, nil
}

func (s *Service) SetUserActive(ctx context.Context, id string, req domain.UserStatusRequest) (domain.UserView, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.UserView{}, fmt.Errorf("admin role required")
	}
	if id == actor.ID && !req.Active {
		return domain.UserView{}, fmt.Errorf("cannot deactivate own account")
	}

	updated, err := s.repo.SetUserActive(ctx, id, req.Active)
	if err != nil {
		return domain.UserView{}, err
	}

	s.logActivity(ctx, "user_status", fmt.Sprintf("username=%s,active=%t", updated.Username, updated.Active))
	return toUserView(*updated), nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}
	if id == actor.ID {
		return fmt.Errorf("cannot delete own account")
	}

	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logActivity(ctx, "user_delete", fmt.Sprintf("id=%s", id))
	return nil
}

// ResetSalesData wipes every sale and activity entry. Products, users and
// settings survive the reset.
func (s *Service) ResetSalesData(ctx context.Context) (domain.ResetResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.ResetResponse{}, fmt.Errorf("admin role required")
	}

	salesDeleted, logsDeleted, err := s.repo.DeleteSalesData(ctx)
	if err != nil {
		return domain.ResetResponse{}, err
	}

	s.logActivity(ctx, "sales_reset", fmt.Sprintf("sales=%d,logs=%d", salesDeleted, logsDeleted))
	return domain.ResetResponse{SalesDeleted: salesDeleted, LogsDeleted: logsDeleted}, nil
}

func (s *Service) logActivity(ctx context.Context, action string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Name: "Sistema", Role: "system"}
	}
	name := actor.Name
	if name == "" {
		name = actor.Username
	}

	if err := s.repo.AppendActivity(ctx, domain.ActivityLog{
		ID:        xid.New("act"),
		Actor:     name,
		Action:    action,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		s.log.Warn().Err(err).Str("action", action).Msg("failed to write activity log")
	}
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	if err := s.catalog.Invalidate(ctx, catalogCacheKey); err != nil {
		s.log.Debug().Err(err).Msg("catalog cache invalidation failed")
	}
}

func toUserView(user domain.UserAccount) domain.UserView {
	return domain.UserView{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		Active:      user.Active,
		CreatedAt:   user.CreatedAt,
	}
}
