package store

import (
	"context"
	"errors"
	"time"

	"sportlentes/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidSale       = errors.New("invalid sale")
	// ErrConflict marks a serialization failure inside an atomic unit of
	// work. The unit was fully rolled back and may be retried as-is.
	ErrConflict = errors.New("transaction conflict")
	// ErrUnavailable marks transient store connectivity failures. Callers
	// must retry or surface the outcome, never report it as a rejected sale.
	ErrUnavailable = errors.New("store unavailable")
)

// Repository is the single persistence boundary. CreateSale is the atomic
// unit of work behind the sale commit engine: the sale record and every
// relative stock decrement commit or abort together.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductByCode(ctx context.Context, code string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error)

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	FindSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	FindSaleByIdempotencyKey(ctx context.Context, key string) (*domain.Sale, error)
	ListSales(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error)
	GetSalesSummary(ctx context.Context, from time.Time, to time.Time) (domain.SalesSummary, error)
	DeleteSalesData(ctx context.Context) (salesDeleted int, logsDeleted int, err error)

	AppendActivity(ctx context.Context, entry domain.ActivityLog) error
	ListActivity(ctx context.Context, limit int) ([]domain.ActivityLog, error)

	GetSettings(ctx context.Context) (*domain.Settings, error)
	UpdateSettings(ctx context.Context, settings domain.Settings) (*domain.Settings, error)

	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	SetUserActive(ctx context.Context, id string, active bool) (*domain.UserAccount, error)
	DeleteUser(ctx context.Context, id string) error
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
