package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string          `json:"id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	ImageURL  string          `json:"image_url,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type ProductCreateRequest struct {
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Price        decimal.Decimal `json:"price"`
	InitialStock int             `json:"initial_stock"`
	ImageURL     string          `json:"image_url,omitempty"`
}

type ProductUpdateRequest struct {
	Code     *string          `json:"code,omitempty"`
	Name     *string          `json:"name,omitempty"`
	Category *string          `json:"category,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	ImageURL *string          `json:"image_url,omitempty"`
}

type StockAdjustRequest struct {
	Delta int `json:"delta"`
}

// CartLine is one product-quantity-price entry supplied by the checkout
// caller. UnitPrice may be an operator override and is trusted as given.
type CartLine struct {
	ProductID string          `json:"product_id"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type SaleItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Qty         int             `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type Sale struct {
	ID             string          `json:"id"`
	IdempotencyKey string          `json:"idempotency_key"`
	SellerID       string          `json:"seller_id"`
	SellerName     string          `json:"seller_name"`
	ClientTaxID    string          `json:"client_tax_id,omitempty"`
	SaleType       string          `json:"sale_type"`
	Items          []SaleItem      `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	Total          decimal.Decimal `json:"total"`
	CreatedAt      time.Time       `json:"created_at"`
}

type SaleCommitRequest struct {
	IdempotencyKey string          `json:"idempotency_key"`
	SellerID       string          `json:"seller_id"`
	SellerName     string          `json:"seller_name"`
	ClientTaxID    string          `json:"client_tax_id,omitempty"`
	SaleType       string          `json:"sale_type"`
	Discount       decimal.Decimal `json:"discount"`
	Items          []CartLine      `json:"items"`
}

type SaleResponse struct {
	Sale      Sale `json:"sale"`
	Duplicate bool `json:"duplicate"`
}

type SaleLookupResponse struct {
	Found bool  `json:"found"`
	Sale  *Sale `json:"sale,omitempty"`
}

type ReceiptResponse struct {
	SaleID      string `json:"sale_id"`
	PreviewText string `json:"preview_text"`
	FileName    string `json:"file_name"`
}

type ActivityLog struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

type Settings struct {
	BusinessName string    `json:"business_name"`
	TaxID        string    `json:"tax_id"`
	Address      string    `json:"address"`
	Phone        string    `json:"phone"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	ID       string
	Username string
	Name     string
	Role     string
}

type UserCreateRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type UserStatusRequest struct {
	Active bool `json:"active"`
}

type UserView struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserAccount is the internal persistence model for auth credentials.
// Password always holds a bcrypt hash, never plain text.
type UserAccount struct {
	ID          string
	Username    string
	Password    string
	DisplayName string
	Role        string
	Active      bool
	CreatedAt   time.Time
}

type ReportDay struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
	Count   int64           `json:"count"`
}

type ReportProduct struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	QtySold     int64           `json:"qty_sold"`
	Revenue     decimal.Decimal `json:"revenue"`
}

type SalesSummary struct {
	From          string          `json:"from"`
	To            string          `json:"to"`
	Revenue       decimal.Decimal `json:"revenue"`
	Transactions  int64           `json:"transactions"`
	AverageTicket decimal.Decimal `json:"average_ticket"`
	ByDay         []ReportDay     `json:"by_day"`
	TopProducts   []ReportProduct `json:"top_products"`
}

type ResetResponse struct {
	SalesDeleted int `json:"sales_deleted"`
	LogsDeleted  int `json:"logs_deleted"`
}

type WholesalePolicy struct {
	PackQty      int     `json:"pack_qty"`
	DiscountRate float64 `json:"discount_rate"`
}

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

const (
	SaleTypeUnit      = "unit"
	SaleTypeWholesale = "wholesale"
)

// Wholesale policy advertised to checkout clients. Pricing stays in the
// caller; the commit engine records whatever unit prices it is handed.
const (
	WholesalePackQty      = 12
	WholesaleDiscountRate = 0.20
)
