package domain

import "time"

type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	SKU      string  `json:"sku"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
	Category string  `json:"category"`
	Image    string  `json:"image,omitempty"`
}

type ProductCreateRequest struct {
	Name         string  `json:"name"`
	SKU          string  `json:"sku"`
	Price        float64 `json:"price"`
	InitialStock int     `json:"initial_stock"`
	Category     string  `json:"category"`
	Image        string  `json:"image,omitempty"`
}

// ProductUpdateRequest carries the fields a product edit may touch.
// Stock is deliberately absent: stock changes only flow through the ledger
// or a committed sale.
type ProductUpdateRequest struct {
	Name     *string  `json:"name,omitempty"`
	SKU      *string  `json:"sku,omitempty"`
	Price    *float64 `json:"price,omitempty"`
	Category *string  `json:"category,omitempty"`
	Image    *string  `json:"image,omitempty"`
}

// CartItem is a product snapshot plus the quantity selected for an
// in-progress sale. It is never persisted on its own; committed sales embed
// the frozen snapshots in Transaction.Items.
type CartItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	SKU      string  `json:"sku"`
	Price    float64 `json:"price"`
	Category string  `json:"category"`
	Quantity int     `json:"quantity"`
}

type Transaction struct {
	ID            string     `json:"id"`
	Date          time.Time  `json:"date"`
	Subtotal      float64    `json:"subtotal"`
	TaxAmount     float64    `json:"taxAmount"`
	Total         float64    `json:"total"`
	PaymentMethod string     `json:"paymentMethod"`
	Items         []CartItem `json:"items"`
}

type StockMutation struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	ProductID   string    `json:"productId"`
	ProductName string    `json:"productName"`
	SKU         string    `json:"sku"`
	Type        string    `json:"type"`
	Amount      int       `json:"amount"`
	Note        string    `json:"note,omitempty"`
}

type AppNotification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"isRead"`
}

type StoreSettings struct {
	StoreName      string  `json:"storeName"`
	WhatsappNumber string  `json:"whatsappNumber"`
	Address        string  `json:"address"`
	CashierName    string  `json:"cashierName"`
	TaxRate        float64 `json:"taxRate"`
}

// UsageCounter tracks mutating actions for a restricted (demo) identity.
type UsageCounter struct {
	UID   string `json:"uid"`
	Count int    `json:"count"`
}

// Identity is the authenticated caller. Anonymous marks the restricted
// demo identity class subject to the usage quota and the destructive-action
// block.
type Identity struct {
	UID       string
	Name      string
	Anonymous bool
}

// BackupDocument is the import/export interchange format.
type BackupDocument struct {
	Settings       *StoreSettings  `json:"settings,omitempty"`
	Products       []Product       `json:"products,omitempty"`
	Transactions   []Transaction   `json:"transactions,omitempty"`
	StockMutations []StockMutation `json:"stockMutations,omitempty"`
	ExportDate     time.Time       `json:"exportDate"`
	Version        string          `json:"version"`
}

type CommitSaleRequest struct {
	Items         []CartItem `json:"items"`
	PaymentMethod string     `json:"paymentMethod"`
	TaxRate       float64    `json:"taxRate"`
}

type StockAdjustRequest struct {
	Amount int    `json:"amount"`
	Type   string `json:"type"`
	Note   string `json:"note"`
}

// DashboardSummary is the aggregated view backing the dashboard screen.
type DashboardSummary struct {
	Date              string    `json:"date"`
	RevenueToday      float64   `json:"revenue_today"`
	TransactionsToday int       `json:"transactions_today"`
	ProductCount      int       `json:"product_count"`
	LowStockProducts  []Product `json:"low_stock_products"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Name        string `json:"name"`
	Anonymous   bool   `json:"anonymous"`
	ExpiresAt   string `json:"expires_at"`
}

const (
	MutationIn     = "IN"
	MutationOut    = "OUT"
	MutationReturn = "RETURN"
	MutationNew    = "NEW"
	MutationDelete = "DELETE"
	MutationSale   = "SALE"
)

const (
	PaymentCash     = "CASH"
	PaymentQRIS     = "QRIS"
	PaymentTransfer = "TRANSFER"
)

const (
	SeverityInfo    = "INFO"
	SeveritySuccess = "SUCCESS"
	SeverityWarning = "WARNING"
	SeverityError   = "ERROR"
)

// DefaultSettings returns the factory configuration restored by a
// settings reset and by a full factory reset.
func DefaultSettings() StoreSettings {
	return StoreSettings{
		StoreName:      "TokoLite",
		WhatsappNumber: "6281234567890",
		Address:        "Jl. Contoh Bisnis No. 123, Jakarta",
		CashierName:    "Kasir",
		TaxRate:        0,
	}
}

// IsAdjustmentType reports whether t is valid for a direct ledger
// adjustment. NEW, DELETE and SALE entries are written only by the catalog
// and the transaction engine.
func IsAdjustmentType(t string) bool {
	return t == MutationIn || t == MutationOut || t == MutationReturn
}

func IsPaymentMethod(m string) bool {
	return m == PaymentCash || m == PaymentQRIS || m == PaymentTransfer
}
