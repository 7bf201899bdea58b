package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan is one sellable hosting plan
type Plan struct {
	ID            string
	Name          string
	Price         decimal.Decimal
	Currency      string
	HestiaPackage string
	Available     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
