package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type credentialRecord struct {
	bun.BaseModel `bun:"table:square_credentials,alias:sqc"`

	ID                string     `bun:"id,pk"`
	TenantID          string     `bun:"tenant_id,notnull,unique"`
	ApplicationID     string     `bun:"application_id,notnull"`
	ApplicationSecret string     `bun:"application_secret,notnull"`
	EncryptedTokens   []byte     `bun:"encrypted_tokens"`
	HasTokens         bool       `bun:"has_tokens,notnull"`
	TokenExpiresAt    *time.Time `bun:"token_expires_at,nullzero"`
	UseSandbox        bool       `bun:"use_sandbox,notnull"`
	LocationID        string     `bun:"location_id"`
	CreatedAt         time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type submissionRecord struct {
	bun.BaseModel `bun:"table:square_submissions,alias:sqs"`

	ID              string    `bun:"id,pk"`
	TenantID        string    `bun:"tenant_id,notnull"`
	OrderID         string    `bun:"order_id,notnull"`
	ExternalOrderID string    `bun:"external_order_id"`
	PaymentID       string    `bun:"payment_id"`
	Status          string    `bun:"status,notnull"`
	LastError       string    `bun:"last_error"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
