package db

import "time"

type IdentityModel struct {
	ID                string    `gorm:"type:uuid;primaryKey"`
	DisplayName       string    `gorm:"not null"`
	PublicKey         string    `gorm:"uniqueIndex;not null"`
	ExchangePublicKey string    `gorm:"not null"`
	SecretSeed        string    `gorm:"not null"`
	CreatedAt         time.Time `gorm:"not null"`

	HandleState      string `gorm:"not null;default:unclaimed"`
	Handle           *string
	ReservedAt       *time.Time
	ClaimedAt        *time.Time
	NetworkConfirmed bool `gorm:"not null;default:false"`

	BreadcrumbCount int64   `gorm:"not null;default:0"`
	TrustScore      float64 `gorm:"not null;default:0"`
}

func (IdentityModel) TableName() string {
	return "identities"
}

type BreadcrumbModel struct {
	ID             string    `gorm:"type:uuid;primaryKey"`
	IdentityID     string    `gorm:"type:uuid;index:idx_breadcrumbs_identity_seq;not null"`
	CellIndex      string    `gorm:"index;not null"`
	CellResolution uint8     `gorm:"not null"`
	Timestamp      time.Time `gorm:"not null"`
	PrevHash       *string
	Hash           string `gorm:"uniqueIndex;not null"`
	Signature      string `gorm:"not null"`
	Source         string `gorm:"not null"`
	AccuracyMeters *float64
	Published      bool `gorm:"index;not null;default:false"`
	Flagged        bool `gorm:"not null;default:false"`

	// Seq is append order. Chain order is seq order, never timestamp
	// order.
	Seq int64 `gorm:"index:idx_breadcrumbs_identity_seq;autoIncrement;uniqueIndex"`
}

func (BreadcrumbModel) TableName() string {
	return "breadcrumbs"
}

type EpochModel struct {
	EpochHash     string    `gorm:"primaryKey"`
	IdentityID    string    `gorm:"type:uuid;index:idx_epochs_identity_index,unique;not null"`
	EpochIndex    uint32    `gorm:"index:idx_epochs_identity_index,unique;not null"`
	StartTime     time.Time `gorm:"not null"`
	EndTime       time.Time `gorm:"not null"`
	MerkleRoot    string    `gorm:"not null"`
	BlockCount    uint32    `gorm:"not null"`
	PrevEpochHash *string
	Signature     string    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (EpochModel) TableName() string {
	return "epochs"
}
