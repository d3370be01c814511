package store

import (
	"time"

	"gorm.io/datatypes"
)

// KVEntryModel is the GORM row behind GormStore.
type KVEntryModel struct {
	Key       string         `gorm:"primaryKey;size:191"`
	Value     datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (KVEntryModel) TableName() string {
	return "kv_entries"
}
