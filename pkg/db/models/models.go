package models

import (
	"gorm.io/gorm"
)

// EventCheckPoint stores the highest fully relayed block number per
// chain and event, so a restarted relayer resumes scanning where the
// last completed batch ended.
type EventCheckPoint struct {
	gorm.Model
	ChainName   string `gorm:"uniqueIndex:idx_chain_event;type:varchar(255)"`
	EventName   string `gorm:"uniqueIndex:idx_chain_event;type:varchar(255)"`
	BlockNumber uint64 `gorm:"type:bigint"`
}
