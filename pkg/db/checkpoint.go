package db

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/briansoule/poa-bridge/pkg/db/models"
)

// GetCheckpoint returns the stored scan watermark for (chainName,
// eventName), or defaultBlock when none has been persisted yet.
func (da *DatabaseAdapter) GetCheckpoint(chainName, eventName string, defaultBlock uint64) (uint64, error) {
	var checkpoint models.EventCheckPoint
	err := da.PostgresClient.
		Where("chain_name = ? AND event_name = ?", chainName, eventName).
		First(&checkpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaultBlock, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load checkpoint for %s/%s: %w", chainName, eventName, err)
	}
	return checkpoint.BlockNumber, nil
}

// UpdateCheckpoint upserts the scan watermark after a relay batch
// completed.
func (da *DatabaseAdapter) UpdateCheckpoint(chainName, eventName string, blockNumber uint64) error {
	checkpoint := models.EventCheckPoint{
		ChainName:   chainName,
		EventName:   eventName,
		BlockNumber: blockNumber,
	}
	err := da.PostgresClient.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chain_name"}, {Name: "event_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"block_number", "updated_at"}),
	}).Create(&checkpoint).Error
	if err != nil {
		return fmt.Errorf("failed to update checkpoint for %s/%s: %w", chainName, eventName, err)
	}
	return nil
}
