// Package seed bootstraps the minimum directory rows the service needs on a
// fresh database.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	directorydomain "github.com/aulatech/cobranza/internal/directory/domain"
)

// EnsureDefaults seeds the standard charge concepts and an active school
// cycle so billing works out of the box.
func EnsureDefaults(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureConceptTx(ctx, tx, node, directorydomain.ConceptCodeTuition, "Colegiatura"); err != nil {
			return err
		}
		if err := ensureConceptTx(ctx, tx, node, directorydomain.ConceptCodeLateFee, "Recargo"); err != nil {
			return err
		}
		return ensureActiveCycleTx(ctx, tx, node)
	})
}

func ensureConceptTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, code, name string) error {
	var existing directorydomain.ChargeConcept
	res := tx.WithContext(ctx).Where("code = ?", code).Limit(1).Find(&existing)
	if res.Error != nil {
		return res.Error
	}
	if existing.ID != 0 {
		return nil
	}

	return tx.WithContext(ctx).Create(&directorydomain.ChargeConcept{
		ID:   node.Generate(),
		Code: code,
		Name: name,
	}).Error
}

func ensureActiveCycleTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&directorydomain.SchoolCycle{}).
		Where("active = ?", true).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	// school years run August through July
	now := time.Now()
	startYear := now.Year()
	if now.Month() < time.August {
		startYear--
	}
	start := time.Date(startYear, time.August, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(startYear+1, time.July, 31, 0, 0, 0, 0, time.UTC)

	return tx.WithContext(ctx).Create(&directorydomain.SchoolCycle{
		ID:        node.Generate(),
		Name:      fmt.Sprintf("%d-%d", startYear, startYear+1),
		StartDate: start,
		EndDate:   end,
		Active:    true,
	}).Error
}
