package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/stoagroup/leasing_backend/config"
	"gorm.io/gorm"
)

// LeasingColumnAlias maps one canonical field of a dataset to one source header
// the provider has used for it. A canonical field usually accumulates several
// alias rows over time as the provider renames export columns. Position keeps
// registration order so resolution is deterministic (first match wins).
// Aliases are never auto-deleted.
type LeasingColumnAlias struct {
	ID             int       `gorm:"primary_key" json:"id"`
	Dataset        string    `gorm:"index:idx_alias_dataset_field;size:50;not null" json:"dataset"`
	CanonicalField string    `gorm:"index:idx_alias_dataset_field;size:100;not null" json:"canonical_field"`
	Header         string    `gorm:"size:200;not null" json:"header"`
	Position       int       `gorm:"not null" json:"position"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (LeasingColumnAlias) TableName() string { return "leasing_column_aliases" }

func aliasCacheKey(dataset string) string {
	return "LeasingAliases:" + dataset
}

// GetColumnAliases returns the alias rows for a dataset ordered by canonical
// field then registration position, using a Redis cache when available.
func GetColumnAliases(ctx context.Context, dataset string) ([]*LeasingColumnAlias, error) {
	var aliases []*LeasingColumnAlias
	exists, err := config.GetRedisObject(aliasCacheKey(dataset), &aliases)
	if err == nil && exists {
		return aliases, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("dataset = ?", dataset).
		Order("canonical_field, position, id").
		Find(&aliases).Error; err != nil {
		return nil, err
	}
	_ = config.SetRedisObject(aliasCacheKey(dataset), &aliases, 0)
	return aliases, nil
}

// RegisterColumnAlias appends a header to a canonical field's alias set.
// Re-registering an existing (dataset, field, header) triple is a no-op.
func RegisterColumnAlias(ctx context.Context, dataset string, canonicalField string, header string) (*LeasingColumnAlias, error) {
	dataset = strings.TrimSpace(dataset)
	canonicalField = strings.TrimSpace(canonicalField)
	header = strings.TrimSpace(header)
	if dataset == "" || canonicalField == "" || header == "" {
		return nil, errors.New("dataset, canonicalField and header are required")
	}

	db := config.GetDB()

	var existing LeasingColumnAlias
	err := db.WithContext(ctx).
		Where("dataset = ? AND canonical_field = ? AND header = ?", dataset, canonicalField, header).
		Take(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var maxPos *int
	if err := db.WithContext(ctx).Model(&LeasingColumnAlias{}).
		Select("max(position)").
		Where("dataset = ? AND canonical_field = ?", dataset, canonicalField).
		Scan(&maxPos).Error; err != nil {
		return nil, err
	}
	position := 0
	if maxPos != nil {
		position = *maxPos + 1
	}

	alias := LeasingColumnAlias{
		Dataset:        dataset,
		CanonicalField: canonicalField,
		Header:         header,
		Position:       position,
	}
	if err := db.WithContext(ctx).Create(&alias).Error; err != nil {
		return nil, err
	}
	_ = config.RemoveRedisKey(aliasCacheKey(dataset))
	return &alias, nil
}

// SeedColumnAliases registers a dataset's known headers if the table carries no
// rows for it yet. Called from MigrateTable so a fresh database resolves the
// provider's current export headers out of the box.
func SeedColumnAliases(ctx context.Context, seeds map[string]map[string][]string) error {
	db := config.GetDB()
	for dataset, fields := range seeds {
		var count int64
		if err := db.WithContext(ctx).Model(&LeasingColumnAlias{}).
			Where("dataset = ?", dataset).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		for field, headers := range fields {
			for i, header := range headers {
				alias := LeasingColumnAlias{
					Dataset:        dataset,
					CanonicalField: field,
					Header:         header,
					Position:       i,
				}
				if err := db.WithContext(ctx).Create(&alias).Error; err != nil {
					return err
				}
			}
		}
		_ = config.RemoveRedisKey(aliasCacheKey(dataset))
	}
	return nil
}
