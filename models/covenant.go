package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/stoagroup/leasing_backend/config"
	"bitbucket.org/stoagroup/leasing_backend/utils"
	"github.com/shopspring/decimal"
)

// Covenant is a loan requirement tested against leasing performance,
// e.g. minimum occupancy by a date or a debt service coverage floor.
type Covenant struct {
	ID           int                 `gorm:"primary_key" json:"id"`
	LoanId       int                 `gorm:"index;not null" json:"loan_id"`
	Name         string              `gorm:"size:100;not null" json:"name" binding:"required"`
	Metric       string              `gorm:"size:50;not null" json:"metric" binding:"required"`
	Threshold    decimal.Decimal     `gorm:"type:decimal(14,4);not null" json:"threshold"`
	Direction    string              `gorm:"size:10;not null;default:'>='" json:"direction"`
	TestDate     *time.Time          `json:"test_date"`
	LastValue    decimal.NullDecimal `gorm:"type:decimal(14,4)" json:"last_value"`
	LastTestedAt *time.Time          `json:"last_tested_at"`
	IsActive     *bool               `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
	Loan         *Loan               `json:"loan,omitempty"`
}

type NewCovenant struct {
	LoanId    int             `json:"loan_id" binding:"required"`
	Name      string          `json:"name" binding:"required"`
	Metric    string          `json:"metric" binding:"required"`
	Threshold decimal.Decimal `json:"threshold" binding:"required"`
	Direction string          `json:"direction"`
	TestDate  *time.Time      `json:"test_date"`
}

func (input *NewCovenant) validate(ctx context.Context, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Covenant](ctx, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateResourceId[Loan](ctx, input.LoanId); err != nil {
		return errors.New("loan not found")
	}
	if input.Direction != "" && input.Direction != ">=" && input.Direction != "<=" {
		return errors.New("direction must be >= or <=")
	}
	return nil
}

func CreateCovenant(ctx context.Context, input *NewCovenant) (*Covenant, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	direction := input.Direction
	if direction == "" {
		direction = ">="
	}

	covenant := Covenant{
		LoanId:    input.LoanId,
		Name:      input.Name,
		Metric:    input.Metric,
		Threshold: input.Threshold,
		Direction: direction,
		TestDate:  input.TestDate,
		IsActive:  utils.NewTrue(),
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&covenant).Error
	if err != nil {
		return nil, err
	}

	return &covenant, nil
}

func UpdateCovenant(ctx context.Context, id int, input *NewCovenant) (*Covenant, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	covenant, err := utils.FetchModel[Covenant](ctx, id)
	if err != nil {
		return nil, err
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&covenant).Updates(map[string]interface{}{
		"LoanId":    input.LoanId,
		"Name":      input.Name,
		"Metric":    input.Metric,
		"Threshold": input.Threshold,
		"Direction": input.Direction,
		"TestDate":  input.TestDate,
	}).Error
	if err != nil {
		return nil, err
	}

	return covenant, nil
}

// RecordCovenantTest stores the latest observed value for the covenant
// metric. Callers decide pass/fail from Threshold and Direction.
func RecordCovenantTest(ctx context.Context, id int, value decimal.Decimal, testedAt time.Time) (*Covenant, error) {

	covenant, err := utils.FetchModel[Covenant](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&covenant).Updates(map[string]interface{}{
		"LastValue":    decimal.NullDecimal{Decimal: value, Valid: true},
		"LastTestedAt": testedAt,
	}).Error
	if err != nil {
		return nil, err
	}

	return covenant, nil
}

func DeleteCovenant(ctx context.Context, id int) (*Covenant, error) {

	result, err := utils.FetchModel[Covenant](ctx, id)
	if err != nil {
		return nil, err
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Delete(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func GetCovenant(ctx context.Context, id int) (*Covenant, error) {
	return utils.FetchModel[Covenant](ctx, id, "Loan")
}

func GetCovenants(ctx context.Context, loanId *int) ([]*Covenant, error) {

	db := config.GetDB()
	var results []*Covenant

	dbCtx := db.WithContext(ctx).Preload("Loan")
	if loanId != nil && *loanId > 0 {
		dbCtx = dbCtx.Where("loan_id = ?", *loanId)
	}
	// db query
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
