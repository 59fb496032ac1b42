package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/stoagroup/leasing_backend/config"
	"bitbucket.org/stoagroup/leasing_backend/utils"
	"github.com/shopspring/decimal"
)

type Loan struct {
	ID           int                 `gorm:"primary_key" json:"id"`
	ProjectId    int                 `gorm:"index;not null" json:"project_id"`
	BankId       int                 `gorm:"index;not null" json:"bank_id"`
	Name         string              `gorm:"size:100;not null" json:"name" binding:"required"`
	Principal    decimal.Decimal     `gorm:"type:decimal(14,2);not null" json:"principal"`
	Rate         decimal.NullDecimal `gorm:"type:decimal(8,4)" json:"rate"`
	ClosingDate  *time.Time          `json:"closing_date"`
	MaturityDate *time.Time          `json:"maturity_date"`
	IsActive     *bool               `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
	Project      *Project            `json:"project,omitempty"`
	Bank         *Bank               `json:"bank,omitempty"`
}

type NewLoan struct {
	ProjectId    int                 `json:"project_id" binding:"required"`
	BankId       int                 `json:"bank_id" binding:"required"`
	Name         string              `json:"name" binding:"required"`
	Principal    decimal.Decimal     `json:"principal" binding:"required"`
	Rate         decimal.NullDecimal `json:"rate"`
	ClosingDate  *time.Time          `json:"closing_date"`
	MaturityDate *time.Time          `json:"maturity_date"`
}

func (input *NewLoan) validate(ctx context.Context, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Loan](ctx, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateResourceId[Project](ctx, input.ProjectId); err != nil {
		return errors.New("project not found")
	}
	if err := utils.ValidateResourceId[Bank](ctx, input.BankId); err != nil {
		return errors.New("bank not found")
	}
	if input.Principal.IsNegative() || input.Principal.IsZero() {
		return errors.New("principal must be positive")
	}
	return nil
}

func CreateLoan(ctx context.Context, input *NewLoan) (*Loan, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	loan := Loan{
		ProjectId:    input.ProjectId,
		BankId:       input.BankId,
		Name:         input.Name,
		Principal:    input.Principal,
		Rate:         input.Rate,
		ClosingDate:  input.ClosingDate,
		MaturityDate: input.MaturityDate,
		IsActive:     utils.NewTrue(),
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&loan).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Loan](); err != nil {
		return nil, err
	}

	return &loan, nil
}

func UpdateLoan(ctx context.Context, id int, input *NewLoan) (*Loan, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	loan, err := utils.FetchModel[Loan](ctx, id)
	if err != nil {
		return nil, err
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&loan).Updates(map[string]interface{}{
		"ProjectId":    input.ProjectId,
		"BankId":       input.BankId,
		"Name":         input.Name,
		"Principal":    input.Principal,
		"Rate":         input.Rate,
		"ClosingDate":  input.ClosingDate,
		"MaturityDate": input.MaturityDate,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Loan](); err != nil {
		return nil, err
	}

	return loan, nil
}

func DeleteLoan(ctx context.Context, id int) (*Loan, error) {

	result, err := utils.FetchModel[Loan](ctx, id)
	if err != nil {
		return nil, err
	}

	// check if the loan is used
	count, err := utils.ResourceCountWhere[Covenant](ctx, "loan_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("loan has covenants")
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Delete(&result).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Loan](); err != nil {
		return nil, err
	}

	return result, nil
}

func GetLoan(ctx context.Context, id int) (*Loan, error) {
	return utils.FetchModel[Loan](ctx, id, "Project", "Bank")
}

func GetLoans(ctx context.Context, projectId *int) ([]*Loan, error) {

	db := config.GetDB()
	var results []*Loan

	dbCtx := db.WithContext(ctx).Preload("Project").Preload("Bank")
	if projectId != nil && *projectId > 0 {
		dbCtx = dbCtx.Where("project_id = ?", *projectId)
	}
	// db query
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
