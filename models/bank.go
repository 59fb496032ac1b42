package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/stoagroup/leasing_backend/config"
	"bitbucket.org/stoagroup/leasing_backend/utils"
)

type Bank struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"index;size:100;not null;unique" json:"name" binding:"required"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Address   string    `gorm:"type:text" json:"address"`
	City      string    `gorm:"size:100" json:"city"`
	State     string    `gorm:"size:50" json:"state"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBank struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
}

func (input *NewBank) validate(ctx context.Context, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Bank](ctx, id); err != nil {
			return err
		}
	}
	// name
	if err := utils.ValidateUnique[Bank](ctx, "name", input.Name, id); err != nil {
		return err
	}
	// phone
	if len(strings.TrimSpace(input.Phone)) > 0 {
		if err := utils.ValidateUnique[Bank](ctx, "phone", input.Phone, id); err != nil {
			return err
		}
	}
	return nil
}

func CreateBank(ctx context.Context, input *NewBank) (*Bank, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	bank := Bank{
		Name:     input.Name,
		Phone:    input.Phone,
		Address:  input.Address,
		City:     input.City,
		State:    input.State,
		IsActive: utils.NewTrue(),
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&bank).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Bank](); err != nil {
		return nil, err
	}

	return &bank, nil
}

func UpdateBank(ctx context.Context, id int, input *NewBank) (*Bank, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	bank, err := utils.FetchModel[Bank](ctx, id)
	if err != nil {
		return nil, err
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&bank).Updates(map[string]interface{}{
		"Name":    input.Name,
		"Phone":   input.Phone,
		"Address": input.Address,
		"City":    input.City,
		"State":   input.State,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Bank](); err != nil {
		return nil, err
	}

	return bank, nil
}

func DeleteBank(ctx context.Context, id int) (*Bank, error) {

	result, err := utils.FetchModel[Bank](ctx, id)
	if err != nil {
		return nil, err
	}

	// check if the bank is used
	count, err := utils.ResourceCountWhere[Loan](ctx, "bank_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("bank has loans")
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Delete(&result).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Bank](); err != nil {
		return nil, err
	}

	return result, nil
}

func GetBank(ctx context.Context, id int) (*Bank, error) {
	return utils.FetchModel[Bank](ctx, id)
}

func GetBanks(ctx context.Context) ([]*Bank, error) {

	cached, err := utils.RetrieveRedisList[Bank]()
	if err == nil && cached != nil {
		return cached, nil
	}

	db := config.GetDB()
	var results []*Bank

	// db query
	err = db.WithContext(ctx).Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	if err := utils.StoreRedisList[Bank](results); err != nil {
		return nil, err
	}
	return results, nil
}
