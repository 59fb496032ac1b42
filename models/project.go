package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/stoagroup/leasing_backend/config"
	"bitbucket.org/stoagroup/leasing_backend/utils"
	"github.com/shopspring/decimal"
)

// Project is a property under development or in lease-up. Its Name must
// match the property column carried by the provider datasets so the
// dashboard can join rows back to project metadata.
type Project struct {
	ID             int                 `gorm:"primary_key" json:"id"`
	Name           string              `gorm:"index;size:100;not null;unique" json:"name" binding:"required"`
	City           string              `gorm:"size:100" json:"city"`
	State          string              `gorm:"size:50" json:"state"`
	Region         string              `gorm:"size:100" json:"region"`
	UnitCount      *int                `json:"unit_count"`
	Stage          string              `gorm:"size:50" json:"stage"`
	BudgetedOcc    decimal.NullDecimal `gorm:"type:decimal(8,4)" json:"budgeted_occ"`
	StartDate      *time.Time          `json:"start_date"`
	StabilizedDate *time.Time          `json:"stabilized_date"`
	IsActive       *bool               `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProject struct {
	Name           string              `json:"name" binding:"required"`
	City           string              `json:"city"`
	State          string              `json:"state"`
	Region         string              `json:"region"`
	UnitCount      *int                `json:"unit_count"`
	Stage          string              `json:"stage"`
	BudgetedOcc    decimal.NullDecimal `json:"budgeted_occ"`
	StartDate      *time.Time          `json:"start_date"`
	StabilizedDate *time.Time          `json:"stabilized_date"`
}

// validate input for both create & update. (id = 0 for create)

func (input *NewProject) validate(ctx context.Context, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Project](ctx, id); err != nil {
			return err
		}
	}
	// name
	if err := utils.ValidateUnique[Project](ctx, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateProject(ctx context.Context, input *NewProject) (*Project, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	project := Project{
		Name:           input.Name,
		City:           input.City,
		State:          input.State,
		Region:         input.Region,
		UnitCount:      input.UnitCount,
		Stage:          input.Stage,
		BudgetedOcc:    input.BudgetedOcc,
		StartDate:      input.StartDate,
		StabilizedDate: input.StabilizedDate,
		IsActive:       utils.NewTrue(),
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&project).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Project](); err != nil {
		return nil, err
	}

	return &project, nil
}

func UpdateProject(ctx context.Context, id int, input *NewProject) (*Project, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	project, err := utils.FetchModel[Project](ctx, id)
	if err != nil {
		return nil, err
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&project).Updates(map[string]interface{}{
		"Name":           input.Name,
		"City":           input.City,
		"State":          input.State,
		"Region":         input.Region,
		"UnitCount":      input.UnitCount,
		"Stage":          input.Stage,
		"BudgetedOcc":    input.BudgetedOcc,
		"StartDate":      input.StartDate,
		"StabilizedDate": input.StabilizedDate,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Project](); err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Project](id); err != nil {
		return nil, err
	}

	return project, nil
}

func DeleteProject(ctx context.Context, id int) (*Project, error) {

	result, err := utils.FetchModel[Project](ctx, id)
	if err != nil {
		return nil, err
	}

	// check if the project is used
	db := config.GetDB()
	count, err := utils.ResourceCountWhere[Loan](ctx, "project_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("project has loans")
	}

	// db action
	err = db.WithContext(ctx).Delete(&result).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Project](); err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Project](id); err != nil {
		return nil, err
	}

	return result, nil
}

func GetProject(ctx context.Context, id int) (*Project, error) {

	cached, err := utils.RetrieveRedis[Project](id)
	if err == nil && cached != nil {
		return cached, nil
	}

	project, err := utils.FetchModel[Project](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := utils.StoreRedis[Project](project, id); err != nil {
		return nil, err
	}
	return project, nil
}

func GetProjects(ctx context.Context) ([]*Project, error) {

	cached, err := utils.RetrieveRedisList[Project]()
	if err == nil && cached != nil {
		return cached, nil
	}

	db := config.GetDB()
	var results []*Project

	// db query
	err = db.WithContext(ctx).Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	if err := utils.StoreRedisList[Project](results); err != nil {
		return nil, err
	}
	return results, nil
}
