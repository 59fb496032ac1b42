package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/stoagroup/leasing_backend/config"
	"bitbucket.org/stoagroup/leasing_backend/utils"
)

// Person is a contact tied to a bank or a project (lender officer,
// property manager, guarantor).
type Person struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	Title     string    `gorm:"size:100" json:"title"`
	Email     *string   `gorm:"size:100;unique" json:"email"`
	Phone     string    `gorm:"size:20" json:"phone"`
	BankId    *int      `gorm:"index" json:"bank_id"`
	ProjectId *int      `gorm:"index" json:"project_id"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPerson struct {
	Name      string `json:"name" binding:"required"`
	Title     string `json:"title"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	BankId    *int   `json:"bank_id"`
	ProjectId *int   `json:"project_id"`
}

func (input *NewPerson) validate(ctx context.Context, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Person](ctx, id); err != nil {
			return err
		}
	}
	// email
	if len(strings.TrimSpace(input.Email)) > 0 {
		if !utils.IsValidEmail(input.Email) {
			return errors.New("invalid email")
		}
		if err := utils.ValidateUnique[Person](ctx, "email", input.Email, id); err != nil {
			return err
		}
	}
	if input.BankId != nil {
		if err := utils.ValidateResourceId[Bank](ctx, *input.BankId); err != nil {
			return errors.New("bank not found")
		}
	}
	if input.ProjectId != nil {
		if err := utils.ValidateResourceId[Project](ctx, *input.ProjectId); err != nil {
			return errors.New("project not found")
		}
	}
	return nil
}

func CreatePerson(ctx context.Context, input *NewPerson) (*Person, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	person := Person{
		Name:      input.Name,
		Title:     input.Title,
		Email:     utils.NilIfEmpty(input.Email),
		Phone:     input.Phone,
		BankId:    input.BankId,
		ProjectId: input.ProjectId,
		IsActive:  utils.NewTrue(),
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&person).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Person](); err != nil {
		return nil, err
	}

	return &person, nil
}

func UpdatePerson(ctx context.Context, id int, input *NewPerson) (*Person, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	person, err := utils.FetchModel[Person](ctx, id)
	if err != nil {
		return nil, err
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&person).Updates(map[string]interface{}{
		"Name":      input.Name,
		"Title":     input.Title,
		"Email":     utils.NilIfEmpty(input.Email),
		"Phone":     input.Phone,
		"BankId":    input.BankId,
		"ProjectId": input.ProjectId,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Person](); err != nil {
		return nil, err
	}

	return person, nil
}

func DeletePerson(ctx context.Context, id int) (*Person, error) {

	result, err := utils.FetchModel[Person](ctx, id)
	if err != nil {
		return nil, err
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Delete(&result).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Person](); err != nil {
		return nil, err
	}

	return result, nil
}

func GetPerson(ctx context.Context, id int) (*Person, error) {
	return utils.FetchModel[Person](ctx, id)
}

func GetPersons(ctx context.Context) ([]*Person, error) {

	cached, err := utils.RetrieveRedisList[Person]()
	if err == nil && cached != nil {
		return cached, nil
	}

	db := config.GetDB()
	var results []*Person

	// db query
	err = db.WithContext(ctx).Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	if err := utils.StoreRedisList[Person](results); err != nil {
		return nil, err
	}
	return results, nil
}
