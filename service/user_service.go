package service

import (
	"errors"

	"gorm.io/gorm"

	"github.com/abeme/go_chat_api/entity"
)

var ErrUserNotFound = errors.New("user not found")

// UserService abstracts identity storage.
type UserService interface {
	// Upsert returns the stored identity for linkedinID, creating it from
	// the profile fields if it does not exist. An existing record wins;
	// identities are never mutated after creation.
	Upsert(linkedinID, name, email string) (*entity.User, error)
	GetByID(linkedinID string) (*entity.User, error)
}

type DBUserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *DBUserService {
	return &DBUserService{db: db}
}

func (s *DBUserService) Upsert(linkedinID, name, email string) (*entity.User, error) {
	var u entity.User
	err := s.db.Where("linkedin_id = ?", linkedinID).First(&u).Error
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	u = entity.User{LinkedInID: linkedinID, Name: name, Email: email}
	if err := s.db.Create(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *DBUserService) GetByID(linkedinID string) (*entity.User, error) {
	var u entity.User
	if err := s.db.Where("linkedin_id = ?", linkedinID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}
