package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	ROLE_USER       = "user"
	ROLE_ADMIN      = "admin"
	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

// User is owned by the account flows (registration, verification). The
// payment core only reads id, email, role and status.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Email     string         `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Password  string         `gorm:"type:text" json:"-" validate:"required,min=6"`
	Role      string         `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	Status    string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

func (u *User) IsAdmin() bool {
	return u.Role == ROLE_ADMIN
}

// CreateUser builds a validated user with a hashed password. Admins are
// created active, customers stay inactive until they verify their email.
func CreateUser(name, email, password, role string) (*User, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	status := STATUS_INACTIVE
	if role == ROLE_ADMIN {
		status = STATUS_ACTIVE
	}

	u := &User{
		Name:     name,
		Email:    email,
		Password: pw,
		Role:     role,
		Status:   status,
	}

	// validate against the plain password length, the hash is always long enough
	check := *u
	check.Password = password
	if err := check.Validate(); err != nil {
		return nil, err
	}

	return u, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
