package model

import "time"

// Role values
const (
	RoleAdmin   = "admin"
	RolePatient = "patient"
)

// User represents a patient or an administrator
type User struct {
	Base
	Username        string  `json:"username" db:"username"`
	PasswordHash    string  `json:"-" db:"password_hash"`
	FirstName       string  `json:"first_name" db:"first_name"`
	PaternalSurname string  `json:"paternal_surname" db:"paternal_surname"`
	MaternalSurname *string `json:"maternal_surname,omitempty" db:"maternal_surname"`
	Email           string  `json:"email" db:"email"`
	Phone           string  `json:"phone" db:"phone"`
	Address         *string `json:"address,omitempty" db:"address"`
	BirthDate       *Date   `json:"birth_date,omitempty" db:"birth_date"`
	Gender          *string `json:"gender,omitempty" db:"gender"`
	Role            string  `json:"role" db:"role"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// RegisterRequest represents self-registration parameters
type RegisterRequest struct {
	Username        string  `json:"username" binding:"required,min=3,max=50"`
	Password        string  `json:"password" binding:"required,min=8"`
	FirstName       string  `json:"first_name" binding:"required"`
	PaternalSurname string  `json:"paternal_surname" binding:"required"`
	MaternalSurname *string `json:"maternal_surname"`
	Email           string  `json:"email" binding:"required,email"`
	Phone           string  `json:"phone" binding:"required"`
	Address         *string `json:"address"`
	BirthDate       *string `json:"birth_date" binding:"omitempty,date"`
	Gender          *string `json:"gender"`
	Role            string  `json:"role" binding:"omitempty,oneof=admin patient"`
}

// UpdateUserRequest represents user update parameters. Empty strings are ignored.
type UpdateUserRequest struct {
	Username        *string `json:"username" binding:"omitempty,min=3,max=50"`
	Password        *string `json:"password" binding:"omitempty,min=8"`
	FirstName       *string `json:"first_name"`
	PaternalSurname *string `json:"paternal_surname"`
	MaternalSurname *string `json:"maternal_surname"`
	Email           *string `json:"email" binding:"omitempty,email"`
	Phone           *string `json:"phone"`
	Address         *string `json:"address"`
	BirthDate       *string `json:"birth_date" binding:"omitempty,date"`
	Gender          *string `json:"gender"`
	Role            *string `json:"role" binding:"omitempty,oneof=admin patient"`
}

// UserPatch enumerates the user columns an update touches
type UserPatch struct {
	Username        *string
	PasswordHash    *string
	FirstName       *string
	PaternalSurname *string
	MaternalSurname *string
	Email           *string
	Phone           *string
	Address         *string
	BirthDate       *Date
	Gender          *string
	Role            *string
}

func (p UserPatch) IsEmpty() bool {
	return p.Username == nil && p.PasswordHash == nil && p.FirstName == nil &&
		p.PaternalSurname == nil && p.MaternalSurname == nil && p.Email == nil &&
		p.Phone == nil && p.Address == nil && p.BirthDate == nil && p.Gender == nil &&
		p.Role == nil
}

// Actor is the authenticated caller of a request
type Actor struct {
	UserID   int64
	Username string
	Role     string
	IssuedAt time.Time
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
