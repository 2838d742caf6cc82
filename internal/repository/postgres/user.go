package postgres

import (
	"context"

	"github.com/jwalitptl/appointments-api/internal/model"
)

const userColumns = `id, username, password_hash, first_name, paternal_surname, maternal_surname,
	email, phone, address, birth_date, gender, role, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			username, password_hash, first_name, paternal_surname, maternal_surname,
			email, phone, address, birth_date, gender, role
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`
	if user.Role == "" {
		user.Role = model.RolePatient
	}

	err := r.conn(ctx).QueryRowxContext(ctx, query,
		user.Username,
		user.PasswordHash,
		user.FirstName,
		user.PaternalSurname,
		user.MaternalSurname,
		user.Email,
		user.Phone,
		user.Address,
		user.BirthDate,
		user.Gender,
		user.Role,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return wrap("create user", err)
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user model.User
	if err := r.conn(ctx).GetContext(ctx, &user, query, id); err != nil {
		return nil, wrap("get user", err)
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	var user model.User
	if err := r.conn(ctx).GetContext(ctx, &user, query, username); err != nil {
		return nil, wrap("get user by username", err)
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`

	users := []*model.User{}
	if err := r.conn(ctx).SelectContext(ctx, &users, query); err != nil {
		return nil, wrap("list users", err)
	}
	return users, nil
}

func (r *userRepository) Update(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error) {
	var b updateBuilder
	if patch.Username != nil {
		b.set("username", *patch.Username)
	}
	if patch.PasswordHash != nil {
		b.set("password_hash", *patch.PasswordHash)
	}
	if patch.FirstName != nil {
		b.set("first_name", *patch.FirstName)
	}
	if patch.PaternalSurname != nil {
		b.set("paternal_surname", *patch.PaternalSurname)
	}
	if patch.MaternalSurname != nil {
		b.set("maternal_surname", *patch.MaternalSurname)
	}
	if patch.Email != nil {
		b.set("email", *patch.Email)
	}
	if patch.Phone != nil {
		b.set("phone", *patch.Phone)
	}
	if patch.Address != nil {
		b.set("address", *patch.Address)
	}
	if patch.BirthDate != nil {
		b.set("birth_date", *patch.BirthDate)
	}
	if patch.Gender != nil {
		b.set("gender", *patch.Gender)
	}
	if patch.Role != nil {
		b.set("role", *patch.Role)
	}
	if b.empty() {
		return r.Get(ctx, id)
	}

	query, args := b.build("users", id, true, userColumns)
	var user model.User
	if err := r.conn(ctx).QueryRowxContext(ctx, query, args...).StructScan(&user); err != nil {
		return nil, wrap("update user", err)
	}
	return &user, nil
}
