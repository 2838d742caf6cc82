package model

type Doctor struct {
	ID        int64  `json:"id" db:"id"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Specialty string `json:"specialty" db:"specialty"`
}

type CreateDoctorRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Specialty string `json:"specialty" binding:"required"`
}

type UpdateDoctorRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Specialty *string `json:"specialty"`
}

type DoctorPatch struct {
	FirstName *string
	LastName  *string
	Specialty *string
}

func (p DoctorPatch) IsEmpty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Specialty == nil
}
