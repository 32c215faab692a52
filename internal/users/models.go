package users

import "time"

// User is an operator account inside a company. The password hash never
// leaves this package; handlers only ever see the public fields.
type User struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`

	PasswordHash string `json:"-"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
