package payload

import (
	"github.com/jellydator/validation"
	"github.com/jellydator/validation/is"
)

// Lengths count characters (runes), not bytes.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MaxEmailLength    = 100
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.RuneLength(MinUsernameLength, MaxUsernameLength)),
		validation.Field(&r.Email, validation.Required, is.EmailFormat, validation.RuneLength(0, MaxEmailLength)),
		validation.Field(&r.Password, validation.Required, validation.RuneLength(MinPasswordLength, MaxPasswordLength)),
	)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.RuneLength(MinUsernameLength, MaxUsernameLength)),
		validation.Field(&r.Password, validation.Required, validation.RuneLength(MinPasswordLength, MaxPasswordLength)),
	)
}
