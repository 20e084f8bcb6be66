package payload

import "github.com/jellydator/validation"

const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 10000
)

// NoteCreateRequest carries the text fields of a multipart create. A nil
// Description means the field was not sent; "" is allowed and stored as null.
type NoteCreateRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

func (r NoteCreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.RuneLength(1, MaxTitleLength)),
		validation.Field(&r.Description, validation.RuneLength(0, MaxDescriptionLength)),
	)
}

// NoteUpdateRequest fields are all optional. A present title must not be
// empty.
type NoteUpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (r NoteUpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.RuneLength(1, MaxTitleLength)),
		validation.Field(&r.Description, validation.RuneLength(0, MaxDescriptionLength)),
	)
}
