package student

import "time"

// Student is one registry record. StudentID is the immutable primary key.
type Student struct {
	StudentID    string    `json:"student_id"`
	Name         string    `json:"name"`
	ProfileImage string    `json:"profile_image"`
	QRCode       string    `json:"qr_code"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Update carries the mutable fields of a record. Nil fields are left
// unchanged.
type Update struct {
	Name         *string `json:"name,omitempty"`
	ProfileImage *string `json:"profile_image,omitempty"`
	QRCode       *string `json:"qr_code,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u Update) IsEmpty() bool {
	return u.Name == nil && u.ProfileImage == nil && u.QRCode == nil
}

// Apply copies the set fields of u onto s.
func (u Update) Apply(s *Student) {
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.ProfileImage != nil {
		s.ProfileImage = *u.ProfileImage
	}
	if u.QRCode != nil {
		s.QRCode = *u.QRCode
	}
}

// Operation names used for logging and telemetry.
const (
	OpCreate = "create"
	OpGet    = "get"
	OpList   = "list"
	OpUpdate = "update"
	OpDelete = "delete"
)
