package student

import (
	"strings"
	"unicode/utf8"
)

// Field limits, matching the column sizes in the students table.
const (
	maxIDLength     = 64
	maxNameLength   = 255
	maxQRCodeLength = 255
)

// ValidateStudent checks a record before it is created. All four fields
// are required and must contain more than whitespace.
func ValidateStudent(s *Student) error {
	if s == nil {
		return &ValidationError{Field: "student", Reason: "is required"}
	}
	if err := ValidateID(s.StudentID); err != nil {
		return err
	}
	if err := requireText("name", s.Name, maxNameLength); err != nil {
		return err
	}
	if err := requireText("profile_image", s.ProfileImage, 0); err != nil {
		return err
	}
	return requireText("qr_code", s.QRCode, maxQRCodeLength)
}

// ValidateUpdate checks a partial update. At least one field must be set,
// and every set field must be non-empty.
func ValidateUpdate(u Update) error {
	if u.IsEmpty() {
		return &ValidationError{Field: "update", Reason: "at least one of name, profile_image, qr_code is required"}
	}
	if u.Name != nil {
		if err := requireText("name", *u.Name, maxNameLength); err != nil {
			return err
		}
	}
	if u.ProfileImage != nil {
		if err := requireText("profile_image", *u.ProfileImage, 0); err != nil {
			return err
		}
	}
	if u.QRCode != nil {
		if err := requireText("qr_code", *u.QRCode, maxQRCodeLength); err != nil {
			return err
		}
	}
	return nil
}

// idReservedChars cannot appear in a student_id. The id is used as a URL
// path segment and as an MQTT topic level, where '+' and '#' are wildcards.
const idReservedChars = "/?#+\x00"

// ValidateID checks a student_id used as a lookup key.
func ValidateID(id string) error {
	if err := requireText("student_id", id, maxIDLength); err != nil {
		return err
	}
	if strings.ContainsAny(id, idReservedChars) {
		return &ValidationError{Field: "student_id", Reason: "must not contain '/', '?', '#', '+' or NUL"}
	}
	return nil
}

// requireText rejects blank values and, when max > 0, values longer than
// max characters.
func requireText(field, value string, max int) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	if max > 0 && utf8.RuneCountInString(value) > max {
		return &ValidationError{Field: field, Reason: "is too long"}
	}
	return nil
}
