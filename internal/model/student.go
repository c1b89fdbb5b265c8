package model

// Gender values accepted for students.
const (
	GenderMale   = "Male"
	GenderFemale = "Female"
)

// Student mirrors the `students` table.
type Student struct {
	ID          uint64 `json:"id"`           // students.id
	FullName    string `json:"full_name"`    // students.full_name
	Gender      string `json:"gender"`       // students.gender (Male|Female)
	PhoneNumber string `json:"phone_number"` // students.phone_number
}
