package model

import "time"

// Gender values accepted on a profile.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// Profile is a member's matrimonial profile.
type Profile struct {
	UserID       int64      `json:"user_id"`
	DisplayName  string     `json:"display_name"`
	Gender       string     `json:"gender,omitempty"`
	DateOfBirth  *time.Time `json:"date_of_birth,omitempty"`
	City         string     `json:"city,omitempty"`
	Religion     string     `json:"religion,omitempty"`
	MotherTongue string     `json:"mother_tongue,omitempty"`
	Education    string     `json:"education,omitempty"`
	Profession   string     `json:"profession,omitempty"`
	Bio          string     `json:"bio,omitempty"`
	Interests    []string   `json:"interests"`
	Languages    []string   `json:"languages"`
	Photos       []Photo    `json:"photos"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Age returns the age in whole years at the given time, or 0 if the date of birth is unknown.
func (p Profile) Age(now time.Time) int {
	if p.DateOfBirth == nil {
		return 0
	}
	dob := *p.DateOfBirth
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// ProfileUpdateRequest is a partial update; nil fields are left unchanged.
type ProfileUpdateRequest struct {
	DisplayName  *string   `json:"display_name,omitempty"`
	Gender       *string   `json:"gender,omitempty"`
	DateOfBirth  *string   `json:"date_of_birth,omitempty"` // YYYY-MM-DD
	City         *string   `json:"city,omitempty"`
	Religion     *string   `json:"religion,omitempty"`
	MotherTongue *string   `json:"mother_tongue,omitempty"`
	Education    *string   `json:"education,omitempty"`
	Profession   *string   `json:"profession,omitempty"`
	Bio          *string   `json:"bio,omitempty"`
	Interests    *[]string `json:"interests,omitempty"`
	Languages    *[]string `json:"languages,omitempty"`
}

// Photo is an uploaded profile picture.
type Photo struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"-"`
	Filename  string    `json:"-"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// ProfileCard is the compact profile shown in discovery, shortlist and match lists.
type ProfileCard struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	Age         int    `json:"age,omitempty"`
	City        string `json:"city,omitempty"`
	Profession  string `json:"profession,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// CardRecord is the database row behind a ProfileCard.
type CardRecord struct {
	UserID        int64
	DisplayName   string
	DateOfBirth   *time.Time
	City          string
	Profession    string
	PhotoFilename string
	// At is the swipe, match or shortlist time, depending on the query.
	At time.Time
}
