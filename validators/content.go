package validators

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrMissingTitle = errors.New("title is required")
	ErrBadYear      = errors.New("release year is out of range")
)

// ContentFields are the descriptive form fields shared by every
// content type.
type ContentFields struct {
	Title       string `form:"title"`
	Description string `form:"description"`
	Category    string `form:"category"`
	Genre       string `form:"genre"`
	ReleaseYear int    `form:"year"`
	Rating      string `form:"rating"`
}

// ContentValidator checks the required form fields. Runs before any
// file validation so a bad form never touches the payload.
func ContentValidator(f *ContentFields) error {
	f.Title = strings.TrimSpace(f.Title)
	if f.Title == "" {
		return ErrMissingTitle
	}

	if f.ReleaseYear != 0 && (f.ReleaseYear < 1900 || f.ReleaseYear > time.Now().Year()+1) {
		return ErrBadYear
	}

	return nil
}
