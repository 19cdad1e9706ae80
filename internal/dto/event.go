package dto

import (
	"strconv"
	"strings"
)

// FlexBool accepts JSON booleans as well as the "true"/"false" strings that
// multipart forms submit.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	parsed, err := ParseFlexBool(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*b = FlexBool(parsed)
	return nil
}

// UnmarshalText lets form binding populate the value.
func (b *FlexBool) UnmarshalText(text []byte) error {
	parsed, err := ParseFlexBool(string(text))
	if err != nil {
		return err
	}
	*b = FlexBool(parsed)
	return nil
}

// ParseFlexBool treats an empty value as false.
func ParseFlexBool(raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return false, nil
	}
	return strconv.ParseBool(strings.ToLower(raw))
}

// CreateEventRequest is the payload for creating an event. Image bytes arrive
// separately as a multipart file.
type CreateEventRequest struct {
	Title              string    `form:"title" json:"title" validate:"required,max=200"`
	Description        string    `form:"description" json:"description" validate:"max=5000"`
	Venue              string    `form:"venue" json:"venue" validate:"required,max=200"`
	Date               string    `form:"date" json:"date" validate:"required"`
	Time               string    `form:"time" json:"time"`
	RequiresAttendance *FlexBool `form:"requiresAttendance" json:"requiresAttendance"`
}

// UpdateEventRequest carries a partial update; nil fields keep their stored value.
type UpdateEventRequest struct {
	Title              *string   `form:"title" json:"title" validate:"omitempty,min=1,max=200"`
	Description        *string   `form:"description" json:"description" validate:"omitempty,max=5000"`
	Venue              *string   `form:"venue" json:"venue" validate:"omitempty,min=1,max=200"`
	Date               *string   `form:"date" json:"date"`
	Time               *string   `form:"time" json:"time"`
	RequiresAttendance *FlexBool `form:"requiresAttendance" json:"requiresAttendance"`
}

// ImageUpload is an uploaded cover image.
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// EventListQuery captures listing filters.
type EventListQuery struct {
	CreatedBy string `form:"createdBy"`
	Upcoming  bool   `form:"upcoming"`
}
