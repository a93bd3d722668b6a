package models

import "strings"

const (
	RoomTypeLecture = "Lecture"
	RoomTypeLab     = "Lab"
)

// Classroom is a bookable room.
type Classroom struct {
	ID         string `db:"id" json:"id"`
	RoomNumber string `db:"room_number" json:"room_number"`
	RoomType   string `db:"room_type" json:"room_type"`
	Capacity   int    `db:"capacity" json:"capacity"`
}

// IsLab reports whether the room is suitable for lab blocks.
func (c Classroom) IsLab() bool {
	return strings.EqualFold(c.RoomType, RoomTypeLab) || strings.Contains(strings.ToLower(c.RoomNumber), "lab")
}
