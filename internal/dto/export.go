package dto

import "time"

// ExportTimetableRequest selects the rendered format.
type ExportTimetableRequest struct {
	Format string `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportResult carries the signed download reference for a rendered timetable.
type ExportResult struct {
	ExportID    string    `json:"exportId"`
	Format      string    `json:"format"`
	Token       string    `json:"token"`
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
