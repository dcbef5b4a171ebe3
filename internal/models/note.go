package models

import "time"

// NoteDocument is a scanned clinical document carried through process variables.
type NoteDocument struct {
	Content     string `json:"content"` // base64-encoded bytes
	ContentType string `json:"contentType"`
	Filename    string `json:"filename,omitempty"`
}

// NoteRequest is the incoming process payload. Either NoteText or Document
// must be present.
type NoteRequest struct {
	PatientID string        `json:"patientId,omitempty"`
	NoteText  string        `json:"noteText,omitempty"`
	Document  *NoteDocument `json:"document,omitempty"`
}

// NoteRecord is the persisted clinical note row.
type NoteRecord struct {
	ID        string    `json:"id" db:"id"`
	PatientID string    `json:"patientId" db:"patient_id"`
	TextHash  string    `json:"textHash" db:"text_hash"`
	Summary   string    `json:"summary" db:"summary"`
	Alerts    []Alert   `json:"alerts,omitempty" db:"alerts"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// CareContact is the notification target looked up per patient.
type CareContact struct {
	PatientID string `json:"patientId" db:"patient_id"`
	Name      string `json:"name" db:"name"`
	Email     string `json:"email" db:"email"`
	Phone     string `json:"phone,omitempty" db:"phone"`
}
