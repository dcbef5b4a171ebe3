package queryclinicalrecords

type Input struct {
	PatientID string `json:"patientId"`
	Term      string `json:"term"`
	Size      int    `json:"size"`
}

type RecordHit struct {
	NoteID      string   `json:"noteId"`
	PatientID   string   `json:"patientId"`
	Summary     string   `json:"summary"`
	Diagnoses   []string `json:"diagnoses"`
	Medications []string `json:"medications"`
	Alerts      []string `json:"alerts"`
	ProcessedAt string   `json:"processedAt"`
	Score       float64  `json:"score"`
}

type Output struct {
	Records   []RecordHit `json:"records"`
	TotalHits int         `json:"totalHits"`
	Took      int         `json:"took"`
}
