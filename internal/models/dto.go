// backend/internal/models/dto.go
package models

import "time"

type MCQDTO struct {
	Position       int      `json:"position"`
	Question       string   `json:"question"`
	Options        []string `json:"options"`
	CorrectAnswer  string   `json:"correct_answer,omitempty"` // Only for the owner
	Type           string   `json:"type"`
	Difficulty     string   `json:"difficulty"`
	RelevanceScore float64  `json:"relevance_score"`
}

type TestDTO struct {
	TestName     string     `json:"test_name"`
	DocumentName string     `json:"document_name"`
	Status       TestStatus `json:"status"`
	StartTime    *time.Time `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	Duration     int        `json:"duration"`
	AssignedTo   []uint     `json:"assigned_to"`
	MCQs         []MCQDTO   `json:"mcqs,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (m MCQ) ToDTO(isOwner bool) MCQDTO {
	dto := MCQDTO{
		Position:       m.Position,
		Question:       m.Question,
		Options:        []string(m.Options),
		Type:           m.Type,
		Difficulty:     m.Difficulty,
		RelevanceScore: m.RelevanceScore,
	}
	if isOwner {
		dto.CorrectAnswer = m.CorrectAnswer
	}
	return dto
}

func (t Test) ToDTO(isOwner bool, withMCQs bool) TestDTO {
	assigned := make([]uint, len(t.Assignments))
	for i, a := range t.Assignments {
		assigned[i] = a.StudentID
	}

	dto := TestDTO{
		TestName:     t.Name,
		DocumentName: t.DocumentName,
		Status:       t.Status,
		StartTime:    t.StartTime,
		EndTime:      t.EndTime,
		Duration:     t.Duration,
		AssignedTo:   assigned,
		CreatedAt:    t.CreatedAt,
	}
	if withMCQs {
		dto.MCQs = make([]MCQDTO, len(t.MCQs))
		for i, m := range t.MCQs {
			dto.MCQs[i] = m.ToDTO(isOwner)
		}
	}
	return dto
}
