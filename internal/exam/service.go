// backend/internal/exam/service.go
package exam

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"exam-system/internal/extract"
	"exam-system/internal/generation"
	"exam-system/internal/lifecycle"
	"exam-system/internal/models"
	"exam-system/pkg/cache"
)

var (
	ErrTestExists      = errors.New("a test with this name already exists and is no longer editable")
	ErrNotGenerated    = errors.New("test not found or not in generated state")
	ErrInvalidWindow   = errors.New("start time must be before end time")
	ErrInvalidStudents = errors.New("some student IDs are invalid")
	ErrTestNotActive   = errors.New("test not active or time expired")
	ErrMCQNotFound     = errors.New("test or MCQ not found")
	ErrInvalidMCQ      = errors.New("invalid MCQ format")
	ErrNoChunkText     = errors.New("text chunk required and no cached document text available")
)

type Service struct {
	repo      *Repository
	cache     *cache.RedisCache
	notifier  lifecycle.Notifier
	extractor extract.Extractor
	gen       generation.Generator
	sampler   *generation.Sampler
	now       func() time.Time
}

func NewService(repo *Repository, cache *cache.RedisCache, notifier lifecycle.Notifier, extractor extract.Extractor, gen generation.Generator, sampler *generation.Sampler) *Service {
	return &Service{
		repo:      repo,
		cache:     cache,
		notifier:  notifier,
		extractor: extractor,
		gen:       gen,
		sampler:   sampler,
		now:       time.Now,
	}
}

const soloTestDuration = 30 // minutes, for a student generating their own test

type GenerateParams struct {
	DocumentPath string
	DocumentName string
	TestName     string
	Quota        map[generation.Difficulty]int
	MinRelevance float64
}

// GenerateTest runs the full pipeline: extract, chunk, sample against the
// quota, persist. A shortfall produces a warning string, not an error; a
// test that yields nothing at all fails with the sampler's terminal error.
func (s *Service) GenerateTest(ctx context.Context, callerID uint, role string, params GenerateParams) (*models.Test, string, error) {
	req := generation.Request{Quota: params.Quota, MinRelevance: params.MinRelevance}
	if err := req.Validate(); err != nil {
		return nil, "", err
	}

	text, err := s.extractor.Extract(params.DocumentPath)
	if err != nil {
		return nil, "", fmt.Errorf("text extraction failed: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.SetDocumentText(callerID, params.DocumentName, text); err != nil {
			log.Printf("Could not cache document text: %v", err)
		}
	}

	chunks := generation.SplitChunks(text, generation.DefaultChunkSize)
	result, err := s.sampler.Generate(ctx, chunks, req)
	if err != nil {
		return nil, "", err
	}

	mcqs := make([]models.MCQ, len(result.Candidates))
	for i, c := range result.Candidates {
		mcqs[i] = models.MCQ{
			Position:       i,
			Question:       c.Question,
			Options:        c.Options,
			CorrectAnswer:  c.CorrectAnswer,
			Type:           c.Type,
			Difficulty:     string(c.Difficulty),
			RelevanceScore: c.RelevanceScore,
		}
	}

	test, err := s.persistGeneratedTest(callerID, role, params, mcqs)
	if err != nil {
		return nil, "", err
	}

	warning := ""
	if short := result.Shortfall(); short > 0 {
		warning = fmt.Sprintf("Only %d questions generated. Try lowering relevance threshold or adjusting difficulty.",
			len(result.Candidates))
	}
	return test, warning, nil
}

func (s *Service) persistGeneratedTest(callerID uint, role string, params GenerateParams, mcqs []models.MCQ) (*models.Test, error) {
	existing, err := s.repo.GetTestByOwnerAndName(callerID, params.TestName)
	switch {
	case err == nil && existing.Status == models.StatusGenerated:
		if err := s.repo.ReplaceMCQs(existing.ID, mcqs); err != nil {
			return nil, err
		}
		existing.MCQs = mcqs
		s.invalidate(callerID, params.TestName)
		log.Printf("Updated existing test %s with %d MCQs", params.TestName, len(mcqs))
		return existing, nil

	case err == nil:
		return nil, ErrTestExists

	case errors.Is(err, ErrTestNotFound):
		test := &models.Test{
			OwnerID:      callerID,
			Name:         params.TestName,
			DocumentName: params.DocumentName,
			Status:       models.StatusGenerated,
			MCQs:         mcqs,
		}
		// A student generating for themselves starts taking the test right away.
		if role == models.RoleStudent {
			now := s.now()
			test.Status = models.StatusActive
			test.StartTime = &now
			test.Duration = soloTestDuration
		}
		if err := s.repo.CreateTest(test); err != nil {
			return nil, err
		}
		if role == models.RoleStudent {
			if err := s.repo.SetAssignments(test.ID, []uint{callerID}); err != nil {
				return nil, err
			}
		}
		log.Printf("Created new test %s with %d MCQs", params.TestName, len(mcqs))
		return test, nil

	default:
		return nil, err
	}
}

// getOwnedTest is the cache read-through path for owner lookups.
func (s *Service) getOwnedTest(ownerID uint, name string) (*models.Test, error) {
	if s.cache != nil {
		if test, err := s.cache.GetTest(ownerID, name); err == nil {
			return test, nil
		}
	}

	test, err := s.repo.GetTestByOwnerAndName(ownerID, name)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetTest(test); err != nil {
			log.Printf("Could not cache test %s: %v", name, err)
		}
	}
	return test, nil
}

func (s *Service) invalidate(ownerID uint, name string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateTest(ownerID, name); err != nil {
		log.Printf("Could not invalidate cached test %s: %v", name, err)
	}
}

type ReviewPage struct {
	TestName     string          `json:"test_name"`
	DocumentName string          `json:"document_name"`
	MCQs         []models.MCQDTO `json:"mcqs"`
	Total        int             `json:"total"`
	Page         int             `json:"page"`
	Pages        int             `json:"pages"`
}

func (s *Service) ReviewMCQs(ownerID uint, testName string, page, limit int) (*ReviewPage, error) {
	test, err := s.getOwnedTest(ownerID, testName)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	total := len(test.MCQs)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	mcqs := make([]models.MCQDTO, 0, end-start)
	for _, m := range test.MCQs[start:end] {
		mcqs = append(mcqs, m.ToDTO(true))
	}

	return &ReviewPage{
		TestName:     test.Name,
		DocumentName: test.DocumentName,
		MCQs:         mcqs,
		Total:        total,
		Page:         page,
		Pages:        (total + limit - 1) / limit,
	}, nil
}

// MCQInput is an owner-submitted replacement question. Fields are optional
// at decode time so structural validation can name what is missing.
type MCQInput struct {
	Question       *string  `json:"question"`
	Options        []string `json:"options"`
	CorrectAnswer  *string  `json:"correct_answer"`
	Type           *string  `json:"type"`
	Difficulty     *string  `json:"difficulty"`
	RelevanceScore *float64 `json:"relevance_score"`
}

func (in MCQInput) toCandidate() (generation.Candidate, error) {
	raw := generation.RawCandidate{
		Question:       in.Question,
		Options:        in.Options,
		CorrectAnswer:  in.CorrectAnswer,
		Type:           in.Type,
		Difficulty:     in.Difficulty,
		RelevanceScore: in.RelevanceScore,
	}
	valid, err := generation.ValidateCandidates([]generation.RawCandidate{raw})
	if err != nil {
		return generation.Candidate{}, ErrInvalidMCQ
	}
	return valid[0], nil
}

func (s *Service) UpdateMCQ(ownerID uint, testName string, index int, input MCQInput) error {
	candidate, err := input.toCandidate()
	if err != nil {
		return err
	}

	test, err := s.repo.GetTestByOwnerAndName(ownerID, testName)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(test.MCQs) {
		return ErrMCQNotFound
	}

	mcq := models.MCQ{
		Question:       candidate.Question,
		Options:        candidate.Options,
		CorrectAnswer:  candidate.CorrectAnswer,
		Type:           candidate.Type,
		Difficulty:     string(candidate.Difficulty),
		RelevanceScore: candidate.RelevanceScore,
	}
	if err := s.repo.UpdateMCQ(test.ID, index, &mcq); err != nil {
		return err
	}
	s.invalidate(ownerID, testName)
	log.Printf("Updated MCQ at index %d for test %s", index, testName)
	return nil
}

func (s *Service) DeleteMCQ(ownerID uint, testName string, index int) error {
	test, err := s.repo.GetTestByOwnerAndName(ownerID, testName)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(test.MCQs) {
		return ErrMCQNotFound
	}

	if err := s.repo.DeleteMCQ(test.ID, index); err != nil {
		return err
	}
	s.invalidate(ownerID, testName)
	log.Printf("Deleted MCQ at index %d from test %s", index, testName)
	return nil
}

// RegenerateMCQ replaces one question with a fresh candidate of the same
// difficulty. The chunk may come from the caller or from the cached
// document text.
func (s *Service) RegenerateMCQ(ctx context.Context, ownerID uint, testName string, index int, chunkText string) (*models.MCQDTO, error) {
	test, err := s.repo.GetTestByOwnerAndName(ownerID, testName)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(test.MCQs) {
		return nil, ErrMCQNotFound
	}
	original := test.MCQs[index]

	if chunkText == "" {
		chunkText, err = s.cachedChunk(ownerID, test.DocumentName)
		if err != nil {
			return nil, err
		}
	}

	raws, err := s.gen.Generate(ctx, chunkText, generation.Difficulty(original.Difficulty), 1)
	if err != nil {
		return nil, fmt.Errorf("failed to generate new MCQ: %w", err)
	}
	valid, err := generation.ValidateCandidates(raws)
	if err != nil {
		return nil, fmt.Errorf("failed to generate new MCQ: %w", err)
	}
	candidate := valid[0]

	mcq := models.MCQ{
		Question:       candidate.Question,
		Options:        candidate.Options,
		CorrectAnswer:  candidate.CorrectAnswer,
		Type:           candidate.Type,
		Difficulty:     string(candidate.Difficulty),
		RelevanceScore: candidate.RelevanceScore,
	}
	if err := s.repo.UpdateMCQ(test.ID, index, &mcq); err != nil {
		return nil, err
	}
	s.invalidate(ownerID, testName)
	log.Printf("Regenerated MCQ at index %d for test %s", index, testName)

	dto := mcq.ToDTO(true)
	dto.Position = index
	return &dto, nil
}

func (s *Service) cachedChunk(ownerID uint, documentName string) (string, error) {
	if s.cache == nil {
		return "", ErrNoChunkText
	}
	text, err := s.cache.GetDocumentText(ownerID, documentName)
	if err != nil || text == "" {
		return "", ErrNoChunkText
	}
	chunks := generation.SplitChunks(text, generation.DefaultChunkSize)
	return chunks[rand.Intn(len(chunks))], nil
}

func (s *Service) AssignTest(ownerID uint, testName string, studentIDs []uint, start, end time.Time, duration int) error {
	if !start.Before(end) {
		return ErrInvalidWindow
	}

	test, err := s.repo.GetTestByOwnerAndName(ownerID, testName)
	if err != nil {
		return err
	}

	if err := s.verifyStudents(studentIDs); err != nil {
		return err
	}
	if err := s.repo.SetAssignments(test.ID, studentIDs); err != nil {
		return err
	}
	if err := s.repo.UpdateSchedule(test.ID, start, end, duration, models.StatusAssigned); err != nil {
		return err
	}
	s.invalidate(ownerID, testName)
	log.Printf("Test %s assigned to %d students", testName, len(studentIDs))
	return nil
}

func (s *Service) verifyStudents(studentIDs []uint) error {
	if len(studentIDs) == 0 {
		return ErrInvalidStudents
	}
	students, err := s.repo.GetStudents(studentIDs)
	if err != nil {
		return err
	}
	if len(students) != len(studentIDs) {
		return ErrInvalidStudents
	}
	return nil
}

// StartTest and StopTest are the owner's explicit lifecycle actions; they
// bypass the schedule entirely.
func (s *Service) StartTest(ownerID uint, testName string) error {
	return s.setStatus(ownerID, testName, models.StatusActive)
}

func (s *Service) StopTest(ownerID uint, testName string) error {
	return s.setStatus(ownerID, testName, models.StatusStopped)
}

func (s *Service) setStatus(ownerID uint, testName string, status models.TestStatus) error {
	test, err := s.repo.GetTestByOwnerAndName(ownerID, testName)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateTestStatus(test.ID, status); err != nil {
		return err
	}
	s.invalidate(ownerID, testName)
	test.Status = status
	if s.notifier != nil {
		s.notifier.NotifyStatusChange(test, status)
	}
	log.Printf("Test %s set to %s", testName, status)
	return nil
}

// ReassignTest moves an already-assigned test to a new window and assignee
// set, keeping its duration.
func (s *Service) ReassignTest(ownerID uint, testName string, studentIDs []uint, start, end time.Time) error {
	if !start.Before(end) {
		return ErrInvalidWindow
	}

	test, err := s.repo.GetTestByOwnerAndName(ownerID, testName)
	if err != nil {
		return err
	}
	if err := s.verifyStudents(studentIDs); err != nil {
		return err
	}
	if err := s.repo.SetAssignments(test.ID, studentIDs); err != nil {
		return err
	}
	if err := s.repo.UpdateSchedule(test.ID, start, end, test.Duration, models.StatusAssigned); err != nil {
		return err
	}
	s.invalidate(ownerID, testName)
	log.Printf("Test %s reassigned", testName)
	return nil
}

// DeleteTest removes a test, allowed only before it has been assigned.
func (s *Service) DeleteTest(ownerID uint, testName string) error {
	test, err := s.repo.GetTestByOwnerAndName(ownerID, testName)
	if err != nil {
		if errors.Is(err, ErrTestNotFound) {
			return ErrNotGenerated
		}
		return err
	}
	if test.Status != models.StatusGenerated {
		return ErrNotGenerated
	}

	if err := s.repo.DeleteTest(test.ID); err != nil {
		return err
	}
	s.invalidate(ownerID, testName)
	log.Printf("Test %s deleted by user %d", testName, ownerID)
	return nil
}

// ListTests returns the caller's view of tests. A student's read passes
// through lazy reconciliation: any test whose stored status lags the clock
// is healed and persisted before the response leaves the service.
func (s *Service) ListTests(callerID uint, role string, filter TestFilter) ([]models.TestDTO, error) {
	if role == models.RoleTeacher {
		tests, err := s.repo.ListTestsByOwner(callerID, filter)
		if err != nil {
			return nil, err
		}
		dtos := make([]models.TestDTO, len(tests))
		for i, test := range tests {
			dtos[i] = test.ToDTO(true, true)
		}
		return dtos, nil
	}

	tests, err := s.repo.ListTestsForStudent(callerID, filter)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for i, target := range staleStatuses(tests, now) {
		if err := s.repo.UpdateTestStatus(tests[i].ID, target); err != nil {
			log.Printf("Failed to reconcile status of test %s: %v", tests[i].Name, err)
			continue
		}
		s.invalidate(tests[i].OwnerID, tests[i].Name)
		log.Printf("Test %s auto-set to %s", tests[i].Name, target)
		tests[i].Status = target
		if s.notifier != nil {
			s.notifier.NotifyStatusChange(&tests[i], target)
		}
	}

	dtos := make([]models.TestDTO, len(tests))
	for i, test := range tests {
		dtos[i] = test.ToDTO(false, true)
	}
	return dtos, nil
}

// staleStatuses runs the shared transition function over a read set and
// reports which entries need persisting, keyed by slice index.
func staleStatuses(tests []models.Test, now time.Time) map[int]models.TestStatus {
	stale := make(map[int]models.TestStatus)
	for i, test := range tests {
		if next := lifecycle.Next(test.Status, test.StartTime, test.EndTime, now); next != test.Status {
			stale[i] = next
		}
	}
	return stale
}

type ResultInput struct {
	Score          int `json:"score"`
	TotalQuestions int `json:"totalQuestions"`
	TimeSpent      int `json:"timeSpent"`
}

// SubmitResult records a student's submission while the test is active and
// inside its window.
func (s *Service) SubmitResult(studentID uint, testName string, input ResultInput) error {
	test, err := s.repo.GetTestForStudent(testName, studentID)
	if err != nil {
		return err
	}

	now := s.now()
	if test.Status != models.StatusActive {
		return ErrTestNotActive
	}
	if test.StartTime != nil && now.Before(*test.StartTime) {
		return ErrTestNotActive
	}
	if test.EndTime != nil && now.After(*test.EndTime) {
		return ErrTestNotActive
	}

	result := &models.TestResult{
		TestID:         test.ID,
		StudentID:      studentID,
		Score:          input.Score,
		TotalQuestions: input.TotalQuestions,
		TimeSpent:      input.TimeSpent,
		SubmittedAt:    now,
	}
	if err := s.repo.SaveResult(result); err != nil {
		return err
	}
	log.Printf("Result saved for test %s by student %d", testName, studentID)
	return nil
}

func (s *Service) Results(ownerID uint, testName string) ([]models.TestResult, error) {
	test, err := s.repo.GetTestByOwnerAndName(ownerID, testName)
	if err != nil {
		return nil, err
	}
	return s.repo.GetResults(test.ID)
}

// ExportResultsCSV renders the owner's result sheet for download.
func (s *Service) ExportResultsCSV(ownerID uint, testName string) ([]byte, error) {
	results, err := s.Results(ownerID, testName)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Student ID", "Score", "Total Questions", "Time Spent"}); err != nil {
		return nil, err
	}
	for _, result := range results {
		record := []string{
			strconv.FormatUint(uint64(result.StudentID), 10),
			strconv.Itoa(result.Score),
			strconv.Itoa(result.TotalQuestions),
			strconv.Itoa(result.TimeSpent),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Service) ListStudents() ([]models.User, error) {
	return s.repo.GetStudents(nil)
}

func (s *Service) UpdateStudent(studentID uint, name, email, password string) error {
	updates := map[string]interface{}{
		"name":  name,
		"email": email,
	}
	if password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		updates["password"] = string(hashed)
	}
	return s.repo.UpdateStudent(studentID, updates)
}

func (s *Service) DeleteStudent(studentID uint) error {
	if err := s.repo.DeleteStudent(studentID); err != nil {
		return err
	}
	log.Printf("Student %d deleted", studentID)
	return nil
}
