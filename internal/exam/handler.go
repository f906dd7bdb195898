// backend/internal/exam/handler.go
package exam

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"exam-system/internal/generation"
	"exam-system/internal/models"
)

type Handler struct {
	service   *Service
	uploadDir string
}

func NewHandler(service *Service, uploadDir string) *Handler {
	return &Handler{service: service, uploadDir: uploadDir}
}

func caller(r *http.Request) (uint, string, bool) {
	userID, ok := r.Context().Value("user_id").(uint)
	role, ok2 := r.Context().Value("role").(string)
	return userID, role, ok && ok2
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTestNotFound), errors.Is(err, ErrMCQNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrTestNotActive):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, generation.ErrNoQuestions),
		errors.Is(err, generation.ErrNoChunks),
		errors.Is(err, ErrInvalidWindow),
		errors.Is(err, ErrInvalidStudents),
		errors.Is(err, ErrTestExists),
		errors.Is(err, ErrNotGenerated),
		errors.Is(err, ErrNoChunkText),
		errors.Is(err, ErrInvalidMCQ):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("Unexpected error: %v", err)
		http.Error(w, "An unexpected error occurred", http.StatusInternalServerError)
	}
}

// UploadDocument accepts a multipart source document and stores it for a
// later generation request.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := caller(r); !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		http.Error(w, "No document file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".pdf" && ext != ".txt" {
		http.Error(w, "Invalid file format", http.StatusBadRequest)
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		writeError(w, err)
		return
	}
	dst, err := os.CreateTemp(h.uploadDir, "doc-*"+ext)
	if err != nil {
		writeError(w, err)
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		writeError(w, err)
		return
	}

	log.Printf("Document uploaded: %s", dst.Name())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"document_path": dst.Name(),
		"document_name": header.Filename,
	})
}

type generateRequest struct {
	DocumentPath string         `json:"document_path"`
	DocumentName string         `json:"document_name"`
	TestName     string         `json:"test_name"`
	Difficulty   map[string]int `json:"difficulty"`
	MinRelevance *float64       `json:"min_relevance"`
}

func (h *Handler) GenerateMCQs(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := caller(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.DocumentPath == "" || req.DocumentName == "" {
		http.Error(w, "Document path and name required", http.StatusBadRequest)
		return
	}
	if req.TestName == "" {
		req.TestName = "Test_" + time.Now().Format("20060102_150405")
	}

	quota := map[generation.Difficulty]int{
		generation.DifficultyEasy:   0,
		generation.DifficultyMedium: 5,
		generation.DifficultyHard:   0,
	}
	if req.Difficulty != nil {
		quota = make(map[generation.Difficulty]int, len(req.Difficulty))
		for k, v := range req.Difficulty {
			quota[generation.Difficulty(k)] = v
		}
	}
	minRelevance := 0.5
	if req.MinRelevance != nil {
		minRelevance = *req.MinRelevance
	}

	test, warning, err := h.service.GenerateTest(r.Context(), userID, role, GenerateParams{
		DocumentPath: req.DocumentPath,
		DocumentName: req.DocumentName,
		TestName:     req.TestName,
		Quota:        quota,
		MinRelevance: minRelevance,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	mcqs := make([]models.MCQDTO, len(test.MCQs))
	for i, m := range test.MCQs {
		mcqs[i] = m.ToDTO(true)
	}
	resp := map[string]interface{}{
		"success":       true,
		"mcqs":          mcqs,
		"test_name":     test.Name,
		"document_name": test.DocumentName,
	}
	if warning != "" {
		resp["warning"] = warning
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ReviewMCQs(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	testName := r.URL.Query().Get("test_name")
	if testName == "" {
		http.Error(w, "Test name required", http.StatusBadRequest)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	review, err := h.service.ReviewMCQs(userID, testName, page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

type updateMCQRequest struct {
	TestName   string    `json:"test_name"`
	MCQIndex   *int      `json:"mcq_index"`
	UpdatedMCQ *MCQInput `json:"updated_mcq"`
}

func (h *Handler) UpdateMCQ(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req updateMCQRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.TestName == "" || req.MCQIndex == nil || req.UpdatedMCQ == nil {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateMCQ(userID, req.TestName, *req.MCQIndex, *req.UpdatedMCQ); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "MCQ updated successfully"})
}

func (h *Handler) DeleteMCQ(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	testName := r.URL.Query().Get("test_name")
	indexParam := r.URL.Query().Get("mcq_index")
	if testName == "" || indexParam == "" {
		http.Error(w, "Test name and MCQ index required", http.StatusBadRequest)
		return
	}
	index, err := strconv.Atoi(indexParam)
	if err != nil {
		http.Error(w, "Invalid MCQ index", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteMCQ(userID, testName, index); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "MCQ deleted successfully"})
}

type regenerateRequest struct {
	TestName  string `json:"test_name"`
	MCQIndex  *int   `json:"mcq_index"`
	TextChunk string `json:"text_chunk"`
}

func (h *Handler) RegenerateMCQ(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req regenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.TestName == "" || req.MCQIndex == nil {
		http.Error(w, "Test name and MCQ index required", http.StatusBadRequest)
		return
	}

	mcq, err := h.service.RegenerateMCQ(r.Context(), userID, req.TestName, *req.MCQIndex, req.TextChunk)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "MCQ regenerated successfully",
		"new_mcq": mcq,
	})
}

type assignRequest struct {
	TestName   string `json:"test_name"`
	StudentIDs []uint `json:"student_ids"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Duration   int    `json:"duration"`
}

func parseWindow(startParam, endParam string) (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, startParam)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date/time format (e.g., 2025-04-15T10:00:00Z)")
	}
	end, err := time.Parse(time.RFC3339, endParam)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date/time format (e.g., 2025-04-15T10:00:00Z)")
	}
	return start, end, nil
}

func (h *Handler) AssignTest(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := caller(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if role != models.RoleTeacher {
		http.Error(w, "Only teachers can assign tests", http.StatusForbidden)
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.TestName == "" || len(req.StudentIDs) == 0 || req.StartTime == "" || req.EndTime == "" || req.Duration == 0 {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	start, end, err := parseWindow(req.StartTime, req.EndTime)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.AssignTest(userID, req.TestName, req.StudentIDs, start, end, req.Duration); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Test %s assigned successfully", req.TestName),
	})
}

type manageRequest struct {
	TestName   string `json:"test_name"`
	Action     string `json:"action"`
	StudentIDs []uint `json:"student_ids"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

func (h *Handler) ManageTest(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := caller(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if role != models.RoleTeacher {
		http.Error(w, "Only teachers can manage tests", http.StatusForbidden)
		return
	}

	var req manageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.TestName == "" || req.Action == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	switch req.Action {
	case "start":
		if err := h.service.StartTest(userID, req.TestName); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Test started"})
	case "stop":
		if err := h.service.StopTest(userID, req.TestName); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Test stopped"})
	case "reassign":
		if len(req.StudentIDs) == 0 || req.StartTime == "" || req.EndTime == "" {
			http.Error(w, "Missing fields for reassign", http.StatusBadRequest)
			return
		}
		start, end, err := parseWindow(req.StartTime, req.EndTime)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.service.ReassignTest(userID, req.TestName, req.StudentIDs, start, end); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Test reassigned"})
	default:
		http.Error(w, "Invalid action", http.StatusBadRequest)
	}
}

func (h *Handler) DeleteTest(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := caller(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if role != models.RoleTeacher {
		http.Error(w, "Only teachers can delete tests", http.StatusForbidden)
		return
	}

	var req struct {
		TestName string `json:"test_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TestName == "" {
		http.Error(w, "Test name required", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteTest(userID, req.TestName); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Test deleted successfully",
	})
}

func (h *Handler) UserTests(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := caller(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	filter := TestFilter{
		DocumentName: r.URL.Query().Get("document_name"),
		TestName:     r.URL.Query().Get("test_name"),
	}
	tests, err := h.service.ListTests(userID, role, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	log.Printf("Retrieved %d tests for user %d", len(tests), userID)
	writeJSON(w, http.StatusOK, tests)
}

type submitResultRequest struct {
	TestName string       `json:"test_name"`
	Result   *ResultInput `json:"result"`
}

func (h *Handler) SaveTestResult(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := caller(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if role != models.RoleStudent {
		http.Error(w, "Only students can submit results", http.StatusForbidden)
		return
	}

	var req submitResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.TestName == "" || req.Result == nil {
		http.Error(w, "Missing test_name or result", http.StatusBadRequest)
		return
	}

	if err := h.service.SubmitResult(userID, req.TestName, *req.Result); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Test result saved"})
}

func (h *Handler) StudentResults(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := caller(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if role != models.RoleTeacher {
		http.Error(w, "Only teachers can view results", http.StatusForbidden)
		return
	}

	testName := r.URL.Query().Get("test_name")
	if testName == "" {
		http.Error(w, "Test name required", http.StatusBadRequest)
		return
	}

	results, err := h.service.Results(userID, testName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"test_name": testName,
		"results":   results,
	})
}

func (h *Handler) ExportResults(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := caller(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if role != models.RoleTeacher {
		http.Error(w, "Only teachers can export results", http.StatusForbidden)
		return
	}

	testName := r.URL.Query().Get("test_name")
	if testName == "" {
		http.Error(w, "Test name required", http.StatusBadRequest)
		return
	}

	data, err := h.service.ExportResultsCSV(userID, testName)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_results.csv"`, testName))
	w.Write(data)
}

func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	_, role, ok := caller(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if role != models.RoleTeacher {
		http.Error(w, "Only teachers can view students", http.StatusForbidden)
		return
	}

	students, err := h.service.ListStudents()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

type updateStudentRequest struct {
	StudentID uint   `json:"student_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	_, role, ok := caller(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if role != models.RoleTeacher {
		http.Error(w, "Only teachers can update students", http.StatusForbidden)
		return
	}

	var req updateStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.StudentID == 0 || req.Name == "" || req.Email == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateStudent(req.StudentID, req.Name, req.Email, req.Password); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Student updated successfully"})
}

func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	_, role, ok := caller(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if role != models.RoleTeacher {
		http.Error(w, "Only teachers can delete students", http.StatusForbidden)
		return
	}

	studentIDParam := r.URL.Query().Get("student_id")
	if studentIDParam == "" {
		http.Error(w, "Student ID required", http.StatusBadRequest)
		return
	}
	studentID, err := strconv.ParseUint(studentIDParam, 10, 32)
	if err != nil {
		http.Error(w, "Invalid student ID format", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteStudent(uint(studentID)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Student deleted successfully"})
}
