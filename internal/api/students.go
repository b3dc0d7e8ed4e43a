package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gatekeeper-core/internal/importer"
	"github.com/nerrad567/gatekeeper-core/internal/student"
)

// Confirmation messages returned by mutating endpoints.
const (
	msgStudentCreated = "student added"
	msgStudentUpdated = "student updated"
	msgStudentDeleted = "student deleted"
)

// createStudentRequest is the body of POST /students.
type createStudentRequest struct {
	StudentID    string `json:"student_id"`
	Name         string `json:"name"`
	ProfileImage string `json:"profile_image"`
	QRCode       string `json:"qr_code"`
}

// updateStudentRequest is the body of PUT /students/{id}. Omitted fields
// keep their stored value.
type updateStudentRequest struct {
	Name         *string `json:"name"`
	ProfileImage *string `json:"profile_image"`
	QRCode       *string `json:"qr_code"`
}

// MutationResponse confirms a create, update or delete.
type MutationResponse struct {
	Message   string `json:"message"`
	StudentID string `json:"student_id"`
	Name      string `json:"name,omitempty"`
}

// handleListStudents returns every record ordered by student_id.
func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := s.students.List(r.Context())
	if err != nil {
		s.logger.Error("listing students", "error", err)
		writeStudentError(w, err, "list")
		return
	}
	writeJSON(w, http.StatusOK, students)
}

// handleGetStudent returns a single record.
func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	st, err := s.students.Get(r.Context(), id)
	if err != nil {
		if !errors.Is(err, student.ErrNotFound) && !errors.Is(err, student.ErrValidation) {
			s.logger.Error("getting student", "student_id", id, "error", err)
		}
		writeStudentError(w, err, "get")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleCreateStudent stores a new record and announces it.
func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var req createStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}

	st, err := s.students.Create(r.Context(), student.Student{
		StudentID:    req.StudentID,
		Name:         req.Name,
		ProfileImage: req.ProfileImage,
		QRCode:       req.QRCode,
	})
	if err != nil {
		if errors.Is(err, student.ErrTransient) {
			s.logger.Error("creating student", "student_id", req.StudentID, "error", err)
		}
		writeStudentError(w, err, "create")
		return
	}

	writeJSON(w, http.StatusCreated, MutationResponse{
		Message:   msgStudentCreated,
		StudentID: st.StudentID,
		Name:      st.Name,
	})
}

// handleUpdateStudent applies a partial update.
func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}

	st, err := s.students.Update(r.Context(), id, student.Update{
		Name:         req.Name,
		ProfileImage: req.ProfileImage,
		QRCode:       req.QRCode,
	})
	if err != nil {
		if errors.Is(err, student.ErrTransient) {
			s.logger.Error("updating student", "student_id", id, "error", err)
		}
		writeStudentError(w, err, "update")
		return
	}

	writeJSON(w, http.StatusOK, MutationResponse{
		Message:   msgStudentUpdated,
		StudentID: st.StudentID,
		Name:      st.Name,
	})
}

// handleDeleteStudent removes a record.
func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.students.Delete(r.Context(), id); err != nil {
		if errors.Is(err, student.ErrTransient) {
			s.logger.Error("deleting student", "student_id", id, "error", err)
		}
		writeStudentError(w, err, "delete")
		return
	}

	writeJSON(w, http.StatusOK, MutationResponse{
		Message:   msgStudentDeleted,
		StudentID: id,
	})
}

// handleImportStudents loads an .xlsx workbook sent either as the "file"
// field of a multipart form or as the raw request body.
func (s *Server) handleImportStudents(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "import is not available")
		return
	}

	body, closeBody, err := importBody(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "workbook too large")
			return
		}
		writeBadRequest(w, "multipart field \"file\" is required")
		return
	}
	defer closeBody()

	res, err := s.importer.Import(r.Context(), body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "workbook too large")
		case errors.Is(err, importer.ErrInvalidWorkbook), errors.Is(err, importer.ErrNoSheets), errors.Is(err, importer.ErrTooManyRows):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Error("importing students", "error", err)
			writeInternalError(w, "failed to import students")
		}
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// importBody returns the uploaded workbook stream.
func importBody(r *http.Request) (io.Reader, func(), error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")) //nolint:errcheck // empty type means raw body
	if mediaType != "multipart/form-data" {
		return r.Body, func() {}, nil
	}

	if err := r.ParseMultipartForm(maxImportBodySize); err != nil {
		return nil, nil, err
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}
