package web

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/p-n-ai/finedu/internal/app"
	"github.com/p-n-ai/finedu/internal/course"
	"github.com/p-n-ai/finedu/internal/generator"
	"github.com/p-n-ai/finedu/internal/goals"
	"github.com/p-n-ai/finedu/internal/ledger"
	"github.com/p-n-ai/finedu/internal/report"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.ready != nil {
		if err := s.ready.HealthCheck(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Snapshot())
}

func (s *Server) handleSelectCourse(w http.ResponseWriter, r *http.Request) {
	if err := s.app.SelectCourse(r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Snapshot())
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	s.app.Back()
	writeJSON(w, http.StatusOK, s.app.Snapshot())
}

type startQuizRequest struct {
	CourseID    string `json:"courseId" validate:"required"`
	LessonIndex *int   `json:"lessonIndex" validate:"required,min=0"`
}

func (s *Server) handleStartQuiz(w http.ResponseWriter, r *http.Request) {
	var req startQuizRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.app.StartQuiz(req.CourseID, *req.LessonIndex); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Snapshot())
}

type completeQuizRequest struct {
	Score *int `json:"score" validate:"required,min=0"`
	Total int  `json:"total" validate:"required,min=1"`
}

type completeQuizResponse struct {
	Completed bool `json:"completed"`
	app.QuizOutcome
}

func (s *Server) handleCompleteQuiz(w http.ResponseWriter, r *http.Request) {
	var req completeQuizRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, ok, err := s.app.CompleteQuiz(*req.Score, req.Total)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, completeQuizResponse{Completed: ok, QuizOutcome: out})
}

type addGoalRequest struct {
	Text string `json:"text" validate:"required,max=500"`
}

func (s *Server) handleAddGoal(w http.ResponseWriter, r *http.Request) {
	var req addGoalRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	g, err := s.app.AddGoal(req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

type toggleGoalResponse struct {
	Goal    goals.Goal    `json:"goal"`
	Awarded *ledger.Event `json:"awarded,omitempty"`
}

func (s *Server) handleToggleGoal(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, r, &ValidationError{Msg: "goal id must be an integer"})
		return
	}
	res, err := s.app.ToggleGoal(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleGoalResponse{Goal: res.Goal, Awarded: res.Awarded})
}

type requestCourseRequest struct {
	Topic      string `json:"topic" validate:"required,max=120"`
	Difficulty string `json:"difficulty" validate:"omitempty,oneof=beginner intermediate"`
}

func (s *Server) handleRequestCourse(w http.ResponseWriter, r *http.Request) {
	var req requestCourseRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	difficulty := course.Beginner
	if req.Difficulty != "" {
		difficulty = course.Difficulty(req.Difficulty)
	}

	c, err := s.app.RequestCourse(r.Context(), req.Topic, difficulty)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

type generateAvatarRequest struct {
	Prompt string `json:"prompt" validate:"required,max=1000"`
}

type avatarResponse struct {
	Image string `json:"image"`
}

func (s *Server) handleGenerateAvatar(w http.ResponseWriter, r *http.Request) {
	var req generateAvatarRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	img, err := s.app.GenerateAvatar(r.Context(), req.Prompt)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, avatarResponse{Image: img})
	case errors.Is(err, app.ErrEmptyText), errors.Is(err, app.ErrAvatarUnavailable):
		s.writeError(w, r, err)
	default:
		s.logger.Error("avatar request failed", "request_id", w.Header().Get(RequestIDHeader), "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: generator.AvatarFailureMessage})
	}
}

type saveAvatarRequest struct {
	Image string `json:"image" validate:"omitempty,startswith=data:image/"`
}

func (s *Server) handleSaveAvatar(w http.ResponseWriter, r *http.Request) {
	var req saveAvatarRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.app.SaveAvatar(req.Image); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAvatar serves the stored avatar as an image.
func (s *Server) handleAvatar(w http.ResponseWriter, r *http.Request) {
	dataURL := s.app.Avatar()
	if dataURL == "" {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no avatar"})
		return
	}
	mime, data, err := parseDataURL(dataURL)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("stored avatar: %w", err))
		return
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}

func parseDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, errors.New("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("data URL has no payload")
	}
	mime, enc, _ := strings.Cut(meta, ";")
	if enc != "base64" {
		return "", nil, fmt.Errorf("unsupported data URL encoding %q", enc)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decoding data URL: %w", err)
	}
	return mime, data, nil
}

type changeThemeRequest struct {
	ThemeID string `json:"themeId" validate:"required"`
}

func (s *Server) handleChangeTheme(w http.ResponseWriter, r *http.Request) {
	var req changeThemeRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.app.ChangeTheme(req.ThemeID) {
		s.writeError(w, r, &ValidationError{Msg: fmt.Sprintf("unknown theme %q", req.ThemeID)})
		return
	}
	writeJSON(w, http.StatusOK, s.app.Snapshot())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	events, days := s.app.Points()

	var buf bytes.Buffer
	if err := report.WritePoints(&buf, events, days, s.app.Location()); err != nil {
		s.writeError(w, r, fmt.Errorf("export points: %w", err))
		return
	}

	name := fmt.Sprintf("pontos-%s.xlsx", time.Now().In(s.app.Location()).Format(time.DateOnly))
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}
