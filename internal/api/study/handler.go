package study

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/studydesk/internal/domain"
	"github.com/liliang-cn/studydesk/internal/repository"
	"github.com/liliang-cn/studydesk/internal/service"
)

// Handler handles the study API requests
type Handler struct {
	ingest   *service.IngestService
	quizzes  *service.QuizService
	eval     *service.EvalService
	revision *service.RevisionService
	learning *service.LearningService
	story    *service.StoryService
	sessions *repository.SessionRepository
}

// NewHandler creates a new study handler
func NewHandler(
	ingest *service.IngestService,
	quizzes *service.QuizService,
	eval *service.EvalService,
	revision *service.RevisionService,
	learning *service.LearningService,
	story *service.StoryService,
	sessions *repository.SessionRepository,
) *Handler {
	return &Handler{
		ingest:   ingest,
		quizzes:  quizzes,
		eval:     eval,
		revision: revision,
		learning: learning,
		story:    story,
		sessions: sessions,
	}
}

// RegisterRoutes registers study routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	documents := r.Group("/documents")
	{
		documents.POST("", h.UploadDocument)
		documents.GET("", h.ListDocuments)
		documents.DELETE("/:id", h.DeleteDocument)
	}

	quiz := r.Group("/quiz")
	{
		quiz.POST("", h.GenerateQuiz)
		quiz.GET("/document/:id", h.ListQuizzes)
		quiz.POST("/answer", h.EvaluateAnswer)
		quiz.POST("/:id/evaluate", h.EvaluateAll)
		quiz.GET("/:id/revision", h.RevisionSheet)
	}

	learning := r.Group("/learning")
	{
		learning.POST("/start", h.StartLearning)
		learning.POST("/respond", h.RespondLearning)
	}

	r.GET("/story/:document_id", h.Story)

	sessions := r.Group("/sessions")
	{
		sessions.GET("", h.ListSessions)
		sessions.DELETE("/:id", h.DeleteSession)
	}
}

// errStatus maps domain sentinels to HTTP status codes.
func errStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrBadInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(errStatus(err), gin.H{"error": err.Error()})
}

// Document handlers

func (h *Handler) UploadDocument(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	resp, err := h.ingest.Upload(c.Request.Context(), file)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) ListDocuments(c *gin.Context) {
	docs, err := h.ingest.List()
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	if err := h.ingest.Delete(c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "document deleted"})
}

// Quiz handlers

type generateQuizRequest struct {
	DocumentIDs  []string `json:"document_ids" binding:"required"`
	QuizType     string   `json:"quiz_type"`
	Difficulty   string   `json:"difficulty"`
	NumQuestions int      `json:"num_questions"`
}

func (h *Handler) GenerateQuiz(c *gin.Context) {
	var req generateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.NumQuestions <= 0 {
		req.NumQuestions = 5
	}
	if len(req.DocumentIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document_ids is required"})
		return
	}

	// A quiz is grounded in a single document; take the first id.
	quiz, err := h.quizzes.Generate(c.Request.Context(), req.DocumentIDs[0], req.QuizType, req.NumQuestions, req.Difficulty)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"quiz_id": quiz.ID, "quiz": quiz.Items})
}

func (h *Handler) ListQuizzes(c *gin.Context) {
	quizzes, err := h.quizzes.ListByDocument(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quizzes": quizzes})
}

type answerRequest struct {
	QuizID        string `json:"quiz_id" binding:"required"`
	DocumentID    string `json:"document_id"`
	QuestionIndex *int   `json:"question_index" binding:"required"`
	UserAnswer    string `json:"user_answer"`
}

func (h *Handler) EvaluateAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	eval, analysis, err := h.eval.EvaluateAnswer(c.Request.Context(), req.DocumentID, *req.QuestionIndex, req.UserAnswer, req.QuizID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := gin.H{"evaluation": eval}
	if analysis != nil {
		resp["analysis"] = analysis
	}
	c.JSON(http.StatusOK, resp)
}

type evaluateAllRequest struct {
	Answers []string `json:"answers" binding:"required"`
}

func (h *Handler) EvaluateAll(c *gin.Context) {
	var req evaluateAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, analysis, err := h.eval.EvaluateAll(c.Request.Context(), c.Param("id"), req.Answers)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results, "analysis": analysis})
}

func (h *Handler) RevisionSheet(c *gin.Context) {
	pdf, filename, err := h.revision.Sheet(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// Learning handlers

type startLearningRequest struct {
	DocumentIDs []string `json:"document_ids" binding:"required"`
	Topic       string   `json:"topic" binding:"required"`
}

func (h *Handler) StartLearning(c *gin.Context) {
	var req startLearningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.learning.Start(c.Request.Context(), req.DocumentIDs, req.Topic)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

type respondLearningRequest struct {
	SessionID   string   `json:"session_id" binding:"required"`
	UserAnswer  string   `json:"user_answer" binding:"required"`
	DocumentIDs []string `json:"document_ids"`
	Topic       string   `json:"topic"`
}

func (h *Handler) RespondLearning(c *gin.Context) {
	var req respondLearningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.learning.Respond(c.Request.Context(), req.SessionID, req.UserAnswer, req.DocumentIDs, req.Topic)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Story handler

func (h *Handler) Story(c *gin.Context) {
	result, err := h.story.Explain(c.Request.Context(), c.Param("document_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Session handlers

func (h *Handler) ListSessions(c *gin.Context) {
	sessions, err := h.sessions.List()
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.sessions.Delete(c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "session deleted"})
}
