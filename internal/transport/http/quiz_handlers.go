package http

import (
	"net/http"
	"strconv"

	"moral-quiz-service/internal/app"
	"moral-quiz-service/internal/domain"
	"github.com/gin-gonic/gin"
)

type quizHandler struct {
	quiz *app.QuizService
	auth *Verifier
}

type saveAnswerRequest struct {
	QuestionID string `json:"question_id"`
	Value      int    `json:"value"`
}

type completeQuizRequest struct {
	Answers    map[string]int `json:"answers"`
	GuestEmail string         `json:"guest_email"`
}

func (h *quizHandler) Questions(c *gin.Context) {
	questions, err := h.quiz.Questions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

func (h *quizHandler) Progress(c *gin.Context) {
	view, err := h.quiz.Progress(c.Request.Context(), callerFrom(c, h.auth))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *quizHandler) SaveAnswer(c *gin.Context) {
	var req saveAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.QuestionID == "" {
		respondBadRequest(c, "question_id and value are required")
		return
	}
	view, err := h.quiz.SaveAnswer(c.Request.Context(), callerFrom(c, h.auth), req.QuestionID, req.Value)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *quizHandler) ResetProgress(c *gin.Context) {
	if err := h.quiz.ResetProgress(c.Request.Context(), callerFrom(c, h.auth)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *quizHandler) Complete(c *gin.Context) {
	var req completeQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid quiz submission")
		return
	}
	completed, err := h.quiz.CompleteQuiz(c.Request.Context(), callerFrom(c, h.auth), req.Answers, req.GuestEmail)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, completed)
}

func (h *quizHandler) Result(c *gin.Context) {
	result, err := h.quiz.GetResult(c.Request.Context(), callerFrom(c, h.auth), c.Param("id"), accessToken(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *quizHandler) Report(c *gin.Context) {
	report, err := h.quiz.Report(c.Request.Context(), callerFrom(c, h.auth), c.Param("id"), accessToken(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *quizHandler) List(c *gin.Context) {
	filter, ok := resultFilter(c)
	if !ok {
		return
	}
	page, err := h.quiz.ListResults(c.Request.Context(), callerFrom(c, h.auth), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// accessToken reads a guest token from the query or the X-Access-Token header.
func accessToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	return c.GetHeader("X-Access-Token")
}

// resultFilter parses paging and filter query params. It writes a 400 and
// returns false on malformed input.
func resultFilter(c *gin.Context) (domain.ResultFilter, bool) {
	filter := domain.ResultFilter{
		UserID:         c.Query("user_id"),
		Level:          c.Query("level"),
		PurchaseStatus: domain.PurchaseStatus(c.Query("purchase_status")),
	}
	var err error
	if raw := c.Query("page"); raw != "" {
		if filter.Page, err = strconv.Atoi(raw); err != nil {
			respondBadRequest(c, "page must be a number")
			return filter, false
		}
	}
	if raw := c.Query("page_size"); raw != "" {
		if filter.PageSize, err = strconv.Atoi(raw); err != nil {
			respondBadRequest(c, "page_size must be a number")
			return filter, false
		}
	}
	if raw := c.Query("purchased"); raw != "" {
		purchased, err := strconv.ParseBool(raw)
		if err != nil {
			respondBadRequest(c, "purchased must be true or false")
			return filter, false
		}
		filter.Purchased = &purchased
	}
	return filter, true
}
