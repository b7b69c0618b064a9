package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"training-service/internal/constants"
	"training-service/internal/dto"
	"training-service/internal/models"
	"training-service/internal/repository"

	"github.com/gin-gonic/gin"
)

// AdminHandler manages the content catalog: scenarios, quiz sets with their
// questions, and badge definitions.
type AdminHandler struct {
	scenarioRepo *repository.ScenarioRepository
	quizRepo     *repository.QuizRepository
	badgeRepo    *repository.BadgeRepository
}

func NewAdminHandler(scenarioRepo *repository.ScenarioRepository, quizRepo *repository.QuizRepository, badgeRepo *repository.BadgeRepository) *AdminHandler {
	return &AdminHandler{
		scenarioRepo: scenarioRepo,
		quizRepo:     quizRepo,
		badgeRepo:    badgeRepo,
	}
}

func (h *AdminHandler) ListScenarios(c *gin.Context) {
	scenarios, err := h.scenarioRepo.ListScenarios(c.Request.Context())
	if err != nil {
		dto.JsonError(c, http.StatusInternalServerError, "Failed to load scenarios")
		return
	}
	c.JSON(http.StatusOK, gin.H{"scenarios": scenarios})
}

func (h *AdminHandler) CreateScenario(c *gin.Context) {
	var scenario models.Scenario
	if err := c.ShouldBindJSON(&scenario); err != nil {
		dto.JsonError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if scenario.Title == "" || scenario.Complaint == "" {
		dto.JsonError(c, http.StatusBadRequest, "Title and complaint are required")
		return
	}
	if err := h.scenarioRepo.CreateScenario(c.Request.Context(), &scenario); err != nil {
		dto.JsonError(c, http.StatusInternalServerError, "Failed to create scenario")
		return
	}
	c.JSON(http.StatusCreated, scenario)
}

func (h *AdminHandler) UpdateScenario(c *gin.Context) {
	var scenario models.Scenario
	if err := c.ShouldBindJSON(&scenario); err != nil {
		dto.JsonError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	scenario.ID = c.Param("id")
	if err := h.scenarioRepo.UpdateScenario(c.Request.Context(), &scenario); err != nil {
		if err == sql.ErrNoRows {
			dto.JsonError(c, http.StatusNotFound, "Scenario not found")
			return
		}
		dto.JsonError(c, http.StatusInternalServerError, "Failed to update scenario")
		return
	}
	c.JSON(http.StatusOK, scenario)
}

func (h *AdminHandler) DeleteScenario(c *gin.Context) {
	if err := h.scenarioRepo.DeleteScenario(c.Request.Context(), c.Param("id")); err != nil {
		dto.JsonError(c, http.StatusInternalServerError, "Failed to delete scenario")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) ListQuizSets(c *gin.Context) {
	sets, err := h.quizRepo.ListQuizSets(c.Request.Context())
	if err != nil {
		dto.JsonError(c, http.StatusInternalServerError, "Failed to load quiz sets")
		return
	}
	c.JSON(http.StatusOK, gin.H{"quiz_sets": sets})
}

func (h *AdminHandler) CreateQuizSet(c *gin.Context) {
	var set models.QuizSet
	if err := c.ShouldBindJSON(&set); err != nil {
		dto.JsonError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if set.Title == "" {
		dto.JsonError(c, http.StatusBadRequest, "Title is required")
		return
	}
	if err := h.quizRepo.CreateQuizSet(c.Request.Context(), &set); err != nil {
		dto.JsonError(c, http.StatusInternalServerError, "Failed to create quiz set")
		return
	}
	c.JSON(http.StatusCreated, set)
}

func (h *AdminHandler) UpdateQuizSet(c *gin.Context) {
	var set models.QuizSet
	if err := c.ShouldBindJSON(&set); err != nil {
		dto.JsonError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	set.ID = c.Param("id")
	if err := h.quizRepo.UpdateQuizSet(c.Request.Context(), &set); err != nil {
		if err == sql.ErrNoRows {
			dto.JsonError(c, http.StatusNotFound, "Quiz set not found")
			return
		}
		dto.JsonError(c, http.StatusInternalServerError, "Failed to update quiz set")
		return
	}
	c.JSON(http.StatusOK, set)
}

func (h *AdminHandler) DeleteQuizSet(c *gin.Context) {
	if err := h.quizRepo.DeleteQuizSet(c.Request.Context(), c.Param("id")); err != nil {
		dto.JsonError(c, http.StatusInternalServerError, "Failed to delete quiz set")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) ListQuestions(c *gin.Context) {
	questions, err := h.quizRepo.GetQuestions(c.Request.Context(), c.Param("id"))
	if err != nil {
		dto.JsonError(c, http.StatusInternalServerError, "Failed to load questions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

func (h *AdminHandler) CreateQuestion(c *gin.Context) {
	var question models.Question
	if err := c.ShouldBindJSON(&question); err != nil {
		dto.JsonError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	question.SetID = c.Param("id")
	if question.Prompt == "" {
		dto.JsonError(c, http.StatusBadRequest, "Prompt is required")
		return
	}
	if err := validateAnswerKey(&question); err != nil {
		dto.JsonError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.quizRepo.CreateQuestion(c.Request.Context(), &question); err != nil {
		dto.JsonError(c, http.StatusInternalServerError, "Failed to create question")
		return
	}
	c.JSON(http.StatusCreated, question)
}

// validateAnswerKey checks that the stored correct answer is JSON of the
// shape the grader expects for the question type; a key of the wrong type
// would silently grade every answer wrong.
func validateAnswerKey(q *models.Question) error {
	switch q.Type {
	case constants.QuestionTypeMultipleChoice:
		var answer string
		if err := json.Unmarshal([]byte(q.CorrectAnswer), &answer); err != nil {
			return errors.New("correct answer must be a JSON string for multiple choice questions")
		}
		if answer == "" {
			return errors.New("correct answer must not be empty")
		}
		if len(q.Options) > 0 && !slices.Contains(q.Options, answer) {
			return errors.New("correct answer must be one of the options")
		}
	case constants.QuestionTypeTrueFalse:
		var answer bool
		if err := json.Unmarshal([]byte(q.CorrectAnswer), &answer); err != nil {
			return errors.New("correct answer must be a JSON boolean for true/false questions")
		}
	default:
		return fmt.Errorf("unknown question type: %q", q.Type)
	}
	return nil
}

func (h *AdminHandler) DeleteQuestion(c *gin.Context) {
	if err := h.quizRepo.DeleteQuestion(c.Request.Context(), c.Param("questionId")); err != nil {
		dto.JsonError(c, http.StatusInternalServerError, "Failed to delete question")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) CreateBadge(c *gin.Context) {
	var badge models.Badge
	if err := c.ShouldBindJSON(&badge); err != nil {
		dto.JsonError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if badge.Name == "" || badge.ConditionType == "" {
		dto.JsonError(c, http.StatusBadRequest, "Name and condition type are required")
		return
	}
	if err := h.badgeRepo.CreateBadge(c.Request.Context(), &badge); err != nil {
		dto.JsonError(c, http.StatusInternalServerError, "Failed to create badge")
		return
	}
	c.JSON(http.StatusCreated, badge)
}

func (h *AdminHandler) UpdateBadge(c *gin.Context) {
	var badge models.Badge
	if err := c.ShouldBindJSON(&badge); err != nil {
		dto.JsonError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	badge.ID = c.Param("id")
	if err := h.badgeRepo.UpdateBadge(c.Request.Context(), &badge); err != nil {
		if err == sql.ErrNoRows {
			dto.JsonError(c, http.StatusNotFound, "Badge not found")
			return
		}
		dto.JsonError(c, http.StatusInternalServerError, "Failed to update badge")
		return
	}
	c.JSON(http.StatusOK, badge)
}

func (h *AdminHandler) DeleteBadge(c *gin.Context) {
	if err := h.badgeRepo.DeleteBadge(c.Request.Context(), c.Param("id")); err != nil {
		dto.JsonError(c, http.StatusInternalServerError, "Failed to delete badge")
		return
	}
	c.Status(http.StatusNoContent)
}
