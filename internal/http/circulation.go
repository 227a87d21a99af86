package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/circulation"
)

type borrowRequest struct {
	CardNo string `json:"card_no"`
	BookNo string `json:"book_no"`
}

// RecommendationsResponse lists suggested titles. Habit is set when the
// category was inferred from the card's history.
type RecommendationsResponse struct {
	Category string                    `json:"category"`
	Habit    *circulation.Habit        `json:"habit,omitempty"`
	Books    []circulation.BookSummary `json:"books"`
}

type CirculationController struct {
	circulation CirculationService
	cards       CardService
}

func NewCirculationController(circulationService CirculationService, cardService CardService) *CirculationController {
	return &CirculationController{
		circulation: circulationService,
		cards:       cardService,
	}
}

func session(c *gin.Context) circulation.Session {
	return circulation.Session{OperatorID: auth.GetOperatorID(c)}
}

// Borrow handles POST /api/circulation/borrow
func (cc *CirculationController) Borrow(c *gin.Context) {
	var req borrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	record, err := cc.circulation.Borrow(c.Request.Context(), session(c), req.CardNo, req.BookNo)
	if err != nil {
		respondDomainError(c, err, "borrow")
		return
	}
	respondCreated(c, record)
}

// Return handles POST /api/circulation/return
func (cc *CirculationController) Return(c *gin.Context) {
	var req circulation.ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	record, err := cc.circulation.Return(c.Request.Context(), session(c), req)
	if err != nil {
		respondDomainError(c, err, "return")
		return
	}
	c.JSON(http.StatusOK, record)
}

// Overdue handles GET /api/circulation/overdue
func (cc *CirculationController) Overdue(c *gin.Context) {
	loans, err := cc.circulation.Overdue(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "overdue")
		return
	}
	c.JSON(http.StatusOK, gin.H{"loans": loans, "count": len(loans)})
}

// CardLoans handles GET /api/cards/:cardNo/loans
func (cc *CirculationController) CardLoans(c *gin.Context) {
	cc.loans(c, c.Param("cardNo"))
}

// CardHabit handles GET /api/cards/:cardNo/habit
func (cc *CirculationController) CardHabit(c *gin.Context) {
	cardNo := c.Param("cardNo")
	if !cc.requireCard(c, cardNo) {
		return
	}
	habit, err := cc.circulation.Habit(c.Request.Context(), cardNo)
	if err != nil {
		respondDomainError(c, err, "habit")
		return
	}
	c.JSON(http.StatusOK, habit)
}

// CardRecommendations handles GET /api/cards/:cardNo/recommendations
func (cc *CirculationController) CardRecommendations(c *gin.Context) {
	cc.recommendations(c, c.Param("cardNo"), c.Query("category"))
}

// MyLoans handles GET /api/me/loans for the logged-in patron.
func (cc *CirculationController) MyLoans(c *gin.Context) {
	cc.loans(c, auth.GetPrincipal(c).ID)
}

// MyRecommendations handles GET /api/me/recommendations for the logged-in patron.
func (cc *CirculationController) MyRecommendations(c *gin.Context) {
	cc.recommendations(c, auth.GetPrincipal(c).ID, c.Query("category"))
}

// MyStats handles GET /api/me/stats for the logged-in patron.
func (cc *CirculationController) MyStats(c *gin.Context) {
	stats, err := cc.cards.Stats(c.Request.Context(), auth.GetPrincipal(c).ID)
	if err != nil {
		respondDomainError(c, err, "card stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (cc *CirculationController) loans(c *gin.Context, cardNo string) {
	if !cc.requireCard(c, cardNo) {
		return
	}
	loans, err := cc.circulation.OpenLoans(c.Request.Context(), cardNo)
	if err != nil {
		respondInternalError(c, err, "open loans")
		return
	}
	c.JSON(http.StatusOK, gin.H{"loans": loans, "count": len(loans)})
}

func (cc *CirculationController) recommendations(c *gin.Context, cardNo, category string) {
	if !cc.requireCard(c, cardNo) {
		return
	}
	limit, ok := parseLimitQuery(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	category = strings.TrimSpace(category)
	if category != "" {
		books, err := cc.circulation.Recommend(ctx, cardNo, category, limit)
		if err != nil {
			respondInternalError(c, err, "recommend")
			return
		}
		c.JSON(http.StatusOK, RecommendationsResponse{Category: category, Books: books})
		return
	}

	rec, err := cc.circulation.RecommendForCard(ctx, cardNo, limit)
	if err != nil {
		respondDomainError(c, err, "recommend")
		return
	}
	c.JSON(http.StatusOK, RecommendationsResponse{Category: rec.Habit.Category, Habit: &rec.Habit, Books: rec.Books})
}

// requireCard answers 404 for an unregistered card so empty loan lists are
// never reported for cards that do not exist.
func (cc *CirculationController) requireCard(c *gin.Context, cardNo string) bool {
	if _, err := cc.cards.GetCard(c.Request.Context(), cardNo); err != nil {
		respondDomainError(c, err, "get card")
		return false
	}
	return true
}
