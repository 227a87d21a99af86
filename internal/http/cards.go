package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/cards"
)

type CardsController struct {
	cards CardService
}

func NewCardsController(cardService CardService) *CardsController {
	return &CardsController{cards: cardService}
}

// ListCards handles GET /api/cards
func (cc *CardsController) ListCards(c *gin.Context) {
	list, err := cc.cards.ListCards(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "list cards")
		return
	}
	c.JSON(http.StatusOK, gin.H{"cards": list, "count": len(list)})
}

// AddCard handles POST /api/cards
func (cc *CardsController) AddCard(c *gin.Context) {
	var in cards.CardInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	card, err := cc.cards.AddCard(c.Request.Context(), auth.GetActor(c), in)
	if err != nil {
		respondDomainError(c, err, "add card")
		return
	}
	respondCreated(c, card)
}

// GetCard handles GET /api/cards/:cardNo
func (cc *CardsController) GetCard(c *gin.Context) {
	card, err := cc.cards.GetCard(c.Request.Context(), c.Param("cardNo"))
	if err != nil {
		respondDomainError(c, err, "get card")
		return
	}
	c.JSON(http.StatusOK, card)
}

// DeleteCard handles DELETE /api/cards/:cardNo
func (cc *CardsController) DeleteCard(c *gin.Context) {
	cardNo := c.Param("cardNo")
	if err := cc.cards.DeleteCard(c.Request.Context(), auth.GetActor(c), cardNo); err != nil {
		respondDomainError(c, err, "delete card")
		return
	}
	respondSuccess(c, "card "+cardNo+" deleted")
}

// Stats handles GET /api/cards/:cardNo/stats
func (cc *CardsController) Stats(c *gin.Context) {
	stats, err := cc.cards.Stats(c.Request.Context(), c.Param("cardNo"))
	if err != nil {
		respondDomainError(c, err, "card stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}
