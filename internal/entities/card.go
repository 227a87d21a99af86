package entities

import "time"

type CardType string

const (
	CardTypeStudent CardType = "student"
	CardTypeTeacher CardType = "teacher"
	CardTypeStaff   CardType = "staff"
	CardTypeOther   CardType = "other"
)

// CardTypes lists the accepted card types in display order.
var CardTypes = []CardType{CardTypeStudent, CardTypeTeacher, CardTypeStaff, CardTypeOther}

// Valid reports whether t is one of the known card types.
func (t CardType) Valid() bool {
	for _, known := range CardTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Card is a patron's library card.
type Card struct {
	CardNo     string    `gorm:"primaryKey;size:64" json:"card_no"`
	Name       string    `gorm:"size:128;not null" json:"name"`
	Department string    `gorm:"size:256" json:"department,omitempty"`
	CardType   CardType  `gorm:"size:20;not null" json:"card_type"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `gorm:"index" json:"updated_at"`

	// Loans declares the library_records foreign key; deleting a card drops its history.
	Loans []LoanRecord `gorm:"foreignKey:CardNo;references:CardNo;constraint:OnDelete:CASCADE" json:"-"`
}

func (Card) TableName() string {
	return "library_cards"
}
