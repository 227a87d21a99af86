package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Book is a catalog title. Total counts every copy the library owns;
// Storage counts the copies currently on the shelf.
type Book struct {
	BookNo    string              `gorm:"primaryKey;size:64" json:"book_no"`
	Category  string              `gorm:"index;size:128" json:"category,omitempty"`
	Title     string              `gorm:"index;size:512;not null" json:"title"`
	Publisher string              `gorm:"size:256" json:"publisher,omitempty"`
	Year      *int                `gorm:"index" json:"year,omitempty"`
	Author    string              `gorm:"index;size:256" json:"author,omitempty"`
	Price     decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"price"`
	Total     int                 `gorm:"not null" json:"total"`
	Storage   int                 `gorm:"not null" json:"storage"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `gorm:"index" json:"updated_at"`

	Loans []LoanRecord `gorm:"foreignKey:BookNo;references:BookNo;constraint:OnDelete:CASCADE" json:"-"`
}

func (Book) TableName() string {
	return "books"
}

// OnLoan returns how many copies are currently lent out.
func (b Book) OnLoan() int {
	return b.Total - b.Storage
}
