package entities

import "time"

// LoanRecord is one circulation event: a copy of a book lent to a card.
// A record with a nil ReturnedAt is an open loan.
type LoanRecord struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	CardNo     string     `gorm:"index:idx_loan_card_book;size:64;not null" json:"card_no"`
	BookNo     string     `gorm:"index:idx_loan_card_book;size:64;not null" json:"book_no"`
	LentAt     time.Time  `gorm:"index;not null" json:"lent_at"`
	ReturnedAt *time.Time `gorm:"index" json:"returned_at,omitempty"`
	OperatorID *string    `gorm:"size:64" json:"operator_id,omitempty"`

	Operator *User `gorm:"foreignKey:OperatorID;references:UserID;constraint:OnDelete:SET NULL" json:"-"`
}

func (LoanRecord) TableName() string {
	return "library_records"
}

// IsOpen reports whether the copy is still out.
func (r LoanRecord) IsOpen() bool {
	return r.ReturnedAt == nil
}
