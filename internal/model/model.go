package model

import (
	"time"
)

type Role string

const (
	RoleLibrarian Role = "LIBRARIAN"
	RoleStudent   Role = "STUDENT"
)

type Book struct {
	ID     int    `json:"id" db:"id"`
	Title  string `json:"title" db:"title"`
	Author string `json:"author" db:"author"`
	// Available mirrors "no open rental references this book". It is
	// flipped only inside the same transaction that opens or closes
	// a rental.
	Available bool `json:"available" db:"available"`
}

type User struct {
	ID       int    `json:"id" db:"id"`
	Email    string `json:"email" db:"email"`
	Password string `json:"-" db:"password"`
	Role     Role   `json:"role" db:"role"`
}

type Rental struct {
	ID         int        `json:"id" db:"id"`
	RentalUid  string     `json:"rentalUid" db:"rental_uid"`
	BookID     int        `json:"bookId" db:"book_id"`
	UserID     int        `json:"userId" db:"user_id"`
	RentDate   time.Time  `json:"rentDate" db:"rent_date"`
	ReturnDate *time.Time `json:"returnDate" db:"return_date"`
}

// Open reports whether the rental is still active.
func (r Rental) Open() bool {
	return r.ReturnDate == nil
}

type BookAvailability struct {
	BookID    int  `json:"bookId" db:"id"`
	Available bool `json:"available" db:"available"`
}

type CreateBookRequest struct {
	Title  string `json:"title" validate:"required"`
	Author string `json:"author" validate:"required"`
}

type UpdateBookRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

type RentBookRequest struct {
	BookID int `json:"bookId" validate:"required"`
	UserID int `json:"userId" validate:"required"`
}

type UserCreateRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     Role   `json:"role" validate:"required,oneof=LIBRARIAN STUDENT"`
}

type AuthRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	ExpiresIn   int    `json:"expiresIn"`
	AccessToken string `json:"accessToken"`
}
