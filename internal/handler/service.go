package handler

import (
	"context"

	"github.com/amit918/Bookstore-backend/internal/model"
	"github.com/amit918/Bookstore-backend/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type CatalogService interface {
	CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error)
	UpdateBook(ctx context.Context, id int, req model.UpdateBookRequest) (model.Book, error)
	DeleteBook(ctx context.Context, id int) error
	GetBook(ctx context.Context, id int) (model.Book, error)
	ListBooks(ctx context.Context) ([]model.Book, error)
	GetAvailability(ctx context.Context, bookID int) (model.BookAvailability, error)
	ListAvailability(ctx context.Context) ([]model.BookAvailability, error)
}

type RentalService interface {
	RentBook(ctx context.Context, bookID, userID int) (model.Rental, error)
	ReturnRental(ctx context.Context, rentalID int) (model.Rental, error)
	GetRental(ctx context.Context, id int) (model.Rental, error)
	ListRentals(ctx context.Context) ([]model.Rental, error)
}

type AuthService interface {
	Register(ctx context.Context, req model.UserCreateRequest) (model.User, error)
	Authorize(ctx context.Context, req model.AuthRequest) (model.AuthResponse, error)
	ListUsers(ctx context.Context) ([]model.User, error)
}

var (
	_ CatalogService = (*service.Service)(nil)
	_ RentalService  = (*service.Service)(nil)
	_ AuthService    = (*service.Service)(nil)
)
