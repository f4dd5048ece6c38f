package service

import (
	"context"
	"time"

	"github.com/amit918/Bookstore-backend/internal/errs"
	"github.com/amit918/Bookstore-backend/internal/model"
	"github.com/amit918/Bookstore-backend/internal/repository"
	"github.com/amit918/Bookstore-backend/pkg/auth"
	"github.com/amit918/Bookstore-backend/pkg/kafka"
	"github.com/amit918/Bookstore-backend/pkg/password"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

// rent/return transactions that lose a storage-level race are retried
// with a fresh read before the conflict is surfaced to the caller
const maxTxRetries = 3

type Service struct {
	log  *zap.Logger
	repo repository.Repository
}

func NewService(repo repository.Repository, log *zap.Logger) *Service {
	return &Service{
		log:  log,
		repo: repo,
	}
}

func (s *Service) RentBook(ctx context.Context, bookID, userID int) (model.Rental, error) {
	var (
		rental model.Rental
		err    error
	)
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		rental, err = s.repo.RentBook(ctx, bookID, userID)
		if err == nil || !repository.IsConflict(err) {
			return rental, err
		}
		s.log.Debug("RentBook tx conflict, retrying",
			zap.Int("bookID", bookID), zap.Int("attempt", attempt+1))
	}
	return model.Rental{}, errs.ErrTxConflict
}

func (s *Service) ReturnRental(ctx context.Context, rentalID int) (model.Rental, error) {
	var (
		rental model.Rental
		err    error
	)
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		rental, err = s.repo.ReturnRental(ctx, rentalID)
		if err == nil || !repository.IsConflict(err) {
			return rental, err
		}
		s.log.Debug("ReturnRental tx conflict, retrying",
			zap.Int("rentalID", rentalID), zap.Int("attempt", attempt+1))
	}
	return model.Rental{}, errs.ErrTxConflict
}

func (s *Service) GetRental(ctx context.Context, id int) (model.Rental, error) {
	return s.repo.GetRental(ctx, id)
}

func (s *Service) ListRentals(ctx context.Context) ([]model.Rental, error) {
	return s.repo.ListRentals(ctx)
}

func (s *Service) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	return s.repo.CreateBook(ctx, req)
}

func (s *Service) UpdateBook(ctx context.Context, id int, req model.UpdateBookRequest) (model.Book, error) {
	return s.repo.UpdateBook(ctx, id, req)
}

func (s *Service) DeleteBook(ctx context.Context, id int) error {
	var err error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = s.repo.DeleteBook(ctx, id)
		if err == nil || !repository.IsConflict(err) {
			return err
		}
	}
	return errs.ErrTxConflict
}

func (s *Service) GetBook(ctx context.Context, id int) (model.Book, error) {
	return s.repo.GetBook(ctx, id)
}

func (s *Service) ListBooks(ctx context.Context) ([]model.Book, error) {
	return s.repo.ListBooks(ctx)
}

func (s *Service) GetAvailability(ctx context.Context, bookID int) (model.BookAvailability, error) {
	return s.repo.GetAvailability(ctx, bookID)
}

func (s *Service) ListAvailability(ctx context.Context) ([]model.BookAvailability, error) {
	return s.repo.ListAvailability(ctx)
}

func (s *Service) Register(ctx context.Context, req model.UserCreateRequest) (model.User, error) {
	hash, err := password.Hash(req.Password)
	if err != nil {
		return model.User{}, err
	}
	req.Password = hash
	return s.repo.CreateUser(ctx, req)
}

func (s *Service) Authorize(ctx context.Context, req model.AuthRequest) (model.AuthResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return model.AuthResponse{}, err
	}
	if !password.Verify(req.Password, user.Password) {
		return model.AuthResponse{}, errs.ErrInvalidCredentials
	}

	expirationTime := time.Now().Add(24 * time.Hour)
	claims := &auth.Claims{
		Profile: struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		}{
			Email: user.Email,
			Role:  string(user.Role),
		},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(auth.JWTKey)
	if err != nil {
		return model.AuthResponse{}, err
	}

	return model.AuthResponse{
		ExpiresIn:   int(expirationTime.Unix()),
		AccessToken: tokenString,
	}, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *Service) SaveRentalEvent(ctx context.Context, event kafka.RentalEvent) error {
	return s.repo.SaveRentalEvent(ctx, event)
}
