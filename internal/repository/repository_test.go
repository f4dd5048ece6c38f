package repository_test

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"testing"

	"github.com/amit918/Bookstore-backend/internal/errs"
	"github.com/amit918/Bookstore-backend/internal/model"
	"github.com/amit918/Bookstore-backend/internal/repository"
	"github.com/amit918/Bookstore-backend/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestRepo connects to the database named by TEST_DB_DSN. The suite
// is skipped when the variable is unset so unit runs stay hermetic.
func newTestRepo(t *testing.T) repository.Repository {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN is not set")
	}
	db, err := sqlx.Connect("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetBaseFS(migrations.MigrationFiles)
	require.NoError(t, goose.SetDialect("postgres"))
	require.NoError(t, goose.Up(db.DB, "."))

	repo, err := repository.NewRepository(db, zap.NewExample().Named("test"))
	require.NoError(t, err)
	return repo
}

func createBook(t *testing.T, repo repository.Repository) model.Book {
	t.Helper()
	book, err := repo.CreateBook(context.Background(), model.CreateBookRequest{
		Title:  "The Go Programming Language",
		Author: "Donovan, Kernighan",
	})
	require.NoError(t, err)
	return book
}

func createUser(t *testing.T, repo repository.Repository) model.User {
	t.Helper()
	user, err := repo.CreateUser(context.Background(), model.UserCreateRequest{
		Email:    fmt.Sprintf("reader-%d@example.com", rand.Int63()),
		Password: "hash",
		Role:     model.RoleStudent,
	})
	require.NoError(t, err)
	return user
}

func TestRepository_RentReturnRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	book := createBook(t, repo)
	user := createUser(t, repo)

	rental, err := repo.RentBook(ctx, book.ID, user.ID)
	require.NoError(t, err)
	require.True(t, rental.Open())
	require.Equal(t, book.ID, rental.BookID)

	av, err := repo.GetAvailability(ctx, book.ID)
	require.NoError(t, err)
	require.False(t, av.Available)

	got, err := repo.GetBook(ctx, book.ID)
	require.NoError(t, err)
	require.False(t, got.Available)

	closed, err := repo.ReturnRental(ctx, rental.ID)
	require.NoError(t, err)
	require.False(t, closed.Open())
	require.False(t, closed.ReturnDate.Before(closed.RentDate))

	av, err = repo.GetAvailability(ctx, book.ID)
	require.NoError(t, err)
	require.True(t, av.Available)

	// closing is one-shot
	_, err = repo.ReturnRental(ctx, rental.ID)
	require.ErrorIs(t, err, errs.ErrRentalClosed)
}

func TestRepository_RentFailures(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	book := createBook(t, repo)
	user := createUser(t, repo)

	_, err := repo.RentBook(ctx, book.ID+1<<30, user.ID)
	require.ErrorIs(t, err, errs.ErrBookNotFound)

	_, err = repo.RentBook(ctx, book.ID, user.ID+1<<30)
	require.ErrorIs(t, err, errs.ErrUserNotFound)

	_, err = repo.RentBook(ctx, book.ID, user.ID)
	require.NoError(t, err)

	_, err = repo.RentBook(ctx, book.ID, user.ID)
	require.ErrorIs(t, err, errs.ErrBookUnavailable)

	_, err = repo.ReturnRental(ctx, 1<<30)
	require.ErrorIs(t, err, errs.ErrRentalNotFound)
}

func TestRepository_ConcurrentRentSingleWinner(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	book := createBook(t, repo)
	user := createUser(t, repo)

	const callers = 8
	results := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.RentBook(ctx, book.ID, user.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var won, lost int
	for err := range results {
		switch {
		case err == nil:
			won++
		default:
			require.ErrorIs(t, err, errs.ErrBookUnavailable)
			lost++
		}
	}
	require.Equal(t, 1, won)
	require.Equal(t, callers-1, lost)
}

func TestRepository_DeleteBookGuard(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	book := createBook(t, repo)
	user := createUser(t, repo)

	rental, err := repo.RentBook(ctx, book.ID, user.ID)
	require.NoError(t, err)

	err = repo.DeleteBook(ctx, book.ID)
	require.ErrorIs(t, err, errs.ErrBookRented)

	_, err = repo.ReturnRental(ctx, rental.ID)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteBook(ctx, book.ID))

	_, err = repo.RentBook(ctx, book.ID, user.ID)
	require.ErrorIs(t, err, errs.ErrBookNotFound)

	err = repo.DeleteBook(ctx, book.ID)
	require.ErrorIs(t, err, errs.ErrBookNotFound)
}

// Random interleavings of rent/return/delete must keep Book.available
// equal to "no open rental references the book" after every step.
func TestRepository_AvailabilityInvariant(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	const books, users, ops = 5, 3, 100

	bookIDs := make([]int, 0, books)
	for i := 0; i < books; i++ {
		bookIDs = append(bookIDs, createBook(t, repo).ID)
	}
	userIDs := make([]int, 0, users)
	for i := 0; i < users; i++ {
		userIDs = append(userIDs, createUser(t, repo).ID)
	}

	openRentals := make(map[int]int) // bookID -> rentalID

	checkInvariant := func() {
		for _, bookID := range bookIDs {
			book, err := repo.GetBook(ctx, bookID)
			if err != nil {
				require.ErrorIs(t, err, errs.ErrBookNotFound)
				continue
			}
			rented, err := repo.IsBookRented(ctx, bookID)
			require.NoError(t, err)
			require.Equal(t, !rented, book.Available,
				"book %d: available flag diverged from open rentals", bookID)
		}
	}

	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < ops; i++ {
		bookID := bookIDs[rnd.Intn(len(bookIDs))]
		switch rnd.Intn(3) {
		case 0:
			rental, err := repo.RentBook(ctx, bookID, userIDs[rnd.Intn(len(userIDs))])
			if err == nil {
				openRentals[bookID] = rental.ID
			}
		case 1:
			if rentalID, ok := openRentals[bookID]; ok {
				if _, err := repo.ReturnRental(ctx, rentalID); err == nil {
					delete(openRentals, bookID)
				}
			}
		case 2:
			if err := repo.DeleteBook(ctx, bookID); err == nil {
				require.NotContains(t, openRentals, bookID)
			}
		}
		checkInvariant()
	}
}
