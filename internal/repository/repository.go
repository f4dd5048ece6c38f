package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/amit918/Bookstore-backend/internal/errs"
	"github.com/amit918/Bookstore-backend/internal/model"
	"github.com/amit918/Bookstore-backend/pkg/kafka"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

//go:generate go run github.com/golang/mock/mockgen -source=repository.go -destination=mocks/mock.go

type Repository interface {
	CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error)
	UpdateBook(ctx context.Context, id int, req model.UpdateBookRequest) (model.Book, error)
	DeleteBook(ctx context.Context, id int) error
	GetBook(ctx context.Context, id int) (model.Book, error)
	ListBooks(ctx context.Context) ([]model.Book, error)

	RentBook(ctx context.Context, bookID, userID int) (model.Rental, error)
	ReturnRental(ctx context.Context, rentalID int) (model.Rental, error)
	GetRental(ctx context.Context, id int) (model.Rental, error)
	ListRentals(ctx context.Context) ([]model.Rental, error)

	IsBookRented(ctx context.Context, bookID int) (bool, error)
	GetAvailability(ctx context.Context, bookID int) (model.BookAvailability, error)
	ListAvailability(ctx context.Context) ([]model.BookAvailability, error)

	CreateUser(ctx context.Context, req model.UserCreateRequest) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	SaveRentalEvent(ctx context.Context, event kafka.RentalEvent) error
}

type repository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

const (
	booksTableName        = `books`
	usersTableName        = `users`
	rentalsTableName      = `rentals`
	rentalEventsTableName = `rental_events`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// IsConflict reports whether err is a storage conflict worth retrying
// after a fresh read.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return true
	}
	return false
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == pgerrcode.UniqueViolation &&
		pgErr.ConstraintName == constraint
}

// RentBook opens a rental inside a single transaction. The book row is
// locked for the whole read-modify-write so two callers cannot both
// observe available=true; the partial unique index on open rentals is
// the backstop.
func (r *repository) RentBook(ctx context.Context, bookID, userID int) (rental model.Rental, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Rental{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var available bool
	err = tx.QueryRowContext(ctx,
		`select available from books where id = $1 for update`, bookID).Scan(&available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Rental{}, errors.Wrapf(errs.ErrBookNotFound, "book %d", bookID)
		}
		return model.Rental{}, err
	}
	if !available {
		return model.Rental{}, errors.Wrapf(errs.ErrBookUnavailable, "book %d", bookID)
	}

	var userExists bool
	if err = tx.QueryRowContext(ctx,
		`select exists(select 1 from users where id = $1)`, userID).Scan(&userExists); err != nil {
		return model.Rental{}, err
	}
	if !userExists {
		return model.Rental{}, errors.Wrapf(errs.ErrUserNotFound, "user %d", userID)
	}

	q, args, err := qb.Insert(rentalsTableName).
		Columns("rental_uid", "book_id", "user_id", "rent_date").
		Values(uuid.New(), bookID, userID, time.Now().UTC()).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.Rental{}, err
	}
	if err = tx.GetContext(ctx, &rental, q, args...); err != nil {
		if isUniqueViolation(err, "uq_rentals_open_book") {
			return model.Rental{}, errors.Wrapf(errs.ErrBookUnavailable, "book %d", bookID)
		}
		r.log.Error("RentBook insert", zap.String("q", q), zap.Any("args", args))
		return model.Rental{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`update books set available = false where id = $1`, bookID); err != nil {
		return model.Rental{}, err
	}

	if err = tx.Commit(); err != nil {
		return model.Rental{}, err
	}
	return rental, nil
}

// ReturnRental closes a rental and flips its book back to available in
// the same transaction. Closing is one-shot: an already-set return_date
// fails with ErrRentalClosed.
func (r *repository) ReturnRental(ctx context.Context, rentalID int) (rental model.Rental, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Rental{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var returnDate *time.Time
	err = tx.QueryRowContext(ctx,
		`select return_date from rentals where id = $1 for update`, rentalID).Scan(&returnDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Rental{}, errors.Wrapf(errs.ErrRentalNotFound, "rental %d", rentalID)
		}
		return model.Rental{}, err
	}
	if returnDate != nil {
		return model.Rental{}, errors.Wrapf(errs.ErrRentalClosed, "rental %d", rentalID)
	}

	if err = tx.GetContext(ctx, &rental,
		`update rentals set return_date = now() where id = $1 returning *`, rentalID); err != nil {
		return model.Rental{}, err
	}

	res, err := tx.ExecContext(ctx,
		`update books set available = true where id = $1`, rental.BookID)
	if err != nil {
		return model.Rental{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// book row is gone; the rental still has to close
		r.log.Warn("ReturnRental: book missing for open rental",
			zap.Int("rentalID", rentalID), zap.Int("bookID", rental.BookID))
	}

	if err = tx.Commit(); err != nil {
		return model.Rental{}, err
	}
	return rental, nil
}

// DeleteBook removes a book unless an open rental references it. The
// row lock keeps a concurrent rent from slipping between the ledger
// check and the delete.
func (r *repository) DeleteBook(ctx context.Context, id int) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var available bool
	err = tx.QueryRowContext(ctx,
		`select available from books where id = $1 for update`, id).Scan(&available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrapf(errs.ErrBookNotFound, "book %d", id)
		}
		return err
	}

	var rented bool
	if err = tx.QueryRowContext(ctx,
		`select exists(select 1 from rentals where book_id = $1 and return_date is null)`, id).Scan(&rented); err != nil {
		return err
	}
	if rented {
		return errors.Wrapf(errs.ErrBookRented, "book %d", id)
	}

	if _, err = tx.ExecContext(ctx, `delete from books where id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *repository) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	q, args, err := qb.Insert(booksTableName).
		Columns("title", "author", "available").
		Values(req.Title, req.Author, true).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	var book model.Book
	if err := r.db.GetContext(ctx, &book, q, args...); err != nil {
		r.log.Error("CreateBook", zap.String("q", q), zap.Any("args", args))
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) UpdateBook(ctx context.Context, id int, req model.UpdateBookRequest) (model.Book, error) {
	update := qb.Update(booksTableName).Where(sq.Eq{"id": id})
	if req.Title != "" {
		update = update.Set("title", req.Title)
	}
	if req.Author != "" {
		update = update.Set("author", req.Author)
	}
	q, args, err := update.Suffix("returning *").ToSql()
	if err != nil {
		return model.Book{}, err
	}
	var book model.Book
	if err := r.db.GetContext(ctx, &book, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrBookNotFound
		}
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) GetBook(ctx context.Context, id int) (model.Book, error) {
	q, args, err := qb.Select("id", "title", "author", "available").
		From(booksTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	var book model.Book
	if err := r.db.GetContext(ctx, &book, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrBookNotFound
		}
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) ListBooks(ctx context.Context) ([]model.Book, error) {
	q, args, err := qb.Select("id", "title", "author", "available").
		From(booksTableName).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	var books []model.Book
	if err := r.db.SelectContext(ctx, &books, q, args...); err != nil {
		return nil, err
	}
	return books, nil
}

func (r *repository) GetRental(ctx context.Context, id int) (model.Rental, error) {
	var rental model.Rental
	if err := r.db.GetContext(ctx, &rental,
		`select * from rentals where id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Rental{}, errs.ErrRentalNotFound
		}
		return model.Rental{}, err
	}
	return rental, nil
}

func (r *repository) ListRentals(ctx context.Context) ([]model.Rental, error) {
	var rentals []model.Rental
	if err := r.db.SelectContext(ctx, &rentals,
		`select * from rentals order by id`); err != nil {
		return nil, err
	}
	return rentals, nil
}

// IsBookRented answers the ledger question "does an open rental exist
// for this book" straight off the partial unique index.
func (r *repository) IsBookRented(ctx context.Context, bookID int) (bool, error) {
	var rented bool
	err := r.db.QueryRowContext(ctx,
		`select exists(select 1 from rentals where book_id = $1 and return_date is null)`, bookID).Scan(&rented)
	return rented, err
}

func (r *repository) GetAvailability(ctx context.Context, bookID int) (model.BookAvailability, error) {
	var av model.BookAvailability
	err := r.db.GetContext(ctx, &av, `
	select b.id, not exists(
		select 1 from rentals rr where rr.book_id = b.id and rr.return_date is null
	) as available
	from books b where b.id = $1`, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.BookAvailability{}, errs.ErrBookNotFound
		}
		return model.BookAvailability{}, err
	}
	return av, nil
}

func (r *repository) ListAvailability(ctx context.Context) ([]model.BookAvailability, error) {
	var avs []model.BookAvailability
	err := r.db.SelectContext(ctx, &avs, `
	select b.id, not exists(
		select 1 from rentals rr where rr.book_id = b.id and rr.return_date is null
	) as available
	from books b order by b.id`)
	return avs, err
}

func (r *repository) CreateUser(ctx context.Context, req model.UserCreateRequest) (model.User, error) {
	q, args, err := qb.Insert(usersTableName).
		Columns("email", "password", "role").
		Values(req.Email, req.Password, req.Role).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	var user model.User
	if err := r.db.GetContext(ctx, &user, q, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return model.User{}, errs.ErrUserExists
		}
		return model.User{}, err
	}
	return user, nil
}

func (r *repository) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	q, args, err := qb.Select("id", "email", "password", "role").
		From(usersTableName).
		Where(sq.Eq{"email": email}).
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	var user model.User
	if err := r.db.GetContext(ctx, &user, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, errs.ErrUserNotFound
		}
		return model.User{}, err
	}
	return user, nil
}

func (r *repository) ListUsers(ctx context.Context) ([]model.User, error) {
	q, args, err := qb.Select("id", "email", "password", "role").
		From(usersTableName).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	var users []model.User
	if err := r.db.SelectContext(ctx, &users, q, args...); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repository) SaveRentalEvent(ctx context.Context, event kafka.RentalEvent) error {
	q, args, err := qb.Insert(rentalEventsTableName).
		Columns("type", "rental_uid", "book_id", "user_id", "created_at").
		Values(event.Type, event.RentalUid, event.BookID, event.UserID, event.Timestamp).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	return err
}
