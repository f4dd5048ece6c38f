package handler

import (
	"net/http"
	"strconv"
	"time"

	md "github.com/amit918/Bookstore-backend/pkg/middleware"

	"github.com/amit918/Bookstore-backend/internal/errs"
	"github.com/amit918/Bookstore-backend/internal/model"
	"github.com/amit918/Bookstore-backend/pkg/kafka"
	"github.com/amit918/Bookstore-backend/pkg/validate"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Handler struct {
	catalogSvc CatalogService
	rentalSvc  RentalService
	authSvc    AuthService
	queue      Enqueuer
	log        *zap.Logger
}

func New(catalogSvc CatalogService, rentalSvc RentalService, authSvc AuthService, queue Enqueuer, log *zap.Logger) *Handler {
	h := &Handler{
		catalogSvc: catalogSvc,
		rentalSvc:  rentalSvc,
		authSvc:    authSvc,
		queue:      queue,
		log:        log,
	}
	return h
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig()),
		middleware.RequestID(),
		md.NewRateLimiter(apiRPS),
	)

	api.POST("/register", h.Register)
	api.POST("/authorize", h.Authorize)
	api.GET("/users", h.GetUsers)

	api.GET("/books", h.GetBooks)
	api.GET("/books/availability", h.ListAvailability)
	api.GET("/books/:id", h.GetBook)
	api.GET("/books/:id/availability", h.GetAvailability)
	api.POST("/books", h.CreateBook, md.JwtAuthentication)
	api.PATCH("/books/:id", h.UpdateBook, md.JwtAuthentication)
	api.DELETE("/books/:id", h.DeleteBook, md.JwtAuthentication)

	api.GET("/rentals", h.GetRentals)
	api.POST("/rentals", h.RentBook)
	api.POST("/rentals/:id/return", h.ReturnRental)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func httpError(err error) *echo.HTTPError {
	switch {
	case errs.NotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errs.Conflict(err):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func pathID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) RentBook(c echo.Context) error {
	var req model.RentBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	rental, err := h.rentalSvc.RentBook(ctx, req.BookID, req.UserID)
	if err != nil {
		return httpError(err)
	}

	h.enqueueEvent(kafka.EventRented, rental)
	return c.JSON(http.StatusOK, rental)
}

func (h *Handler) ReturnRental(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	rental, err := h.rentalSvc.ReturnRental(ctx, id)
	if err != nil {
		return httpError(err)
	}

	h.enqueueEvent(kafka.EventReturned, rental)
	return c.JSON(http.StatusOK, rental)
}

func (h *Handler) enqueueEvent(eventType string, rental model.Rental) {
	if h.queue == nil {
		return
	}
	event := kafka.RentalEvent{
		Type:      eventType,
		RentalUid: rental.RentalUid,
		RentalID:  rental.ID,
		BookID:    rental.BookID,
		UserID:    rental.UserID,
		Timestamp: time.Now().UTC(),
	}
	// best effort: the rental is already committed
	if err := h.queue.Enqueue(kafka.RentalTopic, event); err != nil {
		h.log.Warn("enqueue rental event", zap.Error(err))
	}
}

func (h *Handler) GetRentals(c echo.Context) error {
	rentals, err := h.rentalSvc.ListRentals(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rentals)
}

func (h *Handler) CreateBook(c echo.Context) error {
	var req model.CreateBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	book, err := h.catalogSvc.CreateBook(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, book)
}

func (h *Handler) UpdateBook(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req model.UpdateBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	book, err := h.catalogSvc.UpdateBook(c.Request().Context(), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) DeleteBook(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.catalogSvc.DeleteBook(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, true)
}

func (h *Handler) GetBook(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	book, err := h.catalogSvc.GetBook(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) GetBooks(c echo.Context) error {
	books, err := h.catalogSvc.ListBooks(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, books)
}

func (h *Handler) GetAvailability(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	av, err := h.catalogSvc.GetAvailability(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, av)
}

func (h *Handler) ListAvailability(c echo.Context) error {
	avs, err := h.catalogSvc.ListAvailability(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, avs)
}

func (h *Handler) Register(c echo.Context) error {
	var req model.UserCreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	user, err := h.authSvc.Register(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *Handler) Authorize(c echo.Context) error {
	var req model.AuthRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp, err := h.authSvc.Authorize(c.Request().Context(), req)
	if err != nil {
		if errs.NotFound(err) || errors.Is(err, errs.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetUsers(c echo.Context) error {
	users, err := h.authSvc.ListUsers(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, users)
}
