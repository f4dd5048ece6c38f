package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/amit918/Bookstore-backend/internal/errs"
	"github.com/amit918/Bookstore-backend/internal/handler"
	"github.com/amit918/Bookstore-backend/internal/model"
	"github.com/amit918/Bookstore-backend/pkg/validate"
	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	service_mocks "github.com/amit918/Bookstore-backend/internal/handler/mocks"
)

var rentDate = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func TestHandler_RentBook(t *testing.T) {
	t.Parallel()
	type input struct {
		body string
	}
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockRentalService)

	var tests = []struct {
		name         string
		mockBehavior mockBehavior
		input        input
		response     response
		wantErr      bool
	}{
		{
			name: "ok",
			mockBehavior: func(r *service_mocks.MockRentalService) {
				r.EXPECT().
					RentBook(context.Background(), 1, 7).
					Return(model.Rental{
						ID:        9,
						RentalUid: "7e4ba446-24d1-47b9-9f0d-c195e52d3b52",
						BookID:    1,
						UserID:    7,
						RentDate:  rentDate,
					}, nil)
			},
			input: input{body: `{"bookId":1,"userId":7}`},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"id":9,"rentalUid":"7e4ba446-24d1-47b9-9f0d-c195e52d3b52","bookId":1,"userId":7,"rentDate":"2024-01-02T03:04:05Z","returnDate":null}`,
			},
		},
		{
			name: "err. book unavailable",
			mockBehavior: func(r *service_mocks.MockRentalService) {
				r.EXPECT().
					RentBook(context.Background(), 1, 7).
					Return(model.Rental{}, errors.Wrap(errs.ErrBookUnavailable, "book 1"))
			},
			input: input{body: `{"bookId":1,"userId":7}`},
			response: response{
				expectedCode: http.StatusConflict,
				expectedBody: `{"message":"book 1: book is not available"}`,
			},
			wantErr: true,
		},
		{
			name: "err. book not found",
			mockBehavior: func(r *service_mocks.MockRentalService) {
				r.EXPECT().
					RentBook(context.Background(), 5, 7).
					Return(model.Rental{}, errors.Wrap(errs.ErrBookNotFound, "book 5"))
			},
			input: input{body: `{"bookId":5,"userId":7}`},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"book 5: book not found"}`,
			},
			wantErr: true,
		},
		{
			name: "err. user not found",
			mockBehavior: func(r *service_mocks.MockRentalService) {
				r.EXPECT().
					RentBook(context.Background(), 1, 42).
					Return(model.Rental{}, errors.Wrap(errs.ErrUserNotFound, "user 42"))
			},
			input: input{body: `{"bookId":1,"userId":42}`},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"user 42: user not found"}`,
			},
			wantErr: true,
		},
		{
			name:         "err. missing bookId",
			mockBehavior: func(r *service_mocks.MockRentalService) {},
			input:        input{body: `{"userId":7}`},
			response: response{
				expectedCode: http.StatusBadRequest,
			},
			wantErr: true,
		},
		{
			name: "err. internal",
			mockBehavior: func(r *service_mocks.MockRentalService) {
				r.EXPECT().
					RentBook(context.Background(), 1, 7).
					Return(model.Rental{}, errors.New("db internal"))
			},
			input: input{body: `{"bookId":1,"userId":7}`},
			response: response{
				expectedCode: http.StatusInternalServerError,
				expectedBody: `{"message":"db internal"}`,
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			rentalSvc := service_mocks.NewMockRentalService(c)
			log := zap.NewExample().Named("test")
			h := handler.New(nil, rentalSvc, nil, nil, log)

			e := echo.New()
			e.Validator = validate.NewCustomValidator()
			e.POST("/rentals", h.RentBook)

			r := httptest.NewRequest(http.MethodPost, "/rentals", strings.NewReader(tt.input.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()

			tt.mockBehavior(rentalSvc)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			if tt.response.expectedBody != "" {
				require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
			}
		})
	}
}

func TestHandler_ReturnRental(t *testing.T) {
	t.Parallel()
	returnDate := rentDate.Add(48 * time.Hour)

	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockRentalService)

	var tests = []struct {
		name         string
		mockBehavior mockBehavior
		rentalID     string
		response     response
		wantErr      bool
	}{
		{
			name: "ok",
			mockBehavior: func(r *service_mocks.MockRentalService) {
				r.EXPECT().
					ReturnRental(context.Background(), 9).
					Return(model.Rental{
						ID:         9,
						RentalUid:  "7e4ba446-24d1-47b9-9f0d-c195e52d3b52",
						BookID:     1,
						UserID:     7,
						RentDate:   rentDate,
						ReturnDate: &returnDate,
					}, nil)
			},
			rentalID: "9",
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"id":9,"rentalUid":"7e4ba446-24d1-47b9-9f0d-c195e52d3b52","bookId":1,"userId":7,"rentDate":"2024-01-02T03:04:05Z","returnDate":"2024-01-04T03:04:05Z"}`,
			},
		},
		{
			name: "err. rental not found",
			mockBehavior: func(r *service_mocks.MockRentalService) {
				r.EXPECT().
					ReturnRental(context.Background(), 77).
					Return(model.Rental{}, errors.Wrap(errs.ErrRentalNotFound, "rental 77"))
			},
			rentalID: "77",
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"rental 77: rental not found"}`,
			},
			wantErr: true,
		},
		{
			name: "err. already closed",
			mockBehavior: func(r *service_mocks.MockRentalService) {
				r.EXPECT().
					ReturnRental(context.Background(), 9).
					Return(model.Rental{}, errors.Wrap(errs.ErrRentalClosed, "rental 9"))
			},
			rentalID: "9",
			response: response{
				expectedCode: http.StatusConflict,
				expectedBody: `{"message":"rental 9: rental is already closed"}`,
			},
			wantErr: true,
		},
		{
			name:         "err. bad id",
			mockBehavior: func(r *service_mocks.MockRentalService) {},
			rentalID:     "abc",
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"invalid id"}`,
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			rentalSvc := service_mocks.NewMockRentalService(c)
			log := zap.NewExample().Named("test")
			h := handler.New(nil, rentalSvc, nil, nil, log)

			e := echo.New()
			e.Validator = validate.NewCustomValidator()
			e.POST("/rentals/:id/return", h.ReturnRental)

			r := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/rentals/%s/return", tt.rentalID), http.NoBody)
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()

			tt.mockBehavior(rentalSvc)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_DeleteBook(t *testing.T) {
	t.Parallel()
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockCatalogService)

	var tests = []struct {
		name         string
		mockBehavior mockBehavior
		bookID       string
		response     response
		wantErr      bool
	}{
		{
			name: "ok",
			mockBehavior: func(r *service_mocks.MockCatalogService) {
				r.EXPECT().
					DeleteBook(context.Background(), 1).
					Return(nil)
			},
			bookID: "1",
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `true`,
			},
		},
		{
			name: "err. currently rented",
			mockBehavior: func(r *service_mocks.MockCatalogService) {
				r.EXPECT().
					DeleteBook(context.Background(), 1).
					Return(errors.Wrap(errs.ErrBookRented, "book 1"))
			},
			bookID: "1",
			response: response{
				expectedCode: http.StatusConflict,
				expectedBody: `{"message":"book 1: book is currently rented"}`,
			},
			wantErr: true,
		},
		{
			name: "err. not found",
			mockBehavior: func(r *service_mocks.MockCatalogService) {
				r.EXPECT().
					DeleteBook(context.Background(), 5).
					Return(errors.Wrap(errs.ErrBookNotFound, "book 5"))
			},
			bookID: "5",
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"book 5: book not found"}`,
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			catalogSvc := service_mocks.NewMockCatalogService(c)
			log := zap.NewExample().Named("test")
			h := handler.New(catalogSvc, nil, nil, nil, log)

			e := echo.New()
			e.Validator = validate.NewCustomValidator()
			e.DELETE("/books/:id", h.DeleteBook)

			r := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/books/%s", tt.bookID), http.NoBody)
			w := httptest.NewRecorder()

			tt.mockBehavior(catalogSvc)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_GetAvailability(t *testing.T) {
	t.Parallel()
	c := gomock.NewController(t)
	defer c.Finish()
	catalogSvc := service_mocks.NewMockCatalogService(c)
	log := zap.NewExample().Named("test")
	h := handler.New(catalogSvc, nil, nil, nil, log)

	e := echo.New()
	e.Validator = validate.NewCustomValidator()
	e.GET("/books/:id/availability", h.GetAvailability)
	e.GET("/books/availability", h.ListAvailability)

	catalogSvc.EXPECT().
		GetAvailability(context.Background(), 1).
		Return(model.BookAvailability{BookID: 1, Available: false}, nil)

	r := httptest.NewRequest(http.MethodGet, "/books/1/availability", http.NoBody)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, `{"bookId":1,"available":false}`, strings.Trim(w.Body.String(), "\n"))

	catalogSvc.EXPECT().
		ListAvailability(context.Background()).
		Return([]model.BookAvailability{
			{BookID: 1, Available: false},
			{BookID: 2, Available: true},
		}, nil)

	r = httptest.NewRequest(http.MethodGet, "/books/availability", http.NoBody)
	w = httptest.NewRecorder()
	e.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, `[{"bookId":1,"available":false},{"bookId":2,"available":true}]`, strings.Trim(w.Body.String(), "\n"))
}
