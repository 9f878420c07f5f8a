package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mstanton/labtrack/internal/models"
	"github.com/mstanton/labtrack/internal/services"
	apperrors "github.com/mstanton/labtrack/pkg/errors"
	"github.com/mstanton/labtrack/pkg/response"
)

// LoanHandler serves the borrow lifecycle endpoints.
type LoanHandler struct {
	service *services.LoanService
}

type requestLoanRequest struct {
	ProductID          string `json:"product_id" validate:"required,uuid4"`
	ExpectedReturnDate string `json:"expected_return_date" validate:"required,futuredate"`
	Notes              string `json:"notes"`
}

// NewLoanHandler constructs a LoanHandler.
func NewLoanHandler(service *services.LoanService) *LoanHandler {
	return &LoanHandler{service: service}
}

// GET /api/loans
func (h *LoanHandler) List(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 20)

	loans, total, err := h.service.List(requestContext(c), actor, services.ListLoansOptions{
		Page:     page,
		PageSize: perPage,
		Filters: services.LoanFilters{
			UserID:    c.Query("user_id"),
			ProductID: c.Query("product_id"),
			Status:    models.BorrowStatus(c.Query("status")),
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, loans, response.NewMeta(page, perPage, total))
}

// GET /api/loans/mine
func (h *LoanHandler) Mine(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 20)

	loans, total, err := h.service.List(requestContext(c), actor, services.ListLoansOptions{
		Page:     page,
		PageSize: perPage,
		Filters: services.LoanFilters{
			UserID: actor.ID,
			Status: models.BorrowStatus(c.Query("status")),
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, loans, response.NewMeta(page, perPage, total))
}

// GET /api/loans/:id
func (h *LoanHandler) Get(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	loan, err := h.service.GetByID(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, loan)
}

// POST /api/loans
func (h *LoanHandler) Request(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var body requestLoanRequest
	if !bindAndValidate(c, &body) {
		return
	}

	expected, err := time.ParseInLocation("2006-01-02", body.ExpectedReturnDate, time.UTC)
	if err != nil {
		response.Error(c, apperrors.NewBadRequest("expected_return_date must be YYYY-MM-DD"))
		return
	}

	loan, err := h.service.Request(requestContext(c), actor, services.RequestLoanInput{
		ProductID:          body.ProductID,
		ExpectedReturnDate: expected,
		Notes:              body.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, loan)
}

// POST /api/loans/:id/approve
func (h *LoanHandler) Approve(c *gin.Context) {
	h.decide(c, services.DecisionApprove)
}

// POST /api/loans/:id/reject
func (h *LoanHandler) Reject(c *gin.Context) {
	h.decide(c, services.DecisionReject)
}

func (h *LoanHandler) decide(c *gin.Context, decision services.Decision) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	loan, err := h.service.Decide(requestContext(c), actor, c.Param("id"), decision)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, loan)
}

// POST /api/loans/:id/return
func (h *LoanHandler) Return(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	loan, err := h.service.Return(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, loan)
}

// POST /api/loans/:id/extend
func (h *LoanHandler) Extend(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	loan, err := h.service.Extend(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, loan)
}

// POST /api/loans/:id/undo-return
func (h *LoanHandler) UndoReturn(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	loan, err := h.service.UndoReturn(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, loan)
}

// GET /api/loans/overdue
func (h *LoanHandler) Overdue(c *gin.Context) {
	loans, err := h.service.ListOverdue(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, loans)
}

// GET /api/loans/history
func (h *LoanHandler) History(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 20)

	history, total, err := h.service.ListHistory(requestContext(c), actor, page, perPage)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, history, response.NewMeta(page, perPage, total))
}
