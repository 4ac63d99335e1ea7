package handler

import (
	"errors"
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ApproveRequestBody struct {
	Comment string `json:"comment"`
}

type PurchaseRequestHandler struct {
	prService   service.PurchaseRequestService
	workflow    service.WorkflowService
	userService service.UserService
}

func NewPurchaseRequestHandler(
	prService service.PurchaseRequestService,
	workflow service.WorkflowService,
	userService service.UserService,
) *PurchaseRequestHandler {
	return &PurchaseRequestHandler{
		prService:   prService,
		workflow:    workflow,
		userService: userService,
	}
}

func (h *PurchaseRequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	anyRole := middleware.RequireRole(
		model.RoleStaff, model.RoleApprover1, model.RoleApprover2, model.RoleFinance, model.RoleAdmin)
	approvers := middleware.RequireRole(h.workflow.Chain().Roles()...)

	requests := router.Group("/api/purchase-requests")
	{
		requests.POST("", middleware.RequireRole(model.RoleStaff, model.RoleAdmin), h.Create)
		requests.GET("", anyRole, h.List)
		requests.GET("/pending", approvers, h.ListPending)
		requests.GET("/:id", anyRole, h.Get)
		requests.PUT("/:id", middleware.RequireRole(model.RoleStaff, model.RoleAdmin), h.Update)
		requests.DELETE("/:id", middleware.RequireRole(model.RoleFinance, model.RoleAdmin), h.Delete)

		requests.POST("/:id/approve", approvers, h.Approve)
		requests.POST("/:id/reject", approvers, h.Reject)
		requests.GET("/:id/approvals", anyRole, h.ListApprovals)

		requests.POST("/:id/receipts", anyRole, h.SubmitReceipt)
		requests.GET("/:id/receipts", anyRole, h.ListReceipts)
	}
}

// Create handles POST /api/purchase-requests
// @Summary      Create purchase request
// @Description  Creates a PENDING purchase request with line items; total is computed server-side
// @Tags         purchase-requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreatePurchaseRequestRequest  true  "Purchase Request Payload"
// @Success      201      {object}  response.Response{data=service.PurchaseRequestResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/purchase-requests [post]
func (h *PurchaseRequestHandler) Create(c *gin.Context) {
	user, ok := currentUser(c, h.userService)
	if !ok {
		return
	}

	var req service.CreatePurchaseRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	pr, err := h.prService.Create(c.Request.Context(), user, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, pr))
}

// List handles GET /api/purchase-requests, scoped by the caller's role
// @Summary      List purchase requests
// @Tags         purchase-requests
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Router       /api/purchase-requests [get]
func (h *PurchaseRequestHandler) List(c *gin.Context) {
	user, ok := currentUser(c, h.userService)
	if !ok {
		return
	}

	params := pagination.Parse(c)
	requests, total, err := h.prService.List(c.Request.Context(), user, params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"requests": requests,
		"total":    total,
		"page":     params.Page,
		"limit":    params.Limit,
	}))
}

// ListPending handles GET /api/purchase-requests/pending: the approver work queue
// @Summary      List requests awaiting the caller's approval level
// @Tags         purchase-requests
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=object}
// @Failure      403  {object}  response.Response
// @Router       /api/purchase-requests/pending [get]
func (h *PurchaseRequestHandler) ListPending(c *gin.Context) {
	user, ok := currentUser(c, h.userService)
	if !ok {
		return
	}

	params := pagination.Parse(c)
	requests, total, err := h.prService.ListPending(c.Request.Context(), user, params.Page, params.Limit)
	if err != nil {
		if errors.Is(err, service.ErrForbidden) {
			c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Role has no approval level"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"requests": requests,
		"total":    total,
		"page":     params.Page,
		"limit":    params.Limit,
	}))
}

// Get handles GET /api/purchase-requests/:id
// @Summary      Get a purchase request
// @Tags         purchase-requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Purchase Request ID"
// @Success      200  {object}  response.Response{data=service.PurchaseRequestResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/purchase-requests/{id} [get]
func (h *PurchaseRequestHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	pr, err := h.prService.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Purchase request not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pr))
}

// Update handles PUT /api/purchase-requests/:id, allowed only for the creator while PENDING
// @Summary      Update a purchase request
// @Tags         purchase-requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                                true  "Purchase Request ID"
// @Param        payload  body      service.UpdatePurchaseRequestRequest  true  "Update Payload"
// @Success      200      {object}  response.Response{data=service.PurchaseRequestResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/purchase-requests/{id} [put]
func (h *PurchaseRequestHandler) Update(c *gin.Context) {
	user, ok := currentUser(c, h.userService)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req service.UpdatePurchaseRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	pr, err := h.prService.Update(c.Request.Context(), user, id, req)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Purchase request not found"))
		case errors.Is(err, service.ErrNotOwner):
			c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, err.Error()))
		case errors.Is(err, service.ErrNotPending):
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Only PENDING requests can be edited"))
		default:
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pr))
}

// Delete handles DELETE /api/purchase-requests/:id, restricted to finalized requests
// @Summary      Delete a purchase request
// @Tags         purchase-requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Purchase Request ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Router       /api/purchase-requests/{id} [delete]
func (h *PurchaseRequestHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c, h.userService)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.prService.Delete(c.Request.Context(), user, id); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Purchase request not found"))
		case errors.Is(err, service.ErrForbidden):
			c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, err.Error()))
		case errors.Is(err, service.ErrDeleteNotFinal):
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]string{"detail": "Deleted"}))
}

// Approve handles POST /api/purchase-requests/:id/approve. The caller's role
// determines the level they act at; the workflow payload is returned as-is so
// clients can key off its detail codes.
// @Summary      Approve a purchase request at the caller's level
// @Tags         workflow
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string              true   "Purchase Request ID"
// @Param        payload  body      ApproveRequestBody  false  "Optional comment"
// @Success      200      {object}  service.ApprovePayload
// @Failure      400      {object}  service.ErrorPayload
// @Failure      403      {object}  service.ErrorPayload
// @Failure      500      {object}  service.ErrorPayload
// @Router       /api/purchase-requests/{id}/approve [post]
func (h *PurchaseRequestHandler) Approve(c *gin.Context) {
	user, ok := currentUser(c, h.userService)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	level, ok := h.workflow.Chain().LevelForRole(user.Role)
	if !ok {
		c.JSON(http.StatusForbidden, service.ErrorPayload{Detail: "insufficient_role"})
		return
	}

	var body ApproveRequestBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, service.ErrorPayload{Detail: "invalid_payload", Error: err.Error()})
			return
		}
	}

	payload, status := h.workflow.Approve(c.Request.Context(), user, id, level, body.Comment)
	c.JSON(status, payload)
}

// Reject handles POST /api/purchase-requests/:id/reject at the request's current level
// @Summary      Reject a purchase request
// @Tags         workflow
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Purchase Request ID"
// @Success      200  {object}  service.RejectPayload
// @Failure      400  {object}  service.ErrorPayload
// @Router       /api/purchase-requests/{id}/reject [post]
func (h *PurchaseRequestHandler) Reject(c *gin.Context) {
	user, ok := currentUser(c, h.userService)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if _, ok := h.workflow.Chain().LevelForRole(user.Role); !ok {
		c.JSON(http.StatusForbidden, service.ErrorPayload{Detail: "insufficient_role"})
		return
	}

	payload, status := h.workflow.Reject(c.Request.Context(), user, id)
	c.JSON(status, payload)
}

// ListApprovals handles GET /api/purchase-requests/:id/approvals
// @Summary      List the decision trail of a purchase request
// @Tags         workflow
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Purchase Request ID"
// @Success      200  {object}  response.Response{data=[]service.ApprovalResponse}
// @Router       /api/purchase-requests/{id}/approvals [get]
func (h *PurchaseRequestHandler) ListApprovals(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	approvals, err := h.prService.ListApprovals(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, approvals))
}

// SubmitReceipt handles POST /api/purchase-requests/:id/receipts
// @Summary      Attach a proof-of-purchase receipt by URL
// @Tags         receipts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                        true  "Purchase Request ID"
// @Param        payload  body      service.SubmitReceiptRequest  true  "Receipt Payload"
// @Success      201      {object}  response.Response{data=service.ReceiptResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/purchase-requests/{id}/receipts [post]
func (h *PurchaseRequestHandler) SubmitReceipt(c *gin.Context) {
	user, ok := currentUser(c, h.userService)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req service.SubmitReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	receipt, err := h.prService.SubmitReceipt(c.Request.Context(), user, id, req)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Purchase request not found"))
		case errors.Is(err, service.ErrReceiptNotOwner):
			c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, err.Error()))
		case errors.Is(err, service.ErrReceiptRejected):
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		}
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, receipt))
}

// ListReceipts handles GET /api/purchase-requests/:id/receipts
// @Summary      List receipts attached to a purchase request
// @Tags         receipts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Purchase Request ID"
// @Success      200  {object}  response.Response{data=[]service.ReceiptResponse}
// @Router       /api/purchase-requests/{id}/receipts [get]
func (h *PurchaseRequestHandler) ListReceipts(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	receipts, err := h.prService.ListReceipts(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, receipts))
}
