package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type ApprovalHandler struct {
	prService   service.PurchaseRequestService
	workflow    service.WorkflowService
	userService service.UserService
}

func NewApprovalHandler(
	prService service.PurchaseRequestService,
	workflow service.WorkflowService,
	userService service.UserService,
) *ApprovalHandler {
	return &ApprovalHandler{
		prService:   prService,
		workflow:    workflow,
		userService: userService,
	}
}

func (h *ApprovalHandler) RegisterRoutes(router *gin.RouterGroup) {
	approvers := middleware.RequireRole(h.workflow.Chain().Roles()...)

	group := router.Group("/api/approvals")
	{
		group.GET("/my-approved", approvers, h.MyApproved)
		group.GET("/my-rejected", approvers, h.MyRejected)
	}
}

// MyApproved handles GET /api/approvals/my-approved
// @Summary      List requests the caller has approved
// @Tags         workflow
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.DecisionResponse}
// @Router       /api/approvals/my-approved [get]
func (h *ApprovalHandler) MyApproved(c *gin.Context) {
	h.listDecisions(c, model.DecisionApproved)
}

// MyRejected handles GET /api/approvals/my-rejected
// @Summary      List requests the caller has rejected
// @Tags         workflow
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.DecisionResponse}
// @Router       /api/approvals/my-rejected [get]
func (h *ApprovalHandler) MyRejected(c *gin.Context) {
	h.listDecisions(c, model.DecisionRejected)
}

func (h *ApprovalHandler) listDecisions(c *gin.Context, decision string) {
	user, ok := currentUser(c, h.userService)
	if !ok {
		return
	}

	decisions, err := h.prService.ListMyDecisions(c.Request.Context(), user, decision)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, decisions))
}
