package management

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"notifilter/internal/constants"
	"notifilter/internal/logger"
	"notifilter/pkg/errors"
)

type BaseHandler struct {
	Service Service
	Logger  logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	} else {
		h.Logger.WarnwCtx(c.Request.Context(), "Request rejected", "error", err, "path", c.Request.URL.Path)
	}

	c.JSON(status, errors.ToErrorResponse(err))
}

func (h *BaseHandler) bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return false
	}
	return true
}

type Handler struct {
	BaseHandler
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: BaseHandler{
			Service: service,
			Logger:  log,
		},
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		rules := v1.Group("/rules")
		{
			rules.GET("", h.ListRules)
			rules.POST("", h.CreateRule)
			rules.POST("/reload", h.ReloadRules)
			rules.GET("/:id", h.GetRule)
			rules.PUT("/:id", h.UpdateRule)
			rules.DELETE("/:id", h.DeleteRule)
		}

		v1.GET("/stats", h.GetStats)
		v1.POST("/evaluate", h.Evaluate)
	}
}

// ListRules serves GET /api/v1/rules?team_id=&channel_id=.
func (h *Handler) ListRules(c *gin.Context) {
	rules := h.Service.ListRules(c.Request.Context(), c.Query("team_id"), c.Query("channel_id"))
	c.JSON(http.StatusOK, ListRulesResponse{Rules: rules, Total: len(rules)})
}

func (h *Handler) CreateRule(c *gin.Context) {
	var req CreateRuleRequest
	if !h.bindJSON(c, &req) {
		return
	}

	rule, err := h.Service.CreateRule(c.Request.Context(), req, changedBy(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rule)
}

func (h *Handler) GetRule(c *gin.Context) {
	rule, err := h.Service.GetRule(c.Request.Context(), c.Param("id"), c.Query("team_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, rule)
}

func (h *Handler) UpdateRule(c *gin.Context) {
	var req CreateRuleRequest
	if !h.bindJSON(c, &req) {
		return
	}

	rule, err := h.Service.UpdateRule(c.Request.Context(), c.Param("id"), req, changedBy(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, rule)
}

func (h *Handler) DeleteRule(c *gin.Context) {
	err := h.Service.DeleteRule(c.Request.Context(), c.Param("id"), c.Query("team_id"), changedBy(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) ReloadRules(c *gin.Context) {
	if err := h.Service.ReloadRules(c.Request.Context(), changedBy(c)); err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.Service.Stats(c.Request.Context()))
}

func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.Service.Stats(c.Request.Context()))
}

// Evaluate runs an event through the engine without publishing it. Sinks
// still record the decision.
func (h *Handler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	decision, err := h.Service.Evaluate(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, decision)
}

func changedBy(c *gin.Context) string {
	if by := c.GetHeader(constants.HeaderChangedBy); by != "" {
		return by
	}
	return "api"
}
