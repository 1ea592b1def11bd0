package handler

import (
	"github.com/gin-gonic/gin"
	nodeapp "github.com/tffhost/backend/internal/application/node"
	"github.com/tffhost/backend/internal/domain/node"
	"github.com/tffhost/backend/internal/interfaces/http/middleware"
)

// NodeHandler handles the node endpoints
type NodeHandler struct {
	BaseHandler
	nodes *nodeapp.Service
}

// NewNodeHandler creates a new NodeHandler
func NewNodeHandler(nodes *nodeapp.Service) *NodeHandler {
	return &NodeHandler{nodes: nodes}
}

// NodeListQuery filters nodes by status
type NodeListQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=running halted"`
}

// ListNodes godoc
// @ID           listNodes
// @Summary      List nodes with their owner
// @Description  Sorted by owner name, then node id. Without status every node is listed.
// @Tags         nodes
// @Produce      json
// @Param        status query string false "Node status" Enums(running, halted)
// @Success      200 {object} APIResponse[[]nodeapp.NodeStatusResponse]
// @Router       /nodes [get]
func (h *NodeHandler) ListNodes(c *gin.Context) {
	var query NodeListQuery
	if !h.BindQuery(c, &query) {
		return
	}
	nodes, err := h.nodes.ListByStatus(c.Request.Context(), node.Status(query.Status))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, nodes)
}

// AssignNodes godoc
// @ID           assignNodes
// @Summary      Assign nodes to a user
// @Tags         nodes
// @Accept       json
// @Produce      json
// @Param        request body nodeapp.AssignNodesRequest true "Nodes"
// @Success      200 {object} APIResponse[[]nodeapp.NodeResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /nodes/assign [post]
func (h *NodeHandler) AssignNodes(c *gin.Context) {
	var req nodeapp.AssignNodesRequest
	if !h.BindJSON(c, &req) {
		return
	}
	nodes, err := h.nodes.AssignNodes(c.Request.Context(), req.Username, req.Nodes)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, nodes)
}

// ListMyNodes godoc
// @ID           listMyNodes
// @Summary      List the nodes of the signed-in user
// @Tags         me
// @Produce      json
// @Success      200 {object} APIResponse[[]nodeapp.NodeResponse]
// @Router       /me/nodes [get]
func (h *NodeHandler) ListMyNodes(c *gin.Context) {
	nodes, err := h.nodes.ListForUser(c.Request.Context(), middleware.GetUsername(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, nodes)
}

// GetMyNodeStats godoc
// @ID           getMyNodeStats
// @Summary      Dashboard statistics of the signed-in user's nodes
// @Description  Mean of the last 6 hours in 15 minute windows
// @Tags         me
// @Produce      json
// @Success      200 {object} APIResponse[[]node.StatsView]
// @Failure      502 {object} ErrorResponse
// @Router       /me/nodes/stats [get]
func (h *NodeHandler) GetMyNodeStats(c *gin.Context) {
	h.stats(c, middleware.GetUsername(c))
}

// GetUserNodeStats godoc
// @ID           getUserNodeStats
// @Summary      Dashboard statistics of a user's nodes
// @Tags         nodes
// @Produce      json
// @Param        username path string true "Username"
// @Success      200 {object} APIResponse[[]node.StatsView]
// @Failure      502 {object} ErrorResponse
// @Router       /users/{username}/nodes/stats [get]
func (h *NodeHandler) GetUserNodeStats(c *gin.Context) {
	username, ok := h.PathUsername(c)
	if !ok {
		return
	}
	h.stats(c, username)
}

func (h *NodeHandler) stats(c *gin.Context, username string) {
	views, err := h.nodes.StatsForUser(c.Request.Context(), username)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, views)
}
