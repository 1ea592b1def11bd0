package handler

import (
	"github.com/gin-gonic/gin"
	profileapp "github.com/tffhost/backend/internal/application/profile"
	"github.com/tffhost/backend/internal/domain/profile"
	"github.com/tffhost/backend/internal/domain/shared"
	"github.com/tffhost/backend/internal/interfaces/http/middleware"
)

// ProfileHandler handles the profile and KYC endpoints
type ProfileHandler struct {
	BaseHandler
	profiles *profileapp.Service
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(profiles *profileapp.Service) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// ProfileListQuery filters the profiles by KYC status
type ProfileListQuery struct {
	KYCStatus *int `form:"kyc_status" binding:"required,kyc_status"`
	Page      int  `form:"page" binding:"omitempty,min=1"`
	PageSize  int  `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// RegisterProfile godoc
// @ID           registerProfile
// @Summary      Register or refresh a user profile
// @Description  Called on login by the app; the KYC state is left untouched
// @Tags         profiles
// @Accept       json
// @Produce      json
// @Param        request body profileapp.RegisterRequest true "Profile"
// @Success      200 {object} APIResponse[profileapp.ProfileResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /profiles [post]
func (h *ProfileHandler) RegisterProfile(c *gin.Context) {
	var req profileapp.RegisterRequest
	if !h.BindJSON(c, &req) {
		return
	}
	p, err := h.profiles.Register(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, p)
}

// GetMyProfile godoc
// @ID           getMyProfile
// @Summary      Get the profile of the signed-in user
// @Tags         me
// @Produce      json
// @Success      200 {object} APIResponse[profileapp.ProfileResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /me/profile [get]
func (h *ProfileHandler) GetMyProfile(c *gin.Context) {
	h.get(c, middleware.GetUsername(c))
}

// GetProfile godoc
// @ID           getProfile
// @Summary      Get a user profile
// @Tags         profiles
// @Produce      json
// @Param        username path string true "Username"
// @Success      200 {object} APIResponse[profileapp.ProfileResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /profiles/{username} [get]
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	username, ok := h.PathUsername(c)
	if !ok {
		return
	}
	h.get(c, username)
}

func (h *ProfileHandler) get(c *gin.Context, username string) {
	p, err := h.profiles.Get(c.Request.Context(), username)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, p)
}

// ListProfiles godoc
// @ID           listProfiles
// @Summary      List profiles in a KYC status
// @Tags         profiles
// @Produce      json
// @Param        kyc_status query int true  "KYC status"
// @Param        page       query int false "Page number" default(1)
// @Param        page_size  query int false "Page size" default(50) maximum(100)
// @Success      200 {object} APIResponse[[]profileapp.ProfileResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /profiles [get]
func (h *ProfileHandler) ListProfiles(c *gin.Context) {
	var query ProfileListQuery
	if !h.BindQuery(c, &query) {
		return
	}
	filter := shared.DefaultFilter()
	filter.OrderBy = "updated_at"
	if query.Page > 0 {
		filter.Page = query.Page
	}
	if query.PageSize > 0 {
		filter.PageSize = query.PageSize
	}
	result, err := h.profiles.ListByKYCStatus(c.Request.Context(), profile.KYCStatus(*query.KYCStatus), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// SetKYCStatus godoc
// @ID           setKYCStatus
// @Summary      Move the KYC procedure of a user
// @Description  The caller is recorded as the author of the change
// @Tags         profiles
// @Accept       json
// @Produce      json
// @Param        username path string                          true "Username"
// @Param        request  body profileapp.SetKYCStatusRequest true "Status"
// @Success      200 {object} APIResponse[profileapp.ProfileResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /profiles/{username}/kyc/status [put]
func (h *ProfileHandler) SetKYCStatus(c *gin.Context) {
	username, ok := h.PathUsername(c)
	if !ok {
		return
	}
	var req profileapp.SetKYCStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	p, err := h.profiles.SetKYCStatus(c.Request.Context(), username, profile.KYCStatus(*req.Status), middleware.GetUsername(c), req.Comment)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, p)
}

// VerifyUtilityBill godoc
// @ID           verifyUtilityBill
// @Summary      Mark the utility bill of a user as verified
// @Tags         profiles
// @Produce      json
// @Param        username path string true "Username"
// @Success      200 {object} APIResponse[profileapp.ProfileResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /profiles/{username}/kyc/utility-bill/verify [post]
func (h *ProfileHandler) VerifyUtilityBill(c *gin.Context) {
	username, ok := h.PathUsername(c)
	if !ok {
		return
	}
	p, err := h.profiles.SetUtilityBillVerified(c.Request.Context(), username)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, p)
}
