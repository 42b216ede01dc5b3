package adaptor

import (
	"net/http"

	"mfa-service/internal/dto/request"
	"mfa-service/internal/usecase"
	"mfa-service/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type UserHandler struct {
	service usecase.UserService
	log     *zap.Logger
}

func NewUserHandler(service usecase.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		log:     log.With(zap.String("handler", "user")),
	}
}

// GetProfile handles GET /api/user/profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	profile, err := h.service.GetProfile(r.Context(), userID.String())
	if err != nil {
		handleServiceError(w, h.log, err, "get profile")
		return
	}

	utils.ResponseSuccess(w, "Profile retrieved successfully", profile)
}

// GetAllUsers handles GET /api/admin/users (admin only)
func (h *UserHandler) GetAllUsers(w http.ResponseWriter, r *http.Request) {
	req := request.PaginationFromQuery(r.URL.Query(), 10)

	users, err := h.service.GetAllUsers(r.Context(), req)
	if err != nil {
		handleServiceError(w, h.log, err, "get all users")
		return
	}

	utils.ResponseSuccess(w, "Users retrieved successfully", users)
}

// DeleteUser handles DELETE /api/admin/users/{id} (admin only)
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		utils.ResponseBadRequest(w, "User ID is required", nil)
		return
	}

	if err := h.service.DeleteUser(r.Context(), userID); err != nil {
		handleServiceError(w, h.log, err, "delete user")
		return
	}

	utils.ResponseSuccess(w, "User deleted successfully", nil)
}

// RequestEnableMFA handles POST /api/user/mfa/enable
func (h *UserHandler) RequestEnableMFA(w http.ResponseWriter, r *http.Request) {
	h.requestMFAChange(w, r, true)
}

// ConfirmEnableMFA handles POST /api/user/mfa/enable/confirm
func (h *UserHandler) ConfirmEnableMFA(w http.ResponseWriter, r *http.Request) {
	h.confirmMFAChange(w, r, true)
}

// RequestDisableMFA handles POST /api/user/mfa/disable
func (h *UserHandler) RequestDisableMFA(w http.ResponseWriter, r *http.Request) {
	h.requestMFAChange(w, r, false)
}

// ConfirmDisableMFA handles POST /api/user/mfa/disable/confirm
func (h *UserHandler) ConfirmDisableMFA(w http.ResponseWriter, r *http.Request) {
	h.confirmMFAChange(w, r, false)
}

func (h *UserHandler) requestMFAChange(w http.ResponseWriter, r *http.Request, enable bool) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	challenge, err := h.service.RequestMFAChange(r.Context(), userID.String(), enable)
	if err != nil {
		handleServiceError(w, h.log, err, "request MFA change")
		return
	}

	utils.ResponseSuccess(w, "OTP sent. Confirm with the code.", challenge)
}

func (h *UserHandler) confirmMFAChange(w http.ResponseWriter, r *http.Request, enable bool) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.ConfirmMFARequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.service.ConfirmMFAChange(r.Context(), userID.String(), enable, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "confirm MFA change")
		return
	}

	message := "MFA disabled"
	if enable {
		message = "MFA enabled"
	}
	utils.ResponseSuccess(w, message, user)
}
