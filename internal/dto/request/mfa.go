package request

type ConfirmMFARequest struct {
	OTP string `json:"otp" validate:"required,otp"`
}
