package dto

// LoginRequest is the form payload for login.
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// SignupRequest is the form payload for registration. Field names match the
// signup form the frontend submits.
type SignupRequest struct {
	Username        string `form:"username" json:"username"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirmPassword" json:"confirmPassword"`
	InviteKey       string `form:"inviteKey" json:"inviteKey"`
	IQOverride      string `form:"iqOverride" json:"iqOverride"`
	SessionID       string `form:"sessionId" json:"sessionId"`
	IQScore         string `form:"iqScore" json:"iqScore"`
}

// AuthFailure is the failure body both auth endpoints return.
type AuthFailure struct {
	Success  bool   `json:"success"`
	Error    string `json:"error"`
	Username string `json:"username,omitempty"`
}
