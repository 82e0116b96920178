package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dermassist/client/internal/backend"
	"dermassist/client/internal/forms"
	"dermassist/client/internal/middleware"
	"dermassist/client/internal/service"
)

func (h HandlerSet) Home(c *gin.Context) {
	h.render(c, http.StatusOK, "home.html", gin.H{
		"Title":          "Screen a Skin Lesion",
		"Capture":        h.capture.Status(),
		"Analysis":       h.runner.Status(),
		"MaxUploadBytes": h.cfg.Analysis.MaxUploadBytes,
	})
}

func (h HandlerSet) Profile(c *gin.Context) {
	snap := middleware.CurrentSession(c, h.sessions)
	history := h.history.Load(c.Request.Context(), snap.Token)

	fullName := ""
	if snap.User != nil {
		fullName = snap.User.FullName
	}
	h.render(c, http.StatusOK, "profile.html", gin.H{
		"Title":    "My Profile",
		"Initials": service.Initials(fullName),
		"History":  history,
	})
}

func (h HandlerSet) LoginPage(c *gin.Context) {
	h.render(c, http.StatusOK, "login.html", gin.H{"Title": "Sign In", "Form": forms.Login{}})
}

func (h HandlerSet) Login(c *gin.Context) {
	var form forms.Login
	_ = c.ShouldBind(&form)

	fail := func(status int, msg string) {
		form.Password = ""
		h.render(c, status, "login.html", gin.H{"Title": "Sign In", "Form": form, "Error": msg})
	}

	if msg := form.Validate(); msg != "" {
		fail(http.StatusBadRequest, msg)
		return
	}

	err := h.sessions.Login(c.Request.Context(), form.Username, form.Password)
	switch {
	case err == nil:
		c.Redirect(http.StatusSeeOther, "/")
	case errors.Is(err, service.ErrSuperseded):
		c.Redirect(http.StatusSeeOther, "/login")
	default:
		fail(statusOf(err), detailOr(err, forms.MsgLoginFailed))
	}
}

func (h HandlerSet) RegisterPage(c *gin.Context) {
	h.render(c, http.StatusOK, "register.html", gin.H{
		"Title":    "Create Account",
		"Form":     forms.Register{},
		"Strength": forms.PasswordStrength(""),
	})
}

func (h HandlerSet) SignUp(c *gin.Context) {
	var form forms.Register
	_ = c.ShouldBind(&form)

	fail := func(status int, msg string) {
		strength := forms.PasswordStrength(form.Password)
		form.Password, form.ConfirmPassword = "", ""
		h.render(c, status, "register.html", gin.H{
			"Title":    "Create Account",
			"Form":     form,
			"Strength": strength,
			"Error":    msg,
		})
	}

	if msg := form.Validate(); msg != "" {
		fail(http.StatusBadRequest, msg)
		return
	}

	err := h.sessions.Register(c.Request.Context(), form.Input())
	switch {
	case err == nil:
		c.Redirect(http.StatusSeeOther, "/")
	case errors.Is(err, service.ErrSuperseded):
		c.Redirect(http.StatusSeeOther, "/register")
	default:
		fail(statusOf(err), detailOr(err, forms.MsgRegisterFailed))
	}
}

func (h HandlerSet) Logout(c *gin.Context) {
	h.sessions.Logout(c.Request.Context())
	c.Redirect(http.StatusSeeOther, "/login")
}

func (h HandlerSet) ForgotPasswordPage(c *gin.Context) {
	h.render(c, http.StatusOK, "forgot_password.html", gin.H{"Title": "Forgot Password"})
}

// ForgotPassword always reports success once the backend accepts the
// request, whether or not the address is registered.
func (h HandlerSet) ForgotPassword(c *gin.Context) {
	var form forms.ForgotPassword
	_ = c.ShouldBind(&form)

	data := gin.H{"Title": "Forgot Password", "Email": form.Email}
	if msg := form.Validate(); msg != "" {
		data["Error"] = msg
		h.render(c, http.StatusBadRequest, "forgot_password.html", data)
		return
	}

	if err := h.accounts.ForgotPassword(c.Request.Context(), form.Email); err != nil {
		h.log.Warn().Err(err).Msg("forgot password request failed")
		data["Error"] = detailOr(err, forms.MsgForgotFailed)
		h.render(c, statusOf(err), "forgot_password.html", data)
		return
	}

	data["Sent"] = true
	h.render(c, http.StatusOK, "forgot_password.html", data)
}

func (h HandlerSet) ResetPasswordPage(c *gin.Context) {
	token := c.Query("token")
	data := gin.H{"Title": "Reset Password", "Token": token, "Strength": forms.PasswordStrength("")}
	if token == "" {
		data["Error"] = forms.ResetPassword{}.Validate()
	}
	h.render(c, http.StatusOK, "reset_password.html", data)
}

func (h HandlerSet) ResetPassword(c *gin.Context) {
	var form forms.ResetPassword
	_ = c.ShouldBind(&form)
	if form.Token == "" {
		form.Token = c.Query("token")
	}

	data := gin.H{
		"Title":    "Reset Password",
		"Token":    form.Token,
		"Strength": forms.PasswordStrength(form.Password),
	}
	if msg := form.Validate(); msg != "" {
		data["Error"] = msg
		h.render(c, http.StatusBadRequest, "reset_password.html", data)
		return
	}

	if err := h.accounts.ResetPassword(c.Request.Context(), form.Token, form.Password); err != nil {
		h.log.Warn().Err(err).Msg("password reset failed")
		data["Error"] = detailOr(err, forms.MsgResetFailed)
		h.render(c, statusOf(err), "reset_password.html", data)
		return
	}

	data["Success"] = true
	h.render(c, http.StatusOK, "reset_password.html", data)
}

func detailOr(err error, fallback string) string {
	if msg := backend.Detail(err); msg != "" {
		return msg
	}
	return fallback
}

// statusOf mirrors a backend status onto the page response.
func statusOf(err error) int {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return apiErr.Status
	}
	return http.StatusBadGateway
}
