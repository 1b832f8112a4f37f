package controllers

import (
	"net/http"
	"time"

	"civictrack/middlewares"
	"civictrack/services"
	"civictrack/utils"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	auth         *services.AuthService
	jwtSecret    string
	jwtTTL       time.Duration
	cookieDomain string
	secureCookie bool
}

func NewAuthController(auth *services.AuthService, jwtSecret string, jwtTTL time.Duration, cookieDomain string, secureCookie bool) *AuthController {
	return &AuthController{
		auth:         auth,
		jwtSecret:    jwtSecret,
		jwtTTL:       jwtTTL,
		cookieDomain: cookieDomain,
		secureCookie: secureCookie,
	}
}

// RegisterUser handles user registration
func (ctl *AuthController) RegisterUser(c *gin.Context) {
	var input struct {
		Name     string `json:"name" binding:"required,max=50"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	user, err := ctl.auth.Register(c.Request.Context(), services.RegisterInput{
		Name:     input.Name,
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// LoginUser checks credentials and sets the auth cookie. The token is also
// returned for clients that send it as a Bearer header.
func (ctl *AuthController) LoginUser(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	user, err := ctl.auth.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := utils.GenerateToken(user, ctl.jwtSecret, ctl.jwtTTL)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SetAuthCookie(c, token, ctl.jwtTTL, ctl.cookieDomain, ctl.secureCookie)
	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

// GetMe returns the authenticated user.
func (ctl *AuthController) GetMe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": middlewares.CurrentUser(c)})
}

// LogoutUser clears the auth cookie.
func (ctl *AuthController) LogoutUser(c *gin.Context) {
	utils.ClearAuthCookie(c, ctl.cookieDomain, ctl.secureCookie)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
