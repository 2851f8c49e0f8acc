package controllers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"Tavern/middleware"
	models "Tavern/models/postgres"
	"Tavern/services/apierror"
	"Tavern/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// @Summary Log in
// @Description Verifies the credentials, opens a session and returns a bearer token for the socket handshake
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,password=string} true "Credentials"
// @Success 200 {object} object{uuid=string,token=string}
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/auth/login [post]
func Login(db *gorm.DB, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.Abort(c, apierror.Of(apierror.InvalidJson))
			return
		}
		if strings.TrimSpace(req.Username) == "" || req.Password == "" {
			utils.Abort(c, apierror.Of(apierror.LoginFailed))
			return
		}

		var account models.Account
		if err := db.First(&account, "username = ?", req.Username).Error; err != nil {
			utils.Abort(c, apierror.Of(apierror.LoginFailed))
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)) != nil {
			utils.Abort(c, apierror.Of(apierror.LoginFailed))
			return
		}

		now := time.Now()
		if err := db.Model(&account).Update("last_login", now).Error; err != nil {
			log.Printf("[AUTH] updating last login: %v", err)
		}

		session := sessions.Default(c)
		session.Set(middleware.SessionKeyAccount, account.UUID.String())
		if err := session.Save(); err != nil {
			utils.Abort(c, apierror.Of(apierror.SessionError))
			return
		}

		token, err := middleware.IssueToken(jwtSecret, account.UUID)
		if err != nil {
			utils.Abort(c, apierror.Of(apierror.InternalServerError))
			return
		}

		c.JSON(http.StatusOK, gin.H{"uuid": account.UUID, "token": token})
	}
}

// @Summary Log out
// @Description Deletes the session of the executing account
// @Tags auth
// @Produce json
// @Success 200 {object} object{}
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/auth/logout [delete]
// @Security ApiKeyAuth
func Logout(c *gin.Context) {
	session := sessions.Default(c)
	if session.Get(middleware.SessionKeyAccount) == nil {
		utils.Abort(c, apierror.Of(apierror.SessionError))
		return
	}
	session.Delete(middleware.SessionKeyAccount)
	if err := session.Save(); err != nil {
		utils.Abort(c, apierror.Of(apierror.SessionError))
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}
