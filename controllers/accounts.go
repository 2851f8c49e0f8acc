package controllers

import (
	"net/http"
	"strings"

	"Tavern/middleware"
	models "Tavern/models/postgres"
	"Tavern/services/apierror"
	"Tavern/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type registerRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

func accountResponse(a *models.Account) gin.H {
	return gin.H{
		"uuid":         a.UUID,
		"username":     a.Username,
		"display_name": a.DisplayName,
	}
}

// @Summary Register a new account
// @Description Creates an account with a unique username
// @Tags accounts
// @Accept json
// @Produce json
// @Param request body object{username=string,display_name=string,password=string} true "New account"
// @Success 200 {object} object{uuid=string}
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/accounts/register [post]
func Register(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.Abort(c, apierror.Of(apierror.InvalidJson))
			return
		}
		if strings.TrimSpace(req.Username) == "" {
			utils.Abort(c, apierror.Of(apierror.InvalidUsername))
			return
		}
		if strings.TrimSpace(req.DisplayName) == "" {
			utils.Abort(c, apierror.Of(apierror.InvalidDisplayName))
			return
		}
		if req.Password == "" {
			utils.Abort(c, apierror.Of(apierror.InvalidPassword))
			return
		}

		var count int64
		if err := db.Model(&models.Account{}).Where("username = ?", req.Username).Count(&count).Error; err != nil {
			utils.Abort(c, apierror.Of(apierror.DatabaseError))
			return
		}
		if count > 0 {
			utils.Abort(c, apierror.Of(apierror.UsernameAlreadyOccupied))
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			utils.Abort(c, apierror.Of(apierror.InternalServerError))
			return
		}

		account := models.Account{
			Username:     req.Username,
			DisplayName:  req.DisplayName,
			PasswordHash: string(hash),
		}
		if err := db.Create(&account).Error; err != nil {
			utils.Abort(c, apierror.Of(apierror.DatabaseError))
			return
		}
		c.JSON(http.StatusOK, gin.H{"uuid": account.UUID})
	}
}

// @Summary Get the executing account
// @Tags accounts
// @Produce json
// @Success 200 {object} object{uuid=string,username=string,display_name=string}
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/accounts/me [get]
// @Security ApiKeyAuth
func GetMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, accountResponse(utils.CurrentAccount(c)))
	}
}

type updateAccountRequest struct {
	Username    *string `json:"username"`
	DisplayName *string `json:"display_name"`
}

// @Summary Update the executing account
// @Description Changes username and/or display name. At least one field must be set
// @Tags accounts
// @Accept json
// @Produce json
// @Param request body object{username=string,display_name=string} false "Fields to update"
// @Success 200 {object} object{}
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/accounts/me [put]
// @Security ApiKeyAuth
func UpdateMe(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		account := utils.CurrentAccount(c)

		var req updateAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.Abort(c, apierror.Of(apierror.InvalidJson))
			return
		}
		if req.Username == nil && req.DisplayName == nil {
			utils.Abort(c, apierror.Of(apierror.EmptyJson))
			return
		}

		updates := map[string]any{}
		if req.Username != nil {
			if strings.TrimSpace(*req.Username) == "" {
				utils.Abort(c, apierror.Of(apierror.InvalidUsername))
				return
			}
			var count int64
			if err := db.Model(&models.Account{}).
				Where("username = ? AND uuid <> ?", *req.Username, account.UUID).
				Count(&count).Error; err != nil {
				utils.Abort(c, apierror.Of(apierror.DatabaseError))
				return
			}
			if count > 0 {
				utils.Abort(c, apierror.Of(apierror.UsernameAlreadyOccupied))
				return
			}
			updates["username"] = *req.Username
		}
		if req.DisplayName != nil {
			if strings.TrimSpace(*req.DisplayName) == "" {
				utils.Abort(c, apierror.Of(apierror.InvalidDisplayName))
				return
			}
			updates["display_name"] = *req.DisplayName
		}

		if err := db.Model(account).Updates(updates).Error; err != nil {
			utils.Abort(c, apierror.Of(apierror.DatabaseError))
			return
		}
		c.JSON(http.StatusOK, gin.H{})
	}
}

// @Summary Delete the executing account
// @Description Removes the account and ends the session
// @Tags accounts
// @Produce json
// @Success 200 {object} object{}
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/accounts/me [delete]
// @Security ApiKeyAuth
func DeleteMe(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		account := utils.CurrentAccount(c)
		if err := db.Delete(&models.Account{}, "uuid = ?", account.UUID).Error; err != nil {
			utils.Abort(c, apierror.Of(apierror.DatabaseError))
			return
		}

		session := sessions.Default(c)
		session.Delete(middleware.SessionKeyAccount)
		session.Save()
		c.JSON(http.StatusOK, gin.H{})
	}
}

type setPasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// @Summary Change the password of the executing account
// @Tags accounts
// @Accept json
// @Produce json
// @Param request body object{old_password=string,new_password=string} true "Passwords"
// @Success 200 {object} object{}
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/accounts/setPassword [post]
// @Security ApiKeyAuth
func SetPassword(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		account := utils.CurrentAccount(c)

		var req setPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.Abort(c, apierror.Of(apierror.InvalidJson))
			return
		}
		if req.NewPassword == "" {
			utils.Abort(c, apierror.Of(apierror.InvalidPassword))
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.OldPassword)) != nil {
			utils.Abort(c, apierror.Of(apierror.InvalidPassword))
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			utils.Abort(c, apierror.Of(apierror.InternalServerError))
			return
		}
		if err := db.Model(account).Update("password_hash", string(hash)).Error; err != nil {
			utils.Abort(c, apierror.Of(apierror.DatabaseError))
			return
		}
		c.JSON(http.StatusOK, gin.H{})
	}
}

// @Summary Look up an account by username
// @Tags accounts
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} object{uuid=string,username=string,display_name=string}
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/accounts/lookup/{username} [get]
// @Security ApiKeyAuth
func LookupByUsername(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var account models.Account
		if err := db.First(&account, "username = ?", c.Param("username")).Error; err != nil {
			utils.Abort(c, apierror.Of(apierror.NotFound))
			return
		}
		c.JSON(http.StatusOK, accountResponse(&account))
	}
}

// @Summary Look up an account by uuid
// @Tags accounts
// @Produce json
// @Param uuid path string true "Account uuid"
// @Success 200 {object} object{uuid=string,username=string,display_name=string}
// @Failure 400 {object} apierror.ApiError
// @Router /api/v2/accounts/{uuid} [get]
// @Security ApiKeyAuth
func LookupByUUID(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := utils.ParseUUIDParam(c, "uuid")
		if !ok {
			return
		}
		var account models.Account
		if err := db.First(&account, "uuid = ?", id).Error; err != nil {
			utils.Abort(c, apierror.Of(apierror.NotFound))
			return
		}
		c.JSON(http.StatusOK, accountResponse(&account))
	}
}
