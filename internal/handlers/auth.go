package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"tipbox/internal/models"
	"tipbox/internal/store"
)

// AuthHandler owns signup and login.
type AuthHandler struct {
	Ledger    store.Ledger
	JwtSecret string
}

func NewAuthHandler(ledger store.Ledger, jwtSecret string) *AuthHandler {
	return &AuthHandler{Ledger: ledger, JwtSecret: jwtSecret}
}

// RegisterRequest defines the JSON struct we expect from the client.
// Role is optional and restricted; admins are never self-service.
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	Username    string `json:"username" binding:"required,min=3"`
	DisplayName string `json:"display_name" binding:"required"`
	Role        string `json:"role" binding:"omitempty,oneof=creator donator"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	// We MUST NOT store the plain-text password
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Println("Password hashing error:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error, please try again."})
		return
	}

	role := req.Role
	if role == "" {
		role = models.RoleDonator
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(passwordHash),
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		Role:         role,
		WidgetToken:  uuid.NewString(),
	}

	id, err := h.Ledger.CreateUser(user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email or username may already be in use."})
			return
		}
		log.Println("Failed to insert new user:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "User created successfully.",
		"user_id":  id,
		"email":    req.Email,
		"username": req.Username,
		"role":     role,
	})
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) createJWT(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  user.Role,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour * 24 * 7).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(h.JwtSecret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	user, err := h.Ledger.GetUserByEmail(req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password."})
			return
		}
		log.Println("Database error on login:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
		return
	}

	// Compare stored passwordHash with the user entered password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password."})
		return
	}

	tokenString, err := h.createJWT(user)
	if err != nil {
		log.Println("Failed to create JWT:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Login successful.", "token": tokenString})
}
