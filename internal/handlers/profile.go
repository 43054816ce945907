package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	storage_go "github.com/supabase-community/storage-go"

	"tipbox/internal/models"
	"tipbox/internal/store"
)

const maxUploadBytes = 5 * 1024 * 1024

// ProfileHandler serves the public creator page and the caller's own
// profile. Media uploads go to a Supabase storage bucket.
type ProfileHandler struct {
	Ledger  store.Ledger
	Storage *storage_go.Client
}

func NewProfileHandler(ledger store.Ledger, storage *storage_go.Client) *ProfileHandler {
	return &ProfileHandler{Ledger: ledger, Storage: storage}
}

// GetCreatorPage is the public profile read. The donation gate is derived
// from the subscription row at read time; the user row carries no mirror
// of it.
func (h *ProfileHandler) GetCreatorPage(c *gin.Context) {
	username := c.Param("username")

	creator, err := h.Ledger.GetUserByUsername(username)
	if err != nil || creator.Role != models.RoleCreator {
		c.JSON(http.StatusNotFound, gin.H{"error": "Creator not found"})
		return
	}

	sub, err := h.Ledger.GetSubscriptionByUserID(creator.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Println("Failed to load subscription for creator page:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
		return
	}

	donations, err := h.Ledger.ListDonationsByCreator(creator.ID, true)
	if err != nil {
		log.Println("Failed to list donations for creator page:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
		return
	}

	// Mask anonymous pledges on the public surface.
	public := make([]gin.H, 0, len(donations))
	for _, d := range donations {
		name := "Anonymous"
		if !d.IsAnonymous && d.DonorName.Valid {
			name = d.DonorName.String
		}
		public = append(public, gin.H{
			"donor_name": name,
			"amount":     d.Amount,
			"message":    d.Message.String,
			"created_at": d.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"username":            creator.Username,
		"display_name":        creator.DisplayName,
		"bio":                 creator.Bio.String,
		"avatar_url":          creator.AvatarURL.String,
		"cover_url":           creator.CoverURL.String,
		"current_amount":      creator.CurrentAmount,
		"goal_amount":         creator.GoalAmount,
		"accepting_donations": sub.AcceptingAt(time.Now()),
		"donations":           public,
	})
}

func (h *ProfileHandler) GetMyProfile(c *gin.Context) {
	userID := c.GetInt("userID")

	profile, err := h.Ledger.GetUserByID(userID)
	if err != nil {
		log.Println("Failed to get profile:", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return
	}

	c.JSON(http.StatusOK, profile)
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
	GoalAmount  *int64  `json:"goal_amount" binding:"omitempty,gte=0"`
}

func (h *ProfileHandler) UpdateMyProfile(c *gin.Context) {
	userID := c.GetInt("userID")

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	user, err := h.Ledger.GetUserByID(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return
	}

	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if req.Bio != nil {
		user.Bio = nullString(*req.Bio)
	}
	if req.GoalAmount != nil {
		user.GoalAmount = *req.GoalAmount
	}

	if err := h.Ledger.UpdateUserProfile(user); err != nil {
		log.Println("Failed to update profile:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	h.uploadMedia(c, "avatar")
}

func (h *ProfileHandler) UploadCover(c *gin.Context) {
	h.uploadMedia(c, "cover")
}

func (h *ProfileHandler) uploadMedia(c *gin.Context, kind string) {
	if h.Storage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Media uploads are not configured"})
		return
	}

	userID := c.GetInt("userID")

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A 'file' form field is required"})
		return
	}
	defer file.Close()

	if header.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File exceeds the 5MB limit"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	path := fmt.Sprintf("user-%d/%s-%s%s", userID, kind, uuid.NewString(), filepath.Ext(header.Filename))

	_, err = h.Storage.UploadFile("media", path, file, storage_go.FileOptions{ContentType: &contentType})
	if err != nil {
		log.Println("Failed to upload media to storage:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed"})
		return
	}

	publicURL := h.Storage.GetPublicUrl("media", path).SignedURL

	user, err := h.Ledger.GetUserByID(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return
	}
	if kind == "avatar" {
		user.AvatarURL = nullString(publicURL)
	} else {
		user.CoverURL = nullString(publicURL)
	}
	if err := h.Ledger.UpdateUserProfile(user); err != nil {
		log.Println("Failed to save media URL:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "url": publicURL})
}
