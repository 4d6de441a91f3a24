package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"kiosk/internal/attendance"
	"kiosk/internal/auth"
	"kiosk/internal/certification"
	"kiosk/internal/directory"
	"kiosk/internal/faceclient"
	"kiosk/internal/metrics"
	"kiosk/internal/photos"
	"kiosk/internal/queue"
	"kiosk/internal/report"
	"kiosk/internal/sentinel"
)

// Directory is the slice of the user directory the HTTP surface needs.
// *directory.Repository satisfies it; tests plug in a memory fake.
type Directory interface {
	Create(ctx context.Context, name, badgeCode string) (int64, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]directory.User, error)
	ListByStatus(ctx context.Context, status directory.Status) ([]directory.User, error)
	GetByID(ctx context.Context, id int64) (directory.User, error)
	SetPhoto(ctx context.Context, id int64, url string) error
	SetFaceDescriptor(ctx context.Context, id int64, descriptor []byte) error
}

// Handler wires the kiosk and admin endpoints to the core components.
type Handler struct {
	engine  *attendance.Engine
	users   Directory
	certs   certification.Store
	deriver *report.Deriver
	queue   queue.Queue
	photos  *photos.Client // nil if Cloudinary not configured
	face    *faceclient.Client

	adminKey      string
	jwtIssuer     string
	jwtSigningKey string
	accessTTL     time.Duration
}

// Config carries the auth settings the handler needs.
type Config struct {
	AdminKey      string
	JWTIssuer     string
	JWTSigningKey string
	AccessTTL     time.Duration
}

// New creates a handler.
func New(engine *attendance.Engine, users Directory, certs certification.Store,
	deriver *report.Deriver, q queue.Queue, cdn *photos.Client, face *faceclient.Client, cfg Config) *Handler {
	return &Handler{
		engine:        engine,
		users:         users,
		certs:         certs,
		deriver:       deriver,
		queue:         q,
		photos:        cdn,
		face:          face,
		adminKey:      cfg.AdminKey,
		jwtIssuer:     cfg.JWTIssuer,
		jwtSigningKey: cfg.JWTSigningKey,
		accessTTL:     cfg.AccessTTL,
	}
}

// Register mounts all routes. Admin routes sit behind JWT auth.
func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api")
	api.POST("/get-user-status", h.GetUserStatus)
	api.POST("/check-in", h.CheckIn)
	api.POST("/check-out", h.CheckOut)
	api.POST("/break/start", h.BreakStart)
	api.POST("/break/end", h.BreakEnd)
	api.GET("/status/onbreak", h.OnBreak)
	api.GET("/status/checkedin", h.CheckedIn)
	api.POST("/admin/login", h.AdminLogin)

	admin := api.Group("/admin", auth.AdminAuth(h.jwtSigningKey, h.jwtIssuer))
	admin.GET("/users", h.ListUsers)
	admin.POST("/users/create", h.CreateUser)
	admin.DELETE("/users/delete/:id", h.DeleteUser)
	admin.POST("/force-checkout", h.ForceCheckout)
	admin.GET("/attendance/report", h.AttendanceJSON)
	admin.GET("/attendance/download", h.AttendanceCSV)
	admin.GET("/attendance/pdf", h.AttendancePDF)
	admin.GET("/certifications", h.ListCertifications)
	admin.POST("/certifications/create", h.CreateCertification)
	admin.POST("/certifications/assign", h.AssignCertification)
	admin.DELETE("/certifications/revoke/:userId/:certId", h.RevokeCertification)
	admin.GET("/users/:id/certifications", h.UserCertifications)
	admin.POST("/users/:id/photo", h.UploadPhoto)
	admin.POST("/users/:id/face", h.EnrollFace)
}

type badgeRequest struct {
	BadgeCode string `json:"rfid_code" binding:"required"`
}

type userIDRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// ---------- Kiosk ----------

// GetUserStatus returns a user's status without changing it.
func (h *Handler) GetUserStatus(c *gin.Context) {
	var req badgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "RFID code is required."})
		return
	}
	user, err := h.engine.GetStatus(c.Request.Context(), attendance.ByBadge(req.BadgeCode))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// CheckIn moves a checked-out user to checked_in.
func (h *Handler) CheckIn(c *gin.Context) {
	var req badgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "RFID code is required."})
		return
	}
	h.transition(c, attendance.ByBadge(req.BadgeCode), attendance.ActionCheckIn,
		func(u directory.User) string { return fmt.Sprintf("Welcome, %s! You are now checked in.", u.Name) })
}

// CheckOut moves a checked-in user to checked_out. A user on break must end
// the break first.
func (h *Handler) CheckOut(c *gin.Context) {
	var req badgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "RFID code is required."})
		return
	}
	h.transition(c, attendance.ByBadge(req.BadgeCode), attendance.ActionCheckOut,
		func(u directory.User) string { return fmt.Sprintf("Goodbye, %s! You are now checked out.", u.Name) })
}

// BreakStart moves a checked-in user onto a break.
func (h *Handler) BreakStart(c *gin.Context) {
	var req badgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "RFID code is required."})
		return
	}
	h.transition(c, attendance.ByBadge(req.BadgeCode), attendance.ActionBreakStart,
		func(u directory.User) string { return fmt.Sprintf("%s, you are now on break.", u.Name) })
}

// BreakEnd returns a user from break. The tablet UI addresses this by user id.
func (h *Handler) BreakEnd(c *gin.Context) {
	var req userIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID is required."})
		return
	}
	h.transition(c, attendance.ByID(req.UserID), attendance.ActionBreakEnd,
		func(u directory.User) string { return fmt.Sprintf("%s, break is over. You are now checked in.", u.Name) })
}

func (h *Handler) transition(c *gin.Context, ref attendance.Ref, action attendance.Action, message func(directory.User) string) {
	user, err := h.engine.Apply(c.Request.Context(), ref, action)
	if err != nil {
		h.renderError(c, err)
		return
	}
	h.publish(c.Request.Context(), user, action)
	c.JSON(http.StatusOK, gin.H{"message": message(user), "user": user})
}

// publish hands the accepted transition to the worker queue. Failures are
// logged only: the presence cache is advisory and the log already committed.
func (h *Handler) publish(ctx context.Context, user directory.User, action attendance.Action) {
	if h.queue == nil {
		return
	}
	body, err := json.Marshal(attendance.Event{
		UserID: user.ID,
		Name:   user.Name,
		Action: action,
		Status: user.Status,
		At:     time.Now(),
	})
	if err != nil {
		return
	}
	if err := h.queue.Publish(ctx, queue.NewMessage("transition", body)); err != nil {
		log.Printf("queue publish failed: %v", err)
	}
}

// OnBreak lists users currently on break.
func (h *Handler) OnBreak(c *gin.Context) {
	users, err := h.users.ListByStatus(c.Request.Context(), directory.StatusOnBreak)
	if err != nil {
		h.renderError(c, err)
		return
	}
	out := make([]gin.H, 0, len(users))
	for _, u := range users {
		out = append(out, gin.H{"id": u.ID, "name": u.Name})
	}
	c.JSON(http.StatusOK, gin.H{"users_on_break": out})
}

// CheckedIn lists the names of checked-in users.
func (h *Handler) CheckedIn(c *gin.Context) {
	users, err := h.users.ListByStatus(c.Request.Context(), directory.StatusCheckedIn)
	if err != nil {
		h.renderError(c, err)
		return
	}
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Name)
	}
	c.JSON(http.StatusOK, gin.H{"users_checked_in": names})
}

// ---------- Admin ----------

// AdminLogin exchanges the shared admin key for a JWT.
func (h *Handler) AdminLogin(c *gin.Context) {
	var req struct {
		AdminKey string `json:"admin_key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "admin_key is required"})
		return
	}
	if req.AdminKey != h.adminKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin key"})
		return
	}
	token, exp, err := auth.Issue("admin-console", auth.RoleAdmin, h.jwtIssuer, h.jwtSigningKey, h.accessTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "expires_at": exp.Unix()})
}

// ListUsers returns every directory entry.
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	if users == nil {
		users = []directory.User{}
	}
	c.JSON(http.StatusOK, users)
}

// CreateUser registers a user; the badge code must be unused.
func (h *Handler) CreateUser(c *gin.Context) {
	var req struct {
		Name      string `json:"name" binding:"required"`
		BadgeCode string `json:"rfid_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name and RFID code are required."})
		return
	}
	id, err := h.users.Create(c.Request.Context(), req.Name, req.BadgeCode)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("RFID code %q is already in use.", req.BadgeCode)})
			return
		}
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User created successfully.", "userId": id})
}

// DeleteUser removes a user. Historical log entries stay behind.
func (h *Handler) DeleteUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("User with ID %d deleted successfully.", id)})
}

// ForceCheckout checks a user out regardless of breaks.
func (h *Handler) ForceCheckout(c *gin.Context) {
	var req userIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID is required."})
		return
	}
	user, err := h.engine.ForceCheckout(c.Request.Context(), req.UserID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	h.publish(c.Request.Context(), user, attendance.ActionForceCheckout)
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("%s has been forced to check out.", user.Name), "user": user})
}

// ---------- Reports ----------

func (h *Handler) derive(c *gin.Context) (*report.Report, bool) {
	rep, err := h.deriver.Derive(c.Request.Context(), c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	if rep.Len() == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "No attendance data found for this date."})
		return nil, false
	}
	return rep, true
}

// AttendanceJSON returns the derived sessions for a date.
func (h *Handler) AttendanceJSON(c *gin.Context) {
	rep, ok := h.derive(c)
	if !ok {
		return
	}
	metrics.ReportGenerated("json")
	users := make([]report.UserDay, 0, rep.Len())
	for day := range rep.Users() {
		users = append(users, day)
	}
	c.JSON(http.StatusOK, gin.H{"date": rep.Date, "users": users})
}

// AttendanceCSV streams the raw log for a date as CSV.
func (h *Handler) AttendanceCSV(c *gin.Context) {
	rep, ok := h.derive(c)
	if !ok {
		return
	}
	metrics.ReportGenerated("csv")
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, rep); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "attendance_log_"+rep.Date+".csv"))
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// AttendancePDF renders the human-readable report for a date.
func (h *Handler) AttendancePDF(c *gin.Context) {
	rep, ok := h.derive(c)
	if !ok {
		return
	}
	metrics.ReportGenerated("pdf")
	var buf bytes.Buffer
	if err := report.WritePDF(&buf, rep); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "attendance_report_"+rep.Date+".pdf"))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// ---------- Certifications ----------

// ListCertifications returns all certifications.
func (h *Handler) ListCertifications(c *gin.Context) {
	certs, err := h.certs.List(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	if certs == nil {
		certs = []certification.Certification{}
	}
	c.JSON(http.StatusOK, certs)
}

// CreateCertification adds a certification with a unique name.
func (h *Handler) CreateCertification(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Certification name is required."})
		return
	}
	id, err := h.certs.Create(c.Request.Context(), req.Name)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("A certification with the name %q already exists.", req.Name)})
			return
		}
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Certification created successfully.", "certificationId": id})
}

// AssignCertification records that a user holds a certification.
func (h *Handler) AssignCertification(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
		CertID int64 `json:"certification_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID and Certification ID are required."})
		return
	}
	if err := h.certs.Assign(c.Request.Context(), req.UserID, req.CertID); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "This certification is already assigned to this user."})
			return
		}
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Certification assigned successfully."})
}

// RevokeCertification removes an assignment.
func (h *Handler) RevokeCertification(c *gin.Context) {
	userID, err1 := strconv.ParseInt(c.Param("userId"), 10, 64)
	certID, err2 := strconv.ParseInt(c.Param("certId"), 10, 64)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ids"})
		return
	}
	if err := h.certs.Revoke(c.Request.Context(), userID, certID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No such certification assignment found."})
			return
		}
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Certification revoked successfully."})
}

// UserCertifications lists a user's certifications.
func (h *Handler) UserCertifications(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	certs, err := h.certs.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if certs == nil {
		certs = []certification.Certification{}
	}
	c.JSON(http.StatusOK, certs)
}

// ---------- Enrollment ----------

// UploadPhoto stores a user photo in Cloudinary and records its URL.
func (h *Handler) UploadPhoto(c *gin.Context) {
	if h.photos == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured"})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read file failed"})
		return
	}
	upload, err := h.photos.UploadPhoto(c.Request.Context(), data, header.Filename)
	if err != nil {
		log.Printf("cloudinary upload failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
		return
	}
	if err := h.users.SetPhoto(c.Request.Context(), id, upload.SecureURL); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": upload.SecureURL, "public_id": upload.PublicID})
}

// EnrollFace computes and stores a face descriptor from the user's photo.
func (h *Handler) EnrollFace(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	var req struct {
		ImageURL string `json:"image_url"`
	}
	_ = c.ShouldBindJSON(&req)

	imageURL := req.ImageURL
	if imageURL == "" {
		user, err := h.users.GetByID(c.Request.Context(), id)
		if err != nil {
			h.renderError(c, err)
			return
		}
		if user.PhotoURL == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no photo on file; upload one or pass image_url"})
			return
		}
		imageURL = *user.PhotoURL
	}

	result, err := h.face.Descriptor(c.Request.Context(), imageURL)
	if err != nil {
		log.Printf("face enrollment failed for user %d: %v", id, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "face enrollment failed"})
		return
	}
	descriptor, err := json.Marshal(result.Descriptor)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "descriptor encode failed"})
		return
	}
	if err := h.users.SetFaceDescriptor(c.Request.Context(), id, descriptor); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Face enrolled successfully.", "score": result.Score})
}

// renderError maps core errors onto the HTTP surface.
func (h *Handler) renderError(c *gin.Context, err error) {
	var ite *attendance.InvalidTransitionError
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found."})
	case errors.As(err, &ite):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          ite.Reason,
			"current_status": ite.Current,
			"action":         ite.Action,
		})
	case errors.Is(err, attendance.ErrUnknownAction), errors.Is(err, directory.ErrUnknownStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
