package api

import (
	"net/http"

	"github.com/Freeeeeet/tutoring_scheduler/internal/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter собирает gin engine с маршрутами API
func NewRouter(h *Handler, tokens *auth.Manager, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.Use(JWTAuth(tokens))
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", h.CreateSession)
			sessions.GET("/:id", h.GetSession)
			sessions.PATCH("/:id", h.UpdateSession)
			sessions.POST("/:id/cancel", h.CancelSession)
			sessions.POST("/:id/status", h.ChangeStatus)
		}

		tutors := v1.Group("/tutors/:id")
		{
			tutors.GET("/sessions", h.ListTutorSessions)
			tutors.GET("/calendar.ics", h.TutorCalendar)
			tutors.GET("/availability", h.ListAvailability)
			tutors.POST("/availability", h.AddAvailabilitySlot)
			tutors.GET("/unavailable-dates", h.ListUnavailableDates)
			tutors.POST("/unavailable-dates", h.AddUnavailableDate)
		}

		v1.GET("/children/:id/sessions", h.ListChildSessions)
		v1.GET("/parents/:id/sessions", h.ListParentSessions)

		v1.PATCH("/availability/:id", h.UpdateAvailabilitySlot)
		v1.DELETE("/availability/:id", h.DeleteAvailabilitySlot)
		v1.DELETE("/unavailable-dates/:id", h.DeleteUnavailableDate)

		v1.POST("/telegram/link", h.LinkTelegram)
	}

	return r
}
