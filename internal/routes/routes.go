package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/aliialzein/PsyConnect/internal/config"
	"github.com/aliialzein/PsyConnect/internal/handlers"
	"github.com/aliialzein/PsyConnect/internal/middleware"
	"github.com/aliialzein/PsyConnect/internal/models"
	"github.com/aliialzein/PsyConnect/internal/repository"
	"github.com/aliialzein/PsyConnect/internal/services"
)

// RegisterRoutes wires repositories, services and handlers onto the app. The
// returned ReminderService is the background loop; the caller owns its
// lifecycle.
func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, log zerolog.Logger) *services.ReminderService {
	userRepo := repository.NewUserRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	reviewRepo := repository.NewReviewRepository(db)

	var mailer services.EmailSender
	if cfg.SMTPHost != "" && cfg.SMTPFrom != "" {
		smtpSender, err := services.NewSMTPEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
		if err != nil {
			log.Warn().Err(err).Msg("SMTP sender unavailable; falling back to log sender")
			mailer = &services.LogEmailSender{Log: log}
		} else {
			mailer = smtpSender
		}
	} else {
		mailer = &services.LogEmailSender{Log: log}
	}

	var openAIClient *services.OpenAIClient
	if cfg.OpenAIAPIKey != "" {
		openAIClient = services.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}

	var checkout services.CheckoutProvider
	if cfg.StripeSecretKey != "" {
		checkout = services.NewStripeCheckout(cfg.StripeSecretKey)
	}

	statusService := services.NewStatusService(bookingRepo, log)
	bookingService := services.NewBookingService(db, bookingRepo, reservationRepo, reviewRepo, statusService, userRepo, mailer, log)
	reviewService := services.NewReviewService(reviewRepo, bookingRepo)
	summaryService := services.NewSummaryService(openAIClient, log)
	assistantService := services.NewAssistantService(openAIClient)
	reminderService := services.NewReminderService(bookingRepo, userRepo, statusService, mailer, cfg.ReminderInterval, cfg.DigestHour, log)

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	bookingHandler := handlers.NewBookingHandler(bookingService)
	paymentHandler := handlers.NewPaymentHandler(bookingService, checkout, cfg.BaseURL)
	reviewHandler := handlers.NewReviewHandler(reviewService)
	adminHandler := handlers.NewAdminHandler(bookingRepo, summaryService)
	assistantHandler := handlers.NewAssistantHandler(assistantService)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	// provider return URLs carry no bearer token
	payments := api.Group("/payments")
	payments.Get("/success", paymentHandler.Success)
	payments.Get("/cancel", paymentHandler.Cancel)

	protected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	bookings := protected.Group("/bookings")
	bookings.Post("", bookingHandler.CreateBooking)
	bookings.Get("", bookingHandler.ListBookings)
	bookings.Get("/events", bookingHandler.Events)
	bookings.Get("/:id", bookingHandler.GetBooking)
	bookings.Put("/:id", bookingHandler.UpdateBooking)
	bookings.Put("/:id/schedule", bookingHandler.Reschedule)
	bookings.Delete("/:id", bookingHandler.DeleteBooking)

	reservations := protected.Group("/reservations")
	reservations.Post("/checkout", paymentHandler.StartCheckout)
	reservations.Get("", paymentHandler.ListReservations)
	reservations.Get("/:id", paymentHandler.GetReservation)
	reservations.Post("/:id/confirm", paymentHandler.Confirm)

	reviews := protected.Group("/reviews")
	reviews.Post("", reviewHandler.CreateReview)
	reviews.Get("", reviewHandler.ListReviews)
	reviews.Get("/:id", reviewHandler.GetReview)
	reviews.Put("/:id", reviewHandler.UpdateReview)

	protected.Post("/assistant/chat", assistantHandler.Chat)

	admin := protected.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	admin.Get("/stats", adminHandler.Stats)
	admin.Get("/summary", adminHandler.Summary)

	return reminderService
}
