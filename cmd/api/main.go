package main

import (
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/viper"
	storage_go "github.com/supabase-community/storage-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"tipbox/internal/handlers"
	"tipbox/internal/middleware"
	"tipbox/internal/models"
	"tipbox/internal/payments"
	"tipbox/internal/store"
	ws "tipbox/internal/websocket"
)

// This struct will hold our loaded configuration
type Config struct {
	DSN                  string `mapstructure:"DSN"`
	JWT_SECRET           string `mapstructure:"JWT_SECRET"`
	MIDTRANS_SERVER_KEY  string `mapstructure:"MIDTRANS_SERVER_KEY"`
	SIMULATE_PAYMENTS    bool   `mapstructure:"SIMULATE_PAYMENTS"`
	SUPABASE_URL         string `mapstructure:"SUPABASE_URL"`
	SUPABASE_SERVICE_KEY string `mapstructure:"SUPABASE_SERVICE_KEY"`
	LISTEN_ADDR          string `mapstructure:"LISTEN_ADDR"`
}

// Function loads the config.env file from the root folder
func loadConfig() (config Config, err error) {
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("env")
	viper.SetDefault("LISTEN_ADDR", ":8080")
	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}

func main() {
	log.Println("Starting tipbox server...")

	// Load Configuration
	config, err := loadConfig()
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	// Connect to the Database
	db, err := sqlx.Connect("pgx", config.DSN)
	if err != nil {
		log.Fatal("cannot connect to database:", err)
	}
	defer db.Close()
	log.Println("Successfully connected to Supabase (PostgreSQL)!")

	ledger := store.NewPostgresLedger(db)
	gateway := payments.NewMidtransGateway(config.MIDTRANS_SERVER_KEY)

	var storageClient *storage_go.Client
	if config.SUPABASE_URL != "" {
		storageClient = storage_go.NewClient(config.SUPABASE_URL+"/storage/v1", config.SUPABASE_SERVICE_KEY, nil)
	}

	// The hub fans donation alerts out to connected creator widgets
	hub := ws.NewHub()
	go hub.Run()

	// Set up our Gin router
	r := gin.Default()
	r.Use(cors.Default())

	// Simple test route
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	authHandler := handlers.NewAuthHandler(ledger, config.JWT_SECRET)
	profileHandler := handlers.NewProfileHandler(ledger, storageClient)
	donationHandler := handlers.NewDonationHandler(ledger, gateway, hub, config.SIMULATE_PAYMENTS)
	subscriptionHandler := handlers.NewSubscriptionHandler(ledger, gateway, config.SIMULATE_PAYMENTS)
	withdrawalHandler := handlers.NewWithdrawalHandler(ledger)
	webhookHandler := handlers.NewWebhookHandler(ledger, gateway, hub)
	wsHandler := handlers.NewWebSocketHandler(ledger, hub)

	// All API routes under /api
	api := r.Group("/api")
	{
		// Auth Endpoint
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		// Public surfaces
		api.GET("/creators/:username", profileHandler.GetCreatorPage)
		api.POST("/donate/:username", donationHandler.CreateDonation)
		api.POST("/webhook/payment", webhookHandler.HandlePaymentNotification)

		// Protected Endpoint
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(config.JWT_SECRET))
		{
			protected.GET("/me", profileHandler.GetMyProfile)
			protected.PATCH("/me", profileHandler.UpdateMyProfile)
			protected.POST("/me/avatar", profileHandler.UploadAvatar)
			protected.POST("/me/cover", profileHandler.UploadCover)

			creator := protected.Group("/")
			creator.Use(middleware.RequireRole(models.RoleCreator))
			{
				creator.POST("/subscribe", subscriptionHandler.Subscribe)
				creator.GET("/me/subscription", subscriptionHandler.GetMySubscription)
				creator.GET("/me/donations", donationHandler.GetMyDonations)
				creator.POST("/withdraw", withdrawalHandler.CreateWithdrawal)
				creator.GET("/me/withdrawals", withdrawalHandler.GetMyWithdrawals)
			}

			admin := protected.Group("/admin")
			admin.Use(middleware.RequireRole(models.RoleAdmin))
			{
				admin.GET("/withdrawals", withdrawalHandler.ListPendingWithdrawals)
				admin.POST("/withdrawals/:id", withdrawalHandler.ProcessWithdrawal)
			}
		}
	}

	r.GET("/ws/alerts/:secretToken", wsHandler.ServeWs)

	// Start the server
	log.Println("Server starting on", config.LISTEN_ADDR)
	if err := r.Run(config.LISTEN_ADDR); err != nil {
		log.Fatal("could not start server:", err)
	}
}
