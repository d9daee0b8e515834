package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"hisui-backend/config"
	"hisui-backend/internal/handlers"
	"hisui-backend/internal/services"
	"hisui-backend/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	// Initialize MongoDB
	client, err := config.ConnectDB()
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := config.DisconnectDB(client); err != nil {
			log.Printf("Error disconnecting MongoDB: %v", err)
		}
	}()
	fmt.Println("✅ Connected to MongoDB")

	stores := store.NewMongo(client, config.Database(client))

	// Initialize services
	mailer := services.NewMailerFromEnv()
	if mailer == nil {
		log.Println("SMTP not configured, email delivery disabled")
	}
	orderFeed := services.NewOrderFeed()
	userService := services.NewUserService(stores, mailerOrNil(mailer))
	portfolioService := services.NewPortfolioService(stores)
	catalogService := services.NewCatalogService(stores)
	orderService := services.NewOrderService(stores, portfolioService, catalogService, notifierOrNil(mailer), orderFeed)
	newsService := services.NewNewsService(stores)

	// Start order feed hub in goroutine
	go orderFeed.Run()

	// Create Gin router
	router := gin.Default()

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, jwtSecret)
	portfolioHandler := handlers.NewPortfolioHandler(portfolioService)
	orderHandler := handlers.NewOrderHandler(orderService)
	assetHandler := handlers.NewAssetHandler(catalogService)
	newsHandler := handlers.NewNewsHandler(newsService)

	authMiddleware := authHandler.AuthMiddleware()
	adminMiddleware := authHandler.AdminMiddleware()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "OK",
			"message": "Hisui API is running",
		})
	})

	// User routes
	router.POST("/users", authHandler.Register)
	router.POST("/auth/login", authHandler.Login)
	router.GET("/verify-email", authHandler.VerifyEmail)
	router.GET("/users/me", authMiddleware, authHandler.GetCurrentUser)
	router.PATCH("/users/password", authMiddleware, authHandler.ResetPassword)
	router.DELETE("/users/me", authMiddleware, authHandler.DeleteUser)

	// Admin routes
	router.GET("/admin/users", authMiddleware, adminMiddleware, authHandler.ListAllUsers)

	// Portfolio routes
	router.POST("/portfolios", authMiddleware, portfolioHandler.CreatePortfolio)
	router.GET("/portfolios", authMiddleware, portfolioHandler.ListPortfolios)
	router.PATCH("/portfolios/:portfolioId", authMiddleware, portfolioHandler.PatchPortfolio)
	router.DELETE("/portfolios/:portfolioId", authMiddleware, portfolioHandler.DeletePortfolio)
	router.GET("/portfolios/:portfolioId/assets", authMiddleware, portfolioHandler.ViewPortfolioAssets)

	// Order routes
	router.POST("/portfolios/:portfolioId/orders", authMiddleware, orderHandler.CreateOrder)
	router.GET("/orders", authMiddleware, orderHandler.ListOrders)
	router.DELETE("/orders/:orderId", authMiddleware, orderHandler.DeleteOrder)

	// Asset catalog routes
	router.GET("/stocks", authMiddleware, assetHandler.SearchStocks)
	router.POST("/stocks", authMiddleware, adminMiddleware, assetHandler.CreateStock)
	router.PATCH("/stocks/:stockId", authMiddleware, adminMiddleware, assetHandler.PatchStock)
	router.GET("/cryptos", authMiddleware, assetHandler.SearchCryptos)
	router.POST("/cryptos", authMiddleware, adminMiddleware, assetHandler.CreateCrypto)
	router.PATCH("/cryptos/:cryptoId", authMiddleware, adminMiddleware, assetHandler.PatchCrypto)

	// News routes
	router.GET("/news", authMiddleware, newsHandler.SearchNews)
	router.DELETE("/news/:newsId", authMiddleware, adminMiddleware, newsHandler.DeleteNews)

	// WebSocket order confirmation feed
	router.GET("/ws/orders", func(c *gin.Context) {
		userID, ok := authHandler.UserIDFromToken(c, c.Query("token"))
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("Failed to upgrade connection: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to upgrade to WebSocket"})
			return
		}

		feedClient := orderFeed.RegisterClient(conn, userID)
		log.Printf("Order feed connection established for user: %s", userID)

		go feedClient.WritePump()
		go feedClient.ReadPump()
	})

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	fmt.Printf("🚀 Hisui Backend running on port %s\n", port)
	fmt.Printf("📊 API available at http://localhost:%s\n", port)
	fmt.Printf("🔌 Order feed available at ws://localhost:%s/ws/orders\n", port)
	router.Run(":" + port)
}

// mailerOrNil keeps a disabled mailer from becoming a non-nil interface
// wrapping a nil pointer.
func mailerOrNil(m *services.Mailer) services.VerificationMailer {
	if m == nil {
		return nil
	}
	return m
}

func notifierOrNil(m *services.Mailer) services.OrderNotifier {
	if m == nil {
		return nil
	}
	return m
}
