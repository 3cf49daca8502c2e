package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go-storefront-api/internal/handler"
	"go-storefront-api/internal/middleware"
	"go-storefront-api/internal/model"
	"go-storefront-api/internal/repository"
	"go-storefront-api/internal/service"
	"go-storefront-api/pkg/database"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {
	// 1. Load Env
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// 2. Setup Database
	db := database.ConnectDB()
	if err := db.AutoMigrate(&model.Product{}, &model.Cart{}, &model.CartItem{}, &model.User{}); err != nil {
		log.Fatal("Migration failed: ", err)
	}
	// One in_progress cart per user, enforced by the storage layer
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_carts_active_user ON carts (user_id) WHERE status = 'in_progress'`).Error; err != nil {
		log.Fatal("Failed to create active cart index: ", err)
	}

	// 3. Seed default admin user
	seedAdmin(db)

	// 4. Dependency Injection (Wiring Layers)
	productRepo := repository.NewProductRepo(db)
	cartRepo := repository.NewCartRepo(db)
	userRepo := repository.NewUserRepo(db)
	txManager := repository.NewTxManager(db)

	catalogService := service.NewCatalogService(productRepo)
	cartService := service.NewCartService(cartRepo, productRepo, txManager)
	authService := service.NewAuthService(userRepo)
	userService := service.NewUserService(userRepo)

	productHandler := handler.NewProductHandler(catalogService)
	cartHandler := handler.NewCartHandler(cartService)
	authHandler := handler.NewAuthHandler(authService)
	adminHandler := handler.NewAdminHandler(userService)

	// 5. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: "Storefront API v1.0",
	})

	// Middleware
	app.Use(logger.New())  // Logging request
	app.Use(recover.New()) // Panic recovery
	app.Use(cors.New())    // CORS

	// 6. Routes
	api := app.Group("/api")

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	api.Get("/products", productHandler.GetProducts)
	api.Get("/products/:id", productHandler.GetProduct)

	// ============ ADMIN ROUTES ============
	requireAuth := middleware.RequireAuth(userRepo)
	requireAdmin := middleware.RequireAdmin()

	api.Post("/products", requireAuth, requireAdmin, productHandler.CreateProduct)
	api.Put("/products/:id", requireAuth, requireAdmin, productHandler.UpdateProduct)
	api.Delete("/products/:id", requireAuth, requireAdmin, productHandler.DeleteProduct)

	admin := api.Group("/admin", requireAuth, requireAdmin)
	admin.Post("/create-admin", adminHandler.CreateAdmin)
	admin.Get("/users", adminHandler.GetUsers)

	// ============ CART ROUTES ============
	// Ownership and the admin read/pay override are enforced in the service.
	carts := api.Group("/carts", requireAuth)
	carts.Post("/", cartHandler.CreateCart)
	carts.Get("/history", cartHandler.GetHistory)
	carts.Get("/:id", cartHandler.GetCart)
	carts.Post("/:id/product/:pid", cartHandler.AddProduct)
	carts.Put("/:id/product/:pid", cartHandler.UpdateQuantity)
	carts.Delete("/:id/product/:pid", cartHandler.RemoveProduct)
	carts.Delete("/:id", cartHandler.DeleteCart)
	carts.Post("/:id/pay", cartHandler.PayCart)

	// 7. Graceful Shutdown
	go func() {
		port := os.Getenv("PORT")
		if port == "" {
			port = "3000"
		}
		if err := app.Listen(":" + port); err != nil {
			log.Panic(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

// seedAdmin creates the default admin account if it doesn't exist
func seedAdmin(db *gorm.DB) {
	userRepo := repository.NewUserRepo(db)

	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = "admin@example.com"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}

	ctx := context.Background()
	if _, err := userRepo.FindByEmail(ctx, email); err == nil {
		return
	}

	admin := &model.User{
		Email:     email,
		FirstName: "Store",
		LastName:  "Administrator",
		Role:      model.RoleAdmin,
	}
	if err := admin.SetPassword(password); err != nil {
		log.Printf("Warning: Failed to hash admin password: %v", err)
		return
	}

	if err := userRepo.Create(ctx, admin); err != nil {
		log.Printf("Warning: Failed to create admin user: %v", err)
	} else {
		log.Printf("Admin user created: %s", email)
	}
}
