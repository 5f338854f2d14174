package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-waitlist/internal/catalog"
	"github.com/iliyamo/restaurant-waitlist/internal/config"
	"github.com/iliyamo/restaurant-waitlist/internal/database"
	"github.com/iliyamo/restaurant-waitlist/internal/handler"
	"github.com/iliyamo/restaurant-waitlist/internal/inventory"
	"github.com/iliyamo/restaurant-waitlist/internal/middleware"
	"github.com/iliyamo/restaurant-waitlist/internal/order"
	"github.com/iliyamo/restaurant-waitlist/internal/pos"
	"github.com/iliyamo/restaurant-waitlist/internal/queue"
	"github.com/iliyamo/restaurant-waitlist/internal/repository"
	"github.com/iliyamo/restaurant-waitlist/internal/router"
	"github.com/iliyamo/restaurant-waitlist/internal/seating"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	posClient := pos.NewHTTPClient(cfg.POSBaseURL, cfg.POSAccessToken, cfg.POSLocationID)

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	restaurants := repository.NewRestaurantRepo(db)
	menu := repository.NewMenuRepo(db)
	seatingStore := repository.NewSeatingRepo(db)
	orders := repository.NewOrderRepo(db)

	ledger := inventory.NewLedger(menu, posClient)
	mapper := catalog.NewMapper(menu, posClient)
	admission := seating.NewController(seatingStore)
	workflow := order.NewWorkflow(orders, ledger, posClient, cfg.POSLocationID)

	// Background consumer appending party.seated events to logs/seating.log.
	go func() {
		if err := queue.StartSeatedConsumer(); err != nil {
			log.Printf("seated consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable, rate limiting disabled")
	}
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterRestaurant(e, handler.NewRestaurantHandler(restaurants, menu, mapper, ledger), cfg.JWTSecret)
	router.RegisterSeating(e, handler.NewSeatingHandler(admission), cfg.JWTSecret)
	router.RegisterOrders(e, handler.NewOrderHandler(workflow, posClient), cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
