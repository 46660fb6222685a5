package main

import (
	"trimly/internal/bookings/handler"
	"trimly/internal/bookings/repository"
	"trimly/internal/bookings/service"
	"trimly/internal/bookings/validator"
	"trimly/pkg/app"
	"trimly/pkg/config"
	"trimly/pkg/events"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.Client.SetCatalog(cfg.CatalogURL)
	cfg.Client.SetDirectory(cfg.DirectoryURL)

	cfg.Log.Info("Starting Bookings service")

	publisher := newPublisher(cfg)
	defer func() {
		if err := publisher.Close(); err != nil {
			cfg.Log.Error("Failed to close event publisher", "error", err)
		}
	}()

	bookingService := service.NewBookingService(
		repository.NewMongoBookingRepository(cfg),
		repository.NewMongoSlotReservationRepository(cfg),
		repository.NewMongoShiftReadRepository(cfg),
		repository.NewMongoAllocationLockRepository(cfg),
		cfg.Client.Catalog,
		cfg.Client.Directory,
		validator.NewBookingValidator(cfg.Log),
		publisher,
		cfg,
	)

	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName)

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, handler.NewBookingHandler(bookingService, cfg.Log))
	serverApp.Run()
}

func newPublisher(cfg *config.Config) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		cfg.Log.Info("No Kafka brokers configured, events disabled")
		return events.NoopPublisher{}
	}
	publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, ServiceName, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka publisher", "error", err)
	}
	return publisher
}
