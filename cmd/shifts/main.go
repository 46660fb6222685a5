package main

import (
	availabilityhandler "trimly/internal/availability/handler"
	availabilityservice "trimly/internal/availability/service"
	shiftshandler "trimly/internal/shifts/handler"
	shiftsrepository "trimly/internal/shifts/repository"
	shiftsservice "trimly/internal/shifts/service"
	shiftsvalidator "trimly/internal/shifts/validator"
	slotshandler "trimly/internal/slots/handler"
	slotsrepository "trimly/internal/slots/repository"
	slotsservice "trimly/internal/slots/service"
	"trimly/pkg/app"
	"trimly/pkg/clock"
	"trimly/pkg/config"
	"trimly/pkg/events"
)

const ServiceName = "shifts"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.Client.SetCatalog(cfg.CatalogURL)
	cfg.Client.SetDirectory(cfg.DirectoryURL)

	cfg.Log.Info("Starting Shifts service")

	publisher := newPublisher(cfg)
	defer func() {
		if err := publisher.Close(); err != nil {
			cfg.Log.Error("Failed to close event publisher", "error", err)
		}
	}()

	shiftRepo := shiftsrepository.NewMongoShiftRepository(cfg)
	slotRepo := slotsrepository.NewMongoTimeSlotRepository(cfg)

	shiftService := shiftsservice.NewShiftService(
		shiftRepo,
		slotRepo,
		cfg.Client.Directory,
		shiftsvalidator.NewShiftValidator(cfg.Log),
		cfg,
	)
	generatorService := slotsservice.NewGeneratorService(
		slotRepo,
		shiftRepo,
		clock.Real(),
		publisher,
		cfg,
	)
	availabilityService := availabilityservice.NewAvailabilityService(
		slotRepo,
		cfg.Client.Catalog,
		cfg,
	)

	cfg.Log.Info("Shifts service initialized", "database", cfg.MongoDatabaseName)

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg,
		shiftshandler.NewShiftHandler(shiftService, cfg.Log),
		slotshandler.NewGeneratorHandler(generatorService, cfg.Log),
		availabilityhandler.NewAvailabilityHandler(availabilityService, cfg.Log),
	)
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
