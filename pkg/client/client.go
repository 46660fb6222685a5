package client

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"trimly/pkg/logger"
)

// Client bundles the external collaborators a service talks to: the shared
// mongo deployment plus the HTTP services that own businesses and the
// service catalog.
type Client struct {
	Mongo     *mongo.Client
	Catalog   *CatalogClient
	Directory *DirectoryClient
}

func New() *Client {
	return &Client{}
}

func (c *Client) SetMongo(log *logger.Logger, mongoURI string, connTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB",
			"error", err,
			"uri", mongoURI,
		)
	}

	if err := client.Ping(ctx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB", "error", err)
	}

	log.Info("Successfully connected to MongoDB")
	c.Mongo = client
}

func (c *Client) SetCatalog(baseURL string) {
	c.Catalog = NewCatalogClient(baseURL)
}

func (c *Client) SetDirectory(baseURL string) {
	c.Directory = NewDirectoryClient(baseURL)
}
