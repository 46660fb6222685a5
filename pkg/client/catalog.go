package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	apperrors "trimly/pkg/errors"
)

// CatalogService is a service definition as the catalog service reports it.
// Allocation math only needs the duration; name and price are carried into
// bookings for history.
type CatalogService struct {
	ID          string  `json:"id"`
	BusinessID  string  `json:"business_id"`
	Name        string  `json:"name"`
	DurationMin int     `json:"duration_min"`
	Price       float64 `json:"price"`
	Active      bool    `json:"active"`
}

type CatalogClient struct {
	httpClient *HttpClient
}

func NewCatalogClient(baseURL string) *CatalogClient {
	return &CatalogClient{
		httpClient: NewHttpClient(baseURL),
	}
}

type catalogServicesResponse struct {
	Data []*CatalogService `json:"data"`
}

// GetServices resolves the given service IDs for a business. Every requested
// ID must exist and be active; a missing one is a NotFound for the caller.
func (c *CatalogClient) GetServices(ctx context.Context, businessID string, serviceIDs []string) ([]*CatalogService, error) {
	q := url.Values{}
	q.Set("business_id", businessID)
	q.Set("ids", strings.Join(serviceIDs, ","))

	resp, err := c.httpClient.GET(ctx, "/api/v1/services?"+q.Encode())
	if err != nil {
		return nil, apperrors.Unavailable("service catalog")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Internal(
			fmt.Sprintf("service catalog returned status %d", resp.StatusCode), nil)
	}

	var decoded catalogServicesResponse
	if err := resp.DecodeJSON(&decoded); err != nil {
		return nil, apperrors.Internal("failed to decode catalog response", err)
	}

	byID := make(map[string]*CatalogService, len(decoded.Data))
	for _, svc := range decoded.Data {
		byID[svc.ID] = svc
	}

	out := make([]*CatalogService, 0, len(serviceIDs))
	for _, id := range serviceIDs {
		svc, ok := byID[id]
		if !ok || !svc.Active {
			return nil, apperrors.NotFoundWithID("Service", id)
		}
		out = append(out, svc)
	}
	return out, nil
}
