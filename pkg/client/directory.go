package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	apperrors "trimly/pkg/errors"
)

// DirectoryClient asks the business directory ownership questions. The core
// trusts the returned boolean; it does not implement authentication.
type DirectoryClient struct {
	httpClient *HttpClient
}

func NewDirectoryClient(baseURL string) *DirectoryClient {
	return &DirectoryClient{
		httpClient: NewHttpClient(baseURL),
	}
}

type ownershipResponse struct {
	Data struct {
		Owner bool `json:"owner"`
	} `json:"data"`
}

// IsOwner reports whether the principal owns the business.
func (c *DirectoryClient) IsOwner(ctx context.Context, principalID, businessID string) (bool, error) {
	q := url.Values{}
	q.Set("principal_id", principalID)

	path := fmt.Sprintf("/api/v1/businesses/id/%s/ownership?%s", businessID, q.Encode())
	resp, err := c.httpClient.GET(ctx, path)
	if err != nil {
		return false, apperrors.Unavailable("business directory")
	}
	if resp.StatusCode == http.StatusNotFound {
		return false, apperrors.NotFoundWithID("Business", businessID)
	}
	if resp.StatusCode != http.StatusOK {
		return false, apperrors.Internal(
			fmt.Sprintf("business directory returned status %d", resp.StatusCode), nil)
	}

	var decoded ownershipResponse
	if err := resp.DecodeJSON(&decoded); err != nil {
		return false, apperrors.Internal("failed to decode directory response", err)
	}
	return decoded.Data.Owner, nil
}
