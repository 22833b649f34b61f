package storage

import (
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// GetGatewayFile fetches a blob from a plain HTTP IPFS gateway by GETting
// {endpoint}{id}. Used as a read fallback when the Kubo API is unreachable.
func GetGatewayFile(endpoint, id string) ([]byte, error) {
	zap.L().Debug("Fetching from gateway", zap.String("id", id))
	resp, err := http.Get(endpoint + id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			zap.L().Error("error closing gateway response", zap.Error(cerr))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// defaultGatewayFetcher is the production gatewayFetcher.
type defaultGatewayFetcher struct{}

func (defaultGatewayFetcher) Fetch(endpoint, id string) ([]byte, error) {
	return GetGatewayFile(endpoint, id)
}
