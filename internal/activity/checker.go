package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/igwedaniel/dripper/internal/httpclient"
	"github.com/igwedaniel/dripper/internal/storage"
	"github.com/sirupsen/logrus"
)

const addressPlaceholder = "{address}"

// Sender is the resilient request path
type Sender interface {
	Send(ctx context.Context, url string, spec httpclient.RequestSpec, policy httpclient.RetryPolicy) (*httpclient.Response, error)
}

// Checker looks up a wallet's on-chain activity summary from an indexer
type Checker struct {
	client      Sender
	urlTemplate string
	policy      httpclient.RetryPolicy
	cache       storage.Cache
	ttl         time.Duration
	logger      *logrus.Logger
}

// NewChecker builds a checker. urlTemplate must contain {address}. cache
// may be nil.
func NewChecker(client Sender, urlTemplate string, policy httpclient.RetryPolicy, cache storage.Cache, ttl time.Duration, logger *logrus.Logger) (*Checker, error) {
	if !strings.Contains(urlTemplate, addressPlaceholder) {
		return nil, fmt.Errorf("activity url template %q has no %s placeholder", urlTemplate, addressPlaceholder)
	}
	return &Checker{
		client:      client,
		urlTemplate: urlTemplate,
		policy:      policy,
		cache:       cache,
		ttl:         ttl,
		logger:      logger,
	}, nil
}

func (c *Checker) URL(address common.Address) string {
	return strings.ReplaceAll(c.urlTemplate, addressPlaceholder, address.Hex())
}

// Check returns the indexer's JSON document for address
func (c *Checker) Check(ctx context.Context, address common.Address) (map[string]interface{}, error) {
	cacheKey := "activity:" + strings.ToLower(address.Hex())

	var report map[string]interface{}
	if c.cache != nil {
		err := c.cache.GetCache(ctx, cacheKey, &report)
		if err == nil {
			c.logger.Debugf("Activity cache HIT for %s", address.Hex())
			return report, nil
		}
		if !errors.Is(err, storage.ErrCacheMiss) {
			c.logger.Warnf("Activity cache lookup failed: %v", err)
		}
	}

	resp, err := c.client.Send(ctx, c.URL(address), httpclient.RequestSpec{
		Method: http.MethodGet,
		Headers: map[string]string{
			"Accept":          "*/*",
			"Accept-Language": "en-US,en;q=0.9",
			"Content-Type":    "application/json",
			"Sec-Fetch-Dest":  "empty",
			"Sec-Fetch-Mode":  "cors",
			"Sec-Fetch-Site":  "same-origin",
		},
	}, c.policy)
	if err != nil {
		return nil, fmt.Errorf("activity lookup for %s: %w", address.Hex(), err)
	}

	if err := json.Unmarshal(resp.Body, &report); err != nil {
		return nil, fmt.Errorf("invalid activity response: %w", err)
	}

	if c.cache != nil && c.ttl > 0 {
		if err := c.cache.SetCache(ctx, cacheKey, report, c.ttl); err != nil {
			c.logger.Warnf("Failed to cache activity for %s: %v", address.Hex(), err)
		}
	}
	return report, nil
}
