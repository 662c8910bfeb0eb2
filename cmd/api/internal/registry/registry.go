// Package registry records this instance's public address in the shared
// servers directory so other services can find it.
package registry

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"

	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/repository"
)

// TextFetcher fetches a plain-text document, such as an IP echo service.
type TextFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

type Config struct {
	Key         string // directory hash, "servers"
	Role        string // value stored for this instance, "API_SERVER"
	IPLookupURL string
	PublicIP    string // skips the lookup when set
}

type Registrar struct {
	cfg      Config
	fetcher  TextFetcher
	registry repository.ServerRegistry
	logger   *zap.Logger
}

func NewRegistrar(cfg Config, fetcher TextFetcher, registry repository.ServerRegistry, logger *zap.Logger) *Registrar {
	return &Registrar{cfg: cfg, fetcher: fetcher, registry: registry, logger: logger}
}

// Register resolves the public IP and writes it to the directory. It returns
// the registered address.
func (r *Registrar) Register(ctx context.Context) (string, error) {
	ip, err := r.publicIP(ctx)
	if err != nil {
		return "", err
	}

	if err := r.registry.RegisterServer(ctx, r.cfg.Key, ip, r.cfg.Role); err != nil {
		return "", fmt.Errorf("register %s: %w", ip, err)
	}

	r.logger.Info("Registered server", zap.String("ip", ip), zap.String("key", r.cfg.Key), zap.String("role", r.cfg.Role))
	return ip, nil
}

func (r *Registrar) publicIP(ctx context.Context) (string, error) {
	raw := r.cfg.PublicIP
	if raw == "" {
		var err error
		raw, err = r.fetcher.FetchText(ctx, r.cfg.IPLookupURL)
		if err != nil {
			return "", fmt.Errorf("lookup public ip: %w", err)
		}
	}

	ip := net.ParseIP(raw)
	if ip == nil {
		return "", fmt.Errorf("invalid public ip %q", raw)
	}
	return ip.String(), nil
}
