package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gobwas/ws"
	"go.uber.org/zap"

	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/cache"
	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/gateway"
	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/hub"
	"github.com/shubham-shewale/price-world-cache/pkg/models"
)

const onlineMessage = "We're online!"

// Snapshots is the read side of the cache.
type Snapshots interface {
	Slot(domain models.Domain) *cache.Slot
	Ready() bool
}

// NewRouter serves the cached snapshots. wsHub may be nil to disable /ws.
func NewRouter(snapshots Snapshots, wsHub *hub.Hub, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/", online)
	r.NoRoute(online)

	r.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		for _, domain := range models.Domains {
			snap, ok := snapshots.Slot(domain).Read()
			if !ok {
				continue
			}
			body[string(domain)] = gin.H{
				"generation": snap.Generation,
				"updated_at": snap.UpdatedAt.UTC().Format(time.RFC3339),
				"bytes":      len(snap.Payload),
			}
		}

		if !snapshots.Ready() {
			body["status"] = "starting"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		c.JSON(http.StatusOK, body)
	})

	r.GET("/prices", snapshotHandler(snapshots.Slot(models.DomainPrices)))
	r.GET("/worlds", snapshotHandler(snapshots.Slot(models.DomainWorlds)))

	if wsHub != nil {
		r.GET("/ws", func(c *gin.Context) {
			conn, _, _, err := ws.UpgradeHTTP(c.Request, c.Writer)
			if err != nil {
				logger.Debug("Websocket upgrade failed", zap.Error(err))
				return
			}
			gateway.NewClient(conn, wsHub, logger).Start()
		})
	}

	return r
}

func online(c *gin.Context) {
	c.String(http.StatusOK, onlineMessage)
}

func snapshotHandler(slot *cache.Slot) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, ok := slot.Read()
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": string(slot.Domain()) + " snapshot not loaded yet"})
			return
		}

		c.Header("X-Snapshot-Generation", strconv.FormatUint(snap.Generation, 10))
		c.Header("Last-Modified", snap.UpdatedAt.UTC().Format(http.TimeFormat))
		c.Data(http.StatusOK, "application/json", snap.Payload)
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
