package tests

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket" // Using Gorilla for the test CLIENT
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/cache"
	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/hub"
	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/protocol"
	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/refresh"
	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/repository"
	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/server"
	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/upstream"
	"github.com/shubham-shewale/price-world-cache/pkg/models"
)

// fakeUpstream serves bootstrap.json and the versioned price feed.
type fakeUpstream struct {
	mu      sync.Mutex
	version string
	prices  string
	status  int
}

func (f *fakeUpstream) set(version, prices string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version, f.prices, f.status = version, prices, status
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.URL.Path == "/bootstrap.json":
		w.Write([]byte(`{"client":{"version":"` + f.version + `"}}`))
	case r.URL.Path == "/runelite-"+f.version+"/item/prices.js":
		if f.status != http.StatusOK {
			w.WriteHeader(f.status)
			return
		}
		w.Write([]byte(f.prices))
	default:
		http.NotFound(w, r)
	}
}

type env struct {
	mr       *miniredis.Miniredis
	upstream *fakeUpstream
	store    *cache.Store
	server   *httptest.Server
	logs     *observer.ObservedLogs
	cancel   context.CancelFunc
}

func startEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	mr.HSet(repository.KeyPriceOverrides, "4151", "0.5")
	mr.SAdd(repository.KeyWorlds, `{"id":301,"types":["MEMBERS"],"address":"oldschool1.runescape.com","activity":"Trade","location":0,"players":1100}`)

	up := &fakeUpstream{}
	up.set("1.10.20", `[{"id":4151,"name":"Abyssal whip","price":2000000,"wikiPrice":1950000},{"id":995,"name":"Coins","price":1,"wikiPrice":1}]`, http.StatusOK)
	upSrv := httptest.NewServer(up)
	t.Cleanup(upSrv.Close)

	core, logs := observer.New(zapcore.ErrorLevel)
	logger := zap.New(core)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	repo := repository.NewRedisStore(rdb)
	feed := upstream.NewClient(upSrv.URL+"/bootstrap.json", upSrv.URL, logger)

	store := cache.NewStore()
	wsHub := hub.NewHub(store, logger)
	store.OnReplace(wsHub.Publish)

	prices := refresh.NewPricePipeline(feed, repo, logger)
	worlds := refresh.NewWorldPipeline(repo, logger)
	if err := refresh.Bootstrap(context.Background(), store, logger, prices, worlds); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		refresh.RunAll(ctx, logger,
			refresh.NewListener(prices, store.Prices(), repo, "items_refresh", 2*time.Second, logger),
			refresh.NewListener(worlds, store.Worlds(), repo, "worlds_refresh", 2*time.Second, logger),
		)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	waitFor(t, func() bool {
		return len(mr.PubSubChannels("*_refresh")) == 2
	}, "listeners never subscribed")

	srv := httptest.NewServer(server.NewRouter(store, wsHub, logger))
	t.Cleanup(srv.Close)

	return &env{mr: mr, upstream: up, store: store, server: srv, logs: logs, cancel: cancel}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func get(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

func generation(slot *cache.Slot) uint64 {
	snap, _ := slot.Read()
	return snap.Generation
}

func TestEndToEnd_ServeAndRefresh(t *testing.T) {
	e := startEnv(t)

	prices := get(t, e.server.URL+"/prices")
	if !strings.Contains(prices, `"price":1000000`) || !strings.Contains(prices, `"wikiPrice":975000`) {
		t.Errorf("Override not applied: %s", prices)
	}
	if !strings.Contains(get(t, e.server.URL+"/worlds"), `"id":301`) {
		t.Errorf("World 301 missing from snapshot")
	}

	e.upstream.set("1.10.21", `[{"id":4151,"name":"Abyssal whip","price":3000000,"wikiPrice":2900000}]`, http.StatusOK)
	e.mr.Publish("items_refresh", "prices changed")

	waitFor(t, func() bool { return generation(e.store.Prices()) == 2 }, "price refresh never installed")
	if body := get(t, e.server.URL+"/prices"); !strings.Contains(body, `"price":1500000`) {
		t.Errorf("Expected refreshed price 1500000, got %s", body)
	}

	e.mr.SAdd(repository.KeyWorlds, `{"id":302,"types":[],"address":"oldschool2.runescape.com","activity":"-","location":0,"players":5}`)
	e.mr.Publish("worlds_refresh", "worlds changed")

	waitFor(t, func() bool { return generation(e.store.Worlds()) == 2 }, "world refresh never installed")
	var snap models.WorldsSnapshot
	if err := json.Unmarshal([]byte(get(t, e.server.URL+"/worlds")), &snap); err != nil {
		t.Fatalf("Invalid worlds payload: %v", err)
	}
	if len(snap.Worlds) != 2 {
		t.Errorf("Expected 2 worlds, got %d", len(snap.Worlds))
	}
}

func TestEndToEnd_FailedRefreshKeepsServing(t *testing.T) {
	e := startEnv(t)
	before := get(t, e.server.URL+"/prices")
	worldsBefore := get(t, e.server.URL+"/worlds")

	e.upstream.set("1.10.21", "", http.StatusBadGateway)
	e.mr.Publish("items_refresh", "prices changed")

	waitFor(t, func() bool { return e.logs.FilterField(zap.String("stage", refresh.StageFetchPrices)).Len() == 1 }, "price failure was never reported")

	if after := get(t, e.server.URL+"/prices"); after != before {
		t.Errorf("Price snapshot changed after failed refresh:\nbefore %s\nafter  %s", before, after)
	}
	if after := get(t, e.server.URL+"/worlds"); after != worldsBefore {
		t.Errorf("World snapshot changed after price failure")
	}

	// The listener survives and picks up the next trigger.
	e.upstream.set("1.10.22", `[]`, http.StatusOK)
	e.mr.Publish("items_refresh", "fixed")
	waitFor(t, func() bool { return generation(e.store.Prices()) == 2 }, "listener did not recover")
}

func TestEndToEnd_WebsocketPush(t *testing.T) {
	e := startEnv(t)

	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws"
	wsConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect to websocket: %v", err)
	}
	defer wsConn.Close()

	subMsg := `{"action": "subscribe", "payload": {"domains": ["Prices"]}, "id": "t1"}`
	wsConn.WriteMessage(websocket.TextMessage, []byte(subMsg))

	wsConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := wsConn.ReadMessage()
	if err != nil || !strings.Contains(string(msg), "success") {
		t.Fatalf("Expected subscription success, got: %s (%v)", msg, err)
	}

	var snap protocol.SnapshotMessage
	_, msg, err = wsConn.ReadMessage()
	if err != nil {
		t.Fatalf("Expected initial snapshot: %v", err)
	}
	if err := json.Unmarshal(msg, &snap); err != nil || snap.Generation != 1 || snap.Domain != "prices" {
		t.Fatalf("Unexpected initial snapshot: %s", msg)
	}

	e.upstream.set("1.10.21", `[{"id":995,"name":"Coins","price":1,"wikiPrice":1}]`, http.StatusOK)
	e.mr.Publish("items_refresh", "prices changed")

	wsConn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, msg, err = wsConn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to receive pushed snapshot: %v", err)
	}
	if err := json.Unmarshal(msg, &snap); err != nil {
		t.Fatalf("Invalid pushed snapshot: %v", err)
	}
	if snap.Generation != 2 || !strings.Contains(string(snap.Data), "Coins") {
		t.Errorf("Unexpected pushed snapshot: %s", msg)
	}
}

func TestEndToEnd_InvalidJSON(t *testing.T) {
	e := startEnv(t)

	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws"
	wsConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect to websocket: %v", err)
	}
	defer wsConn.Close()

	wsConn.WriteMessage(websocket.TextMessage, []byte(`{ "action": "subsc`))

	wsConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, _ := wsConn.ReadMessage()
	if !strings.Contains(string(msg), "Invalid JSON") {
		t.Errorf("Expected error message for bad JSON, got: %s", msg)
	}
}
