package cache

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shubham-shewale/price-world-cache/pkg/models"
)

func TestSlot_ReadBeforeReplace(t *testing.T) {
	store := NewStore()

	_, ok := store.Prices().Read()
	require.False(t, ok)
	require.False(t, store.Ready())
	require.Nil(t, store.Slot("unknown"))
}

func TestSlot_ReplaceAndRead(t *testing.T) {
	store := NewStore()
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	first := store.Prices().Replace([]byte(`[{"id":1}]`))
	require.Equal(t, uint64(1), first.Generation)

	second := store.Prices().Replace([]byte(`[{"id":2}]`))
	require.Equal(t, uint64(2), second.Generation)

	snap, ok := store.Slot(models.DomainPrices).Read()
	require.True(t, ok)
	require.Equal(t, `[{"id":2}]`, string(snap.Payload))
	require.Equal(t, fixed, snap.UpdatedAt)
	require.Equal(t, models.DomainPrices, snap.Domain)

	require.False(t, store.Ready())
	store.Worlds().Replace([]byte(`{"worlds":[]}`))
	require.True(t, store.Ready())
}

func TestSlot_DomainsAreIndependent(t *testing.T) {
	store := NewStore()
	store.Worlds().Replace([]byte(`{"worlds":[]}`))
	store.Prices().Replace([]byte(`[]`))
	store.Prices().Replace([]byte(`[{"id":4151}]`))

	worlds, ok := store.Worlds().Read()
	require.True(t, ok)
	require.Equal(t, `{"worlds":[]}`, string(worlds.Payload))
	require.Equal(t, uint64(1), worlds.Generation)
}

func TestSlot_OnReplaceHook(t *testing.T) {
	store := NewStore()

	var got []Snapshot
	store.OnReplace(func(snap Snapshot) {
		// The slot lock is released before the hook runs.
		current, ok := store.Slot(snap.Domain).Read()
		require.True(t, ok)
		require.Equal(t, snap.Generation, current.Generation)
		got = append(got, snap)
	})

	store.Worlds().Replace([]byte(`{"worlds":[]}`))
	store.Prices().Replace([]byte(`[]`))

	require.Len(t, got, 2)
	require.Equal(t, models.DomainWorlds, got[0].Domain)
	require.Equal(t, models.DomainPrices, got[1].Domain)
}

// Run with `go test -race ./...`
func TestSlot_ConcurrentReadsSeeWholeSnapshots(t *testing.T) {
	store := NewStore()
	slot := store.Prices()

	payload := func(gen int) []byte {
		return bytes.Repeat([]byte(fmt.Sprintf("%04d", gen)), 2048)
	}
	slot.Replace(payload(0))

	const (
		readers  = 16
		replaces = 200
	)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan error, readers)

	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap, ok := slot.Read()
				if !ok {
					errs <- fmt.Errorf("slot became empty")
					return
				}
				prefix := snap.Payload[:4]
				if !bytes.Equal(snap.Payload, bytes.Repeat(prefix, 2048)) {
					errs <- fmt.Errorf("torn read at generation %d", snap.Generation)
					return
				}
			}
		}()
	}

	for i := 1; i <= replaces; i++ {
		slot.Replace(payload(i))
	}
	close(stop)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}

	snap, _ := slot.Read()
	require.Equal(t, uint64(replaces+1), snap.Generation)
	require.Equal(t, payload(replaces), snap.Payload)
}
