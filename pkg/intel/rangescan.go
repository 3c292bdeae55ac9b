package intel

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Range scan tuning.
const (
	defaultScanWorkers = 4
	// scanBatchEdge is the edge of the square of tiles one request claims;
	// the dashboard tolerates batches of this size without throttling.
	scanBatchEdge = 5
	// maxTileAttempts bounds per-tile retries on soft errors (the service
	// answers "error" for tiles it could not compute in time).
	maxTileAttempts = 3
	// claimBackoff is how long an idle worker waits before re-checking the
	// pool while other workers still hold busy tiles.
	claimBackoff = 50 * time.Millisecond
)

type tileState int

const (
	tileFree tileState = iota
	tileBusy
	tileDone
)

// rangeScan tracks which tiles of a bounding box still need fetching.
// Workers claim square batches of free tiles, mark them busy, and either
// complete them or hand them back.
type rangeScan struct {
	client *Client
	logger *zap.Logger

	mu       sync.Mutex
	tiles    map[TileKey]tileState
	attempts map[TileKey]int
	results  []Entity
	err      error
}

// GetEntitiesInRange fetches every entity inside the bounding box spanned
// by the two coordinate pairs, batching tiles across `workers` concurrent
// requests (default 4 when workers <= 0). Tiles the service reports as
// temporarily failed are retried up to maxTileAttempts times and then
// dropped; transport or auth errors abort the whole scan.
func (c *Client) GetEntitiesInRange(ctx context.Context, fromLat, fromLng, toLat, toLng float64, workers int) ([]Entity, error) {
	if err := validateCoordinates(fromLat, fromLng); err != nil {
		return nil, err
	}
	if err := validateCoordinates(toLat, toLng); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = defaultScanWorkers
	}

	scan := &rangeScan{
		client:   c,
		logger:   c.logger.Named("rangescan"),
		tiles:    make(map[TileKey]tileState),
		attempts: make(map[TileKey]int),
	}
	for _, key := range TileRange(fromLat, fromLng, toLat, toLng) {
		scan.tiles[key] = tileFree
	}
	scan.logger.Info("Starting range scan.",
		zap.Int("tiles", len(scan.tiles)), zap.Int("workers", workers))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scan.run(ctx)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scan.mu.Lock()
	defer scan.mu.Unlock()
	if scan.err != nil {
		return nil, scan.err
	}
	return scan.results, nil
}

// run drains the tile pool until nothing is left to claim or the scan
// fails.
func (s *rangeScan) run(ctx context.Context) {
	for {
		if ctx.Err() != nil || s.failed() {
			return
		}
		batch := s.claimBatch()
		if len(batch) == 0 {
			if !s.pending() {
				return
			}
			// Other workers still hold tiles that may come back free.
			select {
			case <-time.After(claimBackoff):
			case <-ctx.Done():
				return
			}
			continue
		}
		if err := s.fetchBatch(ctx, batch); err != nil {
			s.release(batch)
			s.fail(err)
			return
		}
	}
}

// claimBatch picks a free tile and claims the square of free tiles anchored
// on it.
func (s *rangeScan) claimBatch() []TileKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	var anchor TileKey
	found := false
	for tile, state := range s.tiles {
		if state == tileFree {
			anchor = tile
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	var batch []TileKey
	for _, tile := range anchor.square(scanBatchEdge) {
		if state, ok := s.tiles[tile]; ok && state == tileFree {
			s.tiles[tile] = tileBusy
			batch = append(batch, tile)
		}
	}
	return batch
}

// pending reports whether any tile is still free or busy.
func (s *rangeScan) pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, state := range s.tiles {
		if state != tileDone {
			return true
		}
	}
	return false
}

// fetchBatch posts one getEntities call for the batch and settles each
// tile's state from the per-tile results.
func (s *rangeScan) fetchBatch(ctx context.Context, batch []TileKey) error {
	keys := make([]string, len(batch))
	for i, tile := range batch {
		keys[i] = tile.String()
	}

	resp, err := s.client.getEntities(ctx, keys)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, result := range resp.Result.Map {
		tile, err := ParseTileKey(id)
		if err != nil {
			continue
		}
		if result.Failed() {
			s.retryOrDrop(tile, result.Error)
			continue
		}
		s.tiles[tile] = tileDone
		s.results = append(s.results, result.Entities...)
	}
	// Tiles the response never mentioned go back in the pool.
	for _, tile := range batch {
		if s.tiles[tile] == tileBusy {
			s.retryOrDrop(tile, "missing from response")
		}
	}
	return nil
}

// retryOrDrop re-frees a soft-failed tile until its attempt budget runs
// out. Caller holds s.mu.
func (s *rangeScan) retryOrDrop(tile TileKey, reason string) {
	s.attempts[tile]++
	if s.attempts[tile] >= maxTileAttempts {
		s.logger.Warn("Dropping tile after repeated failures.",
			zap.Stringer("tile", tile), zap.String("reason", reason))
		s.tiles[tile] = tileDone
		return
	}
	s.tiles[tile] = tileFree
}

// release frees every tile in the batch.
func (s *rangeScan) release(batch []TileKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tile := range batch {
		s.tiles[tile] = tileFree
	}
}

func (s *rangeScan) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *rangeScan) failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err != nil
}
