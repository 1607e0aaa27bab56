package profiler

import (
	"log"
	"runtime"
	"time"
)

// Profiler tracks composite rate, worker publish rate, and memory statistics
// for performance monitoring. Outputs stats to the log at a configurable
// interval. Tick is called from the display thread only; the publish counter
// is sampled, not owned, so the render worker is never touched.
type Profiler struct {
	frameCount     int
	lastPublished  uint64
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastTotalAlloc uint64
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
	}
}

// Tick should be called once per composited frame. Logs performance
// statistics when the update interval has elapsed: composite FPS, worker
// publish FPS, frame drops, heap usage, and allocation rate.
//
// Parameters:
//   - published: cumulative frames published by the render worker
//   - skipped: cumulative frames the render worker dropped
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(published, skipped uint64) bool {
	p.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed < p.updateInterval {
		return false
	}

	compositeFPS := float64(p.frameCount) / elapsed.Seconds()
	publishFPS := float64(published-p.lastPublished) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024

	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	log.Printf("[Profiler] Composite: %.2f fps | Publish: %.2f fps | Dropped: %d | Heap: %.2f MB | Alloc Rate: %.2f MB/s",
		compositeFPS, publishFPS, skipped, allocMB, allocRateMB)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastPublished = published
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
