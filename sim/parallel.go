package sim

import (
	"runtime"
	"sync"

	"github.com/pthm-cable/crowd/systems"
)

// parallelThreshold is the minimum entity count to use parallel processing.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 64

// chunkFunc processes entity indices [start, end) with a worker-local
// scratch. Implementations may only write to buffers partitioned by entity
// index; anything shared is read-only during the dispatch.
type chunkFunc func(start, end int, scratch *systems.SocialScratch)

// workChunk represents a range of entities for a worker to process.
type workChunk struct {
	start, end int
}

// workerPool holds persistent workers for the parallel pipeline stages.
type workerPool struct {
	numWorkers int
	scratches  []systems.SocialScratch

	fn chunkFunc // set by the dispatcher before sending work

	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup
	running  bool
}

func newWorkerPool(workers int) *workerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	scratches := make([]systems.SocialScratch, workers)
	for i := range scratches {
		scratches[i].Neighbors = make([]systems.Neighbor, 0, 64)
		scratches[i].Gains = make([]systems.PairGain, 0, 256)
	}
	return &workerPool{
		numWorkers: workers,
		scratches:  scratches,
	}
}

// start launches the persistent worker goroutines.
func (p *workerPool) start() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// stop signals all workers to exit and waits for them.
func (p *workerPool) stop() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

func (p *workerPool) worker(workerID int) {
	defer p.wg.Done()
	scratch := &p.scratches[workerID]

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			p.fn(chunk.start, chunk.end, scratch)
			p.doneChan <- struct{}{}
		}
	}
}

// run executes fn over [0, n), parallel when n is large enough. It blocks
// until every chunk completes, so the caller observes a full barrier.
func (p *workerPool) run(n int, fn chunkFunc) {
	if n == 0 {
		return
	}

	if n < parallelThreshold {
		fn(0, n, &p.scratches[0])
		return
	}

	if !p.running {
		p.start()
	}
	p.fn = fn

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers
	dispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end}
		dispatched++
	}

	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
}

// collectGains gathers the per-worker gain buffers for a single-threaded
// apply after the barrier. Which worker processed which chunk is not
// stable across runs, so the concatenation order is not either; that is
// fine because each pair appears at most once per dispatch and the
// per-pair updates commute.
func (p *workerPool) collectGains(dst []systems.PairGain) []systems.PairGain {
	for i := range p.scratches {
		dst = append(dst, p.scratches[i].Gains...)
	}
	return dst
}

// resetGains clears the per-worker gain buffers before a social dispatch.
func (p *workerPool) resetGains() {
	for i := range p.scratches {
		p.scratches[i].Gains = p.scratches[i].Gains[:0]
	}
}
