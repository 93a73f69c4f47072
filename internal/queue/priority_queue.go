package queue

import (
	"container/heap"
	"sync"
	"time"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
)

// DeliveryJob is one pending real-time push
type DeliveryJob struct {
	Notification *domain.Notification
	EnqueuedAt   time.Time
	seq          uint64
	index        int // Index in the heap
}

// WaitedFor returns how long the job sat in the queue as of now
func (j *DeliveryJob) WaitedFor(now time.Time) time.Duration {
	if j.EnqueuedAt.IsZero() || now.Before(j.EnqueuedAt) {
		return 0
	}
	return now.Sub(j.EnqueuedAt)
}

// jobHeap implements heap.Interface
type jobHeap []*DeliveryJob

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	// Higher notification priority first, FIFO within a priority
	ri, rj := h[i].Notification.Priority.Rank(), h[j].Notification.Priority.Rank()
	if ri != rj {
		return ri > rj
	}
	return h[i].seq < h[j].seq
}

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x any) {
	job := x.(*DeliveryJob)
	job.index = len(*h)
	*h = append(*h, job)
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil // Avoid memory leak
	job.index = -1
	*h = old[0 : n-1]
	return job
}

// PriorityQueue is a thread-safe priority queue of delivery jobs
type PriorityQueue struct {
	jobs   jobHeap
	mu     sync.Mutex
	cond   *sync.Cond
	seq    uint64
	closed bool
}

// NewPriorityQueue creates a new priority queue
func NewPriorityQueue() *PriorityQueue {
	pq := &PriorityQueue{
		jobs: make(jobHeap, 0),
	}
	pq.cond = sync.NewCond(&pq.mu)
	heap.Init(&pq.jobs)
	return pq
}

// Push adds a job to the queue. It reports false once the queue is closed.
func (pq *PriorityQueue) Push(job *DeliveryJob) bool {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if pq.closed {
		return false
	}
	pq.seq++
	job.seq = pq.seq
	heap.Push(&pq.jobs, job)
	pq.cond.Signal() // Wake up a waiting worker
	return true
}

// Pop removes and returns the highest priority job, blocking while the queue
// is empty. It returns false when the queue is closed and drained.
func (pq *PriorityQueue) Pop() (*DeliveryJob, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	for pq.jobs.Len() == 0 && !pq.closed {
		pq.cond.Wait()
	}
	if pq.jobs.Len() == 0 {
		return nil, false
	}
	return heap.Pop(&pq.jobs).(*DeliveryJob), true
}

// Close rejects further pushes and wakes every blocked Pop
func (pq *PriorityQueue) Close() {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	pq.closed = true
	pq.cond.Broadcast()
}

// Len returns the number of jobs in the queue
func (pq *PriorityQueue) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return pq.jobs.Len()
}
