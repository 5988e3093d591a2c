package indexer

import (
	"context"
	"errors"
	"sync"

	"github.com/neonotify/neonotify/libs/log"
	"github.com/neonotify/neonotify/libs/service"
	"github.com/neonotify/neonotify/types"
)

// ErrServiceStopped is returned when publishing to a stopped service.
var ErrServiceStopped = errors.New("indexer service stopped")

const defaultQueueSize = 256

type request struct {
	tx   *types.ExecutedTx
	done chan struct{} // set for Sync barriers
}

// Service owns the single goroutine that writes to the index. Producers on
// any goroutine hand transactions to Publish; they are indexed one at a
// time in the order they were published.
type Service struct {
	service.BaseService

	pipeline *Pipeline
	logger   log.Logger
	queue    chan request

	mtx      sync.Mutex
	err      error
	failed   chan struct{}
	stop     chan struct{}
	loopDone chan struct{}
}

// ServiceArgs are arguments for constructing a new indexer service.
type ServiceArgs struct {
	Pipeline  *Pipeline
	QueueSize int
	Logger    log.Logger
}

// NewService constructs a new indexer service from the given arguments.
func NewService(args ServiceArgs) *Service {
	size := args.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	s := &Service{
		pipeline: args.Pipeline,
		logger:   args.Logger,
		queue:    make(chan request, size),
		failed:   make(chan struct{}),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	if s.logger == nil {
		s.logger = log.NewNopLogger()
	}
	s.BaseService = *service.NewBaseService(s.logger, "IndexerService", s)
	return s
}

// OnStart implements service.Service by starting the writer goroutine.
func (s *Service) OnStart(ctx context.Context) error {
	go func() {
		s.run(ctx)
		if s.Err() != nil {
			_ = s.Stop()
		}
	}()
	return nil
}

// OnStop implements service.Service. It returns once the writer goroutine
// has finished the transaction it was working on.
func (s *Service) OnStop() {
	close(s.stop)
	<-s.loopDone
}

func (s *Service) run(ctx context.Context) {
	defer close(s.loopDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case req := <-s.queue:
			if req.tx == nil {
				close(req.done)
				continue
			}
			if err := s.pipeline.Index(ctx, req.tx); err != nil {
				s.logger.Error("failed to commit transaction; stopping indexer",
					"tx", req.tx.Hash.String(),
					"err", err,
				)
				s.fail(err)
				return
			}
		}
	}
}

func (s *Service) fail(err error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.err == nil {
		s.err = err
		close(s.failed)
	}
}

// Err returns the commit error that stopped the service, if any.
func (s *Service) Err() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.err
}

// Failed is closed when the service stops because of a commit error.
func (s *Service) Failed() <-chan struct{} { return s.failed }

// Publish queues tx for indexing. It blocks while the queue is full.
func (s *Service) Publish(ctx context.Context, tx *types.ExecutedTx) error {
	return s.enqueue(ctx, request{tx: tx})
}

// Sync blocks until every transaction published before the call has been
// committed.
func (s *Service) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if err := s.enqueue(ctx, request{done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-s.failed:
		return s.Err()
	case <-s.Quit():
		return ErrServiceStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) enqueue(ctx context.Context, req request) error {
	if err := s.Err(); err != nil {
		return err
	}
	select {
	case <-s.Quit():
		return ErrServiceStopped
	default:
	}
	select {
	case s.queue <- req:
		return nil
	case <-s.failed:
		return s.Err()
	case <-s.Quit():
		return ErrServiceStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
