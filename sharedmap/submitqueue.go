package sharedmap

import "context"

// submitJob is one outbound Message awaiting dispatch through the
// submitQueue. refObj is set only for a Set whose stored value is a
// Reference to a nested object this engine created locally: the queue must
// drive that object's Attach to completion before submitting msg, so that
// remote replicas can resolve the reference at apply time.
type submitJob struct {
	msg    Message
	refObj CollaborativeObject
	reply  chan error
}

// submitQueue is the single serialized task queue called for by the
// attach-before-submit rule: a lone goroutine drains jobs strictly in the
// order they were enqueued, so a later Set can never overtake an earlier
// one's pending nested attach.
type submitQueue struct {
	jobs    chan submitJob
	done    chan struct{}
	storage ObjectStorage
	reg     Registry
}

func newSubmitQueue(conn DeltaConnection, storage ObjectStorage, reg Registry) *submitQueue {
	q := &submitQueue{
		jobs:    make(chan submitJob, 64),
		done:    make(chan struct{}),
		storage: storage,
		reg:     reg,
	}
	go q.run(conn)
	return q
}

func (q *submitQueue) run(conn DeltaConnection) {
	defer close(q.done)
	for job := range q.jobs {
		job.reply <- q.dispatch(conn, job)
	}
}

func (q *submitQueue) dispatch(conn DeltaConnection, job submitJob) error {
	ctx := context.Background()
	if job.refObj != nil && job.refObj.IsLocal() {
		if err := job.refObj.Attach(ctx, conn, q.storage, q.reg); err != nil {
			return err
		}
	}
	return conn.Submit(ctx, job.msg)
}

// submit enqueues msg (with an optional nested-object attach precondition)
// and blocks until it has been dispatched: either handed to the
// DeltaConnection, or failed doing so. It does not wait for the message's
// eventual server acknowledgement.
func (q *submitQueue) submit(ctx context.Context, msg Message, refObj CollaborativeObject) error {
	job := submitJob{msg: msg, refObj: refObj, reply: make(chan error, 1)}
	select {
	case q.jobs <- job:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-job.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting new jobs. Jobs already enqueued continue to drain.
func (q *submitQueue) close() {
	close(q.jobs)
	<-q.done
}
