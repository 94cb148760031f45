// Package importer implements the client-side orchestrator for the photo
// import pipeline: it uploads a captured photo, registers it as a pipeline
// job, and tracks the job's push-delivered status through to a terminal
// outcome, while staying safely cancellable at any point.
package importer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mealpix/mealpix-go/internal/upload"
	"github.com/mealpix/mealpix-go/internal/watch"
)

const cleanupTimeout = 30 * time.Second

// Uploader streams a local photo to remote storage and can delete what it
// wrote.
type Uploader interface {
	Upload(ctx context.Context, localPath, objectPath string, onProgress func(pct float64)) error
	Delete(ctx context.Context, objectPath string) error
}

// Trigger registers an uploaded photo as a new pipeline job.
type Trigger interface {
	StartImport(ctx context.Context, storageLocation string) (jobID string, err error)
}

// Observer attaches a push listener to a pipeline job record.
type Observer interface {
	Watch(ctx context.Context, jobID string, onUpdate func(watch.Update), onError func(error)) (Detacher, error)
}

// Detacher stops a push subscription. Detach is synchronous: once it returns
// the subscription delivers nothing further. Because it waits for in-flight
// delivery, it must never be called from inside the subscription's own
// callbacks; the controller detaches on a separate goroutine there.
type Detacher interface {
	Detach()
}

// Snapshot is the read-only view of an import exposed to consumers.
type Snapshot struct {
	Status         Status
	JobID          string
	UploadProgress float64
	Error          string
}

// Config carries Controller construction parameters.
type Config struct {
	// Namespace and OwnerID form the object store prefix photos are
	// uploaded under.
	Namespace string
	OwnerID   string

	// OnChange, if set, is invoked with a fresh snapshot after every state
	// change. It is called outside the controller lock and must not block
	// for long.
	OnChange func(Snapshot)

	Logger *slog.Logger
}

// Controller owns the state of the current import job. One logical job is
// tracked at a time; starting a new one supersedes the old.
//
// Callbacks from the upload, the trigger call, and the status subscription
// can arrive after the job they belong to has been cancelled or superseded.
// Every job's callbacks therefore carry the epoch they were registered
// under, and every mutation site compares that epoch against the current one
// before applying anything. Stale callbacks silently no-op.
type Controller struct {
	uploader Uploader
	trigger  Trigger
	observer Observer
	cfg      Config
	logger   *slog.Logger

	mu          sync.Mutex
	epoch       uint64
	status      Status
	jobID       string
	progress    float64
	errMsg      string
	storagePath string
	sub         Detacher
}

// New creates a Controller in the Idle state.
func New(uploader Uploader, trigger Trigger, observer Observer, cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		uploader: uploader,
		trigger:  trigger,
		observer: observer,
		cfg:      cfg,
		logger:   logger,
		status:   StatusIdle,
	}
}

// Snapshot returns the current import state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		Status:         c.status,
		JobID:          c.jobID,
		UploadProgress: c.progress,
		Error:          c.errMsg,
	}
}

// Start begins importing the photo at assetPath. Any previous job is
// superseded: its subscription is detached and its late callbacks are
// discarded. Start returns as soon as the upload is underway; everything
// after that is asynchronous and surfaces through snapshots. Asynchronous
// failures never propagate to the caller; they land in StatusFailed with a
// user-facing message.
//
// ctx bounds the upload and trigger calls. The controller itself imposes no
// deadline: a pipeline that stops reporting leaves the job in its last
// non-terminal state until the user cancels.
func (c *Controller) Start(ctx context.Context, assetPath string) error {
	if assetPath == "" {
		return errors.New("no photo provided")
	}

	c.mu.Lock()
	prev := c.sub
	c.sub = nil
	c.epoch++
	epoch := c.epoch
	c.status = StatusUploading
	c.jobID = ""
	c.progress = 0
	c.errMsg = ""
	c.storagePath = ""
	c.mu.Unlock()

	// Detach outside the lock: delivery holds the subscription's own lock
	// around callbacks, and those callbacks take ours.
	if prev != nil {
		prev.Detach()
	}
	c.notify()

	objectPath := upload.NewObjectPath(c.cfg.Namespace, c.cfg.OwnerID)
	c.logger.Info("import started", "asset", assetPath, "path", objectPath)

	go c.run(ctx, epoch, assetPath, objectPath)
	return nil
}

// Cancel abandons the current job and returns the controller to Idle. The
// active subscription is detached before Cancel returns. An in-flight upload
// is not aborted; its late completion is discarded by the epoch guard. If
// the photo already reached durable storage, a best-effort delete is issued
// in the background; its failure is logged and never surfaced.
func (c *Controller) Cancel() {
	sub, storagePath := c.drop()

	if sub != nil {
		sub.Detach()
	}
	if storagePath != "" {
		go c.cleanup(storagePath)
	}

	c.logger.Info("import cancelled", "path", storagePath)
	c.notify()
}

// Reset clears a consumed Ready or Failed outcome and returns to Idle. It
// detaches any subscription but never deletes stored photos: once a job is
// registered, the asset's lifecycle belongs to the server.
func (c *Controller) Reset() {
	sub, _ := c.drop()
	if sub != nil {
		sub.Detach()
	}
	c.notify()
}

// drop supersedes the current job: bumps the epoch so stale callbacks miss,
// clears all fields, and returns what the caller may need to release.
func (c *Controller) drop() (sub Detacher, storagePath string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub = c.sub
	storagePath = c.storagePath
	c.sub = nil
	c.epoch++
	c.status = StatusIdle
	c.jobID = ""
	c.progress = 0
	c.errMsg = ""
	c.storagePath = ""
	return sub, storagePath
}

// run drives one job from upload through registration to subscription. It
// runs on its own goroutine; every mutation it makes is epoch-guarded.
func (c *Controller) run(ctx context.Context, epoch uint64, assetPath, objectPath string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("import goroutine panicked", "panic", r)
			c.fail(epoch, msgImportStartFailed)
		}
	}()

	err := c.uploader.Upload(ctx, assetPath, objectPath, func(pct float64) {
		c.setProgress(epoch, pct)
	})
	if err != nil {
		c.logger.Warn("photo upload failed", "path", objectPath, "error", err)
		c.fail(epoch, msgUploadFailed)
		return
	}

	// The object is durable from here on; remember the path so Cancel can
	// clean it up.
	if !c.setStoragePath(epoch, objectPath) {
		// Superseded mid-upload. The stale completion is dropped and the
		// orphaned object is left to server-side retention.
		return
	}

	jobID, err := c.trigger.StartImport(ctx, objectPath)
	if err != nil {
		c.logger.Warn("import registration rejected", "path", objectPath, "error", err)
		// If the job was cancelled meanwhile, Cancel already owns the
		// cleanup of this path.
		if c.current(epoch) {
			c.cleanup(objectPath)
		}
		c.fail(epoch, enqueueMessage(err))
		return
	}

	c.attach(ctx, epoch, jobID)
}

// attach subscribes to the job record and moves the state machine to Queued.
func (c *Controller) attach(ctx context.Context, epoch uint64, jobID string) {
	sub, err := c.observer.Watch(ctx, jobID,
		func(u watch.Update) { c.applyUpdate(epoch, u) },
		func(err error) {
			c.logger.Warn("import subscription failed", "job_id", jobID, "error", err)
			c.fail(epoch, msgSubscriptionLost)
		})
	if err != nil {
		c.logger.Warn("could not watch import job", "job_id", jobID, "error", err)
		c.fail(epoch, msgSubscriptionLost)
		return
	}

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		sub.Detach()
		return
	}
	prev := c.sub
	c.sub = sub
	c.jobID = jobID
	c.status = StatusQueued
	c.mu.Unlock()

	// At most one subscription is active; prev can only be non-nil if an
	// earlier attach for this same epoch raced, which Start's sequencing
	// rules out, but detaching it costs nothing.
	if prev != nil {
		prev.Detach()
	}

	c.logger.Info("import job registered", "job_id", jobID)
	c.notify()
}

// applyUpdate folds one pushed record mutation into the state machine.
// Server-driven phases only ever advance; pushes that would move the status
// backwards, or that arrive after a terminal state, are ignored.
func (c *Controller) applyUpdate(epoch uint64, u watch.Update) {
	next, known := fromWire(u.Status)
	if !known {
		c.logger.Debug("ignoring unknown pipeline status", "status", u.Status)
		return
	}

	c.mu.Lock()
	if epoch != c.epoch || c.status.Terminal() {
		c.mu.Unlock()
		return
	}

	if next == StatusFailed {
		c.status = StatusFailed
		c.errMsg = remoteFailureMessage(u.ErrorMessage)
		c.logger.Warn("import failed remotely",
			"job_id", c.jobID, "error_code", u.ErrorCode, "error_message", u.ErrorMessage)
	} else {
		if phaseRank[next] <= phaseRank[c.status] {
			c.mu.Unlock()
			return
		}
		c.status = next
	}

	var sub Detacher
	if c.status.Terminal() {
		sub = c.sub
		c.sub = nil
	}
	jobID, status := c.jobID, c.status
	c.mu.Unlock()

	if sub != nil {
		// This runs inside the subscription's own delivery, and Detach
		// blocks until in-flight delivery returns, so detaching here
		// synchronously would deadlock the read loop. The epoch and
		// terminal guards discard anything delivered before it lands.
		go sub.Detach()
	}

	c.logger.Info("import status advanced", "job_id", jobID, "status", string(status))
	c.notify()
}

// setProgress applies an upload progress callback. Progress never decreases
// within one upload.
func (c *Controller) setProgress(epoch uint64, pct float64) {
	c.mu.Lock()
	if epoch != c.epoch || c.status != StatusUploading {
		c.mu.Unlock()
		return
	}
	if pct <= c.progress {
		c.mu.Unlock()
		return
	}
	c.progress = pct
	c.mu.Unlock()

	c.notify()
}

func (c *Controller) current(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return epoch == c.epoch
}

// setStoragePath records where the upload landed. Returns false if the job
// was superseded while the upload was in flight.
func (c *Controller) setStoragePath(epoch uint64, path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		return false
	}
	c.storagePath = path
	return true
}

// fail moves the job to StatusFailed with the given user message, unless the
// job was superseded or already reached a terminal state.
func (c *Controller) fail(epoch uint64, msg string) {
	c.mu.Lock()
	if epoch != c.epoch || c.status.Terminal() {
		c.mu.Unlock()
		return
	}
	c.status = StatusFailed
	c.errMsg = msg
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	if sub != nil {
		// fail can be reached from the subscription's onError, i.e. from
		// inside a delivery, where a synchronous Detach would deadlock.
		go sub.Detach()
	}
	c.notify()
}

// cleanup deletes an uploaded object that will never become a recipe.
// Failures are logged and swallowed: cleanup never blocks a state
// transition and never reaches the user.
func (c *Controller) cleanup(objectPath string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if err := c.uploader.Delete(ctx, objectPath); err != nil {
		c.logger.Warn("orphaned photo cleanup failed", "path", objectPath, "error", err)
	}
}

func (c *Controller) notify() {
	if c.cfg.OnChange == nil {
		return
	}
	c.cfg.OnChange(c.Snapshot())
}
