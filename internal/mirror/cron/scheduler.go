package cronjob

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/jessm23/portafolio-backend/internal/logging"
	"github.com/jessm23/portafolio-backend/internal/mirror"
)

// TreeSyncer is the part of mirror.Syncer the scheduler drives.
type TreeSyncer interface {
	SyncTree(ctx context.Context, localDir, remoteDirName string) (*mirror.TreeReport, error)
}

// Scheduler periodically mirrors a local directory to the remote host.
type Scheduler struct {
	syncer    TreeSyncer
	localDir  string
	remoteDir string
	timeout   time.Duration

	cron    *cron.Cron
	running int32
}

func NewScheduler(syncer TreeSyncer, localDir, remoteDir string, timeout time.Duration) *Scheduler {
	return &Scheduler{
		syncer:    syncer,
		localDir:  localDir,
		remoteDir: remoteDir,
		timeout:   timeout,
		cron:      cron.New(cron.WithSeconds()),
	}
}

// Start registers the mirror job on spec (six fields, seconds first) and
// starts the cron loop.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.RunOnce); err != nil {
		return err
	}

	log.WithField("schedule", spec).Info("Mirror scheduler started")
	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce mirrors the directory now. A call while another run is in flight
// is skipped.
func (s *Scheduler) RunOnce() {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		log.Warn("Mirror run skipped: previous run still in progress")
		return
	}
	defer atomic.StoreInt32(&s.running, 0)

	ctx := logging.WithRequestID(context.Background(), "cron-"+time.Now().UTC().Format("20060102T150405"))
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	logger := logging.NewLogger(ctx)
	report, err := s.syncer.SyncTree(ctx, s.localDir, s.remoteDir)
	if err != nil {
		logger.LogError("scheduled_mirror", err)
	}
	if report != nil {
		logger.LogInfof("scheduled_mirror", "completed: %d synced, %d failed", len(report.Results), len(report.Failures))
	}
}
