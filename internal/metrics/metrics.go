package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder collects the outcome of one deployctl run and writes it as a
// node_exporter textfile. Each run overwrites the file, so every series is
// a gauge describing the most recent run.
type Recorder struct {
	textfile string
	registry *prometheus.Registry

	deploySuccess   *prometheus.GaugeVec
	deployTimestamp *prometheus.GaugeVec
	deployDuration  *prometheus.GaugeVec
	pollAttempts    *prometheus.GaugeVec
	rolledBack      *prometheus.GaugeVec
	rollbackSuccess *prometheus.GaugeVec
	backupsRetained *prometheus.GaugeVec
}

// Deploy is what a finished deploy reports.
type Deploy struct {
	Service      string
	Success      bool
	FinishedAt   time.Time
	Duration     time.Duration
	PollAttempts int
	RolledBack   bool

	// BackupsRetained is negative when retention did not run.
	BackupsRetained int
}

// NewRecorder returns a Recorder writing to textfile. An empty path makes
// Flush a no-op.
func NewRecorder(textfile string) *Recorder {
	r := &Recorder{
		textfile: textfile,
		registry: prometheus.NewRegistry(),

		deploySuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "deployctl_deploy_last_success",
				Help: "Whether the last deploy succeeded (1 = success, 0 = failed)",
			},
			[]string{"service"},
		),
		deployTimestamp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "deployctl_deploy_last_timestamp_seconds",
				Help: "Unix time the last deploy finished",
			},
			[]string{"service"},
		),
		deployDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "deployctl_deploy_last_duration_seconds",
				Help: "Wall time of the last deploy",
			},
			[]string{"service"},
		),
		pollAttempts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "deployctl_health_poll_attempts",
				Help: "Readiness attempts made during the last deploy",
			},
			[]string{"service"},
		),
		rolledBack: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "deployctl_deploy_last_rolled_back",
				Help: "Whether the last deploy triggered a rollback",
			},
			[]string{"service"},
		),
		rollbackSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "deployctl_rollback_last_success",
				Help: "Whether the last rollback succeeded (1 = success, 0 = failed)",
			},
			[]string{"service"},
		),
		backupsRetained: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "deployctl_backups_retained",
				Help: "Backups left on disk after retention cleanup",
			},
			[]string{"service"},
		),
	}

	r.registry.MustRegister(
		r.deploySuccess,
		r.deployTimestamp,
		r.deployDuration,
		r.pollAttempts,
		r.rolledBack,
		r.rollbackSuccess,
		r.backupsRetained,
	)
	return r
}

// ObserveDeploy records a finished deploy.
func (r *Recorder) ObserveDeploy(d Deploy) {
	r.deploySuccess.WithLabelValues(d.Service).Set(boolToFloat(d.Success))
	r.deployTimestamp.WithLabelValues(d.Service).Set(float64(d.FinishedAt.Unix()))
	r.deployDuration.WithLabelValues(d.Service).Set(d.Duration.Seconds())
	r.pollAttempts.WithLabelValues(d.Service).Set(float64(d.PollAttempts))
	r.rolledBack.WithLabelValues(d.Service).Set(boolToFloat(d.RolledBack))
	if d.BackupsRetained >= 0 {
		r.backupsRetained.WithLabelValues(d.Service).Set(float64(d.BackupsRetained))
	}
}

// ObserveRollback records the result of a rollback.
func (r *Recorder) ObserveRollback(service string, success bool) {
	r.rollbackSuccess.WithLabelValues(service).Set(boolToFloat(success))
}

// Gatherer exposes the underlying registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Flush writes every collected series to the textfile.
func (r *Recorder) Flush() error {
	if r.textfile == "" {
		return nil
	}
	return prometheus.WriteToTextfile(r.textfile, r.registry)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
