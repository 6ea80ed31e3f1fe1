package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/marktheknife/vesync-bridge/internal/infrastructure/mqtt"
)

// defaultHealthInterval is how often the health report is published.
const defaultHealthInterval = 60 * time.Second

// HealthCheck probes one component. A nil return means healthy.
type HealthCheck func(ctx context.Context) error

// HealthReporter periodically publishes a bridge health report to the
// system health topic, aggregating component checks (database, MQTT,
// InfluxDB) with the controller's own state.
type HealthReporter struct {
	controller *Controller
	publisher  Messenger
	logger     Logger
	interval   time.Duration

	mu     sync.Mutex
	checks []namedCheck

	wg sync.WaitGroup
}

type namedCheck struct {
	name  string
	check HealthCheck
}

// NewHealthReporter creates a reporter for the given controller.
// A zero interval uses the default.
func NewHealthReporter(controller *Controller, publisher Messenger, logger Logger, interval time.Duration) *HealthReporter {
	if logger == nil {
		logger = noopLogger{}
	}
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	return &HealthReporter{
		controller: controller,
		publisher:  publisher,
		logger:     logger,
		interval:   interval,
	}
}

// AddCheck registers a component health check under a name.
func (r *HealthReporter) AddCheck(name string, check HealthCheck) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks = append(r.checks, namedCheck{name: name, check: check})
}

// Start launches the reporting loop. It publishes one report
// immediately, then on the interval until ctx is cancelled.
func (r *HealthReporter) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		r.publish(ctx)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.publish(ctx)
			}
		}
	}()
}

// Wait blocks until the reporting loop has stopped.
func (r *HealthReporter) Wait() {
	r.wg.Wait()
}

// healthReport is the payload published to the system health topic.
type healthReport struct {
	Timestamp   string            `json:"timestamp"`
	Healthy     bool              `json:"healthy"`
	Ready       bool              `json:"ready"`
	LoggedIn    bool              `json:"logged_in"`
	Accessories int               `json:"accessories"`
	Components  map[string]string `json:"components,omitempty"`
}

func (r *HealthReporter) publish(ctx context.Context) {
	report := healthReport{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Healthy:     true,
		Ready:       r.controller.IsReady(),
		LoggedIn:    r.controller.Session().LoggedIn(),
		Accessories: r.controller.HandlerCount(),
		Components:  make(map[string]string),
	}

	r.mu.Lock()
	checks := make([]namedCheck, len(r.checks))
	copy(checks, r.checks)
	r.mu.Unlock()

	for _, nc := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := nc.check(checkCtx)
		cancel()

		if err != nil {
			report.Healthy = false
			report.Components[nc.name] = err.Error()
		} else {
			report.Components[nc.name] = "ok"
		}
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return
	}

	topic := mqtt.Topics{}.SystemHealth()
	if err := r.publisher.Publish(topic, payload, 0, true); err != nil {
		r.logger.Debug("publishing health report failed", "error", err)
	}
}
