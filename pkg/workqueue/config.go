package workqueue

// Config holds the tunables for process_work_batch that every adapter
// accepts and defaults via BatchRequest.WithDefaults.
type Config struct {
	// Driver specifies which store adapter to use. Supported: memory, postgres.
	Driver string `env:"WORKQUEUE_DRIVER" env-default:"memory"`

	LeaseSeconds          int `env:"WORKQUEUE_LEASE_SECONDS" env-default:"300"`
	PartitionCount        int `env:"WORKQUEUE_PARTITION_COUNT" env-default:"10000"`
	StaleThresholdSeconds int `env:"WORKQUEUE_STALE_THRESHOLD_SECONDS" env-default:"600"`
	MaxAttempts           int `env:"WORKQUEUE_MAX_ATTEMPTS" env-default:"10"`
	BatchSize             int `env:"WORKQUEUE_BATCH_SIZE" env-default:"100"`
}

// Apply copies the tunables onto a BatchRequest that does not already
// specify them.
func (c Config) Apply(req BatchRequest) BatchRequest {
	if req.LeaseSeconds <= 0 {
		req.LeaseSeconds = c.LeaseSeconds
	}
	if req.PartitionCount <= 0 {
		req.PartitionCount = c.PartitionCount
	}
	if req.StaleThresholdSeconds <= 0 {
		req.StaleThresholdSeconds = c.StaleThresholdSeconds
	}
	if req.MaxAttempts <= 0 {
		req.MaxAttempts = c.MaxAttempts
	}
	if req.BatchSize <= 0 {
		req.BatchSize = c.BatchSize
	}
	return req
}
