package config

// KafkaConfig configures the optional reconcile warning publisher.
// When Brokers is empty warnings are only logged.
type KafkaConfig struct {
	Brokers       []string `env:"KAFKA_BROKERS" env-separator:"," env-default:""`
	WarningsTopic string   `env:"KAFKA_RECONCILE_WARNINGS_TOPIC" env-default:"profile.reconcile.warnings"`
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}
