package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kaiwa/data/db/examples.db"
	}
	if cfg.Storage.BundlePath == "" {
		cfg.Storage.BundlePath = "/usr/local/var/kaiwa/data/model"
	}
	if cfg.Training.MaxEpochs == 0 {
		cfg.Training.MaxEpochs = 100
	}
	if cfg.Training.BatchSize == 0 {
		cfg.Training.BatchSize = 32
	}
	if cfg.Training.LearningRate == 0 {
		cfg.Training.LearningRate = 0.001
	}
	if cfg.Training.MaxPatience == 0 {
		cfg.Training.MaxPatience = 5
	}
	if cfg.Training.ValidationSplit == 0 {
		cfg.Training.ValidationSplit = 0.2
	}
}
