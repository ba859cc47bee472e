package config

// Constants defining default values for application configuration
const (
	DefaultDBPath      = "./catalog.db"
	DefaultSeedCSVPath = "./channels.csv"

	DefaultServerPort = 8080
	DefaultServerHost = "" // Empty string means all interfaces

	DefaultSweepIntervalSec = 300 // Seconds between stream health sweeps
	DefaultProbeTimeoutSec  = 5   // Seconds before a stream probe is abandoned
	DefaultSweepWorkers     = 0   // 0 means use runtime.NumCPU()

	DefaultLogLevel = "debug"
)
