package config

const (
	defaultWorkDir               = "~/.local/share/gantry/work"
	defaultLogDir                = "~/.local/share/gantry/logs"
	defaultAPIBind               = "127.0.0.1:7491"
	defaultOrchestratorURL       = "http://localhost:8080"
	defaultOrchestratorUsername  = "admin"
	defaultOrchestratorDAGID     = "imaging_triage_pipeline"
	defaultOrchestratorTimeout   = 30
	defaultHostStoreTimeout      = 30
	defaultSliceCount            = 5
	defaultScoring               = "variance"
	defaultMaxUnreadableFraction = 0.2
	defaultWorkers               = 4
	defaultRedactionToken        = "REDACTED"
	defaultDetector              = "gradient"
	defaultEdgeMarginPercent     = 10.0
	defaultConfidenceThreshold   = 0.6
	defaultLowConfidenceAction   = "leave"
	defaultPollIntervalSeconds   = 3
	defaultMaxPollAttempts       = 30
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Orchestrator: Orchestrator{
			URL:            defaultOrchestratorURL,
			Username:       defaultOrchestratorUsername,
			DAGID:          defaultOrchestratorDAGID,
			RequestTimeout: defaultOrchestratorTimeout,
		},
		HostStore: HostStore{
			RequestTimeout: defaultHostStoreTimeout,
		},
		Triage: Triage{
			SliceCount:            defaultSliceCount,
			Scoring:               defaultScoring,
			MaxUnreadableFraction: defaultMaxUnreadableFraction,
			Workers:               defaultWorkers,
		},
		Anonymize: Anonymize{
			RedactionToken:      defaultRedactionToken,
			Detector:            defaultDetector,
			EdgeMarginPercent:   defaultEdgeMarginPercent,
			ConfidenceThreshold: defaultConfidenceThreshold,
			LowConfidenceAction: defaultLowConfidenceAction,
		},
		Workflow: Workflow{
			PollIntervalSeconds: defaultPollIntervalSeconds,
			MaxPollAttempts:     defaultMaxPollAttempts,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
