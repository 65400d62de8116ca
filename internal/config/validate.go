package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateOrchestrator(); err != nil {
		return err
	}
	if err := c.validateTriage(); err != nil {
		return err
	}
	if err := c.validateAnonymize(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateOrchestrator() error {
	if c.Orchestrator.URL == "" {
		return errors.New("orchestrator.url must be set")
	}
	if c.Orchestrator.DAGID == "" {
		return errors.New("orchestrator.dag_id must be set")
	}
	if c.Orchestrator.RequestTimeout <= 0 {
		return errors.New("orchestrator.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateTriage() error {
	if c.Triage.SliceCount <= 0 {
		return errors.New("triage.slice_count must be positive")
	}
	switch c.Triage.Scoring {
	case "midpoint", "variance":
	default:
		return fmt.Errorf("triage.scoring must be \"midpoint\" or \"variance\", got %q", c.Triage.Scoring)
	}
	if c.Triage.MaxUnreadableFraction < 0 || c.Triage.MaxUnreadableFraction >= 1 {
		return errors.New("triage.max_unreadable_fraction must be in [0, 1)")
	}
	if c.Triage.Workers <= 0 {
		return errors.New("triage.workers must be positive")
	}
	return nil
}

func (c *Config) validateAnonymize() error {
	if c.Anonymize.RedactionToken == "" {
		return errors.New("anonymize.redaction_token must be set")
	}
	switch c.Anonymize.Detector {
	case "regions":
		if len(c.Anonymize.Regions) == 0 {
			return errors.New("anonymize.regions must list at least one rectangle for the \"regions\" detector")
		}
		for i, r := range c.Anonymize.Regions {
			if r.W <= 0 || r.H <= 0 {
				return fmt.Errorf("anonymize.regions[%d] must have positive width and height", i)
			}
		}
	case "gradient":
	default:
		return fmt.Errorf("anonymize.detector must be \"regions\" or \"gradient\", got %q", c.Anonymize.Detector)
	}
	switch c.Anonymize.LowConfidenceAction {
	case "blank-margin", "leave":
	default:
		return fmt.Errorf("anonymize.low_confidence_action must be \"blank-margin\" or \"leave\", got %q", c.Anonymize.LowConfidenceAction)
	}
	if c.Anonymize.EdgeMarginPercent <= 0 || c.Anonymize.EdgeMarginPercent > 50 {
		return errors.New("anonymize.edge_margin_percent must be in (0, 50]")
	}
	if c.Anonymize.ConfidenceThreshold < 0 || c.Anonymize.ConfidenceThreshold > 1 {
		return errors.New("anonymize.confidence_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.PollIntervalSeconds <= 0 {
		return errors.New("workflow.poll_interval_seconds must be positive")
	}
	if c.Workflow.MaxPollAttempts <= 0 {
		return errors.New("workflow.max_poll_attempts must be positive")
	}
	return nil
}
