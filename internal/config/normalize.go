package config

import "strings"

func (c *Config) normalize() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	c.Orchestrator.URL = strings.TrimRight(strings.TrimSpace(c.Orchestrator.URL), "/")
	c.HostStore.URL = strings.TrimRight(strings.TrimSpace(c.HostStore.URL), "/")
	c.Triage.Scoring = strings.ToLower(strings.TrimSpace(c.Triage.Scoring))
	c.Anonymize.Detector = strings.ToLower(strings.TrimSpace(c.Anonymize.Detector))
	c.Anonymize.LowConfidenceAction = strings.ToLower(strings.TrimSpace(c.Anonymize.LowConfidenceAction))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}
