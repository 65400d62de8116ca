package anonymize

import (
	"fmt"

	"gantry/internal/services"
)

// Action is the configured treatment for one metadata keyword.
type Action int

const (
	// ActionKeep retains the value unchanged.
	ActionKeep Action = iota
	// ActionRemove drops the keyword entirely.
	ActionRemove
	// ActionReplace substitutes the fixed redaction token.
	ActionReplace
)

// Policy maps metadata keywords to redaction actions. RequiredRemovals lists
// the keywords that must be absent from every output regardless of what the
// tag map says; the post-transform check enforces it.
type Policy struct {
	Tags             map[string]Action
	DefaultAction    Action
	RedactionToken   string
	RequiredRemovals []string
}

// phiKeywords are the identifying DICOM keywords stripped by default.
var phiKeywords = []string{
	"PatientBirthDate",
	"PatientSex",
	"PatientAge",
	"PatientAddress",
	"PatientTelephoneNumbers",
	"InstitutionName",
	"InstitutionAddress",
	"ReferringPhysicianName",
	"PerformingPhysicianName",
	"OperatorsName",
	"StudyDate",
	"StudyTime",
	"AccessionNumber",
	"StudyInstanceUID",
	"SeriesInstanceUID",
}

// replacedKeywords keep a placeholder value so downstream consumers still see
// the field exists, without the identifying content.
var replacedKeywords = []string{
	"PatientName",
	"PatientID",
}

// DefaultPolicy returns the built-in de-identification policy: known PHI
// keywords removed, patient name/ID replaced with the token, everything else
// kept.
func DefaultPolicy(token string) Policy {
	tags := make(map[string]Action, len(phiKeywords)+len(replacedKeywords))
	for _, kw := range phiKeywords {
		tags[kw] = ActionRemove
	}
	for _, kw := range replacedKeywords {
		tags[kw] = ActionReplace
	}
	required := make([]string, len(phiKeywords))
	copy(required, phiKeywords)
	return Policy{
		Tags:             tags,
		DefaultAction:    ActionKeep,
		RedactionToken:   token,
		RequiredRemovals: required,
	}
}

// ActionFor resolves the configured action for a keyword.
func (p Policy) ActionFor(keyword string) Action {
	if action, ok := p.Tags[keyword]; ok {
		return action
	}
	return p.DefaultAction
}

// VerifyRedaction checks transformed metadata against the policy's removal
// guarantee. Any surviving required-removal keyword, or a replace keyword
// still carrying a non-token value, is a policy violation: the run must abort
// rather than emit a partially de-identified artifact.
func VerifyRedaction(metadata map[string]string, policy Policy) error {
	for _, keyword := range policy.RequiredRemovals {
		if _, present := metadata[keyword]; present {
			return services.Wrap(services.ErrPolicy, "anonymize", "verify",
				fmt.Sprintf("keyword %s survived redaction", keyword), nil)
		}
	}
	for keyword, action := range policy.Tags {
		if action != ActionReplace {
			continue
		}
		if value, present := metadata[keyword]; present && value != policy.RedactionToken {
			return services.Wrap(services.ErrPolicy, "anonymize", "verify",
				fmt.Sprintf("keyword %s not replaced with redaction token", keyword), nil)
		}
	}
	return nil
}
