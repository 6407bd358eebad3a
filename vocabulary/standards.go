package vocabulary

import "github.com/c360/cvsync/cv"

// Database short labels of the ontologies shipped in the default registry.
const (
	DatabasePSIMI  = "psi-mi"
	DatabasePSIMOD = "psi-mod"
	DatabaseGO     = "go"
	DatabaseECO    = "eco"
)

// Entity kinds written to used-in-class annotations.
const (
	UsageInteractionDetectionMethod = "interaction-detection-method"
	UsageParticipantIdentification  = "participant-identification-method"
	UsageInteractionType            = "interaction-type"
	UsageInteractorType             = "interactor-type"
	UsageFeatureType                = "feature-type"
	UsageFeatureDetectionMethod     = "feature-detection-method"
	UsageExperimentalRole           = "experimental-role"
	UsageBiologicalRole             = "biological-role"
	UsageExperimentalPreparation    = "experimental-preparation"
	UsageRangeStatus                = "range-status"
	UsageDatabase                   = "database"
	UsageXrefQualifier              = "xref-qualifier"
	UsageAliasType                  = "alias-type"
	UsageAnnotationTopic            = "annotation-topic"
	UsageParameterType              = "parameter-type"
	UsageParameterUnit              = "parameter-unit"
	UsageConfidenceType             = "confidence-type"
)

// Default returns a registry preloaded with the PSI-MI family of ontologies,
// the protected xref qualifiers and the used-in-class root table.
func Default() *Registry {
	r := NewRegistry()

	r.RegisterNamespace("MI",
		WithDatabase(DatabasePSIMI, "MI:0488"),
		WithOntology(DatabasePSIMI),
		WithPattern(`^MI:[0-9]{4}$`))
	r.RegisterNamespace("MOD",
		WithDatabase(DatabasePSIMOD, "MI:0897"),
		WithOntology(DatabasePSIMOD),
		WithPattern(`^MOD:[0-9]{5}$`))
	r.RegisterNamespace("GO",
		WithDatabase(DatabaseGO, "MI:0448"),
		WithOntology(DatabaseGO),
		WithPattern(`^GO:[0-9]{7}$`))
	r.RegisterNamespace("ECO",
		WithDatabase(DatabaseECO, "MI:1331"),
		WithOntology(DatabaseECO),
		WithPattern(`^ECO:[0-9]{7}$`))

	r.ProtectQualifiers(cv.QualifierIdentity, cv.QualifierSecondaryAC, "secondary")

	r.ManageTopics(
		cv.TopicDefinition,
		cv.TopicURL,
		cv.TopicObsolete,
		cv.TopicComment,
		cv.TopicUsedInClass,
		"search-url",
		"validation-regexp",
		"id-validation-regexp",
	)

	r.RegisterUsage("MI:0001", UsageInteractionDetectionMethod)
	r.RegisterUsage("MI:0002", UsageParticipantIdentification)
	r.RegisterUsage("MI:0003", UsageFeatureDetectionMethod)
	r.RegisterUsage("MI:0116", UsageFeatureType)
	r.RegisterUsage("MI:0190", UsageInteractionType)
	r.RegisterUsage("MI:0300", UsageAliasType)
	r.RegisterUsage("MI:0313", UsageInteractorType)
	r.RegisterUsage("MI:0333", UsageRangeStatus)
	r.RegisterUsage("MI:0346", UsageExperimentalPreparation)
	r.RegisterUsage("MI:0353", UsageXrefQualifier)
	r.RegisterUsage("MI:0444", UsageDatabase)
	r.RegisterUsage("MI:0495", UsageExperimentalRole)
	r.RegisterUsage("MI:0500", UsageBiologicalRole)
	r.RegisterUsage("MI:0590", UsageAnnotationTopic)
	r.RegisterUsage("MI:0640", UsageParameterType)
	r.RegisterUsage("MI:0647", UsageParameterUnit)
	r.RegisterUsage("MI:1064", UsageConfidenceType)
	r.RegisterUsage("MOD:00000", UsageFeatureType)

	return r
}
