package cv

// RefKind tags a foreign key column, outside the vocabulary itself, that can
// point at a term. Merging a term repoints every such reference.
type RefKind string

// Reference kinds known to the interaction data model.
const (
	RefInteractionType             RefKind = "interaction.type"
	RefInteractionDetectionMethod  RefKind = "interaction.detection-method"
	RefParticipantBiologicalRole   RefKind = "participant.biological-role"
	RefParticipantExperimentalRole RefKind = "participant.experimental-role"
	RefParticipantIdentification   RefKind = "participant.identification-method"
	RefParticipantPreparation      RefKind = "participant.experimental-preparation"
	RefInteractorType              RefKind = "interactor.type"
	RefFeatureType                 RefKind = "feature.type"
	RefFeatureDetectionMethod      RefKind = "feature.detection-method"
	RefFeatureRole                 RefKind = "feature.role"
	RefRangeStartStatus            RefKind = "range.start-status"
	RefRangeEndStatus              RefKind = "range.end-status"
	RefXrefDatabase                RefKind = "xref.database"
	RefXrefQualifier               RefKind = "xref.qualifier"
	RefAliasType                   RefKind = "alias.type"
	RefAnnotationTopic             RefKind = "annotation.topic"
	RefParameterType               RefKind = "parameter.type"
	RefParameterUnit               RefKind = "parameter.unit"
	RefConfidenceType              RefKind = "confidence.type"
	RefOrganismCellType            RefKind = "organism.cell-type"
	RefOrganismTissue              RefKind = "organism.tissue"
	RefExperimentDetectionMethod   RefKind = "experiment.interaction-detection-method"
	RefExperimentIdentification    RefKind = "experiment.participant-identification-method"
	RefPublicationStatus           RefKind = "publication.status"
	RefComplexEvidenceType         RefKind = "complex.evidence-type"
	RefLifecycleEventType          RefKind = "lifecycle.event-type"
)

// KnownRefKinds lists every reference kind above in declaration order.
var KnownRefKinds = []RefKind{
	RefInteractionType,
	RefInteractionDetectionMethod,
	RefParticipantBiologicalRole,
	RefParticipantExperimentalRole,
	RefParticipantIdentification,
	RefParticipantPreparation,
	RefInteractorType,
	RefFeatureType,
	RefFeatureDetectionMethod,
	RefFeatureRole,
	RefRangeStartStatus,
	RefRangeEndStatus,
	RefXrefDatabase,
	RefXrefQualifier,
	RefAliasType,
	RefAnnotationTopic,
	RefParameterType,
	RefParameterUnit,
	RefConfidenceType,
	RefOrganismCellType,
	RefOrganismTissue,
	RefExperimentDetectionMethod,
	RefExperimentIdentification,
	RefPublicationStatus,
	RefComplexEvidenceType,
	RefLifecycleEventType,
}

// Reference is one row of some entity that points at a term.
type Reference struct {
	Kind   RefKind `json:"kind"`
	Owner  string  `json:"owner"`
	TermID TermID  `json:"term_id"`
}
