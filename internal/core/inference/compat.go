package inference

import "github.com/ishankgp/indegenge-persona-sub003/internal/core/model"

type pairKey struct {
	from model.NodeType
	to   model.NodeType
}

// compatibility maps an ordered node-type pair to the relation types worth
// asking the model about. Pairs absent from the table cost no inference
// call at all.
var compatibility = map[pairKey][]model.RelationType{}

func allow(from, to model.NodeType, types ...model.RelationType) {
	key := pairKey{from, to}
	compatibility[key] = append(compatibility[key], types...)
}

func init() {
	pillars := []model.NodeType{model.NodeKeyMessage, model.NodeValueProposition, model.NodeDifferentiator}

	// Brand pillars address and resonate with the problems and people they
	// were written for.
	for _, p := range pillars {
		for _, need := range []model.NodeType{
			model.NodePatientTension, model.NodeUnmetNeed,
			model.NodeClinicalConcern, model.NodeMarketBarrier,
			model.NodePracticeConstraint,
		} {
			allow(p, need, model.RelAddresses)
		}
		for _, audience := range []model.NodeType{
			model.NodePatientMotivation, model.NodePatientBelief,
			model.NodePatientTension, model.NodeJourneyInsight,
			model.NodePrescribingDriver,
		} {
			allow(p, audience, model.RelResonates)
		}
	}

	// Evidence supports the pillars it backs.
	for _, p := range []model.NodeType{
		model.NodeKeyMessage, model.NodeValueProposition,
		model.NodeDifferentiator, model.NodeCompetitorPosition,
	} {
		allow(model.NodeProofPoint, p, model.RelSupports)
	}
	allow(model.NodeEpidemiology, model.NodeUnmetNeed, model.RelSupports)
	allow(model.NodeSymptomBurden, model.NodeUnmetNeed, model.RelSupports)

	// Beliefs, concerns, and competitor claims can cut against messaging.
	for _, p := range pillars {
		allow(model.NodePatientBelief, p, model.RelContradicts)
		allow(model.NodeClinicalConcern, p, model.RelContradicts)
		allow(model.NodeCompetitorPosition, p, model.RelContradicts)
	}
	allow(model.NodePatientBelief, model.NodeProofPoint, model.RelContradicts)

	// Journey dynamics: tensions trace back to burden, insights set off
	// tensions.
	allow(model.NodePatientTension, model.NodeSymptomBurden, model.RelTriggers)
	allow(model.NodeSymptomBurden, model.NodePatientTension, model.RelTriggers)
	allow(model.NodeJourneyInsight, model.NodePatientTension, model.RelTriggers)
	allow(model.NodeUnmetNeed, model.NodePatientTension, model.RelTriggers)

	// Market and practice forces shape prescribing and the landscape.
	allow(model.NodeMarketBarrier, model.NodePrescribingDriver, model.RelInfluences)
	allow(model.NodePracticeConstraint, model.NodePrescribingDriver, model.RelInfluences)
	allow(model.NodeTreatmentLandscape, model.NodePrescribingDriver, model.RelInfluences)
	allow(model.NodePrescribingDriver, model.NodeTreatmentLandscape, model.RelInfluences)
	allow(model.NodeEpidemiology, model.NodeTreatmentLandscape, model.RelInfluences)
	allow(model.NodeCompetitorPosition, model.NodeMarketBarrier, model.RelInfluences)
	allow(model.NodePatientMotivation, model.NodeJourneyInsight, model.RelInfluences)
	allow(model.NodeJourneyInsight, model.NodePatientMotivation, model.RelInfluences)
}

// EligibleRelationTypes returns the relation types the inference model may
// propose for the ordered pair, or nil when the pair is not worth a call.
func EligibleRelationTypes(from, to model.NodeType) []model.RelationType {
	return compatibility[pairKey{from, to}]
}
