package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ishankgp/indegenge-persona-sub003/internal/core/model"
)

func TestEligibleRelationTypes(t *testing.T) {
	assert.Contains(t, EligibleRelationTypes(model.NodeKeyMessage, model.NodePatientTension), model.RelAddresses)
	assert.Contains(t, EligibleRelationTypes(model.NodeKeyMessage, model.NodePatientTension), model.RelResonates)
	assert.Contains(t, EligibleRelationTypes(model.NodeProofPoint, model.NodeValueProposition), model.RelSupports)
	assert.Contains(t, EligibleRelationTypes(model.NodePatientBelief, model.NodeKeyMessage), model.RelContradicts)
	assert.Contains(t, EligibleRelationTypes(model.NodePatientTension, model.NodeSymptomBurden), model.RelTriggers)
	assert.Contains(t, EligibleRelationTypes(model.NodeMarketBarrier, model.NodePrescribingDriver), model.RelInfluences)

	// pairs with no plausible semantics cost no inference call
	assert.Empty(t, EligibleRelationTypes(model.NodeEpidemiology, model.NodePatientBelief))
	assert.Empty(t, EligibleRelationTypes(model.NodePatientTension, model.NodeKeyMessage))
}
