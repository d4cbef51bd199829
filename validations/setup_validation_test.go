package validations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	domainBinding "github.com/venadolabs/chanbind/domains/binding"
	domainSetup "github.com/venadolabs/chanbind/domains/setup"
)

func strPtr(s string) *string { return &s }

func TestValidateSelectProvider(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, ValidateSelectProvider(ctx, domainSetup.SelectProviderRequest{Provider: "WHATSAPP"}))
	assert.Error(t, ValidateSelectProvider(ctx, domainSetup.SelectProviderRequest{}))
}

func TestValidateSelectStep(t *testing.T) {
	ctx := context.Background()

	for _, step := range []string{"gateway", "personal_session", "binding", "verification"} {
		assert.NoError(t, ValidateSelectStep(ctx, domainSetup.SelectStepRequest{Step: step}), step)
	}
	assert.Error(t, ValidateSelectStep(ctx, domainSetup.SelectStepRequest{}))
	assert.Error(t, ValidateSelectStep(ctx, domainSetup.SelectStepRequest{Step: "teardown"}))
}

func TestValidateDraftUpdate(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, ValidateDraftUpdate(ctx, domainBinding.DraftUpdateRequest{}))
	assert.NoError(t, ValidateDraftUpdate(ctx, domainBinding.DraftUpdateRequest{TargetType: strPtr("AGENT")}))
	assert.NoError(t, ValidateDraftUpdate(ctx, domainBinding.DraftUpdateRequest{TargetType: strPtr("TEAM")}))
	assert.Error(t, ValidateDraftUpdate(ctx, domainBinding.DraftUpdateRequest{TargetType: strPtr("CHANNEL")}))

	assert.NoError(t, ValidateDraftUpdate(ctx, domainBinding.DraftUpdateRequest{PeerInputMode: strPtr("manual")}))
	assert.NoError(t, ValidateDraftUpdate(ctx, domainBinding.DraftUpdateRequest{PeerInputMode: strPtr("discovery")}))
	assert.Error(t, ValidateDraftUpdate(ctx, domainBinding.DraftUpdateRequest{PeerInputMode: strPtr("guess")}))
}

func TestValidateDeleteBinding(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, ValidateDeleteBinding(ctx, "b-1"))
	assert.Error(t, ValidateDeleteBinding(ctx, ""))
}
