package validations

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	domainSetup "github.com/venadolabs/chanbind/domains/setup"
	pkgError "github.com/venadolabs/chanbind/pkg/error"
)

func ValidateSelectProvider(ctx context.Context, request domainSetup.SelectProviderRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Provider, validation.Required),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateSelectStep(ctx context.Context, request domainSetup.SelectStepRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Step, validation.Required, validation.In(
			string(domainSetup.StepGateway),
			string(domainSetup.StepPersonalSession),
			string(domainSetup.StepBinding),
			string(domainSetup.StepVerification),
		)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}
