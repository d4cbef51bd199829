package validations

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	domainBinding "github.com/venadolabs/chanbind/domains/binding"
	pkgError "github.com/venadolabs/chanbind/pkg/error"
)

func ValidateDraftUpdate(ctx context.Context, request domainBinding.DraftUpdateRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.TargetType, validation.When(request.TargetType != nil, validation.By(func(value interface{}) error {
			t := request.TargetType
			if *t != string(domainBinding.TargetAgent) && *t != string(domainBinding.TargetTeam) {
				return validation.NewError("validation_target_type", "target_type must be AGENT or TEAM")
			}
			return nil
		}))),
		validation.Field(&request.PeerInputMode, validation.When(request.PeerInputMode != nil, validation.By(func(value interface{}) error {
			m := request.PeerInputMode
			if *m != "manual" && *m != "discovery" {
				return validation.NewError("validation_peer_input_mode", "peer_input_mode must be manual or discovery")
			}
			return nil
		}))),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateDeleteBinding(ctx context.Context, id string) error {
	err := validation.Validate(id, validation.Required)

	if err != nil {
		return pkgError.ValidationError("binding id is required")
	}

	return nil
}
