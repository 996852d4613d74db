package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"group-chat/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeCommand unmarshals the params of a request into T and validates its tags.
// Every failure wraps errors.ErrInvalidPayload.
func DecodeCommand[T any](params json.RawMessage) (T, error) {
	var cmd T
	if len(bytes.TrimSpace(params)) == 0 {
		params = json.RawMessage("{}")
	}
	if err := json.Unmarshal(params, &cmd); err != nil {
		return cmd, fmt.Errorf("%w: %s", errors.ErrInvalidPayload, err)
	}
	if err := ValidateCommand(cmd); err != nil {
		return cmd, err
	}
	return cmd, nil
}

func ValidateCommand(cmd any) error {
	if err := validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrInvalidPayload, err)
	}
	return nil
}
