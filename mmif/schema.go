package mmif

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/mmif.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
		if schemaErr != nil {
			schemaErr = errors.Wrap(schemaErr, "compiling MMIF schema")
		}
	})
	return schema, schemaErr
}

// Schema returns the JSON schema MMIF files are validated against.
func Schema() []byte {
	return append([]byte(nil), schemaJSON...)
}

// Validate checks a MMIF file, given as text, bytes or a decoded JSON
// object with its "@" keys, against the MMIF schema. Every violation is
// listed in the returned ValidationError.
func Validate(input interface{}) error {
	raw, err := rawInput(input)
	if err != nil {
		return err
	}
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	result, err := s.Validate(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return newError(ErrValidation, "%v", err)
	}
	if result.Valid() {
		return nil
	}
	var violations *multierror.Error
	var details []string
	for _, re := range result.Errors() {
		v := fmt.Sprintf("%s: %s", re.Field(), re.Description())
		details = append(details, v)
		violations = multierror.Append(violations, errors.New(v))
	}
	log.WithField("violations", len(details)).Debug("MMIF failed schema validation")
	return &Error{Kind: ErrValidation, Msg: violations.Error(), Details: details}
}

// Violations lists the individual schema failures held by a ValidationError
// returned from Validate, or nothing for any other error.
func Violations(err error) []string {
	var e *Error
	if !errors.As(err, &e) {
		return nil
	}
	return e.Details
}
