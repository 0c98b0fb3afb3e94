package codec

import (
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/wilhg/y8bridge/pkg/protocol"
)

// Loose shapes: only the fields the success rules read are constrained.
const (
	schemaObject      = `{"type":"object"}`
	schemaSuccessFlag = `{"type":"object","properties":{"success":{"type":"boolean"},"errorcode":{"type":"integer"}}}`
	schemaStatus      = `{"type":"object","required":["status"],"properties":{"status":{"type":"string"}}}`
	schemaErrorCode   = `{"type":"object","properties":{"errorcode":{"type":"integer"}}}`
)

func compileSchema(kind protocol.RequestKind, schema string) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schema))
	if err != nil {
		return nil, err
	}
	url := "mem://" + string(kind) + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

func validateBody(sch *jsonschema.Schema, body string) error {
	v, err := jsonschema.UnmarshalJSON(strings.NewReader(body))
	if err != nil {
		return err
	}
	return sch.Validate(v)
}
