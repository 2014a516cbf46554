package chatlog

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// RecordSchema returns the JSON schema of one output line, for consumers that
// want to validate JSONL records before feeding them to a fine-tuning job.
func RecordSchema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(Conversation{})

	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("RecordSchema: marshal: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("RecordSchema: unmarshal: %w", err)
	}
	return m, nil
}
