// serde.go: schema-versioned genome JSON.
//
// Version history:
//
//	1: no code-policy fields.
//	2: adds code_policy_kind / code_policy_component_id / code_policy_params.
//
// A version-1 document loads with an absent trait: the loader neither fails
// nor synthesizes values. Encoding always writes the current version and
// omits the trait fields when the slot is empty.
package genome

import (
	"encoding/json"
	"fmt"
)

// SchemaVersion is the version written by Encode.
const SchemaVersion = 2

type genomeDoc struct {
	SchemaVersion int     `json:"schema_version"`
	ID            string  `json:"id,omitempty"`
	Speed         float64 `json:"speed"`
	Sense         float64 `json:"sense"`

	CodePolicyKind        string             `json:"code_policy_kind,omitempty"`
	CodePolicyComponentID string             `json:"code_policy_component_id,omitempty"`
	CodePolicyParams      map[string]float64 `json:"code_policy_params,omitempty"`
}

// Encode serializes the genome at the current schema version.
func Encode(g *Genome) ([]byte, error) {
	doc := genomeDoc{
		SchemaVersion: SchemaVersion,
		ID:            g.ID,
		Speed:         g.Speed,
		Sense:         g.Sense,
	}
	if g.Policy.Present() {
		doc.CodePolicyKind = g.Policy.Kind
		doc.CodePolicyComponentID = g.Policy.ComponentID
		doc.CodePolicyParams = g.Policy.Params
	}
	return json.Marshal(doc)
}

// Decode parses and validates a genome document of any supported schema
// version. Invalid traits are rejected here, before the genome can reach
// the population.
func Decode(data []byte) (*Genome, error) {
	var doc genomeDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode genome: %w", err)
	}
	if doc.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("decode genome: unsupported schema_version %d", doc.SchemaVersion)
	}
	g := &Genome{ID: doc.ID, Speed: doc.Speed, Sense: doc.Sense}
	if doc.SchemaVersion >= 2 {
		g.Policy = CodePolicyTrait{
			Kind:        doc.CodePolicyKind,
			ComponentID: doc.CodePolicyComponentID,
			Params:      doc.CodePolicyParams,
		}
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("decode genome: %w", err)
	}
	return g, nil
}
