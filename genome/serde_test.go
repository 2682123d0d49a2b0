// serde_test.go
package genome

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	g := New(1.5, 2.5, CodePolicyTrait{
		Kind:        "movement_policy",
		ComponentID: "c1",
		Params:      map[string]float64{"a": 1.0},
	})

	data, err := Encode(g)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, g.ID, got.ID)
	assert.Equal(t, g.Speed, got.Speed)
	assert.Equal(t, g.Sense, got.Sense)
	assert.True(t, g.Policy.Equal(got.Policy))
}

func TestEncodeWritesCurrentSchemaVersion(t *testing.T) {
	data, err := Encode(New(1, 2, CodePolicyTrait{}))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, float64(SchemaVersion), doc["schema_version"])
}

func TestEncodeOmitsAbsentTrait(t *testing.T) {
	data, err := Encode(New(1, 2, CodePolicyTrait{}))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.NotContains(t, doc, "code_policy_kind")
	assert.NotContains(t, doc, "code_policy_component_id")
	assert.NotContains(t, doc, "code_policy_params")
}

func TestDecodeVersion1DocumentLoadsWithAbsentTrait(t *testing.T) {
	data := []byte(`{"schema_version": 1, "id": "g1", "speed": 1.5, "sense": 2.5}`)
	g, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "g1", g.ID)
	assert.Equal(t, 1.5, g.Speed)
	assert.False(t, g.Policy.Present(), "old documents carry no trait and none is synthesized")
}

func TestDecodeVersion1IgnoresTraitFields(t *testing.T) {
	data := []byte(`{"schema_version": 1, "speed": 1, "sense": 2,
		"code_policy_kind": "movement_policy", "code_policy_component_id": "c1"}`)
	g, err := Decode(data)
	require.NoError(t, err)
	assert.False(t, g.Policy.Present())
}

func TestDecodeFutureVersionRejected(t *testing.T) {
	data := []byte(`{"schema_version": 3, "speed": 1, "sense": 2}`)
	_, err := Decode(data)
	assert.Error(t, err)
}

func TestDecodeInvalidTraitRejected(t *testing.T) {
	cases := map[string]string{
		"component_without_kind": `{"schema_version": 2, "speed": 1, "sense": 2,
			"code_policy_component_id": "c1"}`,
		"param_out_of_range": `{"schema_version": 2, "speed": 1, "sense": 2,
			"code_policy_kind": "movement_policy", "code_policy_component_id": "c1",
			"code_policy_params": {"a": 99}}`,
		"orphan_params": `{"schema_version": 2, "speed": 1, "sense": 2,
			"code_policy_params": {"a": 1}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{"schema_version": `))
	assert.Error(t, err)
}
