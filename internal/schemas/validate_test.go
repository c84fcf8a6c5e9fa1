package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_NotificationEnvelope(t *testing.T) {
	valid := `{
		"id": "5f2b8f2e-6c1a-4d0e-9a57-3c8a1f7e2b10",
		"user_id": "0d6f1c2a-8b3e-4f5a-9c7d-1e2f3a4b5c6d",
		"type": "candidature_statut",
		"title": "Candidature",
		"message": "Votre candidature a été présélectionnée",
		"link": "/candidatures/5f2b8f2e-6c1a-4d0e-9a57-3c8a1f7e2b10",
		"created_at": "2026-03-01T10:00:00Z"
	}`
	assert.NoError(t, Validate(Notification, []byte(valid)))
}

func TestValidate_NotificationMissingField(t *testing.T) {
	doc := `{"id": "5f2b8f2e-6c1a-4d0e-9a57-3c8a1f7e2b10", "type": "x", "title": "t", "message": "m", "created_at": "2026-03-01T10:00:00Z"}`

	err := Validate(Notification, []byte(doc))
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok, "error should be ValidationError type")
	require.NotEmpty(t, validationErr.Errors)
	assert.Contains(t, validationErr.Error(), "user_id")
}

func TestValidate_ImportWrongEnum(t *testing.T) {
	doc := `{"talents": [{"userId": "0d6f1c2a-8b3e-4f5a-9c7d-1e2f3a4b5c6d", "skills": ["Go"], "statut": "RETIRED"}]}`

	err := Validate(Import, []byte(doc))
	require.Error(t, err)
	_, ok := err.(*ValidationError)
	assert.True(t, ok)
}

func TestValidate_ImportEmptyDocument(t *testing.T) {
	assert.NoError(t, Validate(Import, []byte(`{}`)))
}

func TestValidate_UnknownSchema(t *testing.T) {
	err := Validate("missing.schema.json", []byte(`{}`))
	require.Error(t, err)

	loadErr, ok := err.(*SchemaLoadError)
	require.True(t, ok)
	assert.Equal(t, "missing.schema.json", loadErr.Name)
}

func TestValidate_MalformedDocument(t *testing.T) {
	assert.Error(t, Validate(Notification, []byte(`{not json`)))
}
