package repository

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/gema-evaluation-api/internal/models"
)

const envelopeSchemaURL = "evaluation-envelope.json"

const envelopeSchemaSource = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["evaluation", "meta"],
  "properties": {
    "evaluation": {
      "type": "object",
      "required": ["id", "rater_id", "ratee_id", "form_id", "period_id", "total_score", "average_score", "completed", "disqualified", "created_at", "updated_at"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "rater_id": {"$ref": "#/$defs/identifier"},
        "ratee_id": {"$ref": "#/$defs/identifier"},
        "form_id": {"$ref": "#/$defs/identifier"},
        "period_id": {"$ref": "#/$defs/identifier"},
        "general_comment": {"type": "string"},
        "total_score": {"type": "number", "minimum": 0},
        "average_score": {"type": "number", "minimum": 0},
        "completed": {"type": "boolean"},
        "disqualified": {"type": "boolean"},
        "submitted_at": {"type": ["string", "null"]},
        "created_at": {"type": "string"},
        "updated_at": {"type": "string"},
        "answers": {
          "type": ["array", "null"],
          "items": {
            "type": "object",
            "required": ["question_id", "score"],
            "properties": {
              "question_id": {"type": "string"},
              "score": {"type": "number"},
              "comment": {"type": "string"}
            }
          }
        }
      }
    },
    "meta": {
      "type": "object",
      "required": ["rater_id", "ratee_id", "form_id", "period_id", "department_id", "saved_at"],
      "properties": {
        "rater_id": {"$ref": "#/$defs/identifier"},
        "ratee_id": {"$ref": "#/$defs/identifier"},
        "form_id": {"$ref": "#/$defs/identifier"},
        "period_id": {"$ref": "#/$defs/identifier"},
        "department_id": {"$ref": "#/$defs/identifier"},
        "saved_at": {"type": "string"}
      }
    }
  },
  "$defs": {
    "identifier": {"type": "string", "pattern": "^[-_a-zA-Z0-9]{1,64}$"}
  }
}`

var envelopeSchema = jsonschema.MustCompileString(envelopeSchemaURL, envelopeSchemaSource)

// decodeEnvelope parses and schema-checks a stored document. Every failure wraps ErrCorruptRecord.
func decodeEnvelope(content []byte) (models.EvaluationEnvelope, error) {
	if err := validateEnvelope(content); err != nil {
		return models.EvaluationEnvelope{}, err
	}

	var envelope models.EvaluationEnvelope
	if err := json.Unmarshal(content, &envelope); err != nil {
		return models.EvaluationEnvelope{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	if envelope.Evaluation.Key() != metaKey(envelope.Meta) {
		return models.EvaluationEnvelope{}, fmt.Errorf("%w: meta does not match evaluation key", ErrCorruptRecord)
	}

	return envelope, nil
}

// encodeEnvelope serializes the document and checks it against the schema before it reaches disk.
func encodeEnvelope(envelope models.EvaluationEnvelope) ([]byte, error) {
	content, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := validateEnvelope(content); err != nil {
		return nil, err
	}
	return content, nil
}

func validateEnvelope(content []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(content))
	decoder.UseNumber()

	var document interface{}
	if err := decoder.Decode(&document); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if err := envelopeSchema.Validate(document); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return nil
}

func metaKey(meta models.EvaluationMeta) models.EvaluationKey {
	return models.EvaluationKey{
		RaterID:  meta.RaterID,
		RateeID:  meta.RateeID,
		FormID:   meta.FormID,
		PeriodID: meta.PeriodID,
	}
}
