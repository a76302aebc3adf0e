package progression

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"tutiful-scheduler/internal/common/errors"
	"tutiful-scheduler/internal/models"
)

const templateSchemaJSON = `{
	"type": "object",
	"properties": {
		"customMessage": {
			"type": "string",
			"maxLength": 2000
		},
		"selectedLessonIds": {
			"type": "array",
			"items": {
				"type": "string",
				"minLength": 1
			},
			"maxItems": 50
		},
		"submittedBy": {
			"type": "string"
		},
		"createdAt": {
			"type": "string"
		}
	},
	"additionalProperties": false
}`

var templateSchema = gojsonschema.NewStringLoader(templateSchemaJSON)

// ParseTemplate validates and decodes a lesson's stored template document.
// Agency admins author these through the API, but rows written before schema
// validation existed can hold anything, so the scan re-validates on read. A
// nil document is valid: the template was submitted with no customization.
func ParseTemplate(lessonID string, raw json.RawMessage) (*models.NotificationTemplate, error) {
	if len(raw) == 0 {
		return &models.NotificationTemplate{}, nil
	}

	result, err := gojsonschema.Validate(templateSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, errors.NewTemplateInvalidError(lessonID, fmt.Sprintf("not a JSON document: %s", err.Error()))
	}
	if !result.Valid() {
		details := ""
		for i, desc := range result.Errors() {
			if i > 0 {
				details += "; "
			}
			details += desc.String()
		}
		return nil, errors.NewTemplateInvalidError(lessonID, details)
	}

	var template models.NotificationTemplate
	if err := json.Unmarshal(raw, &template); err != nil {
		return nil, errors.NewTemplateInvalidError(lessonID, err.Error())
	}
	return &template, nil
}

// ValidateTemplate checks a template document without decoding it, used by
// the submission API to reject bad documents before they are stored.
func ValidateTemplate(lessonID string, raw json.RawMessage) error {
	_, err := ParseTemplate(lessonID, raw)
	return err
}
