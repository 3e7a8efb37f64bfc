// internal/common/validation/notification_schemas.go
package validation

const definitions = `
"definitions": {
	"recipient": {
		"type": "object",
		"required": ["userId", "tenantId"],
		"properties": {
			"userId":   {"type": "string", "minLength": 1},
			"tenantId": {"type": "string", "minLength": 1},
			"channels": {
				"type": "array",
				"items": {"type": "string", "enum": ["in_app", "email", "push"]},
				"uniqueItems": true
			}
		}
	},
	"data": {
		"type": "object",
		"required": ["title", "message"],
		"properties": {
			"title":     {"type": "string", "minLength": 1, "maxLength": 255},
			"message":   {"type": "string", "minLength": 1},
			"type":      {"type": "string", "enum": ["info", "success", "warning", "error"]},
			"category":  {"type": "string"},
			"priority":  {"type": "string", "enum": ["low", "medium", "high", "urgent"]},
			"metadata":  {"type": "object"},
			"actionUrl": {"type": "string"}
		}
	},
	"stringList": {"type": "array", "items": {"type": "string"}}
}`

var SendNotificationInput = MustCompile("send-notification", `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["recipients", "data"],
	"properties": {
		"recipients": {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/recipient"}},
		"data": {"$ref": "#/definitions/data"}
	},
	`+definitions+`
}`)

var SendBulkNotificationInput = MustCompile("send-bulk-notification", `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["tenantId", "data"],
	"properties": {
		"tenantId": {"type": "string", "minLength": 1},
		"data": {"$ref": "#/definitions/data"},
		"filters": {
			"type": "object",
			"properties": {
				"roles":       {"$ref": "#/definitions/stringList"},
				"departments": {"$ref": "#/definitions/stringList"},
				"locations":   {"$ref": "#/definitions/stringList"}
			}
		}
	},
	`+definitions+`
}`)

var SendTemplateNotificationInput = MustCompile("send-template-notification", `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["templateId", "recipients"],
	"properties": {
		"templateId": {"type": "string", "minLength": 1},
		"recipients": {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/recipient"}},
		"variables":  {"type": "object"}
	},
	`+definitions+`
}`)
