// Package docs registers the status API's OpenAPI document with swag, which
// gin-swagger serves under /swagger/*any.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/v1/session": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Current feed session state, counters and last error.",
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Session status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.SessionStatus"}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "500": {"description": "Internal Server Error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/v1/records/latest": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "The most recent observation record, as a flat packet.",
                "produces": ["application/json"],
                "tags": ["records"],
                "summary": "Latest record",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/v1/events": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Filter the session journal by date (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD'). If 'to' is date-only, it is treated as end-of-day inclusive.",
                "produces": ["application/json"],
                "tags": ["events"],
                "summary": "List session events",
                "parameters": [
                    {"type": "string", "example": "2025-08-01", "description": "Start of range", "name": "from", "in": "query"},
                    {"type": "string", "example": "2025-08-31", "description": "End of range", "name": "to", "in": "query"},
                    {
                        "enum": ["CONNECTED", "SUBSCRIBED", "RECONNECTING", "CLOSED", "ACK_MISMATCH", "TRANSPORT_FAILED", "STATION_ONLINE", "STATION_OFFLINE", "DEVICE_ONLINE", "DEVICE_OFFLINE", "PRECIP_START"],
                        "type": "string", "description": "Event type", "name": "type", "in": "query"
                    },
                    {"type": "integer", "description": "Maximum number of events", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "count, events", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "500": {"description": "Internal Server Error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        }
    },
    "definitions": {
        "models.SessionStatus": {
            "type": "object",
            "properties": {
                "state": {"type": "string"},
                "endpoint": {"type": "string"},
                "device_id": {"type": "string"},
                "station_id": {"type": "string"},
                "field_map": {"type": "string"},
                "reconnects": {"type": "integer"},
                "records_emitted": {"type": "integer"},
                "malformed_frames": {"type": "integer"},
                "last_record_at": {"type": "string"},
                "last_error": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Tempest bridge status API",
	Description:      "Session status, lifecycle journal and live records of the Tempest feed bridge.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
