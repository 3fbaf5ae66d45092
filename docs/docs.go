// Package docs holds the OpenAPI document served under /swagger.
// Regenerate with `go generate ./cmd/oasis` after changing handler annotations.
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
        "/channel/webhook": {
            "post": {
                "consumes": [
                    "application/json"
                ],
                "tags": [
                    "Channel"
                ],
                "summary": "receive provider webhook",
                "parameters": [
                    {
                        "description": "Provider event",
                        "name": "event",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/channel.WebhookEvent"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    }
                }
            }
        },
        "/channel/status": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "Channel"
                ],
                "summary": "get channel status",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/channel.StatusReport"
                        }
                    }
                }
            }
        },
        "/channel/create-instance": {
            "post": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "Channel"
                ],
                "summary": "create the provider instance",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    }
                }
            }
        },
        "/channel/qr": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "Channel"
                ],
                "summary": "start pairing and get the QR code",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    }
                }
            }
        },
        "/channel/logout": {
            "post": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "Channel"
                ],
                "summary": "log out the provider instance",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    }
                }
            }
        },
        "/channel/reset-kill-switch": {
            "post": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "Channel"
                ],
                "summary": "reset the kill switch",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    }
                }
            }
        },
        "/channel/send-test": {
            "post": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "tags": [
                    "Channel"
                ],
                "summary": "send a test text message",
                "parameters": [
                    {
                        "description": "Recipient and text",
                        "name": "message",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/adminapi.sendTestPayload"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    }
                }
            }
        },
        "/channel/send-document": {
            "post": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "tags": [
                    "Channel"
                ],
                "summary": "send a document",
                "parameters": [
                    {
                        "description": "Recipient and file",
                        "name": "document",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/adminapi.sendDocumentPayload"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    }
                }
            }
        },
        "/channel/send-image": {
            "post": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "tags": [
                    "Channel"
                ],
                "summary": "send an image",
                "parameters": [
                    {
                        "description": "Recipient and image",
                        "name": "image",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/adminapi.sendImagePayload"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    }
                }
            }
        },
        "/channel/settings": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "Settings"
                ],
                "summary": "get channel settings (secrets masked)",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    }
                }
            },
            "put": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "tags": [
                    "Settings"
                ],
                "summary": "update channel settings",
                "parameters": [
                    {
                        "description": "Fields to change",
                        "name": "settings",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/adminapi.channelSettingsPayload"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    }
                }
            }
        },
        "/channel/events": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "Events"
                ],
                "summary": "list webhook audit events",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Filter by event name",
                        "name": "event",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "description": "Page number",
                        "name": "page",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "description": "Items per page",
                        "name": "pageSize",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    }
                }
            }
        },
        "/channel/events.csv": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "produces": [
                    "text/csv"
                ],
                "tags": [
                    "Events"
                ],
                "summary": "export webhook audit events as csv",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Filter by event name",
                        "name": "event",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "file"
                        }
                    }
                }
            }
        },
        "/channel/metrics": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "tags": [
                    "Events"
                ],
                "summary": "dispatch counters",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Window in hours (default 24)",
                        "name": "hours",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "adminapi.sendTestPayload": {
            "type": "object",
            "properties": {
                "to": {
                    "type": "string",
                    "maxLength": 64
                },
                "message": {
                    "type": "string",
                    "maxLength": 4096
                }
            },
            "required": [
                "message",
                "to"
            ]
        },
        "adminapi.sendDocumentPayload": {
            "type": "object",
            "properties": {
                "to": {
                    "type": "string",
                    "maxLength": 64
                },
                "file_url": {
                    "type": "string"
                },
                "caption": {
                    "type": "string",
                    "maxLength": 1024
                },
                "file_name": {
                    "type": "string",
                    "maxLength": 255
                }
            },
            "required": [
                "file_url",
                "to"
            ]
        },
        "adminapi.sendImagePayload": {
            "type": "object",
            "properties": {
                "to": {
                    "type": "string",
                    "maxLength": 64
                },
                "image_url": {
                    "type": "string"
                },
                "caption": {
                    "type": "string",
                    "maxLength": 1024
                }
            },
            "required": [
                "image_url",
                "to"
            ]
        },
        "adminapi.channelSettingsPayload": {
            "type": "object",
            "properties": {
                "evolution_url": {
                    "type": "string"
                },
                "evolution_key": {
                    "type": "string"
                },
                "evolution_instance": {
                    "type": "string"
                },
                "app_url": {
                    "type": "string"
                },
                "notify_email": {
                    "type": "string"
                },
                "smtp_host": {
                    "type": "string"
                },
                "smtp_port": {
                    "type": "integer",
                    "maximum": 65535,
                    "minimum": 1
                },
                "smtp_user": {
                    "type": "string"
                },
                "smtp_pass": {
                    "type": "string"
                },
                "smtp_from": {
                    "type": "string"
                },
                "church_name": {
                    "type": "string"
                }
            }
        },
        "channel.WebhookEvent": {
            "type": "object",
            "properties": {
                "event": {
                    "type": "string"
                },
                "instance": {
                    "type": "string"
                },
                "data": {},
                "date_time": {
                    "type": "string"
                }
            }
        },
        "channel.StatusReport": {
            "type": "object",
            "properties": {
                "kill_switch": {
                    "type": "boolean"
                },
                "kill_reason": {
                    "type": "string"
                },
                "status": {
                    "type": "string"
                },
                "live_state": {
                    "type": "string"
                },
                "has_qr": {
                    "type": "boolean"
                },
                "qr_base64": {
                    "type": "string"
                },
                "live_checked_at": {
                    "type": "string"
                }
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Oasis channel admin API",
	Description:      "Outbound WhatsApp channel: status, pairing, kill switch, test sends and audit.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
