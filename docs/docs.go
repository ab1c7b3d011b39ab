// Package docs holds the Swagger document served at /docs.
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
        "/api/v1/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Log in",
                "parameters": [
                    {
                        "description": "credentials",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/handlers.LoginRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.AuthResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/middleware.APIError"}}
                }
            }
        },
        "/api/v1/auth/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register a new account",
                "parameters": [
                    {
                        "description": "account",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/handlers.RegisterRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.AuthResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/middleware.APIError"}}
                }
            }
        },
        "/api/v1/profile/draft": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["profile"],
                "summary": "Current profile draft",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.DraftResponse"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["profile"],
                "summary": "Update the profile draft",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.DraftResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["profile"],
                "summary": "Reset the profile draft",
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/api/v1/recommendations/{kind}": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["recommendations"],
                "summary": "Generate candidates",
                "parameters": [
                    {"type": "string", "description": "universities or professors", "name": "kind", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Empty result", "schema": {"$ref": "#/definitions/middleware.APIError"}},
                    "409": {"description": "Superseded", "schema": {"$ref": "#/definitions/middleware.APIError"}},
                    "422": {"description": "Invalid input", "schema": {"$ref": "#/definitions/middleware.APIError"}},
                    "502": {"description": "Upstream failure", "schema": {"$ref": "#/definitions/middleware.APIError"}},
                    "504": {"description": "Timeout", "schema": {"$ref": "#/definitions/middleware.APIError"}}
                }
            }
        },
        "/api/v1/favorites": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["favorites"],
                "summary": "Saved favorites",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.FavoritesResponse"}}
                }
            }
        },
        "/api/v1/favorites/complete": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["favorites"],
                "summary": "Persist the pending selection",
                "responses": {
                    "200": {"description": "OK"},
                    "207": {"description": "Partially saved"},
                    "400": {"description": "Empty selection", "schema": {"$ref": "#/definitions/middleware.APIError"}}
                }
            }
        },
        "/api/v1/emails/send": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["emails"],
                "summary": "Send an outreach email",
                "responses": {
                    "202": {"description": "Accepted"},
                    "502": {"description": "Mail unavailable", "schema": {"$ref": "#/definitions/middleware.APIError"}}
                }
            }
        },
        "/functions/v1/generate-universities": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["functions"],
                "summary": "Generate universities",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/functions/v1/generate-professors": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["functions"],
                "summary": "Generate professors",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/functions/v1/generate-email": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["functions"],
                "summary": "Generate an outreach email",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.GenerateEmailResponse"}}}
            }
        },
        "/functions/v1/send-email": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["functions"],
                "summary": "Send an email",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/health/deep": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Dependency health",
                "responses": {"200": {"description": "OK"}, "503": {"description": "Degraded"}}
            }
        }
    },
    "definitions": {
        "handlers.AuthResponse": {
            "type": "object",
            "properties": {
                "expires_at": {"type": "string"},
                "token": {"type": "string"},
                "user": {"$ref": "#/definitions/models.User"}
            }
        },
        "handlers.DraftResponse": {
            "type": "object",
            "properties": {
                "draft": {"type": "object"},
                "ready": {"type": "boolean"}
            }
        },
        "handlers.FavoritesResponse": {
            "type": "object",
            "properties": {
                "professors": {"type": "array", "items": {"type": "object"}},
                "universities": {"type": "array", "items": {"type": "object"}}
            }
        },
        "handlers.GenerateEmailResponse": {
            "type": "object",
            "properties": {
                "generatedEmail": {"type": "string"}
            }
        },
        "handlers.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "handlers.RegisterRequest": {
            "type": "object",
            "required": ["email", "name", "password"],
            "properties": {
                "email": {"type": "string"},
                "name": {"type": "string"},
                "password": {"type": "string", "minLength": 8}
            }
        },
        "middleware.APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "details": {"type": "string"},
                "message": {"type": "string"},
                "redirect": {"type": "string"},
                "retry_after_ms": {"type": "integer"}
            }
        },
        "models.User": {
            "type": "object",
            "properties": {
                "created_at": {"type": "string"},
                "email": {"type": "string"},
                "email_verified": {"type": "boolean"},
                "id": {"type": "string"},
                "name": {"type": "string"},
                "role": {"type": "string"}
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
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Professor Linker API",
	Description:      "Academic outreach API: university and professor suggestions, favorites and outreach email.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
