// Package docs registers the OpenAPI description served at /swagger.
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
        "/api/auth/login": {
            "post": {
                "description": "Verifies the identity token, enforces the email policy and sets the session cookie",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Log in with an identity token",
                "parameters": [
                    {
                        "description": "Login request",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/api.LoginRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/auth.LoginResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/auth.LoginResult"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/auth.LoginResult"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/auth.LoginResult"}}
                }
            }
        },
        "/api/auth/logout": {
            "post": {
                "description": "Clears the session cookie",
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Log out",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/auth.LogoutResult"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/auth.LogoutResult"}}
                }
            }
        },
        "/api/auth/me": {
            "get": {
                "description": "Returns the user of the current session",
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/auth.LoginResult"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/auth.LoginResult"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/auth.LoginResult"}}
                }
            }
        },
        "/api/auth/policy": {
            "get": {
                "description": "Returns the active email policy (admin only)",
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Email policy",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.PolicyResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}}
                }
            }
        },
        "/api/health/backend": {
            "get": {
                "description": "Checks the health of the dependent backend API (session required)",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Dependent backend health",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/health": {
            "get": {
                "description": "Reports that the authentication service is running",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Service liveness",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.HealthResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "uptime": {"type": "string"}
            }
        },
        "api.LoginRequest": {
            "type": "object",
            "properties": {
                "idToken": {"type": "string"}
            }
        },
        "api.PolicyResponse": {
            "type": "object",
            "properties": {
                "allowedDomains": {"type": "array", "items": {"type": "string"}},
                "allowlistEnabled": {"type": "boolean"},
                "policy": {"type": "string"}
            }
        },
        "auth.AuthUser": {
            "type": "object",
            "properties": {
                "customClaims": {"type": "object", "additionalProperties": true},
                "displayName": {"type": "string"},
                "email": {"type": "string"},
                "emailVerified": {"type": "boolean"},
                "id": {"type": "string"},
                "photoURL": {"type": "string"}
            }
        },
        "auth.LoginResult": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "details": {"type": "object", "additionalProperties": true},
                "error": {"type": "string"},
                "success": {"type": "boolean"},
                "user": {"$ref": "#/definitions/auth.AuthUser"}
            }
        },
        "auth.LogoutResult": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "message": {"type": "string"},
                "success": {"type": "boolean"}
            }
        },
        "middleware.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "details": {"type": "object", "additionalProperties": true},
                "error": {"type": "string"},
                "success": {"type": "boolean"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "opsauth API",
	Description:      "Session authentication for the operations dashboard",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
