// Package docs registers the REST API's swagger document.
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
        "/api/games": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["games"],
                "summary": "Create a game room",
                "parameters": [
                    {
                        "description": "Optional time control",
                        "name": "body",
                        "in": "body",
                        "schema": {"$ref": "#/definitions/main.createGameRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/main.createGameResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/main.errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/main.errorResponse"}}
                }
            }
        },
        "/api/games/status/active": {
            "get": {
                "produces": ["application/json"],
                "tags": ["games"],
                "summary": "Games waiting for an opponent or in play",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/main.gameListResponse"}}
                }
            }
        },
        "/api/games/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["games"],
                "summary": "Game metadata",
                "parameters": [
                    {"type": "string", "description": "Game id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/main.gameResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/main.errorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/main.healthResponse"}}
                }
            }
        }
    },
    "definitions": {
        "chess.TimeControl": {
            "type": "object",
            "properties": {
                "initialMs": {"type": "integer"},
                "incrementMs": {"type": "integer"}
            }
        },
        "main.createGameRequest": {
            "type": "object",
            "properties": {
                "timeControl": {"$ref": "#/definitions/chess.TimeControl"}
            }
        },
        "main.createGameResponse": {
            "type": "object",
            "properties": {
                "gameId": {"type": "string"},
                "url": {"type": "string"},
                "createdAt": {"type": "string"},
                "gameType": {"type": "string"},
                "timeControl": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "main.errorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
            }
        },
        "main.gameListResponse": {
            "type": "object",
            "properties": {
                "games": {"type": "array", "items": {"$ref": "#/definitions/main.gameResponse"}}
            }
        },
        "main.gameResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "type": {"type": "string"},
                "status": {"type": "string"},
                "white": {"type": "string"},
                "black": {"type": "string"},
                "moveCount": {"type": "integer"},
                "timeControl": {"$ref": "#/definitions/chess.TimeControl"},
                "clock": {"$ref": "#/definitions/main.clockResponse"},
                "createdAt": {"type": "string"}
            }
        },
        "main.clockResponse": {
            "type": "object",
            "properties": {
                "white": {"type": "string"},
                "black": {"type": "string"}
            }
        },
        "main.healthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "uptime": {"type": "string"},
                "connections": {"type": "integer"},
                "openGames": {"type": "integer"}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {
            "type": "apiKey",
            "name": "X-Api-Key",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Arena Server API",
	Description:      "Bootstrap REST surface of the multiplayer chess server. Play happens over /ws.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
