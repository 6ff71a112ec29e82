package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Annotatron API",
        "description": "Corpus, asset and question management for audio annotation",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Setup", "description": "One time bootstrap of the first administrator"},
        {"name": "Authentication", "description": "Bearer token sessions"},
        {"name": "Users", "description": "User directory"},
        {"name": "Corpora", "description": "Named collections of assets and questions"},
        {"name": "Assets", "description": "Immutable content blobs"},
        {"name": "Questions", "description": "Annotation questions"}
    ],
    "paths": {
        "/setup": {
            "get": {
                "tags": ["Setup"],
                "summary": "Setup status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Setup"],
                "summary": "Create initial administrator",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateUserRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Already configured", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/token": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Obtain a session token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Setup required", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Authentication"],
                "summary": "Revoke the current session token",
                "security": [{"BearerAuth": []}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List users",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"},
                    {"name": "role", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Users"],
                "summary": "Create user",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateUserRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate username", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/users/{id}": {
            "get": {
                "tags": ["Users"],
                "summary": "Get user",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "delete": {
                "tags": ["Users"],
                "summary": "Deactivate user",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/users/{id}/password": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Change a password",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangePasswordRequest"}}
                ],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/users/{id}/role": {
            "put": {
                "tags": ["Users"],
                "summary": "Assign role",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssignRoleRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/corpora": {
            "get": {
                "tags": ["Corpora"],
                "summary": "List corpora",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Corpora"],
                "summary": "Create corpus",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateCorpusRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/corpora/{corpus}": {
            "get": {
                "tags": ["Corpora"],
                "summary": "Get corpus",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "corpus", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/corpora/{corpus}/assets": {
            "get": {
                "tags": ["Assets"],
                "summary": "List assets",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "corpus", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Assets"],
                "summary": "Upload asset",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "corpus", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UploadAssetRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Checksum or kind mismatch", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Name already used", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/corpora/{corpus}/assets/check": {
            "post": {
                "tags": ["Assets"],
                "summary": "Check for duplicates",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "corpus", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DuplicateCheckRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/corpora/{corpus}/assets/{asset}": {
            "get": {
                "tags": ["Assets"],
                "summary": "Get asset metadata",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "corpus", "in": "path", "required": true, "type": "string"},
                    {"name": "asset", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "delete": {
                "tags": ["Assets"],
                "summary": "Delete asset",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "corpus", "in": "path", "required": true, "type": "string"},
                    {"name": "asset", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/assets/{id}/content": {
            "get": {
                "tags": ["Assets"],
                "summary": "Download asset content",
                "security": [{"BearerAuth": []}],
                "produces": ["application/octet-stream", "application/json"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "encoding", "in": "query", "type": "string", "enum": ["base64"]}
                ],
                "responses": {"200": {"description": "Content"}}
            }
        },
        "/assets/{id}/link": {
            "get": {
                "tags": ["Assets"],
                "summary": "Create a signed content link",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/content/{token}": {
            "get": {
                "tags": ["Assets"],
                "summary": "Download through a signed link",
                "produces": ["application/octet-stream"],
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Content"},
                    "403": {"description": "Link expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Invalid link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/corpora/{corpus}/questions": {
            "get": {
                "tags": ["Questions"],
                "summary": "List questions",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "corpus", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Questions"],
                "summary": "Create question",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "corpus", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/corpora/{corpus}/questions/{id}": {
            "get": {
                "tags": ["Questions"],
                "summary": "Get question",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "corpus", "in": "path", "required": true, "type": "string"},
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "delete": {
                "tags": ["Questions"],
                "summary": "Delete question",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "corpus", "in": "path", "required": true, "type": "string"},
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"204": {"description": "No Content"}}
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["username", "password"],
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "CreateUserRequest": {
            "type": "object",
            "required": ["username", "password"],
            "properties": {
                "username": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string"},
                "role": {"type": "string", "enum": ["Administrator", "Staff", "Reviewer", "Annotator"]}
            }
        },
        "ChangePasswordRequest": {
            "type": "object",
            "required": ["newPassword"],
            "properties": {
                "oldPassword": {"type": "string"},
                "newPassword": {"type": "string"}
            }
        },
        "AssignRoleRequest": {
            "type": "object",
            "required": ["role"],
            "properties": {
                "role": {"type": "string", "enum": ["Administrator", "Staff", "Reviewer", "Annotator"]}
            }
        },
        "CreateCorpusRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "copyrightRestrictions": {"type": "string"}
            }
        },
        "UploadAssetRequest": {
            "type": "object",
            "required": ["name", "content"],
            "properties": {
                "name": {"type": "string"},
                "content": {"type": "string", "format": "byte"},
                "mimeType": {"type": "string"},
                "kind": {"type": "string", "enum": ["utf8_text", "binary", "audio", "unknown"]},
                "checksum": {"type": "string", "description": "hex SHA-512"},
                "metadata": {"type": "object"},
                "copyrightRestrictions": {"type": "string"},
                "filename": {"type": "string"},
                "allowText": {"type": "boolean"}
            }
        },
        "DuplicateCheckRequest": {
            "type": "object",
            "required": ["name", "checksum"],
            "properties": {
                "name": {"type": "string"},
                "checksum": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "pageSize": {"type": "integer"},
                "totalCount": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "fields": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
