package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CampusConnect API",
        "description": "Campus administration backend: clearance workflow, messaging, events, notifications",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Authentication and session management"},
        {"name": "Users", "description": "Account management and directory"},
        {"name": "Clearance", "description": "Multi-stage clearance approval workflow"},
        {"name": "Messaging", "description": "Conversations and real-time messages"},
        {"name": "Organizations", "description": "Departments, clubs, membership, points"},
        {"name": "Events", "description": "Campus events and QR check-in"},
        {"name": "Notifications", "description": "Announcement drafting and publishing"},
        {"name": "Ops", "description": "Health, readiness, metrics"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with email and password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange a refresh token for a new token pair",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clearance": {
            "get": {
                "tags": ["Clearance"],
                "summary": "List clearance requests visible to the caller",
                "parameters": [
                    {"name": "overall", "in": "query", "type": "string"},
                    {"name": "student", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Clearance"],
                "summary": "Open a clearance request for the calling student",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "A pending request already exists"}
                }
            }
        },
        "/clearance/summary": {
            "get": {
                "tags": ["Clearance"],
                "summary": "Aggregate request counts by overall status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clearance/{id}": {
            "get": {
                "tags": ["Clearance"],
                "summary": "Get one clearance request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clearance/{id}/decision": {
            "post": {
                "tags": ["Clearance"],
                "summary": "Apply an approver decision to one stage",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DecideStageRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Stage already decided"},
                    "412": {"description": "Request finalised or stage not applicable"}
                }
            }
        },
        "/clearance/{id}/certificate": {
            "post": {
                "tags": ["Clearance"],
                "summary": "Render a clearance certificate PDF for an approved request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Signed download link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/conversations": {
            "get": {
                "tags": ["Messaging"],
                "summary": "List the caller's conversations",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/conversations/direct": {
            "post": {
                "tags": ["Messaging"],
                "summary": "Find or create a 1:1 conversation",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StartDirectConversationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/conversations/{id}/messages": {
            "get": {
                "tags": ["Messaging"],
                "summary": "List message history in ascending send order",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "before", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Messaging"],
                "summary": "Send a message",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SendMessageRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/ws": {
            "get": {
                "tags": ["Messaging"],
                "summary": "Open the real-time event stream",
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "101": {"description": "Switching Protocols"}
                }
            }
        },
        "/events/check-in": {
            "post": {
                "tags": ["Events"],
                "summary": "Record a QR check-in scan",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CheckInRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Student already checked in"}
                }
            }
        },
        "/notifications/draft": {
            "post": {
                "tags": ["Notifications"],
                "summary": "Generate notification copy from a topic",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/health": {
            "get": {
                "tags": ["Ops"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "DecideStageRequest": {
            "type": "object",
            "properties": {
                "stage": {"type": "string", "enum": ["club", "department", "ssg"]},
                "status": {"type": "string", "enum": ["approved", "rejected"]},
                "notes": {"type": "string"}
            },
            "required": ["stage", "status"]
        },
        "StartDirectConversationRequest": {
            "type": "object",
            "properties": {
                "targetUserId": {"type": "string"}
            },
            "required": ["targetUserId"]
        },
        "SendMessageRequest": {
            "type": "object",
            "properties": {
                "text": {"type": "string"}
            },
            "required": ["text"]
        },
        "CheckInRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "studentId": {"type": "string"}
            },
            "required": ["code", "studentId"]
        },
        "ClearanceRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "studentId": {"type": "string"},
                "studentName": {"type": "string"},
                "departmentId": {"type": "string"},
                "departmentName": {"type": "string"},
                "clubId": {"type": "string"},
                "clubName": {"type": "string"},
                "requestedAt": {"type": "string"},
                "clubApprovalStatus": {"type": "string"},
                "departmentApprovalStatus": {"type": "string"},
                "ssgStatus": {"type": "string"},
                "overallStatus": {"type": "string"},
                "unifiedClearanceID": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
