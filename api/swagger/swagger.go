package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "TutorHub Back Office API",
        "description": "Role-based back office for a tutoring school",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login, registration and sessions"},
        {"name": "Users", "description": "Account administration"},
        {"name": "Payments", "description": "Payment recording and confirmation"},
        {"name": "Lessons", "description": "Lesson scheduling and lifecycle"},
        {"name": "Balances", "description": "Prepaid lesson balances"},
        {"name": "Requests", "description": "Client request inbox"},
        {"name": "Catalog", "description": "Course, module and topic catalog"},
        {"name": "Audit", "description": "Administrative audit trail"},
        {"name": "Dashboard", "description": "Student cabinet and system overview"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "responses": {
                    "200": {"description": "Tokens issued"},
                    "400": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/admin-login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate a privileged user",
                "responses": {
                    "200": {"description": "Tokens issued"},
                    "403": {"description": "Not whitelisted or limit exceeded"}
                }
            }
        },
        "/auth/register": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Register a new applicant",
                "responses": {
                    "201": {"description": "Account created"},
                    "409": {"description": "Email already registered"}
                }
            }
        },
        "/manager/payments/{id}/confirm": {
            "post": {
                "tags": ["Payments"],
                "summary": "Confirm a payment and credit the balance",
                "responses": {
                    "200": {"description": "Confirmed"},
                    "400": {"description": "Already confirmed or bad amount"},
                    "404": {"description": "Payment not found"}
                }
            }
        },
        "/manager/lessons/{id}": {
            "patch": {
                "tags": ["Lessons"],
                "summary": "Update a lesson; status transitions drive the balance",
                "responses": {
                    "200": {"description": "Updated lesson"},
                    "400": {"description": "Missing feedback/reason or state conflict"},
                    "404": {"description": "Lesson not found"}
                }
            }
        },
        "/manager/lessons/{id}/debit": {
            "post": {
                "tags": ["Lessons"],
                "summary": "Debit one prepaid lesson",
                "responses": {
                    "200": {"description": "Updated lesson"},
                    "400": {"description": "Already debited, trial or no balance"},
                    "404": {"description": "Lesson not found"}
                }
            }
        },
        "/manager/students/{id}/balance": {
            "patch": {
                "tags": ["Balances"],
                "summary": "Set or shift a student's balance",
                "responses": {
                    "200": {"description": "Updated balance"},
                    "400": {"description": "Invalid adjustment"}
                }
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"}
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
