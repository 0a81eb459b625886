package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Studio ADP API",
        "description": "Attendance QR codes and payment charges for dance schools",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [
        {"BearerAuth": []}
    ],
    "tags": [
        {"name": "Attendance", "description": "QR code issuance and check-in"},
        {"name": "Payments", "description": "Charges created through the tenant's payment provider"},
        {"name": "Settings", "description": "Per-tenant switches"}
    ],
    "paths": {
        "/classes/{id}/attendance-tokens": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Issue attendance QR code",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Class not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classes/{id}/attendance": {
            "get": {
                "tags": ["Attendance"],
                "summary": "List class attendance for a day",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "query", "type": "string", "format": "date"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["json", "csv"]}
                ],
                "produces": ["application/json", "text/csv"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/tokens/{token}/qr.png": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Render attendance QR code",
                "produces": ["image/png"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"},
                    {"name": "size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "PNG image", "schema": {"type": "file"}}
                }
            }
        },
        "/attendance/tokens/{token}/sheet.pdf": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Render printable attendance sheet",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF document", "schema": {"type": "file"}}
                }
            }
        },
        "/attendance/redeem": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Redeem attendance code",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RedeemAttendanceRequest"}},
                    {"name": "X-Device-Fingerprint", "in": "header", "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Attendance marked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "NOT_ENROLLED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "INVALID_TOKEN or NO_STUDENT_LINKED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "ALREADY_MARKED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "410": {"description": "EXPIRED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "TOO_EARLY or STUDENT_SELECTION_REQUIRED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {"description": "TOO_MANY_REQUESTS", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/attendance": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Student attendance history",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "classId", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/settings/payment-provider": {
            "get": {
                "tags": ["Settings"],
                "summary": "Get payment provider",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Settings"],
                "summary": "Switch payment provider",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdatePaymentProviderRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments": {
            "get": {
                "tags": ["Payments"],
                "summary": "List charges",
                "parameters": [
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["pending", "paid", "overdue", "cancelled"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Payments"],
                "summary": "Create charge",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateChargeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "CHARGE_CREATION_FAILED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments/{id}": {
            "get": {
                "tags": ["Payments"],
                "summary": "Get charge",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments/{id}/refresh": {
            "post": {
                "tags": ["Payments"],
                "summary": "Refresh charge status from the provider",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "STATUS_LOOKUP_FAILED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments/{id}/mark-paid": {
            "post": {
                "tags": ["Payments"],
                "summary": "Confirm a manual payment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MarkPaidRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "MARK_PAID_FAILED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "RedeemAttendanceRequest": {
            "type": "object",
            "required": ["token"],
            "properties": {
                "token": {"type": "string"},
                "student_id": {"type": "string"},
                "device_fingerprint": {"type": "string"}
            }
        },
        "CreateChargeRequest": {
            "type": "object",
            "required": ["student_id", "amount", "due_date"],
            "properties": {
                "student_id": {"type": "string"},
                "amount": {"type": "number"},
                "due_date": {"type": "string", "format": "date"},
                "description": {"type": "string"}
            }
        },
        "MarkPaidRequest": {
            "type": "object",
            "required": ["payment_date", "method"],
            "properties": {
                "payment_date": {"type": "string", "format": "date"},
                "method": {"type": "string", "enum": ["PIX", "BOLETO", "CREDIT_CARD", "CASH", "TRANSFER"]}
            }
        },
        "UpdatePaymentProviderRequest": {
            "type": "object",
            "required": ["provider"],
            "properties": {
                "provider": {"type": "string", "enum": ["MOCK", "SANDBOX", "PRODUCTION"]}
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
