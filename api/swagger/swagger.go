package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Impact Assessment API",
        "description": "School impact reporting, verification, statistics and exports",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "ImpactAssessments", "description": "School impact reports"}
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
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is unavailable"}
                }
            }
        },
        "/api/v1/impact-assessments": {
            "get": {
                "tags": ["ImpactAssessments"],
                "summary": "List impact assessments",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "province", "in": "query", "type": "string"},
                    {"name": "severity", "in": "query", "type": "integer", "minimum": 1, "maximum": 5},
                    {"name": "startDate", "in": "query", "type": "string", "format": "date"},
                    {"name": "endDate", "in": "query", "type": "string", "format": "date"},
                    {"name": "schoolType", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["pending", "verified", "rejected"]},
                    {"name": "page", "in": "query", "type": "integer", "default": 1},
                    {"name": "limit", "in": "query", "type": "integer", "default": 10},
                    {"name": "sortBy", "in": "query", "type": "string", "default": "submittedAt"},
                    {"name": "sortOrder", "in": "query", "type": "string", "enum": ["asc", "desc"], "default": "desc"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["ImpactAssessments"],
                "summary": "Submit an impact assessment",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateImpactAssessmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/impact-assessments/statistics": {
            "get": {
                "tags": ["ImpactAssessments"],
                "summary": "Aggregate impact statistics",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "province", "in": "query", "type": "string"},
                    {"name": "severity", "in": "query", "type": "integer", "minimum": 1, "maximum": 5},
                    {"name": "startDate", "in": "query", "type": "string", "format": "date"},
                    {"name": "endDate", "in": "query", "type": "string", "format": "date"},
                    {"name": "schoolType", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["pending", "verified", "rejected"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/impact-assessments/export/csv": {
            "get": {
                "tags": ["ImpactAssessments"],
                "summary": "Export impact assessments as CSV",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv"],
                "parameters": [
                    {"name": "province", "in": "query", "type": "string"},
                    {"name": "severity", "in": "query", "type": "integer", "minimum": 1, "maximum": 5},
                    {"name": "startDate", "in": "query", "type": "string", "format": "date"},
                    {"name": "endDate", "in": "query", "type": "string", "format": "date"},
                    {"name": "schoolType", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["pending", "verified", "rejected"]}
                ],
                "responses": {
                    "200": {"description": "Attachment", "schema": {"type": "file"}, "headers": {"X-Export-Truncated": {"type": "string", "description": "true when EXPORT_MAX_ROWS cut the file short"}}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No matching reports", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/impact-assessments/export/xlsx": {
            "get": {
                "tags": ["ImpactAssessments"],
                "summary": "Export impact assessments as an Excel workbook",
                "security": [{"BearerAuth": []}],
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"name": "province", "in": "query", "type": "string"},
                    {"name": "severity", "in": "query", "type": "integer", "minimum": 1, "maximum": 5},
                    {"name": "startDate", "in": "query", "type": "string", "format": "date"},
                    {"name": "endDate", "in": "query", "type": "string", "format": "date"},
                    {"name": "schoolType", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["pending", "verified", "rejected"]}
                ],
                "responses": {
                    "200": {"description": "Attachment", "schema": {"type": "file"}, "headers": {"X-Export-Truncated": {"type": "string", "description": "true when EXPORT_MAX_ROWS cut the file short"}}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No matching reports", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/impact-assessments/export/pdf": {
            "get": {
                "tags": ["ImpactAssessments"],
                "summary": "Export impact assessments as PDF",
                "security": [{"BearerAuth": []}],
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "province", "in": "query", "type": "string"},
                    {"name": "severity", "in": "query", "type": "integer", "minimum": 1, "maximum": 5},
                    {"name": "startDate", "in": "query", "type": "string", "format": "date"},
                    {"name": "endDate", "in": "query", "type": "string", "format": "date"},
                    {"name": "schoolType", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["pending", "verified", "rejected"]}
                ],
                "responses": {
                    "200": {"description": "Attachment", "schema": {"type": "file"}, "headers": {"X-Export-Truncated": {"type": "string", "description": "true when EXPORT_MAX_ROWS cut the file short"}}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No matching reports", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/impact-assessments/bulk/delete": {
            "post": {
                "tags": ["ImpactAssessments"],
                "summary": "Delete several impact assessments",
                "description": "Allowed roles: administrator, zone, provincial",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkDeleteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Empty id list", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/impact-assessments/{id}": {
            "get": {
                "tags": ["ImpactAssessments"],
                "summary": "Get impact assessment",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string", "format": "uuid"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["ImpactAssessments"],
                "summary": "Update impact assessment",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string", "format": "uuid"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateImpactAssessmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["ImpactAssessments"],
                "summary": "Delete impact assessment",
                "description": "Allowed roles: administrator, zone, provincial",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string", "format": "uuid"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/impact-assessments/{id}/verify": {
            "post": {
                "tags": ["ImpactAssessments"],
                "summary": "Verify or reject an impact assessment",
                "description": "Allowed roles: department, provincial, zone, administrator",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string", "format": "uuid"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/VerifyImpactAssessmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid status", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "GradeEntry": {
            "type": "object",
            "required": ["grade", "totalStudents", "affectedStudents"],
            "properties": {
                "grade": {"type": "string"},
                "totalStudents": {"type": "integer", "minimum": 0},
                "affectedStudents": {"type": "integer", "minimum": 0}
            }
        },
        "CreateImpactAssessmentRequest": {
            "type": "object",
            "required": ["schoolName", "schoolType", "province", "district", "commune", "village", "gradeData", "impactTypes", "severity", "incidentDate"],
            "properties": {
                "schoolName": {"type": "string"},
                "schoolType": {"type": "string"},
                "province": {"type": "string"},
                "district": {"type": "string"},
                "commune": {"type": "string"},
                "village": {"type": "string"},
                "gradeData": {"type": "array", "items": {"$ref": "#/definitions/GradeEntry"}},
                "impactTypes": {"type": "array", "items": {"type": "string"}},
                "severity": {"type": "integer", "minimum": 1, "maximum": 5},
                "incidentDate": {"type": "string", "format": "date"},
                "duration": {"type": "integer", "minimum": 0},
                "teacherAffected": {"type": "integer", "minimum": 0},
                "contactInfo": {"type": "string"},
                "description": {"type": "string"}
            }
        },
        "VerifyImpactAssessmentRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["verified", "rejected"]},
                "verificationNotes": {"type": "string"}
            }
        },
        "BulkDeleteRequest": {
            "type": "object",
            "required": ["ids"],
            "properties": {
                "ids": {"type": "array", "items": {"type": "string"}}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "limit": {"type": "integer"},
                "total": {"type": "integer"},
                "totalPages": {"type": "integer"}
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
                "success": {"type": "boolean"},
                "message": {"type": "string"},
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
