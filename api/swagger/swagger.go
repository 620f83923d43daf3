package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "UNI-Pass API",
        "description": "Campus gate-pass approval workflow",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Password and OTP sign-in"},
        {"name": "Permissions", "description": "Gate pass approval workflow"},
        {"name": "Passes", "description": "Pass PDF downloads"},
        {"name": "Verification", "description": "Guard-app token boundary"},
        {"name": "Disciplinary", "description": "Behavioral reports"},
        {"name": "Users", "description": "Account management"},
        {"name": "Reasons", "description": "Leave reason catalog"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate by password",
                "responses": {
                    "200": {"description": "Tokens issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/otp/request": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Request a one-time sign-in code",
                "responses": {
                    "202": {"description": "Code sent"}
                }
            }
        },
        "/auth/otp/verify": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Verify a sign-in code",
                "responses": {
                    "200": {"description": "Tokens issued"},
                    "401": {"description": "Code invalid or expired"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "Tokens rotated"},
                    "401": {"description": "Refresh token invalid"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Revoke the current session",
                "responses": {
                    "204": {"description": "Session revoked"}
                }
            }
        },
        "/permissions": {
            "get": {
                "tags": ["Permissions"],
                "summary": "Full review queue",
                "responses": {
                    "200": {"description": "Queue"}
                }
            },
            "post": {
                "tags": ["Permissions"],
                "summary": "Submit a gate pass request",
                "responses": {
                    "201": {"description": "Request created"},
                    "400": {"description": "Invalid reason or dates"},
                    "429": {"description": "Rate limited"}
                }
            }
        },
        "/permissions/mine": {
            "get": {
                "tags": ["Permissions"],
                "summary": "Caller's own requests",
                "responses": {
                    "200": {"description": "Requests"}
                }
            }
        },
        "/permissions/pending": {
            "get": {
                "tags": ["Permissions"],
                "summary": "Requests awaiting teacher review",
                "responses": {
                    "200": {"description": "Requests"}
                }
            }
        },
        "/permissions/{id}/teacher-decision": {
            "post": {
                "tags": ["Permissions"],
                "summary": "Apply a teacher verdict",
                "responses": {
                    "200": {"description": "Transition applied or no-op"},
                    "403": {"description": "Not a teacher"}
                }
            }
        },
        "/permissions/{id}/hod-decision": {
            "post": {
                "tags": ["Permissions"],
                "summary": "Apply an HOD verdict",
                "responses": {
                    "200": {"description": "Transition applied or no-op"},
                    "403": {"description": "Not the HOD"}
                }
            }
        },
        "/permissions/{id}/reject": {
            "post": {
                "tags": ["Permissions"],
                "summary": "Reject a pending request",
                "responses": {
                    "200": {"description": "Request rejected"}
                }
            }
        },
        "/permissions/{id}/block": {
            "post": {
                "tags": ["Permissions"],
                "summary": "Reject a request and block its student",
                "responses": {
                    "204": {"description": "Block applied"},
                    "409": {"description": "Request already resolved"}
                }
            }
        },
        "/permissions/{id}/history": {
            "get": {
                "tags": ["Permissions"],
                "summary": "Workflow history",
                "responses": {
                    "200": {"description": "History entries"}
                }
            }
        },
        "/permissions/{id}/events": {
            "get": {
                "tags": ["Permissions"],
                "summary": "Event timeline",
                "responses": {
                    "200": {"description": "Events"}
                }
            }
        },
        "/passes/{id}/download-link": {
            "get": {
                "tags": ["Passes"],
                "summary": "Signed download link for a pass PDF",
                "responses": {
                    "200": {"description": "Signed token"},
                    "404": {"description": "PDF not generated"}
                }
            }
        },
        "/passes/download": {
            "get": {
                "tags": ["Passes"],
                "summary": "Download a pass PDF",
                "responses": {
                    "200": {"description": "PDF stream"},
                    "401": {"description": "Link invalid or expired"}
                }
            }
        },
        "/verification/tokens": {
            "post": {
                "tags": ["Verification"],
                "summary": "Issue a pass verification token",
                "responses": {
                    "200": {"description": "Token issued"},
                    "401": {"description": "Bad client key"}
                }
            }
        },
        "/verification/verify": {
            "get": {
                "tags": ["Verification"],
                "summary": "Verify a scanned pass token",
                "responses": {
                    "200": {"description": "Pass facts"},
                    "401": {"description": "Token invalid or expired"}
                }
            }
        },
        "/disciplinary/reports": {
            "get": {
                "tags": ["Disciplinary"],
                "summary": "List reports",
                "responses": {
                    "200": {"description": "Reports"}
                }
            },
            "post": {
                "tags": ["Disciplinary"],
                "summary": "File a report",
                "responses": {
                    "201": {"description": "Report filed"}
                }
            }
        },
        "/disciplinary/execute-block": {
            "post": {
                "tags": ["Disciplinary"],
                "summary": "Execute a block for an escalated report",
                "responses": {
                    "200": {"description": "Block executed"},
                    "409": {"description": "Report not awaiting action"}
                }
            }
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List campus accounts",
                "responses": {
                    "200": {"description": "Accounts"}
                }
            }
        },
        "/users/{id}/approve": {
            "post": {
                "tags": ["Users"],
                "summary": "Activate a pending account",
                "responses": {
                    "200": {"description": "Account activated"},
                    "403": {"description": "Hierarchy forbids grant"}
                }
            }
        },
        "/users/import": {
            "post": {
                "tags": ["Users"],
                "summary": "Import a roster CSV",
                "responses": {
                    "200": {"description": "Import summary"}
                }
            }
        },
        "/reasons": {
            "get": {
                "tags": ["Reasons"],
                "summary": "List leave reasons",
                "responses": {
                    "200": {"description": "Reasons"}
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
