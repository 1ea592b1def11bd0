// Package docs holds the OpenAPI document of the API, registered with swag.
// Regenerate with `swag init -g cmd/server/main.go --v3.1` after changing the
// handler annotations.
package docs

import "github.com/swaggo/swag/v2"

const docTemplate = `{
    "openapi": "3.1.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{escape .Description}}",
        "version": "{{.Version}}"
    },
    "servers": [
        {
            "url": "{{.Host}}{{.BasePath}}"
        }
    ],
    "paths": {
        "/agreements": {
            "post": {
                "operationId": "createAgreement",
                "summary": "Create a token purchase agreement",
                "tags": [
                    "agreements"
                ],
                "requestBody": {
                    "required": true,
                    "content": {
                        "application/json": {
                            "schema": {
                                "type": "object"
                            }
                        }
                    }
                },
                "responses": {
                    "201": {
                        "description": "Success"
                    },
                    "400": {
                        "description": "Failure"
                    }
                }
            },
            "get": {
                "operationId": "listAgreements",
                "summary": "List agreements",
                "tags": [
                    "agreements"
                ],
                "parameters": [
                    {
                        "name": "status",
                        "in": "query",
                        "required": false,
                        "schema": {
                            "type": "integer"
                        }
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "required": false,
                        "schema": {
                            "type": "integer"
                        }
                    },
                    {
                        "name": "page_size",
                        "in": "query",
                        "required": false,
                        "schema": {
                            "type": "integer"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    }
                }
            }
        },
        "/agreements/{id}": {
            "get": {
                "operationId": "getAgreement",
                "summary": "Get an agreement",
                "tags": [
                    "agreements"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "schema": {
                            "type": "string"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    },
                    "404": {
                        "description": "Failure"
                    }
                }
            }
        },
        "/agreements/{id}/document": {
            "put": {
                "operationId": "uploadAgreementDocument",
                "summary": "Upload the signed agreement document",
                "tags": [
                    "agreements"
                ],
                "requestBody": {
                    "required": true,
                    "content": {
                        "application/json": {
                            "schema": {
                                "type": "object"
                            }
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "schema": {
                            "type": "string"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    },
                    "400": {
                        "description": "Failure"
                    },
                    "404": {
                        "description": "Failure"
                    },
                    "413": {
                        "description": "Failure"
                    }
                }
            },
            "get": {
                "operationId": "getAgreementDocument",
                "summary": "Get a download link of the agreement document",
                "tags": [
                    "agreements"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "schema": {
                            "type": "string"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    },
                    "404": {
                        "description": "Failure"
                    }
                }
            }
        },
        "/agreements/{id}/paid": {
            "post": {
                "operationId": "markAgreementPaid",
                "summary": "Mark a signed agreement as paid",
                "tags": [
                    "agreements"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "schema": {
                            "type": "string"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    },
                    "404": {
                        "description": "Failure"
                    },
                    "422": {
                        "description": "Failure"
                    }
                }
            }
        },
        "/agreements/{id}/sign-result": {
            "post": {
                "operationId": "agreementSignResult",
                "summary": "Record the outcome of the agreement sign flow",
                "tags": [
                    "agreements"
                ],
                "requestBody": {
                    "required": true,
                    "content": {
                        "application/json": {
                            "schema": {
                                "type": "object"
                            }
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "schema": {
                            "type": "string"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    },
                    "404": {
                        "description": "Failure"
                    }
                }
            }
        },
        "/agreements/{id}/status": {
            "put": {
                "operationId": "updateAgreementStatus",
                "summary": "Sign or cancel an agreement",
                "tags": [
                    "agreements"
                ],
                "requestBody": {
                    "required": true,
                    "content": {
                        "application/json": {
                            "schema": {
                                "type": "object"
                            }
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "schema": {
                            "type": "string"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    },
                    "404": {
                        "description": "Failure"
                    },
                    "422": {
                        "description": "Failure"
                    }
                }
            }
        },
        "/health": {
            "get": {
                "operationId": "getHealth",
                "summary": "Health check",
                "tags": [
                    "system"
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    },
                    "503": {
                        "description": "Failure"
                    }
                }
            }
        },
        "/jobs": {
            "get": {
                "operationId": "listJobs",
                "summary": "List periodic jobs",
                "tags": [
                    "jobs"
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    }
                }
            }
        },
        "/jobs/{name}/run": {
            "post": {
                "operationId": "runJob",
                "summary": "Run a periodic job now",
                "tags": [
                    "jobs"
                ],
                "parameters": [
                    {
                        "name": "name",
                        "in": "path",
                        "required": true,
                        "schema": {
                            "type": "string"
                        }
                    },
                    {
                        "name": "wait",
                        "in": "query",
                        "required": false,
                        "schema": {
                            "type": "boolean"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    },
                    "202": {
                        "description": "Success"
                    },
                    "404": {
                        "description": "Failure"
                    },
                    "409": {
                        "description": "Failure"
                    },
                    "503": {
                        "description": "Failure"
                    }
                }
            }
        },
        "/me/agreements": {
            "get": {
                "operationId": "listMyAgreements",
                "summary": "List the agreements of the signed-in user",
                "tags": [
                    "me"
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    }
                }
            }
        },
        "/me/nodes": {
            "get": {
                "operationId": "listMyNodes",
                "summary": "List the nodes of the signed-in user",
                "tags": [
                    "me"
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    }
                }
            }
        },
        "/me/nodes/stats": {
            "get": {
                "operationId": "getMyNodeStats",
                "summary": "Dashboard statistics of the signed-in user's nodes",
                "tags": [
                    "me"
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    },
                    "502": {
                        "description": "Failure"
                    }
                }
            }
        },
        "/me/orders": {
            "post": {
                "operationId": "createMyOrder",
                "summary": "Order a node for the signed-in user",
                "tags": [
                    "me"
                ],
                "requestBody": {
                    "required": true,
                    "content": {
                        "application/json": {
                            "schema": {
                                "type": "object"
                            }
                        }
                    }
                },
                "responses": {
                    "201": {
                        "description": "Success"
                    },
                    "400": {
                        "description": "Failure"
                    },
                    "409": {
                        "description": "Failure"
                    }
                }
            },
            "get": {
                "operationId": "listMyOrders",
                "summary": "List the orders of the signed-in user",
                "tags": [
                    "me"
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    }
                }
            }
        },
        "/me/profile": {
            "get": {
                "operationId": "getMyProfile",
                "summary": "Get the profile of the signed-in user",
                "tags": [
                    "me"
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    },
                    "404": {
                        "description": "Failure"
                    }
                }
            }
        },
        "/nodes": {
            "get": {
                "operationId": "listNodes",
                "summary": "List nodes with their owner",
                "tags": [
                    "nodes"
                ],
                "parameters": [
                    {
                        "name": "status",
                        "in": "query",
                        "required": false,
                        "schema": {
                            "type": "string"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    }
                }
            }
        },
        "/nodes/assign": {
            "post": {
                "operationId": "assignNodes",
                "summary": "Assign nodes to a user",
                "tags": [
                    "nodes"
                ],
                "requestBody": {
                    "required": true,
                    "content": {
                        "application/json": {
                            "schema": {
                                "type": "object"
                            }
                        }
                    }
                },
                "responses": {
                    "200": {
                        "description": "Success"
                    },
                    "400": {
                        "description": "Failure"
                    }
                }
            }
        },
        "/orders": {
            "post": {
                "operationId": "createOrder",
                "summary": "Create a node order",
                "tags": [
                    "orders"
                ],
                "requestBody": {
                    "required": true,
                    "content": {
                        "application/json": {
                            "schema": {
                                "type": "object"
                            }
                        }
                    }
                },
                "responses": {
                    "201": {
                        "description": "Success"
                    },
                    "400": {
                        "description": "Failure"
                    },
                    "409": {
                        "description": "Failure"
                    }
                }
            },
            "get": {
                "operationId": "listOrders",
                "summary": "List node orders",
                "tags": [
                    "orders"
                ],
                "parameters": [
                    {
                        "name": "status",
                        "in": "query",
                        "required": false,
                        "schema": {
                            "type": "integer"
                        }
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "required": false,
                        "schema": {
                            "type": "integer"
                        }
                    },
                    {
                        "name": "page_size",
                        "in": "query",
                        "required": false,
                        "schema": {
                            "type": "integer"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    }
                }
            }
        },
        "/orders/import": {
            "post": {
                "operationId": "importOrder",
                "summary": "Import an order that already exists in the ERP",
                "tags": [
                    "orders"
                ],
                "requestBody": {
                    "required": true,
                    "content": {
                        "application/json": {
                            "schema": {
                                "type": "object"
                            }
                        }
                    }
                },
                "responses": {
                    "201": {
                        "description": "Success"
                    },
                    "400": {
                        "description": "Failure"
                    },
                    "409": {
                        "description": "Failure"
                    },
                    "422": {
                        "description": "Failure"
                    }
                }
            }
        },
        "/orders/{id}": {
            "get": {
                "operationId": "getOrder",
                "summary": "Get a node order",
                "tags": [
                    "orders"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "schema": {
                            "type": "string"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    },
                    "404": {
                        "description": "Failure"
                    }
                }
            }
        },
        "/orders/{id}/sign-result": {
            "post": {
                "operationId": "orderSignResult",
                "summary": "Record the outcome of the agreement sign flow",
                "tags": [
                    "orders"
                ],
                "requestBody": {
                    "required": true,
                    "content": {
                        "application/json": {
                            "schema": {
                                "type": "object"
                            }
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "schema": {
                            "type": "string"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    },
                    "404": {
                        "description": "Failure"
                    },
                    "422": {
                        "description": "Failure"
                    }
                }
            }
        },
        "/orders/{id}/status": {
            "put": {
                "operationId": "updateOrderStatus",
                "summary": "Change the status of a node order",
                "tags": [
                    "orders"
                ],
                "requestBody": {
                    "required": true,
                    "content": {
                        "application/json": {
                            "schema": {
                                "type": "object"
                            }
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "schema": {
                            "type": "string"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    },
                    "404": {
                        "description": "Failure"
                    },
                    "422": {
                        "description": "Failure"
                    }
                }
            }
        },
        "/profiles": {
            "post": {
                "operationId": "registerProfile",
                "summary": "Register or refresh a user profile",
                "tags": [
                    "profiles"
                ],
                "requestBody": {
                    "required": true,
                    "content": {
                        "application/json": {
                            "schema": {
                                "type": "object"
                            }
                        }
                    }
                },
                "responses": {
                    "200": {
                        "description": "Success"
                    },
                    "400": {
                        "description": "Failure"
                    }
                }
            },
            "get": {
                "operationId": "listProfiles",
                "summary": "List profiles in a KYC status",
                "tags": [
                    "profiles"
                ],
                "parameters": [
                    {
                        "name": "kyc_status",
                        "in": "query",
                        "required": true,
                        "schema": {
                            "type": "integer"
                        }
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "required": false,
                        "schema": {
                            "type": "integer"
                        }
                    },
                    {
                        "name": "page_size",
                        "in": "query",
                        "required": false,
                        "schema": {
                            "type": "integer"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    },
                    "400": {
                        "description": "Failure"
                    }
                }
            }
        },
        "/profiles/{username}": {
            "get": {
                "operationId": "getProfile",
                "summary": "Get a user profile",
                "tags": [
                    "profiles"
                ],
                "parameters": [
                    {
                        "name": "username",
                        "in": "path",
                        "required": true,
                        "schema": {
                            "type": "string"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    },
                    "404": {
                        "description": "Failure"
                    }
                }
            }
        },
        "/profiles/{username}/kyc/status": {
            "put": {
                "operationId": "setKYCStatus",
                "summary": "Move the KYC procedure of a user",
                "tags": [
                    "profiles"
                ],
                "requestBody": {
                    "required": true,
                    "content": {
                        "application/json": {
                            "schema": {
                                "type": "object"
                            }
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "username",
                        "in": "path",
                        "required": true,
                        "schema": {
                            "type": "string"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    },
                    "404": {
                        "description": "Failure"
                    },
                    "422": {
                        "description": "Failure"
                    }
                }
            }
        },
        "/profiles/{username}/kyc/utility-bill/verify": {
            "post": {
                "operationId": "verifyUtilityBill",
                "summary": "Mark the utility bill of a user as verified",
                "tags": [
                    "profiles"
                ],
                "parameters": [
                    {
                        "name": "username",
                        "in": "path",
                        "required": true,
                        "schema": {
                            "type": "string"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    },
                    "404": {
                        "description": "Failure"
                    },
                    "422": {
                        "description": "Failure"
                    }
                }
            }
        },
        "/system/info": {
            "get": {
                "operationId": "getSystemInfo",
                "summary": "Get system information",
                "tags": [
                    "system"
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    }
                }
            }
        },
        "/system/ping": {
            "get": {
                "operationId": "pingSystem",
                "summary": "Ping the API",
                "tags": [
                    "system"
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    }
                }
            }
        },
        "/tasks/dead": {
            "get": {
                "operationId": "listDeadTasks",
                "summary": "List dead tasks",
                "tags": [
                    "tasks"
                ],
                "parameters": [
                    {
                        "name": "page",
                        "in": "query",
                        "required": false,
                        "schema": {
                            "type": "integer"
                        }
                    },
                    {
                        "name": "page_size",
                        "in": "query",
                        "required": false,
                        "schema": {
                            "type": "integer"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    }
                }
            }
        },
        "/tasks/dead/retry": {
            "post": {
                "operationId": "retryAllDeadTasks",
                "summary": "Retry every dead task",
                "tags": [
                    "tasks"
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    }
                }
            }
        },
        "/tasks/stats": {
            "get": {
                "operationId": "getTaskStats",
                "summary": "Count tasks per status",
                "tags": [
                    "tasks"
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    }
                }
            }
        },
        "/tasks/{id}": {
            "get": {
                "operationId": "getTask",
                "summary": "Get a task",
                "tags": [
                    "tasks"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "schema": {
                            "type": "string"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    },
                    "404": {
                        "description": "Failure"
                    }
                }
            }
        },
        "/tasks/{id}/retry": {
            "post": {
                "operationId": "retryTask",
                "summary": "Retry a dead task",
                "tags": [
                    "tasks"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "schema": {
                            "type": "string"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    },
                    "404": {
                        "description": "Failure"
                    },
                    "422": {
                        "description": "Failure"
                    }
                }
            }
        },
        "/users/{username}/nodes/stats": {
            "get": {
                "operationId": "getUserNodeStats",
                "summary": "Dashboard statistics of a user's nodes",
                "tags": [
                    "nodes"
                ],
                "parameters": [
                    {
                        "name": "username",
                        "in": "path",
                        "required": true,
                        "schema": {
                            "type": "string"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Success"
                    },
                    "502": {
                        "description": "Failure"
                    }
                }
            }
        }
    },
    "components": {
        "securitySchemes": {
            "ProxyUser": {
                "type": "apiKey",
                "in": "header",
                "name": "X-Username"
            },
            "ProxyRoles": {
                "type": "apiKey",
                "in": "header",
                "name": "X-Roles"
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "TF Hosting Backend API",
	Description:      "Node hosting orders, investment agreements and KYC for the hosting platform",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
