package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SGPT API",
        "description": "Backend del sistema de gestión de proyectos de titulación",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": ["http"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Auth", "description": "Autenticación y sesión"},
        {"name": "Usuarios", "description": "Gestión de usuarios"},
        {"name": "Proyectos", "description": "Propuestas y flujo de revisión"},
        {"name": "Archivos", "description": "Documentos adjuntos"},
        {"name": "Chat", "description": "Asistente conversacional"},
        {"name": "Canvas", "description": "Generación de secciones por streaming"},
        {"name": "Notificaciones", "description": "Notificaciones internas"},
        {"name": "Reportes", "description": "Reportes PDF asíncronos"},
        {"name": "Auditoria", "description": "Bitácora de acciones"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Iniciar sesión",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}],
                "responses": {"200": {"description": "Tokens emitidos"}, "401": {"description": "Credenciales inválidas"}}
            }
        },
        "/auth/registro": {
            "post": {
                "tags": ["Auth"],
                "summary": "Registro de estudiante",
                "responses": {"201": {"description": "Cuenta creada"}, "409": {"description": "Correo en uso"}}
            }
        },
        "/auth/refresh": {
            "post": {"tags": ["Auth"], "summary": "Renovar tokens", "responses": {"200": {"description": "Tokens renovados"}}}
        },
        "/auth/perfil": {
            "get": {"tags": ["Auth"], "summary": "Perfil actual", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "Usuario"}}}
        },
        "/usuarios": {
            "get": {"tags": ["Usuarios"], "summary": "Listar usuarios", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "Listado paginado"}}},
            "post": {"tags": ["Usuarios"], "summary": "Crear tutor o administrador", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Usuario creado"}}}
        },
        "/usuarios/verificar-email": {
            "get": {
                "tags": ["Usuarios"],
                "summary": "Verificar disponibilidad de correo",
                "parameters": [{"name": "email", "in": "query", "type": "string", "required": true}],
                "responses": {"200": {"description": "Disponibilidad"}}
            }
        },
        "/proyectos": {
            "get": {"tags": ["Proyectos"], "summary": "Listar proyectos según rol", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "Listado paginado"}}},
            "post": {"tags": ["Proyectos"], "summary": "Registrar propuesta en borrador", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Proyecto creado"}}}
        },
        "/proyectos/{id}/estado": {
            "patch": {
                "tags": ["Proyectos"],
                "summary": "Aplicar transición del flujo de revisión",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangeStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "Proyecto actualizado"},
                    "409": {"description": "Transición no permitida"}
                }
            }
        },
        "/proyectos/{id}/asignar-tutor": {
            "patch": {"tags": ["Proyectos"], "summary": "Asignar tutor revisor", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "Proyecto actualizado"}}}
        },
        "/proyectos/{id}/observaciones": {
            "get": {"tags": ["Proyectos"], "summary": "Historial de observaciones", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "Observaciones"}}},
            "post": {"tags": ["Proyectos"], "summary": "Agregar observación", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Observación creada"}}}
        },
        "/proyectos/{id}/archivos": {
            "get": {"tags": ["Archivos"], "summary": "Listar adjuntos", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "Archivos"}}},
            "post": {"tags": ["Archivos"], "summary": "Subir documento", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Archivo guardado"}}}
        },
        "/proyectos/{id}/reporte": {
            "post": {"tags": ["Reportes"], "summary": "Encolar reporte PDF", "security": [{"BearerAuth": []}], "responses": {"202": {"description": "Trabajo encolado"}}}
        },
        "/canvas/generar-stream": {
            "get": {
                "tags": ["Canvas"],
                "summary": "Generar sección por SSE",
                "parameters": [
                    {"name": "proyecto_id", "in": "query", "type": "string", "required": true},
                    {"name": "seccion", "in": "query", "type": "string", "required": true},
                    {"name": "token", "in": "query", "type": "string", "required": true}
                ],
                "responses": {"200": {"description": "Stream de eventos"}}
            }
        },
        "/chat/mensaje": {
            "post": {"tags": ["Chat"], "summary": "Enviar mensaje al asistente", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "Respuesta del asistente"}}}
        },
        "/notificaciones": {
            "get": {"tags": ["Notificaciones"], "summary": "Listar notificaciones", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "Notificaciones"}}}
        },
        "/auditoria": {
            "get": {"tags": ["Auditoria"], "summary": "Listar bitácora", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "Entradas de auditoría"}}}
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "ChangeStatusRequest": {
            "type": "object",
            "properties": {
                "estado": {"type": "string", "enum": ["borrador", "enviado", "en_revision", "aprobado", "rechazado", "corregir"]},
                "observacion": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "message": {"type": "string"},
                "pagination": {"type": "object"}
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
