package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>yesshare API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "yesshare", "version": "v0.1.0" },
  "paths": {
    "/auth/register": {
      "post": { "summary": "Create an account and sign in", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"username":{"type":"string"},"email":{"type":"string"},"password":{"type":"string"}}}}}}, "responses": { "201": { "description": "tokens returned" }, "400": { "description": "invalid input" }, "401": { "description": "provider rejected the account" } } }
    },
    "/auth/login": {
      "post": { "summary": "Sign in with email and password", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"},"password":{"type":"string"}}}}}}, "responses": { "200": { "description": "tokens returned" }, "401": { "description": "provider message" } } }
    },
    "/auth/refresh": {
      "post": { "summary": "Refresh access token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refresh_token":{"type":"string"}}}}}}, "responses": { "200": { "description": "new access token" }, "401": { "description": "invalid refresh" } } }
    },
    "/auth/logout": {
      "post": { "summary": "Logout and invalidate refresh token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refresh_token":{"type":"string"}}}}}}, "responses": { "200": { "description": "logged out" } } }
    },
    "/api/bootstrap": { "get": { "summary": "Create the viewer; ?slug= opens a page", "responses": { "200": { "description": "viewer id, user, opened page" } } } },
    "/api/pages": {
      "get": { "summary": "Search pages, or open q when it is a <slug>.yes address", "parameters": [{"name":"q","in":"query","schema":{"type":"string"}}], "responses": { "200": { "description": "results or opened page" } } },
      "post": { "summary": "Publish a page in one step", "responses": { "201": { "description": "published" }, "400": { "description": "invalid slug or empty content" }, "401": { "description": "not signed in" }, "409": { "description": "slug taken" } } }
    },
    "/api/pages/{slug}": { "get": { "summary": "Open a page", "responses": { "200": { "description": "inline or frame artifact" }, "404": { "description": "no such page" } } } },
    "/api/pages/{slug}/comments": {
      "get": { "summary": "List comments oldest first", "responses": { "200": { "description": "comments" } } },
      "post": { "summary": "Add a comment", "responses": { "201": { "description": "added" }, "401": { "description": "not signed in" }, "404": { "description": "no such page" } } }
    },
    "/api/slugs/{slug}": { "get": { "summary": "Slug availability", "responses": { "200": { "description": "invalid, taken or available" } } } },
    "/api/drafts": { "post": { "summary": "Stage editor content", "responses": { "200": { "description": "draft waiting for a slug" } } } },
    "/api/drafts/back": { "post": { "summary": "Return the draft to editing", "responses": { "200": { "description": "draft" } } } },
    "/api/drafts/publish": { "post": { "summary": "Publish the staged draft", "responses": { "201": { "description": "published" }, "409": { "description": "slug taken, draft kept" } } } },
    "/api/me": { "get": { "summary": "Signed-in profile and summary", "responses": { "200": { "description": "user" }, "401": { "description": "not signed in" } } } },
    "/api/me/avatar": { "put": { "summary": "Upload an avatar (?confirm=true for large images)", "responses": { "200": { "description": "stored" }, "409": { "description": "needs confirmation" } } } },
    "/api/users/{uid}/summary": { "get": { "summary": "Owner summary", "responses": { "200": { "description": "username, email, page count" } } } },
    "/api/viewer/live": { "get": { "summary": "Websocket: viewer events and debounced slug checks", "responses": { "101": { "description": "upgraded" } } } },
    "/api/frames/channel": { "get": { "summary": "Websocket: frame message channel, ?cap=", "responses": { "101": { "description": "upgraded" } } } },
    "/frames/{handle}": { "get": { "summary": "Sandboxed page document", "responses": { "200": { "description": "html" }, "404": { "description": "released or unknown" } } } },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
