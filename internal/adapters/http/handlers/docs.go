package handlers

import (
	_ "embed"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

//go:embed openapi.yaml
var openAPIDocument []byte

// OpenAPIDocument returns the embedded API description.
func OpenAPIDocument() []byte {
	return openAPIDocument
}

// DocsHandler serves the API description and sends unmatched routes to it.
type DocsHandler struct {
	path string
}

// NewDocsHandler creates a docs handler mounted at path, e.g. "/docs".
func NewDocsHandler(path string) *DocsHandler {
	return &DocsHandler{path: "/" + strings.Trim(path, "/")}
}

// Path returns the mount path.
func (h *DocsHandler) Path() string {
	return h.path
}

// Document serves the OpenAPI YAML.
func (h *DocsHandler) Document(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml; charset=utf-8", openAPIDocument)
}

// RedirectToDocs answers unmatched routes with a 302 to the docs page.
func (h *DocsHandler) RedirectToDocs(c *gin.Context) {
	c.Redirect(http.StatusFound, h.path)
}

// RegisterRoutes registers the docs page and its openapi.yaml alias.
func (h *DocsHandler) RegisterRoutes(rg gin.IRoutes) {
	rg.GET(h.path, h.Document)
	rg.GET(h.path+"/openapi.yaml", h.Document)
}
