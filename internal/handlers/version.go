package handlers

import "net/http"

// VersionHandler serves GET /api/version.
type VersionHandler struct {
	name        string
	version     string
	description string
}

func NewVersionHandler(name, version, description string) *VersionHandler {
	return &VersionHandler{name: name, version: version, description: description}
}

func (h *VersionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":     h.version,
		"name":        h.name,
		"description": h.description,
	})
}
