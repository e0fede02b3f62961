package httpapi

import (
	"errors"
	"net/http"

	"societyos.org/internal/auth"
	"societyos.org/internal/docs"
)

const maxUploadMemory = 8 << 20

func (a *API) handleDocumentUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if err := a.requirePermission(r.Context(), auth.PermDocumentUpload); err != nil {
		writeError(w, r, http.StatusForbidden, "permission denied")
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, r, http.StatusBadRequest, "multipart form expected")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	var uploads []docs.Upload
	for _, header := range r.MultipartForm.File["files"] {
		f, err := header.Open()
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "unreadable file part")
			return
		}
		defer f.Close()
		uploads = append(uploads, docs.Upload{
			Filename: header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Content:  f,
		})
	}

	doc, err := a.docs.UploadDocument(r.Context(),
		r.FormValue("title"),
		r.FormValue("description"),
		principal.User.ID,
		uploads,
	)
	if err != nil {
		handleDocsError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (a *API) handleManagerDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if err := a.requirePermission(r.Context(), auth.PermDocumentUpload); err != nil {
		writeError(w, r, http.StatusForbidden, "permission denied")
		return
	}
	managerID, ok := pathSuffix(r.URL.Path, "/document/manager/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	list, err := a.docs.ByManager(r.Context(), managerID)
	if err != nil {
		handleDocsError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": list})
}

func handleDocsError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, docs.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, docs.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
