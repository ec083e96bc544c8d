package handlers

import (
	"github.com/mgmu/greenhouse/internal/photos"
	"net/http"
)

/* Returns a handler for the "/api/identify/" URL.
 * On POST, asks the model which plant is on the image of the "image" field of
 * the multipart body, and sends back the species with care advice and the
 * tasks it suggests from the catalog. Nothing is stored.
 */
func (e *Env) Identify() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		if e.Identifier == nil {
			e.fail(w, r, errDisabled)
			return
		}
		data, err := e.readUpload(w, r, "image")
		if err != nil {
			e.fail(w, r, err)
			return
		}
		mime, err := photos.DetectImage(data)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		templates, err := e.DB.GetTaskTemplates(r.Context())
		if err != nil {
			e.fail(w, r, err)
			return
		}
		id, err := e.Identifier.Identify(r.Context(), data, mime, templates)
		if err != nil {
			e.fail(w, r, upstream(err))
			return
		}
		writeJSON(w, r, http.StatusOK, id)
	}
}
