package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"studio/internal/domain"
	"studio/internal/middleware"
	"studio/internal/session"
)

// maxImageUpload bounds the JSON body carrying one base64 image.
const maxImageUpload = 15 << 20

type uploadImageRequest struct {
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
	Name        string `json:"name"`
}

// UploadImage replaces one grounding image slot wholesale.
func (a *App) UploadImage(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())

	sess, ok := a.sessionFromRequest(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	slot := session.ImageSlot(chi.URLParam(r, "slot"))
	if slot != session.SlotProduct && slot != session.SlotModel {
		a.error(w, http.StatusBadRequest, "bad_request", "slot must be product or model")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageUpload)
	var req uploadImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", localize(locale, msgBadPayload))
		return
	}
	if req.ImageBase64 == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "image_base64 required")
		return
	}
	if !strings.HasPrefix(req.MimeType, "image/") {
		a.error(w, http.StatusBadRequest, "bad_request", "mime_type must be an image type")
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "image_base64 is not valid base64")
		return
	}

	img := domain.ImageRef{Data: data, MimeType: req.MimeType, Name: req.Name}
	if err := sess.SetImage(slot, img); err != nil {
		a.fail(w, r, err)
		return
	}

	a.Log.Debug().
		Str("session", sess.ID()).
		Str("slot", string(slot)).
		Int("bytes", len(data)).
		Msg("image uploaded")
	a.json(w, http.StatusOK, sess.Snapshot())
}

// DownloadSceneImage streams one scene's still, the download action of the UI.
func (a *App) DownloadSceneImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	index, ok := a.sceneIndex(w, r)
	if !ok {
		return
	}
	scene, found := sess.Scene(index)
	if !found || !scene.Image.Present() {
		a.fail(w, r, domain.ErrNotFound)
		return
	}

	mime := scene.Image.MimeType
	if mime == "" {
		mime = "image/png"
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", `attachment; filename="affiliate_video_scene_`+strconv.Itoa(index+1)+`.png"`)
	_, _ = w.Write(scene.Image.Data)
}
