package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/raihq/rai-backend/internal/services"
)

var uploadFolders = map[string]string{
	"profile_picture": services.FolderProfilePictures,
	"community_icon":  services.FolderCommunityIcons,
	"chat_image":      services.FolderChatImages,
}

// UploadImage handles general image uploads. The "kind" form field picks the
// destination folder; the returned URL is then attached to a profile,
// community, or chat message by the relevant endpoint.
func UploadImage(w http.ResponseWriter, r *http.Request) {
	if !services.MediaConfigured() {
		respondError(w, http.StatusServiceUnavailable, "Media uploads are not configured")
		return
	}

	if err := r.ParseMultipartForm(services.MaxImageUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	folder, ok := uploadFolders[r.FormValue("kind")]
	if !ok {
		folder = services.FolderChatImages
	}

	_, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "A file is required")
		return
	}

	url, err := services.Media.UploadImage(r.Context(), header, folder)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedMediaType) {
			respondError(w, http.StatusUnsupportedMediaType, "Unsupported media type")
			return
		}
		log.Printf("image upload failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Upload failed")
		return
	}

	respondSuccess(w, http.StatusCreated, "Image uploaded", map[string]string{"url": url})
}

// TranscribeAudio runs an uploaded voice note through the speech-to-text
// provider and returns the transcript.
func TranscribeAudio(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(services.MaxAudioUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "An audio file is required")
		return
	}
	defer file.Close()

	if header.Size > services.MaxAudioUploadSize {
		respondError(w, http.StatusBadRequest, "Audio file too large")
		return
	}

	text, err := services.AI.Transcribe(r.Context(), file, header.Filename)
	if err != nil {
		log.Printf("transcription failed: %v", err)
		respondError(w, http.StatusBadGateway, "Transcription failed")
		return
	}

	respondSuccess(w, http.StatusOK, "Audio transcribed", map[string]string{"text": text})
}
