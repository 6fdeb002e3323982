package handlers

// message carries the two UI languages the service speaks. The locale
// middleware picks one per request.
type message struct {
	en string
	id string
}

var (
	msgNotFound          = message{en: "not found", id: "tidak ditemukan"}
	msgImagesRequired    = message{en: "upload both the product and model images first", id: "unggah gambar produk dan model terlebih dahulu"}
	msgPipelineBusy      = message{en: "the pipeline is still working; wait for it to finish", id: "pipeline masih berjalan; tunggu hingga selesai"}
	msgOperationInFlight = message{en: "this scene already has an operation in progress", id: "adegan ini sudah memiliki operasi yang sedang berjalan"}
	msgStageConflict     = message{en: "this action is not available in the current step", id: "aksi ini tidak tersedia pada langkah saat ini"}
	msgMissingCredential = message{en: "the Gemini API key is missing or not valid; use a key from a billing-enabled project", id: "kunci API Gemini tidak ada atau tidak valid; gunakan kunci dari proyek berbayar"}
	msgInternal          = message{en: "unexpected error", id: "terjadi kesalahan tak terduga"}
	msgBadPayload        = message{en: "invalid request payload", id: "payload permintaan tidak valid"}
	msgNoVideo           = message{en: "no video has been rendered for this scene", id: "belum ada video untuk adegan ini"}
)

func localize(locale string, m message) string {
	if locale == "id" && m.id != "" {
		return m.id
	}
	return m.en
}
