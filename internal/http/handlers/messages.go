package handlers

// Message keys for the localized wire responses. Only short, user-facing
// strings live here; diagnostic detail never leaves the log sink.
const (
	msgGenerationReady     = "generation_ready"
	msgValidationFailed    = "validation_failed"
	msgInsufficientCredits = "insufficient_credits"
	msgUnauthorized        = "unauthorized"
	msgNotFound            = "not_found"
	msgInternalError       = "internal_error"
	msgInvalidPayload      = "invalid_payload"
	msgAccountLoaded       = "account_loaded"
	msgGenerationsListed   = "generations_listed"
	msgGenerationDeleted   = "generation_deleted"
	msgAPIKeyCreated       = "api_key_created"
	msgAPIKeysListed       = "api_keys_listed"
	msgAPIKeyRevoked       = "api_key_revoked"
)

var messages = map[string]map[string]string{
	"en": {
		msgGenerationReady:     "Your image is ready.",
		msgValidationFailed:    "Some fields are invalid.",
		msgInsufficientCredits: "You do not have enough credits for this operation. Top up to continue.",
		msgUnauthorized:        "Unauthorized.",
		msgNotFound:            "Not found.",
		msgInternalError:       "Internal Server Error",
		msgInvalidPayload:      "Request body is not valid JSON.",
		msgAccountLoaded:       "Account loaded.",
		msgGenerationsListed:   "Generations loaded.",
		msgGenerationDeleted:   "Generation deleted.",
		msgAPIKeyCreated:       "API key created. Store the secret now; it is shown only once.",
		msgAPIKeysListed:       "API keys loaded.",
		msgAPIKeyRevoked:       "API key revoked.",
	},
	"id": {
		msgGenerationReady:     "Gambar Anda sudah siap.",
		msgValidationFailed:    "Beberapa kolom tidak valid.",
		msgInsufficientCredits: "Kredit Anda tidak cukup untuk operasi ini. Isi ulang untuk melanjutkan.",
		msgUnauthorized:        "Tidak diizinkan.",
		msgNotFound:            "Tidak ditemukan.",
		msgInternalError:       "Internal Server Error",
		msgInvalidPayload:      "Isi permintaan bukan JSON yang valid.",
		msgAccountLoaded:       "Akun berhasil dimuat.",
		msgGenerationsListed:   "Daftar generasi berhasil dimuat.",
		msgGenerationDeleted:   "Generasi dihapus.",
		msgAPIKeyCreated:       "API key dibuat. Simpan secret sekarang; hanya ditampilkan sekali.",
		msgAPIKeysListed:       "Daftar API key berhasil dimuat.",
		msgAPIKeyRevoked:       "API key dicabut.",
	},
}

// message resolves a key for the negotiated locale, falling back to English.
func message(locale, key string) string {
	if byLocale, ok := messages[locale]; ok {
		if msg, ok := byLocale[key]; ok {
			return msg
		}
	}
	return messages["en"][key]
}
