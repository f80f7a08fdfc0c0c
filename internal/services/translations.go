package services

// DefaultLanguage is used when the configured language has no catalogue.
const DefaultLanguage = "en"

var translations = map[string]map[string]string{
	"en": {
		"chat_default_title": "New chat",
		"new_chat":           "New chat",
		"delete_chat":        "Delete chat",
		"clear_chat":         "Clear chat",
		"send":               "Send",
		"placeholder":        "Type your message...",
		"characters_left":    "characters left",
		"error_apikey":       "The API key is invalid or missing",
		"error_http":         "The language model service could not be reached",
		"error_limit":        "The message exceeds the character limit",
		"thinking":           "Thinking...",
	},
	"es": {
		"chat_default_title": "Nuevo chat",
		"new_chat":           "Nuevo chat",
		"delete_chat":        "Eliminar chat",
		"clear_chat":         "Vaciar chat",
		"send":               "Enviar",
		"placeholder":        "Escribe tu mensaje...",
		"characters_left":    "caracteres restantes",
		"error_apikey":       "La clave de API no es válida o falta",
		"error_http":         "No se pudo contactar con el servicio del modelo de lenguaje",
		"error_limit":        "El mensaje supera el límite de caracteres",
		"thinking":           "Pensando...",
	},
	"de": {
		"chat_default_title": "Neuer Chat",
		"new_chat":           "Neuer Chat",
		"delete_chat":        "Chat löschen",
		"clear_chat":         "Chat leeren",
		"send":               "Senden",
		"placeholder":        "Nachricht eingeben...",
		"characters_left":    "Zeichen übrig",
		"error_apikey":       "Der API-Schlüssel ist ungültig oder fehlt",
		"error_http":         "Der Sprachmodell-Dienst ist nicht erreichbar",
		"error_limit":        "Die Nachricht überschreitet das Zeichenlimit",
		"thinking":           "Denke nach...",
	},
}

// Translations returns the frontend strings for lang, falling back to
// English for unknown languages. The returned map is a copy.
func Translations(lang string) (string, map[string]string) {
	catalogue, ok := translations[lang]
	if !ok {
		lang = DefaultLanguage
		catalogue = translations[DefaultLanguage]
	}

	out := make(map[string]string, len(catalogue))
	for k, v := range catalogue {
		out[k] = v
	}
	return lang, out
}
