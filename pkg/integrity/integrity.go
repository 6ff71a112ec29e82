// Package integrity content-addresses asset bytes and classifies them for storage.
package integrity

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

// Kind classifies asset content for the annotation front end.
type Kind string

const (
	KindUTF8Text Kind = "utf8_text"
	KindBinary   Kind = "binary"
	KindAudio    Kind = "audio"
	KindUnknown  Kind = "unknown"
)

// CanonicalAudioMIME is the MIME type annotators play back without transcoding.
const CanonicalAudioMIME = "audio/x-wav"

var (
	// ErrTextInferenceRejected is returned when a .txt file is uploaded without opting into text.
	ErrTextInferenceRejected = errors.New("text kind must be requested explicitly for .txt files")
	// ErrUnknownKind is returned for an explicit kind outside the supported set.
	ErrUnknownKind = errors.New("unsupported asset kind")
	// ErrInvalidEncoding is returned when asset content is not valid standard base64.
	ErrInvalidEncoding = errors.New("content is not valid base64")
)

var audioExtensions = map[string]struct{}{
	".wav": {},
	".mp3": {},
	".aac": {},
	".mp4": {},
}

var extensionMIME = map[string]string{
	".wav":  CanonicalAudioMIME,
	".mp3":  "audio/mpeg",
	".aac":  "audio/aac",
	".mp4":  "audio/mp4",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".json": "application/json",
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindUTF8Text, KindBinary, KindAudio, KindUnknown:
		return true
	}
	return false
}

// ComputeChecksum returns the lower-case hex SHA-512 digest of content.
func ComputeChecksum(content []byte) string {
	sum := sha512.Sum512(content)
	return hex.EncodeToString(sum[:])
}

// VerifyChecksum compares checksum against the digest of content, ignoring hex case.
func VerifyChecksum(content []byte, checksum string) bool {
	expected := ComputeChecksum(content)
	given := strings.ToLower(strings.TrimSpace(checksum))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(given)) == 1
}

// InferKind picks the asset kind. An explicit kind always wins, then the file extension,
// then content sniffing.
func InferKind(filename string, content []byte, explicit Kind, allowText bool) (Kind, error) {
	if explicit != "" {
		if !explicit.Valid() {
			return "", fmt.Errorf("%w: %q", ErrUnknownKind, explicit)
		}
		return explicit, nil
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := audioExtensions[ext]; ok {
		return KindAudio, nil
	}
	if ext == ".txt" {
		if !allowText {
			return "", ErrTextInferenceRejected
		}
		return KindUTF8Text, nil
	}

	if len(content) > 0 && strings.HasPrefix(mimetype.Detect(content).String(), "audio/") {
		return KindAudio, nil
	}

	return KindUnknown, nil
}

// InferMIME resolves the MIME type from the extension, falling back to content sniffing.
// Text types carry an explicit UTF-8 charset when the bytes decode as UTF-8.
func InferMIME(filename string, content []byte) string {
	ext := strings.ToLower(filepath.Ext(filename))

	detected, ok := extensionMIME[ext]
	if !ok && ext != "" {
		detected = mime.TypeByExtension(ext)
	}
	if detected == "" {
		if len(content) == 0 {
			return ""
		}
		detected = mimetype.Detect(content).String()
	}

	base, params, err := mime.ParseMediaType(detected)
	if err != nil {
		return detected
	}
	if strings.HasPrefix(base, "text/") && params["charset"] == "" && utf8.Valid(content) {
		params["charset"] = "utf-8"
		return mime.FormatMediaType(base, params)
	}
	return detected
}

// Subject is the part of an asset the advisory checks look at.
type Subject struct {
	Content  []byte
	MimeType string
	Kind     Kind
	Checksum string
}

// Validate runs advisory checks. Only empty content makes ok false; every other finding is a
// warning the uploader may ignore.
func Validate(s Subject) (ok bool, warnings []string) {
	ok = true
	warnings = []string{}

	switch {
	case s.Kind == "":
		warnings = append(warnings, "kind is missing")
	case s.Kind != KindAudio:
		warnings = append(warnings, `"audio" is the only kind annotators can display; the asset will be stored but not rendered`)
	default:
		if base, _, err := mime.ParseMediaType(s.MimeType); err != nil || base != CanonicalAudioMIME {
			warnings = append(warnings, "mimeType '"+CanonicalAudioMIME+"' will work best")
		}
	}

	if len(s.Content) == 0 {
		ok = false
		warnings = append(warnings, "content is empty")
	}
	if s.Checksum == "" {
		warnings = append(warnings, "checksum is missing")
	}
	if s.MimeType == "" {
		warnings = append(warnings, "mimeType is missing, downloads may not be served correctly")
	}

	return ok, warnings
}

// EncodeContent renders content as standard padded base64.
func EncodeContent(content []byte) string {
	return base64.StdEncoding.EncodeToString(content)
}

// DecodeContent parses standard padded base64.
func DecodeContent(encoded string) ([]byte, error) {
	content, err := base64.StdEncoding.Strict().DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return content, nil
}
