package consult

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"

	"github.com/Muhammadazeem-eng/acne-detect/internal/apperr"
)

// MaxImageBytes bounds the size of an uploaded image.
const MaxImageBytes = 10 << 20

// detectImage returns the MIME type of data when it is a decodable JPEG or
// PNG image.
func detectImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperr.MissingField("an image is required")
	}
	if len(data) > MaxImageBytes {
		return "", apperr.Validation("image is larger than 10 MB")
	}

	mime := http.DetectContentType(data)
	if mime != "image/jpeg" && mime != "image/png" {
		return "", apperr.Validation("only JPEG and PNG images are supported")
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return "", apperr.Wrap(apperr.CodeValidation, "image could not be decoded", err)
	}
	return mime, nil
}

func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
