// Package qrcode renders strings as scannable PNG codes.
package qrcode

import (
	"encoding/base64"
	"fmt"
	"net/url"

	qr "github.com/skip2/go-qrcode"
)

const imageSize = 300

// DataURL renders content as a PNG data URL suitable for direct embedding in
// an <img> tag.
func DataURL(content string) (string, error) {
	png, err := qr.Encode(content, qr.Medium, imageSize)
	if err != nil {
		return "", fmt.Errorf("qrcode: encode: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// RegistrationDeepLink frames a registration token as a deep-link URL that
// pre-fills the chat client with the registration-code message.
func RegistrationDeepLink(tok string) string {
	return "https://line.me/R/msg/text/?" + url.QueryEscape("登録コード: "+tok)
}

// Set holds the two codes handed out per registration: one to add the
// official account as a contact, one carrying the registration deep link.
type Set struct {
	ContactQR      string `json:"lineQRCode"`
	RegistrationQR string `json:"messageQRCode"`
}

// NewSet renders both codes.
func NewSet(contactURL, tok string) (*Set, error) {
	contact, err := DataURL(contactURL)
	if err != nil {
		return nil, err
	}
	registration, err := DataURL(RegistrationDeepLink(tok))
	if err != nil {
		return nil, err
	}
	return &Set{ContactQR: contact, RegistrationQR: registration}, nil
}
