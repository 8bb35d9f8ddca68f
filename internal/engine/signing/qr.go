package signing

import (
	"errors"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

var ErrInvalidQRSize = errors.New("invalid size: must be between 128 and 2048")

// Link builds the signing page URL for a signer. base may already carry a
// query string.
func Link(base, signerID, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/" + url.PathEscape(signerID))
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// QRCode renders link as a PNG. A zero size means 512px.
func QRCode(link string, size int) ([]byte, error) {
	if size == 0 {
		size = 512
	}
	if size < 128 || size > 2048 {
		return nil, ErrInvalidQRSize
	}

	qr, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	return qr.PNG(size)
}
