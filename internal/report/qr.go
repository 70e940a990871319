package report

import (
	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"
)

// QRCode renders the ROI summary as a PNG QR code of size x size pixels.
func QRCode(fields ROIFields, size int) ([]byte, error) {
	png, err := qrcode.Encode(fields.Text(), qrcode.Medium, size)
	if err != nil {
		return nil, errors.Wrap(err, "encoding ROI QR code")
	}
	return png, nil
}
