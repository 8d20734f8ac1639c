package invite

import (
	"encoding/base64"

	"github.com/skip2/go-qrcode"
)

// DefaultQRSize 二维码边长，像素
const DefaultQRSize = 256

// QRCode 接受链接的 PNG 二维码
func (s *Service) QRCode(token string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	return qrcode.Encode(s.AcceptURL(token), qrcode.Medium, size)
}

// QRCodeDataURL 可直接嵌入邮件或页面的 data URL
func (s *Service) QRCodeDataURL(token string, size int) (string, error) {
	png, err := s.QRCode(token, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
