// Package qr produces the encrypted check-in codes embedded in booking
// confirmation events. The payload is AES-GCM encrypted so a door scanner
// holding the shared secret can verify it offline.
package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"

	"github.com/skip2/go-qrcode"

	"ms-booking/internal/models"
)

type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:]}
}

type checkInPayload struct {
	BookingID  string `json:"booking_id"`
	EventID    string `json:"event_id"`
	UserID     string `json:"user_id"`
	GuestCount int    `json:"guest_count"`
}

// GenerateCheckInQR returns a PNG QR encoding the encrypted booking
// check-in payload.
func (g *Generator) GenerateCheckInQR(booking models.Booking) ([]byte, error) {
	data, err := json.Marshal(checkInPayload{
		BookingID:  booking.ID,
		EventID:    booking.EventID,
		UserID:     booking.UserID,
		GuestCount: booking.GuestCount,
	})
	if err != nil {
		return nil, err
	}

	encrypted, err := encryptAES(data, g.secret)
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

// DecodePayload decrypts a scanned payload back into its fields; used by
// the check-in endpoint of the gate scanner.
func (g *Generator) DecodePayload(encoded string) (bookingID, eventID string, err error) {
	plaintext, err := decryptAES(encoded, g.secret)
	if err != nil {
		return "", "", err
	}
	var payload checkInPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return "", "", err
	}
	return payload.BookingID, payload.EventID, nil
}

func encryptAES(data, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func decryptAES(encoded string, key []byte) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, io.ErrUnexpectedEOF
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
