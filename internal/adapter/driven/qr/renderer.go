// Package qr renders join payloads as QR code PNG images.
package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.JoinPayloadRenderer = (*Renderer)(nil)

// DefaultSize is the edge length of rendered images in pixels.
const DefaultSize = 512

// Renderer encodes payloads as PNG QR codes with medium error correction.
type Renderer struct {
	size int
}

// NewRenderer creates a Renderer producing size x size pixel images.
func NewRenderer(size int) *Renderer {
	if size <= 0 {
		size = DefaultSize
	}
	return &Renderer{size: size}
}

// Render returns the PNG encoding of payload.
func (r *Renderer) Render(payload string) ([]byte, error) {
	png, err := qrcode.Encode(payload, qrcode.Medium, r.size)
	if err != nil {
		return nil, fmt.Errorf("encode QR code: %w", err)
	}
	return png, nil
}

// Extension returns ".png".
func (r *Renderer) Extension() string { return ".png" }
