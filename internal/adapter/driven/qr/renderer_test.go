package qr

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/model"
)

func TestRender_ProducesPNG(t *testing.T) {
	r := NewRenderer(256)

	data, err := r.Render(model.JoinPayload("Guest", "Gentle-Winter-Planet7"))

	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
	assert.Equal(t, ".png", r.Extension())
}

func TestNewRenderer_DefaultSize(t *testing.T) {
	assert.Equal(t, DefaultSize, NewRenderer(0).size)
}
