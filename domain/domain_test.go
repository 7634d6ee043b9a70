package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSenderNum(t *testing.T) {
	tests := []struct {
		name     string
		clientID string
		want     uint32
	}{
		{name: "numeric id maps to itself", clientID: "7", want: 7},
		{name: "max uint32", clientID: "4294967295", want: 4294967295},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SenderNum(tt.clientID))
		})
	}

	t.Run("non-numeric ids hash deterministically", func(t *testing.T) {
		assert.Equal(t, SenderNum("alice"), SenderNum("alice"))
		assert.NotEqual(t, SenderNum("alice"), SenderNum("bob"))
	})

	t.Run("overflowing id falls back to the hash", func(t *testing.T) {
		assert.Equal(t, SenderNum("4294967296"), SenderNum("4294967296"))
	})
}

func TestEncodeVoiceFrame(t *testing.T) {
	frame := EncodeVoiceFrame(0x01020304, []byte("abc"))
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 'a', 'b', 'c'}, frame)

	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x09}, EncodeVoiceFrame(9, nil))
}
