package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPalettePickFirstUnused(t *testing.T) {
	p := Palette{"red", "green", "blue"}
	never := func(int) int { t.Fatal("random pick used while a color was free"); return 0 }

	assert.Equal(t, "red", p.Pick(map[string]bool{}, never))
	assert.Equal(t, "green", p.Pick(map[string]bool{"red": true}, never))
	assert.Equal(t, "red", p.Pick(map[string]bool{"green": true, "blue": true}, never))
}

func TestPalettePickRandomWhenExhausted(t *testing.T) {
	p := Palette{"red", "green", "blue"}
	all := map[string]bool{"red": true, "green": true, "blue": true}

	assert.Equal(t, "blue", p.Pick(all, func(n int) int {
		assert.Equal(t, 3, n)
		return 2
	}))
}

func TestPalettePickEmpty(t *testing.T) {
	assert.Equal(t, "", Palette{}.Pick(nil, func(int) int { return 0 }))
}
