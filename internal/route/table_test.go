package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	table := MustDefaultTable()

	tests := []struct {
		target string
		want   string
		found  bool
	}{
		{"cart", Cart, true},
		{"/cart", Cart, true},
		{"/cart/", Cart, true},
		{"/cart?tab=rentals", Cart, true},
		{"/admin/cameras/../cameras", Admin, true},
		{"  /browse  ", Browse, true},
		{"/", Home, true},
		{"Cart", "", false},
		{"/carts", "", false},
		{"//evil.example/cart", "", false},
		{"", "", false},
	}
	for _, tc := range tests {
		got, ok := table.Resolve(tc.target)
		assert.Equal(t, tc.found, ok, "%q", tc.target)
		assert.Equal(t, tc.want, got.Name, "%q", tc.target)
	}
}

func TestSpecsAreCopies(t *testing.T) {
	table := MustDefaultTable()
	specs := table.Specs()
	specs[0].Path = "/changed"

	home, ok := table.ByName(Home)
	assert.True(t, ok)
	assert.Equal(t, "/", home.Path)
}
