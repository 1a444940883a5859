package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ginadapter "github.com/nimburion/itemservice/pkg/server/router/gin"
	gorillaadapter "github.com/nimburion/itemservice/pkg/server/router/gorilla"
	nethttpadapter "github.com/nimburion/itemservice/pkg/server/router/nethttp"
)

func TestNewRouter_SelectsAdapter(t *testing.T) {
	tests := []struct {
		in   string
		want interface{}
	}{
		{"", &ginadapter.GinRouter{}},
		{"gin", &ginadapter.GinRouter{}},
		{" Gorilla ", &gorillaadapter.GorillaRouter{}},
		{"NETHTTP", &nethttpadapter.NetHTTPRouter{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, err := NewRouter(tt.in)
			require.NoError(t, err)
			assert.IsType(t, tt.want, r)
		})
	}
}

func TestNewRouter_UnknownTypeListsSupported(t *testing.T) {
	_, err := NewRouter("chi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"chi"`)
	assert.Contains(t, err.Error(), "gin, gorilla, nethttp")
}

func TestSupportedTypes(t *testing.T) {
	assert.Equal(t, []string{"gin", "gorilla", "nethttp"}, SupportedTypes())
}
