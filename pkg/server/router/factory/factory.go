// Package factory picks a router adapter by its configured name.
package factory

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nimburion/itemservice/pkg/server/router"
	ginadapter "github.com/nimburion/itemservice/pkg/server/router/gin"
	gorillaadapter "github.com/nimburion/itemservice/pkg/server/router/gorilla"
	nethttpadapter "github.com/nimburion/itemservice/pkg/server/router/nethttp"
)

// Default is used when no router type is configured.
const Default = "gin"

var constructors = map[string]func() router.Router{
	"gin":     func() router.Router { return ginadapter.NewRouter() },
	"gorilla": func() router.Router { return gorillaadapter.NewRouter() },
	"nethttp": func() router.Router { return nethttpadapter.NewRouter() },
}

// NewRouter returns an empty router of the named type. Names are case-insensitive.
func NewRouter(routerType string) (router.Router, error) {
	name := strings.ToLower(strings.TrimSpace(routerType))
	if name == "" {
		name = Default
	}
	build, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("unsupported router type %q (supported: %s)", routerType, strings.Join(SupportedTypes(), ", "))
	}
	return build(), nil
}

// SupportedTypes lists the accepted router names in sorted order.
func SupportedTypes() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
